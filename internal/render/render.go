// Package render turns log-stream instructions and engine events into
// terminal lines. It is shared by the interactive front-end and the plain
// line mode; the interpreter itself knows nothing about presentation.
package render

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Iron-Ham/stagehand/internal/event"
	"github.com/Iron-Ham/stagehand/internal/logstream"
	"github.com/Iron-Ham/stagehand/internal/stage"
)

// DefaultWidth is used when the output is not a terminal.
const DefaultWidth = 80

// TerminalWidth returns the width of f, or DefaultWidth when f is not a
// terminal.
func TerminalWidth(f *os.File) int {
	if f == nil {
		return DefaultWidth
	}
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
		return w
	}
	return DefaultWidth
}

// Renderer formats lines for a terminal of a fixed width.
type Renderer struct {
	width int
	plain bool
}

// New returns a styled Renderer. A width of zero or less disables
// truncation.
func New(width int) *Renderer {
	return &Renderer{width: width}
}

// NewPlain returns a Renderer that never emits escape sequences.
func NewPlain(width int) *Renderer {
	return &Renderer{width: width, plain: true}
}

// SetWidth changes the truncation width.
func (r *Renderer) SetWidth(w int) { r.width = w }

// Width returns the truncation width.
func (r *Renderer) Width() int { return r.width }

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if r.plain {
		return text
	}
	return s.Render(text)
}

func (r *Renderer) fit(line string) string {
	if r.width <= 0 || lipgloss.Width(line) <= r.width {
		return line
	}
	return lipgloss.NewStyle().MaxWidth(r.width).Render(line)
}

// Instruction renders one interpreter instruction. Passthrough lines come
// out verbatim.
func (r *Renderer) Instruction(in logstream.Instruction) string {
	switch in.Kind {
	case logstream.KindBanner:
		if r.plain {
			return r.fit("== " + in.Text + " ==")
		}
		return r.fit(PhaseBanner(in.Phase).Render(in.Text))
	case logstream.KindBody:
		return r.fit("  " + r.style(CategoryStyle(in.Category), in.Text))
	default:
		return in.Text
	}
}

// Instructions renders a sequence of instructions, one line each.
func (r *Renderer) Instructions(ins []logstream.Instruction) []string {
	out := make([]string, 0, len(ins))
	for _, in := range ins {
		out = append(out, r.Instruction(in))
	}
	return out
}

// Summary renders the totals of an interpreted stream.
func (r *Renderer) Summary(s logstream.Summary) string {
	status := r.style(Warning, "incomplete")
	if s.Completed {
		status = r.style(Secondary, "completed")
	}
	return fmt.Sprintf("%s rounds=%d proposals=%d accepts=%d rejects=%d commits=%d rejections=%d files=%d warnings=%d errors=%d",
		status, s.Rounds, s.Proposals, s.Accepts, s.Rejects, s.Commits, s.Rejections, s.FilesModified, s.Warnings, s.Errors)
}

// Event renders an engine event. It returns false for events that have no
// line of their own.
func (r *Renderer) Event(e event.Event) ([]string, bool) {
	switch ev := e.(type) {
	case event.StageEnteredEvent:
		head := r.style(StageBadge, ev.Label)
		if ev.Auto {
			head += r.style(Muted, " (auto)")
		}
		lines := []string{r.fit(head)}
		if ev.Prompt != "" {
			lines = append(lines, r.fit(ev.Prompt))
		}
		return lines, true

	case event.AwaitingUserEvent:
		return r.multiline(PromptStyle, "? ", ev.Prompt), true

	case event.PlanCompiledEvent:
		line := fmt.Sprintf("Plan (%s): %s", ev.Origin, strings.Join(ev.Order, " → "))
		return []string{r.fit(r.style(Title, line))}, true

	case event.CommandQueuedEvent:
		return []string{r.fit(r.style(Muted, fmt.Sprintf("queued #%d: %s", ev.Position, ev.Command)))}, true

	case event.CommandStartedEvent:
		return []string{r.fit(r.style(CommandStyle, "$ "+ev.Command))}, true

	case event.CommandPromptEvent:
		return []string{r.fit(r.style(PromptStyle, "input requested: ") + ev.Prompt)}, true

	case event.CommandFinishedEvent:
		if ev.Success {
			return []string{r.fit(r.style(Secondary, "✓ "+ev.Command))}, true
		}
		lines := []string{r.fit(r.style(Error, fmt.Sprintf("✗ %s (exit %d)", ev.Command, ev.ExitCode)))}
		return append(lines, r.multiline(Error, "  ", ev.Detail)...), true

	case event.StreamInstructionEvent:
		return []string{r.Instruction(ev.Instruction)}, true

	case event.QueueCanceledEvent:
		return []string{r.fit(r.style(Warning, fmt.Sprintf("canceled (%d queued dropped)", ev.Dropped)))}, true

	case event.AdvisoryMessageEvent:
		return r.multiline(Text, "", ev.Message), true

	case event.AdvisoryFailedEvent:
		msg := "advisor unavailable: " + ev.Err
		if ev.Reconfigure {
			msg = "advisor needs reconfiguration: " + ev.Err
		}
		return []string{r.fit(r.style(Error, msg))}, true

	case event.ChannelStateEvent:
		msg := "channel " + ev.State
		if ev.Delay > 0 {
			msg += fmt.Sprintf(" (attempt %d, retry in %s)", ev.Attempt, ev.Delay)
		}
		if ev.Err != "" {
			msg += ": " + ev.Err
		}
		return []string{r.fit(r.style(Muted, msg))}, true

	case event.ChannelMessageEvent:
		return r.multiline(Primary, "["+ev.Kind+"] ", ev.Text), true

	case event.InventoryUpdatedEvent:
		if len(ev.Agents) == 0 {
			return []string{r.style(Muted, "no agents found")}, true
		}
		return []string{r.fit(r.style(Muted, "agents: "+strings.Join(ev.Agents, ", ")))}, true

	case event.NoticeEvent:
		s := Muted
		switch ev.Level {
		case event.NoticeWarning:
			s = Warning
		case event.NoticeError:
			s = Error
		}
		return r.multiline(s, "", ev.Text), true
	}
	return nil, false
}

func (r *Renderer) multiline(s lipgloss.Style, prefix, text string) []string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = r.fit(r.style(s, prefix+p))
	}
	return out
}

// Steps renders a compiled graph preview, one stage per line.
func (r *Renderer) Steps(g *stage.Graph, steps []stage.Step) []string {
	lines := []string{r.style(Title, fmt.Sprintf("Plan (%s)", g.Origin()))}
	if g.Intent() != "" {
		lines = append(lines, r.style(Muted, "intent: "+g.Intent()))
	}
	for i, s := range steps {
		flags := []string{s.Action.Kind().String()}
		if s.AutoAdvance {
			flags = append(flags, "auto")
		}
		if s.Action.AutoRun {
			flags = append(flags, "run")
		}
		if s.Action.RequiresUserInput {
			flags = append(flags, "await")
		}
		lines = append(lines, r.fit(fmt.Sprintf("%d. %s %s",
			i+1, r.style(StageBadge, string(s.ID)), r.style(Muted, "["+strings.Join(flags, ",")+"]"))))
		for _, c := range s.Action.AllCommands() {
			lines = append(lines, r.fit("     "+r.style(CommandStyle, "$ "+c)))
		}
		if s.Action.Prompt != "" && s.Action.Kind() == stage.ActionNone {
			lines = append(lines, r.fit("     "+s.Action.Prompt))
		}
	}
	return lines
}
