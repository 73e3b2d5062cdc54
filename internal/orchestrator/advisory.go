package orchestrator

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/stagehand/internal/advisor"
	"github.com/Iron-Ham/stagehand/internal/classify"
	"github.com/Iron-Ham/stagehand/internal/errors"
	"github.com/Iron-Ham/stagehand/internal/event"
	"github.com/Iron-Ham/stagehand/internal/execqueue"
	"github.com/Iron-Ham/stagehand/internal/plan"
	"github.com/Iron-Ham/stagehand/internal/stage"
)

var continueWords = map[string]bool{
	"continue": true, "next": true, "go": true, "yes": true, "y": true, "proceed": true,
}

// HandleUserInput routes one line typed by the user.
//
// In order: an answer to a waiting command prompt, an answer to a channel
// question, a shell command ("!cmd"), a slash command, a bare "continue",
// and finally a message for the advisor (or the local heuristics when the
// advisor is unavailable).
func (d *Driver) HandleUserInput(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if d.answerPrompt(text) {
		return
	}
	if d.pendingQuestion != "" && d.channel != nil {
		id := d.pendingQuestion
		d.pendingQuestion = ""
		if err := d.channel.SendAnswer(id, text); err != nil {
			d.notice(event.NoticeWarning, "Could not send answer: "+err.Error())
		}
		return
	}

	if cmd, ok := strings.CutPrefix(text, "!"); ok {
		if cmd = strings.TrimSpace(cmd); cmd != "" {
			d.Submit(cmd)
		}
		return
	}
	if strings.HasPrefix(text, "/") {
		d.slash(text)
		return
	}
	if continueWords[strings.ToLower(text)] {
		if d.AdvanceToNext() == NoFurtherStage {
			d.notice(event.NoticeInfo, "Nothing left to run.")
		}
		return
	}

	if d.cursor.Intent == "" {
		d.cursor.Intent = text
	}
	if d.advisor == nil || d.needsReconfig {
		d.forwardToChannel(text)
		d.localFallback(text)
		return
	}
	if d.advising {
		d.adviceQueue = append(d.adviceQueue, text)
		d.notice(event.NoticeInfo, "The advisor is still answering; your message will be sent next.")
		return
	}
	d.askAdvisor(text)
}

func (d *Driver) slash(text string) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "cancel":
		d.Cancel()
	case "continue", "next":
		if d.AdvanceToNext() == NoFurtherStage {
			d.notice(event.NoticeInfo, "Nothing left to run.")
		}
	case "advisor":
		d.needsReconfig = false
		d.notice(event.NoticeInfo, "Advisor re-enabled.")
	case "cd":
		if arg == "" {
			d.notice(event.NoticeWarning, "usage: /cd <dir>")
			return
		}
		d.ChangeContext(arg)
	case "agents":
		if arg == "" {
			d.notice(event.NoticeInfo, "Known agents: "+strings.Join(d.inventory.Names(), ", "))
			return
		}
		d.SetAgents(splitList(arg))
	case "intent":
		d.SetIntent(arg)
	default:
		d.notice(event.NoticeWarning, fmt.Sprintf("unknown command /%s", name))
	}
}

// SetAgents records the agents the generation stage should produce.
func (d *Driver) SetAgents(names []string) {
	d.agents = names
}

// InstallGraph makes g the active graph. Its first stage is selected but
// only entered on the next advance.
func (d *Driver) InstallGraph(g *stage.Graph) {
	d.cursor.Graph = g
	d.cursor.Current = g.First()
	d.cursor.Entered = false
	if g.Intent() != "" {
		d.cursor.Intent = g.Intent()
	}

	order := g.Order()
	names := make([]string, len(order))
	for i, id := range order {
		names[i] = string(id)
	}
	d.logger.Info("plan installed", "origin", string(g.Origin()), "stages", strings.Join(names, ","))
	d.bus.Publish(event.NewPlanCompiledEvent(d.cursor.Intent, string(g.Origin()), names))
}

// InstallPlan compiles p and installs the result.
func (d *Driver) InstallPlan(p plan.Plan) {
	if p.Intent == "" {
		p.Intent = d.cursor.Intent
	}
	d.InstallGraph(d.compiler.FromPlan(p))
}

func (d *Driver) advisorContext() advisor.Context {
	return advisor.Context{
		Stage:       string(d.cursor.Current),
		Intent:      d.cursor.Intent,
		KnownAgents: d.inventory.Names(),
		Tool:        d.opts.Tool,
		WorkingDir:  d.opts.WorkingDir,
		Queued:      d.queue.Len(),
	}
}

// askAdvisor holds the queue and consults the advisor off the timeline.
func (d *Driver) askAdvisor(text string) {
	d.advising = true
	d.queue.Hold()

	epoch := d.epoch
	actx := d.advisorContext()
	adv := d.advisor
	ctx := d.ctx
	d.logger.Debug("consulting advisor", "stage", actx.Stage)

	go func() {
		resp, err := adv.Chat(ctx, text, actx)
		d.sched.Post(func() {
			if epoch != d.epoch {
				return
			}
			// Stay busy across replies while messages are waiting.
			d.advising = len(d.adviceQueue) > 0
			if err != nil {
				d.handleAdvisoryFailure(text, err)
			} else {
				d.HandleAdvisory(resp)
			}
			d.nextAdvice()
		})
	}()
}

// nextAdvice sends the oldest message typed while the advisor was busy.
func (d *Driver) nextAdvice() {
	if len(d.adviceQueue) == 0 {
		return
	}
	text := d.adviceQueue[0]
	d.adviceQueue = d.adviceQueue[1:]
	if d.advisor == nil || d.needsReconfig {
		d.advising = len(d.adviceQueue) > 0
		d.localFallback(text)
		d.nextAdvice()
		return
	}
	d.askAdvisor(text)
}

// HandleAdvisory applies an advisory reply: it installs any plan, queues
// the suggested action and then follows the classified decision.
func (d *Driver) HandleAdvisory(resp advisor.Response) classify.Decision {
	result := d.classifier.Classify(resp.Message)
	decision := result.Decision()
	d.logger.Info("advisory reply", "decision", decision.String(), "plan", resp.HasPlan(), "action", resp.Action)
	d.bus.Publish(event.NewAdvisoryMessageEvent(resp.Message, decision.String()))

	if agents, ok := resp.Params["agents"]; ok {
		d.SetAgents(splitList(agents))
	}

	installed := false
	switch {
	case resp.HasPlan():
		d.InstallPlan(*resp.Plan)
		installed = true
	case decision == classify.DecisionContinue && len(d.compiler.Detect(resp.Message)) > 0:
		d.InstallGraph(d.compiler.FromFreeText(resp.Message, plan.Context{
			Current: d.cursor.Current,
			Intent:  d.cursor.Intent,
		}))
		installed = true
	}

	if resp.Action != "" {
		d.submit(requestFromAdvisor(resp.Action))
	}

	switch decision {
	case classify.DecisionAwait, classify.DecisionHandOff:
		d.awaitUser(d.cursor.Current, resp.Message)
		if result.IsComplete && !d.atTerminal() {
			d.notice(event.NoticeInfo, "The advisor reports this step is done. Say \"continue\" to move on.")
		}
	case classify.DecisionContinue:
		d.queue.ReturnControl()
		d.AdvanceToNext()
	default:
		d.queue.ReturnControl()
		if installed {
			d.bus.Publish(event.NewAwaitingUserEvent(string(d.cursor.Current), "Plan ready. Say \"continue\" to start."))
			break
		}
		d.AutoProgressIfEligible()
	}
	return decision
}

// handleAdvisoryFailure degrades to the local heuristics for transient
// failures and disables the advisor for credential failures.
func (d *Driver) handleAdvisoryFailure(text string, err error) {
	reconfigure := errors.RequiresUserAction(err)
	d.logger.Warn("advisory request failed", "error", err, "reconfigure", reconfigure)
	d.bus.Publish(event.NewAdvisoryFailedEvent(reconfigure, err.Error()))
	d.queue.ReturnControl()

	if reconfigure {
		d.needsReconfig = true
		d.awaitUser(d.cursor.Current, "The advisor needs to be reconfigured. Fix its credentials, then type /advisor.")
		return
	}
	d.localFallback(text)
}

// forwardToChannel passes free text to the live agents when no advisor
// is answering it.
func (d *Driver) forwardToChannel(text string) {
	if d.channel == nil {
		return
	}
	if err := d.channel.SendUserMessage(text); err != nil {
		if !errors.Is(err, errors.ErrNotConnected) {
			d.notice(event.NoticeWarning, "Could not send message to agents: "+err.Error())
		}
		return
	}
	d.bus.Publish(event.NewChannelMessageEvent("user_message", text))
}

// localFallback builds a plan from the user's own words.
func (d *Driver) localFallback(text string) {
	g := d.compiler.FromFreeText(text, plan.Context{Current: d.cursor.Current, Intent: d.cursor.Intent})
	d.InstallGraph(g)
	d.bus.Publish(event.NewAwaitingUserEvent(string(g.First()), "Plan ready. Say \"continue\" to start."))
}

// HandleChannelQuestion surfaces a question from a live agent. The next
// line the user types is sent back as the answer.
func (d *Driver) HandleChannelQuestion(id, agent, text string) {
	d.pendingQuestion = id
	prompt := text
	if agent != "" {
		prompt = agent + " asks: " + text
	}
	d.bus.Publish(event.NewAwaitingUserEvent(string(d.cursor.Current), prompt))
}

func requestFromAdvisor(action string) execqueue.Request {
	return execqueue.Request{Command: action, Stage: "advisor"}
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
