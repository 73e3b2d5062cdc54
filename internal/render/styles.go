package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/stagehand/internal/logstream"
)

var (
	// Colors - all meet WCAG AA contrast on dark backgrounds
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BlueColor      = lipgloss.Color("#60A5FA")
	PinkColor      = lipgloss.Color("#F472B6")

	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Text      = lipgloss.NewStyle().Foreground(TextColor)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor)

	Banner = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextColor).
		Background(PrimaryColor).
		Padding(0, 1)

	StageBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor).
			Background(BlueColor).
			Padding(0, 1)

	PromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(WarningColor)

	CommandStyle = lipgloss.NewStyle().
			Foreground(BlueColor)
)

// phaseColors color banners by the phase they open.
var phaseColors = map[logstream.Phase]lipgloss.Color{
	logstream.PhaseNone:       PrimaryColor,
	logstream.PhaseProposing:  BlueColor,
	logstream.PhaseEvaluating: WarningColor,
	logstream.PhaseCommitting: SecondaryColor,
	logstream.PhaseModifying:  PinkColor,
	logstream.PhaseComplete:   SecondaryColor,
}

var categoryStyles = map[logstream.Category]lipgloss.Style{
	logstream.CategoryIntent:     Title,
	logstream.CategoryRound:      Title,
	logstream.CategoryProposal:   Text,
	logstream.CategoryEvaluation: Text,
	logstream.CategoryCommit:     Secondary,
	logstream.CategoryRejection:  Error,
	logstream.CategoryFiles:      Primary,
	logstream.CategoryCompletion: Secondary.Bold(true),
	logstream.CategoryTotals:     Muted,
	logstream.CategoryWarning:    Warning,
	logstream.CategoryError:      Error,
}

// PhaseBanner returns the banner style for phase p.
func PhaseBanner(p logstream.Phase) lipgloss.Style {
	c, ok := phaseColors[p]
	if !ok {
		c = PrimaryColor
	}
	return Banner.Background(c)
}

// CategoryStyle returns the body style for category c. Unknown and plain
// categories are unstyled.
func CategoryStyle(c logstream.Category) lipgloss.Style {
	if s, ok := categoryStyles[c]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
