package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/stagehand/internal/config"
	"github.com/Iron-Ham/stagehand/internal/logging"
	"github.com/Iron-Ham/stagehand/internal/plan"
	"github.com/Iron-Ham/stagehand/internal/render"
	"github.com/Iron-Ham/stagehand/internal/stage"
)

var planCmd = &cobra.Command{
	Use:   "plan [file]",
	Short: "Compile a plan and show the resulting stages",
	Long: `Compile a plan and show the stages it would run, without running anything.

The plan is read from a YAML or JSON file. With --text the stages are
detected from free text instead; with neither, the default pipeline is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

var (
	planText   string
	planIntent string
	planAgents []string
)

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringVar(&planText, "text", "", "detect stages from free text")
	planCmd.Flags().StringVar(&planIntent, "intent", "", "intent used when the plan has none")
	planCmd.Flags().StringSliceVar(&planAgents, "agents", nil, "agents to generate")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	compiler := plan.NewCompiler(logging.NopLogger())

	var g *stage.Graph
	switch {
	case len(args) == 1:
		p, err := plan.Load(args[0])
		if err != nil {
			return err
		}
		if p.Intent == "" {
			p.Intent = planIntent
		}
		g = compiler.FromPlan(p)
	case planText != "":
		g = compiler.FromFreeText(planText, plan.Context{Current: stage.Init, Intent: planIntent})
	default:
		g = compiler.Default()
	}

	intent := g.Intent()
	if intent == "" {
		intent = planIntent
	}
	ctx := stage.Context{
		Intent:       intent,
		Agents:       planAgents,
		Tool:         cfg.Pipeline.Tool,
		AgentsDir:    cfg.Pipeline.AgentsDir,
		ProbeCommand: cfg.Pipeline.Probe(),
	}

	r := newRenderer(cmd)
	for _, line := range r.Steps(g, g.Steps(ctx)) {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

// newRenderer styles output only when it goes to a terminal.
func newRenderer(cmd *cobra.Command) *render.Renderer {
	if f, ok := cmd.OutOrStdout().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return render.New(render.TerminalWidth(f))
	}
	return render.NewPlain(0)
}
