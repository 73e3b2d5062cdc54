package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/stagehand/internal/config"
	"github.com/Iron-Ham/stagehand/internal/orchestrator"
	"github.com/Iron-Ham/stagehand/internal/plan"
	"github.com/Iron-Ham/stagehand/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the guided pipeline",
	Long: `Start the guided pipeline in the current directory.

Type what you want to build and the advisor proposes a plan; say "continue"
to run the next stage. Lines starting with ! run as shell commands, and
/cancel drops everything queued. With --plain, events are printed as lines
and input is read from stdin, which makes the pipeline scriptable:

  printf 'continue\ncontinue\n' | stagehand run --plain --no-advisor`,
	RunE: runRun,
}

var (
	runPlain     bool
	runPlanFile  string
	runIntent    string
	runNoAdvisor bool
	runChannel   bool
	runDir       string
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "line mode instead of the interactive UI")
	runCmd.Flags().StringVar(&runPlanFile, "plan", "", "start from a plan file (YAML or JSON)")
	runCmd.Flags().StringVar(&runIntent, "intent", "", "what to build")
	runCmd.Flags().BoolVar(&runNoAdvisor, "no-advisor", false, "compile free text locally instead of asking the advisor")
	runCmd.Flags().BoolVar(&runChannel, "channel", false, "connect the agent channel even if disabled in config")
	runCmd.Flags().StringVarP(&runDir, "dir", "C", "", "working directory (default: current directory)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	workDir := runDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	var initial *plan.Plan
	if runPlanFile != "" {
		p, err := plan.Load(runPlanFile)
		if err != nil {
			return err
		}
		initial = &p
	}

	e, err := newEngine(cfg, engineOptions{
		workDir:        workDir,
		disableAdvisor: runNoAdvisor,
		enableChannel:  runChannel,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		e.close()
	}()

	begin := func(d *orchestrator.Driver) {
		if runIntent != "" {
			d.SetIntent(runIntent)
		}
		if initial != nil {
			d.InstallPlan(*initial)
			d.AdvanceToNext()
			return
		}
		d.Start()
	}

	if runPlain || cfg.TUI.Plain {
		front := tui.NewPlain(e.bus, newRenderer(cmd), cmd.OutOrStdout())
		defer front.Close()
		e.start(ctx, begin)
		if err := front.Run(ctx, cmd.InOrStdin(), e.submit); err != nil {
			return err
		}
		waitIdle(ctx, e)
		return nil
	}

	app := tui.New(e.bus, e.submit, cfg.TUI.MaxOutputLines)
	e.start(ctx, begin)
	return app.Run()
}

// waitIdle blocks until the driver has nothing left in flight, so piped
// input finishes the work it started.
func waitIdle(ctx context.Context, e *engine) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for e.busy(ctx) {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
