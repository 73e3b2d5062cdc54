package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/stagehand/internal/logstream"
)

var interpretCmd = &cobra.Command{
	Use:   "interpret [file|-]",
	Short: "Interpret a negotiation log",
	Long: `Read a negotiation log line by line and print it the way the live view
shows it: section banners per phase, recognized lines styled, everything
else passed through. Reads stdin when no file (or "-") is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInterpret,
}

var interpretSummary bool

func init() {
	rootCmd.AddCommand(interpretCmd)
	interpretCmd.Flags().BoolVar(&interpretSummary, "summary", true, "print totals when the log ends")
}

func runInterpret(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	name := "stdin"
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		in, name = f, args[0]
	}
	return interpret(cmd, in, name)
}

func interpret(cmd *cobra.Command, in io.Reader, name string) error {
	out := cmd.OutOrStdout()
	r := newRenderer(cmd)
	session := logstream.NewSession(name)

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		for _, line := range r.Instructions(session.Feed(sc.Text())) {
			fmt.Fprintln(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}

	if interpretSummary {
		fmt.Fprintln(out, r.Summary(session.Summary()))
	}
	return nil
}
