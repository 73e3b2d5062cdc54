package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/stagehand/internal/classify"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <message>",
	Short: "Show how an advisory message would be classified",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

var classifyJSON bool

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "print the classification as JSON")
}

type classification struct {
	HandedToUser                  bool     `json:"handed_to_user"`
	ShouldAutoContinue            bool     `json:"should_auto_continue"`
	HasExplicitContinuationMarker bool     `json:"has_explicit_continuation_marker"`
	RequiresUserInput             bool     `json:"requires_user_input"`
	IsComplete                    bool     `json:"is_complete"`
	Matched                       []string `json:"matched"`
	Decision                      string   `json:"decision"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	res := classify.NewDefault().Classify(strings.Join(args, " "))
	c := classification{
		HandedToUser:                  res.HandedToUser,
		ShouldAutoContinue:            res.ShouldAutoContinue,
		HasExplicitContinuationMarker: res.HasExplicitContinuationMarker,
		RequiresUserInput:             res.RequiresUserInput,
		IsComplete:                    res.IsComplete,
		Matched:                       res.Matched,
		Decision:                      res.Decision().String(),
	}

	out := cmd.OutOrStdout()
	if classifyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	}

	fmt.Fprintf(out, "decision:                 %s\n", c.Decision)
	fmt.Fprintf(out, "handed_to_user:           %v\n", c.HandedToUser)
	fmt.Fprintf(out, "should_auto_continue:     %v\n", c.ShouldAutoContinue)
	fmt.Fprintf(out, "explicit_continuation:    %v\n", c.HasExplicitContinuationMarker)
	fmt.Fprintf(out, "requires_user_input:      %v\n", c.RequiresUserInput)
	fmt.Fprintf(out, "is_complete:              %v\n", c.IsComplete)
	fmt.Fprintf(out, "matched:                  %s\n", strings.Join(c.Matched, ", "))
	return nil
}
