package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var analyzeSource string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Score content coherence",
	Long: `Analyze content and report its coherence signals.

Reads from the given file, or from stdin when the argument is "-" or
omitted. The same content always produces the same analysis; repeat
calls are served from the content-addressed store.

Signals:
  curl        repetition and circular reasoning (lower is better)
  divergence  drift from a settled conclusion
  potential   unexplored directions still available

Examples:
  spiralsafe analyze notes.md
  cat draft.txt | spiralsafe analyze --source drafting
  spiralsafe analyze notes.md --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeSource, "source", "", "Label recording where the content came from")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	var content []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(os.Stdin)
	} else {
		content, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	analysis, err := a.analyzer.Analyze(cmd.Context(), string(content), analyzeSource)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(analysis)
	}

	verdict := color.GreenString("coherent")
	if !analysis.Coherent {
		verdict = color.RedString("incoherent")
	}
	fmt.Printf("Hash:      %s\n", analysis.Hash)
	fmt.Printf("Verdict:   %s\n", verdict)
	if analysis.Trivial {
		fmt.Println("Note:      content below minimum length, signals not scored")
	}
	fmt.Printf("Curl:      %.3f\n", analysis.Curl)
	fmt.Printf("Divergence: %.3f\n", analysis.Divergence)
	fmt.Printf("Potential: %.3f\n", analysis.Potential)
	fmt.Printf("Score:     %.3f\n", analysis.CoherenceScore)
	return nil
}
