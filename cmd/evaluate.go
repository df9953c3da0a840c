package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/medsim/case-eval/grader"
	"github.com/medsim/case-eval/grader/engine"
	"github.com/medsim/case-eval/grader/session"
	"github.com/medsim/case-eval/grader/trace"
)

var (
	outputFormat   string // json or text
	traceLevel     string // Trace verbosity: none or decisions
	traceOutput    string // File to write the decision trace to
	summarizeTrace bool   // Print a trace summary to stderr
)

// evaluateCmd scores a single session file
var evaluateCmd = &cobra.Command{
	Use:   "evaluate SESSION",
	Short: "Score one session file and print the feedback report",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runEvaluate(cmd.OutOrStdout(), args[0]); err != nil {
			logrus.Fatalf("Evaluation failed: %v", err)
		}
	},
}

func runEvaluate(w io.Writer, path string) error {
	if !trace.IsValidTraceLevel(traceLevel) {
		return fmt.Errorf("unknown trace level %q; valid: none, decisions", traceLevel)
	}
	level := trace.TraceLevel(traceLevel)
	if traceOutput != "" && level != trace.TraceLevelDecisions {
		logrus.Warnf("--trace-out implies --trace-level decisions")
		level = trace.TraceLevelDecisions
	}

	s, err := session.Load(path)
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	var opts []engine.Option
	if summarizeTrace {
		opts = append(opts, engine.WithSummary())
	}
	ev, err := newEvaluator(loadRegistry(), level, opts...)
	if err != nil {
		return err
	}
	collaborators, err := s.Collaborators(grader.Collaborators{})
	if err != nil {
		return err
	}
	res, err := ev.EvaluateWith(s.Input(), collaborators)
	if err != nil {
		return err
	}
	logrus.Infof("Evaluated %s in %v", s.ID, res.WallTime)

	if err := writeResult(w, s.ID, res, outputFormat); err != nil {
		return err
	}
	if res.Summary != nil {
		printSummary(os.Stderr, res.Summary)
	}
	if traceOutput != "" {
		return writeTraceFile(traceOutput, res.Trace)
	}
	return nil
}

func writeTraceFile(path string, tr *trace.EvaluationTrace) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}
	defer f.Close()
	if err := writeJSON(f, tr); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	logrus.Infof("Wrote decision trace to %s", path)
	return nil
}

func printSummary(w io.Writer, s *trace.TraceSummary) {
	fmt.Fprintln(w, "=== Trace Summary ===")
	fmt.Fprintf(w, "Selections: %d (majority %d, highest support %d, tie-break %d)\n",
		s.TotalSelections, s.MajorityCount, s.HighestSupport, s.TieBreaks)
	if s.ZeroOverride {
		fmt.Fprintln(w, "Zero-CAU override applied")
	}
	for _, dim := range grader.Dimensions {
		if p, ok := s.Points[string(dim)]; ok {
			fmt.Fprintf(w, "  %s: %d\n", dim, p)
		}
	}
}

func init() {
	evaluateCmd.Flags().StringVar(&outputFormat, "format", formatText, "Output format (json, text)")
	evaluateCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Decision trace level (none, decisions)")
	evaluateCmd.Flags().StringVar(&traceOutput, "trace-out", "", "Write the decision trace as JSON to this file")
	evaluateCmd.Flags().BoolVar(&summarizeTrace, "summarize-trace", false, "Print a trace summary to stderr (requires --trace-level decisions)")

	rootCmd.AddCommand(evaluateCmd)
}
