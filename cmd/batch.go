package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/medsim/case-eval/grader"
	"github.com/medsim/case-eval/grader/engine"
	"github.com/medsim/case-eval/grader/report"
	"github.com/medsim/case-eval/grader/session"
	"github.com/medsim/case-eval/grader/trace"
)

var (
	batchWorkers  int    // Concurrent evaluations
	batchFormat   string // json or text
	metricsOutput string // File to write Prometheus text exposition to
)

// batchResult is one line of the JSON batch output.
type batchResult struct {
	ID     string              `json:"id"`
	Report *report.ScoreReport `json:"report"`
}

// batchCmd scores every session file in a directory
var batchCmd = &cobra.Command{
	Use:   "batch DIR",
	Short: "Score every session file (.yaml, .yml, .json) in a directory concurrently",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runBatch(cmd.Context(), cmd.OutOrStdout(), args[0]); err != nil {
			logrus.Fatalf("Batch failed: %v", err)
		}
	},
}

func runBatch(ctx context.Context, w io.Writer, dir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sessions, err := session.LoadDir(dir)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return fmt.Errorf("no session files in %s", dir)
	}

	reg := prometheus.NewRegistry()
	ev, err := newEvaluator(loadRegistry(), trace.TraceLevelNone, engine.WithMetrics(engine.MustNewMetrics(reg)))
	if err != nil {
		return err
	}

	jobs := make([]engine.Job, len(sessions))
	for i, s := range sessions {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("session %s: %w", s.ID, err)
		}
		c, err := s.Collaborators(grader.Collaborators{})
		if err != nil {
			return err
		}
		jobs[i] = engine.Job{Input: s.Input(), Collaborators: c}
	}

	results, err := ev.EvaluateBatch(ctx, jobs, batchWorkers)
	if err != nil {
		return err
	}
	logrus.Infof("Evaluated %d sessions with %d workers", len(results), batchWorkers)

	switch batchFormat {
	case formatJSON:
		out := make([]batchResult, len(results))
		for i, res := range results {
			out[i] = batchResult{ID: sessions[i].ID, Report: res.Report}
		}
		if err := writeJSON(w, out); err != nil {
			return err
		}
	case formatText:
		for i, res := range results {
			if err := writeColoredText(w, sessions[i].ID, res.Report); err != nil {
				return err
			}
			fmt.Fprintln(w)
		}
	default:
		return fmt.Errorf("unknown format %q; valid: json, text", batchFormat)
	}

	if metricsOutput != "" {
		return writeMetrics(metricsOutput, reg)
	}
	return nil
}

// writeMetrics dumps the registry in the Prometheus text exposition format.
func writeMetrics(path string, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating metrics file: %w", err)
	}
	defer f.Close()
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(f, mf); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	logrus.Infof("Wrote metrics to %s", path)
	return nil
}

func init() {
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 4, "Maximum concurrent evaluations")
	batchCmd.Flags().StringVar(&batchFormat, "format", formatJSON, "Output format (json, text)")
	batchCmd.Flags().StringVar(&metricsOutput, "metrics-out", "", "Write Prometheus metrics in text format to this file")

	rootCmd.AddCommand(batchCmd)
}
