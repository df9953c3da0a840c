package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/medsim/case-eval/grader/collab"
)

var verdictsCmd = &cobra.Command{
	Use:   "verdicts",
	Short: "Work with verdicts produced by an external language model",
}

var verdictsRepairCmd = &cobra.Command{
	Use:   "repair FILE",
	Short: "Parse raw model output, repairing malformed JSON, and print canonical verdicts",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runVerdictsRepair(cmd.OutOrStdout(), args[0]); err != nil {
			logrus.Fatalf("Failed to repair verdicts: %v", err)
		}
	},
}

func runVerdictsRepair(w io.Writer, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading verdicts: %w", err)
	}
	v, err := collab.ParseVerdicts(string(raw))
	if err != nil {
		return err
	}
	logrus.Infof("Parsed %d message verdicts", len(v.Messages))
	return writeJSON(w, v)
}

func init() {
	verdictsCmd.AddCommand(verdictsRepairCmd)
	rootCmd.AddCommand(verdictsCmd)
}
