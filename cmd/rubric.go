package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/medsim/case-eval/grader"
	"github.com/medsim/case-eval/grader/report"
	"github.com/medsim/case-eval/grader/rubric"
	"github.com/medsim/case-eval/grader/score"
)

var rubricCmd = &cobra.Command{
	Use:   "rubric",
	Short: "Inspect and validate rubric bundles",
}

var rubricShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active rubric (--rubric or the embedded default) as YAML",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runRubricShow(cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("Failed to show rubric: %v", err)
		}
	},
}

var rubricValidateCmd = &cobra.Command{
	Use:   "validate PATH",
	Short: "Validate a rubric bundle: point ranges, texts, profiles and condition names",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runRubricValidate(cmd.OutOrStdout(), args[0]); err != nil {
			logrus.Fatalf("Invalid rubric: %v", err)
		}
	},
}

func runRubricShow(w io.Writer) error {
	b := rubric.DefaultBundle()
	if rubricPath != "" {
		var err error
		if b, err = rubric.LoadBundle(rubricPath); err != nil {
			return err
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(b)
}

func runRubricValidate(w io.Writer, path string) error {
	reg, err := rubric.Load(path)
	if err != nil {
		return err
	}
	// Unknown condition names only surface when a scorer is built.
	if _, err := score.New(reg, tieBreak); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s rubric %s (version %q)\n", green("valid"), path, reg.Version())
	for _, dim := range grader.Dimensions {
		fmt.Fprintf(w, "  %-26s %v\n", report.Title(dim), rubric.PointRange(dim))
	}
	return nil
}

func init() {
	rubricCmd.AddCommand(rubricShowCmd)
	rubricCmd.AddCommand(rubricValidateCmd)
	rootCmd.AddCommand(rubricCmd)
}
