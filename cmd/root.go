package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/medsim/case-eval/grader"
	"github.com/medsim/case-eval/grader/collab"
	"github.com/medsim/case-eval/grader/engine"
	"github.com/medsim/case-eval/grader/rubric"
	"github.com/medsim/case-eval/grader/score"
	"github.com/medsim/case-eval/grader/trace"
)

var (
	// Persistent flags shared by every subcommand
	logLevel    string // Log verbosity level
	configFile  string // Optional config file; flags and CASE_EVAL_* env vars override it
	rubricPath  string // Rubric bundle YAML; empty uses the embedded default
	tieBreak    string // Tie-break policy name
	lexiconPath string // Lexicon YAML for the lexical classifier
	memoSize    int    // LRU size for memoized classification
	noColor     bool   // Disable colored text output
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "case-eval",
	Short: "Rubric-driven performance evaluator for clinical case simulations",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd, configFile); err != nil {
			return err
		}
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
		setColor(noColor)
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadRegistry returns the rubric registry selected by --rubric.
func loadRegistry() *rubric.Registry {
	if rubricPath == "" {
		return rubric.Default()
	}
	reg, err := rubric.Load(rubricPath)
	if err != nil {
		logrus.Fatalf("Failed to load rubric %s: %v", rubricPath, err)
	}
	logrus.Infof("Loaded rubric %s (version %q)", rubricPath, reg.Version())
	return reg
}

// newEvaluator builds an evaluator with the default collaborators selected by flags.
func newEvaluator(reg *rubric.Registry, level trace.TraceLevel, opts ...engine.Option) (*engine.Evaluator, error) {
	lx := collab.DefaultLexicon()
	if lexiconPath != "" {
		var err error
		if lx, err = collab.LoadLexicon(lexiconPath); err != nil {
			return nil, err
		}
	}
	classifier, err := collab.Memoize(collab.NewLexical(lx), memoSize)
	if err != nil {
		return nil, err
	}
	base := []engine.Option{
		engine.WithCollaborators(grader.Collaborators{Classifier: classifier, Comparator: collab.NewKeywordComparator()}),
		engine.WithTieBreak(tieBreak),
		engine.WithTraceLevel(level),
	}
	return engine.New(reg, append(base, opts...)...)
}

// init sets up persistent flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (YAML, JSON or TOML) supplying flag defaults")
	rootCmd.PersistentFlags().StringVar(&rubricPath, "rubric", "", "Rubric bundle YAML (default: embedded rubric)")
	rootCmd.PersistentFlags().StringVar(&tieBreak, "tie-break", score.DefaultTieBreak, "Tie-break policy for even support (prefer-lower, prefer-higher)")
	rootCmd.PersistentFlags().StringVar(&lexiconPath, "lexicon", "", "Lexicon YAML for the lexical classifier (default: built-in)")
	rootCmd.PersistentFlags().IntVar(&memoSize, "memo-size", 4096, "Number of classified message texts to cache")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored text output")
}
