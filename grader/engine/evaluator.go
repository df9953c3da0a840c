// Package engine wires the classifier, scorer and report assembler into a single
// evaluation run, and runs independent evaluations concurrently.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/medsim/case-eval/grader"
	"github.com/medsim/case-eval/grader/classify"
	"github.com/medsim/case-eval/grader/collab"
	"github.com/medsim/case-eval/grader/report"
	"github.com/medsim/case-eval/grader/rubric"
	"github.com/medsim/case-eval/grader/score"
	"github.com/medsim/case-eval/grader/trace"
)

// Result bundles all outputs of one evaluation run.
type Result struct {
	Report  *report.ScoreReport
	Trace   *trace.EvaluationTrace // nil if trace level is "none"
	Summary *trace.TraceSummary    // nil unless summaries were requested

	WallTime time.Duration
}

// Job is one input of a batch. Nil collaborator fields fall back to the evaluator's.
type Job struct {
	Input         grader.Input
	Collaborators grader.Collaborators
}

type config struct {
	collab     grader.Collaborators
	tieBreak   string
	traceLevel trace.TraceLevel
	summarize  bool
	metrics    *Metrics
}

// Option configures an Evaluator.
type Option func(*config)

// WithCollaborators sets the default collaborators. Nil fields keep the built-in
// lexical classifier and keyword comparator.
func WithCollaborators(c grader.Collaborators) Option {
	return func(cfg *config) {
		if c.Classifier != nil {
			cfg.collab.Classifier = c.Classifier
		}
		if c.Comparator != nil {
			cfg.collab.Comparator = c.Comparator
		}
	}
}

// WithTieBreak selects the tie-break policy by name (see score.ValidTieBreakPolicies).
func WithTieBreak(name string) Option {
	return func(cfg *config) { cfg.tieBreak = name }
}

// WithTraceLevel sets the decision trace level.
func WithTraceLevel(level trace.TraceLevel) Option {
	return func(cfg *config) { cfg.traceLevel = level }
}

// WithSummary attaches a trace summary to every result. Requires a trace level other than none.
func WithSummary() Option {
	return func(cfg *config) { cfg.summarize = true }
}

// WithMetrics reports evaluations to m.
func WithMetrics(m *Metrics) Option {
	return func(cfg *config) { cfg.metrics = m }
}

// Evaluator runs evaluations against one registry. Safe for concurrent use as long as
// the configured collaborators are.
type Evaluator struct {
	registry   *rubric.Registry
	scorer     *score.Scorer
	collab     grader.Collaborators
	traceLevel trace.TraceLevel
	summarize  bool
	metrics    *Metrics
}

// New creates an Evaluator.
func New(reg *rubric.Registry, opts ...Option) (*Evaluator, error) {
	if reg == nil {
		return nil, &grader.ConfigError{Reason: "nil rubric registry"}
	}
	cfg := config{
		collab: grader.Collaborators{
			Classifier: collab.NewLexical(collab.DefaultLexicon()),
			Comparator: collab.NewKeywordComparator(),
		},
		tieBreak:   score.DefaultTieBreak,
		traceLevel: trace.TraceLevelNone,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !trace.IsValidTraceLevel(string(cfg.traceLevel)) {
		return nil, fmt.Errorf("unknown trace level %q; valid: none, decisions", cfg.traceLevel)
	}
	if cfg.summarize && (cfg.traceLevel == trace.TraceLevelNone || cfg.traceLevel == "") {
		logrus.Warnf("trace summary requested with trace level none; summaries will be empty")
	}
	sc, err := score.New(reg, cfg.tieBreak)
	if err != nil {
		return nil, err
	}
	return &Evaluator{
		registry:   reg,
		scorer:     sc,
		collab:     cfg.collab,
		traceLevel: cfg.traceLevel,
		summarize:  cfg.summarize,
		metrics:    cfg.metrics,
	}, nil
}

// Registry returns the registry the evaluator scores against.
func (ev *Evaluator) Registry() *rubric.Registry { return ev.registry }

// Evaluate runs one evaluation with the evaluator's collaborators.
func (ev *Evaluator) Evaluate(in grader.Input) (*Result, error) {
	return ev.EvaluateWith(in, grader.Collaborators{})
}

// EvaluateWith runs one evaluation. Nil fields of c fall back to the evaluator's collaborators.
func (ev *Evaluator) EvaluateWith(in grader.Input, c grader.Collaborators) (*Result, error) {
	start := time.Now()
	res, err := ev.evaluate(&in, ev.merge(c))
	ev.metrics.observeOutcome(outcomeOf(err))
	if err != nil {
		if in.ID != "" {
			return nil, fmt.Errorf("evaluating %s: %w", in.ID, err)
		}
		return nil, err
	}
	res.WallTime = time.Since(start)
	ev.metrics.observeReport(res.Report)
	return res, nil
}

func (ev *Evaluator) evaluate(in *grader.Input, c grader.Collaborators) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	signals, err := classify.Analyze(in, c)
	if err != nil {
		return nil, err
	}

	var tr *trace.EvaluationTrace
	if ev.traceLevel == trace.TraceLevelDecisions {
		tr = trace.NewEvaluationTrace(in.ID)
	}
	out, err := ev.scorer.Score(signals, tr)
	if err != nil {
		return nil, err
	}
	r, err := report.Assemble(ev.registry, out, in.Case)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("evaluated %q: communication=%d mdm=%d zero_override=%v",
		in.ID, r.CommunicationScore, r.MDMScore, r.ZeroOverride)

	res := &Result{Report: r, Trace: tr}
	if ev.summarize {
		res.Summary = trace.Summarize(tr)
	}
	return res, nil
}

func (ev *Evaluator) merge(c grader.Collaborators) grader.Collaborators {
	out := ev.collab
	if c.Classifier != nil {
		out.Classifier = c.Classifier
	}
	if c.Comparator != nil {
		out.Comparator = c.Comparator
	}
	return out
}

// EvaluateBatch evaluates independent jobs concurrently with at most workers runs in
// flight (workers < 1 means one per job). Results are returned in job order. The first
// failure cancels the jobs that have not started yet and is returned.
func (ev *Evaluator) EvaluateBatch(ctx context.Context, jobs []Job, workers int) ([]*Result, error) {
	if workers < 1 {
		workers = len(jobs)
	}
	results := make([]*Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := ev.EvaluateWith(job.Input, job.Collaborators)
			if err != nil {
				return fmt.Errorf("jobs[%d]: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, grader.ErrConfiguration):
		return OutcomeConfigError
	case errors.Is(err, grader.ErrClassificationUnavailable):
		return OutcomeClassificationError
	default:
		return OutcomeInvalidInput
	}
}
