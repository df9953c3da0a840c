package classify

import (
	"github.com/sirupsen/logrus"

	"github.com/medsim/case-eval/grader"
)

// Signals are the classifier outputs every scoring condition is expressed over.
type Signals struct {
	Difficulty grader.Difficulty
	Unstable   bool

	CAUs     *Result
	CAUCount int
	// NoCAUs marks an empty or all-acknowledgement transcript. Both composites are
	// forced to zero; it is not an error.
	NoCAUs bool

	QuestionCAUs       int
	HighYieldQuestions int // first askings only; a repeat of an earlier question is never high-yield
	RepeatedQuestions  int

	Directives              int // CAUs carrying an instruction or action
	ClosedLoopDirectives    int // closed-loop directives without rationale
	ClosedLoopWithRationale int
	OpenLoopDirectives      int

	QuestionStreak int

	HasMeaningfulOrder           bool
	FirstMeaningfulOrderPosition int
	// FirstMeaningfulOrderOrdinal is the CAU ordinal at which the first must/should order
	// was placed, or CAUCount+1 when none was placed.
	FirstMeaningfulOrderOrdinal int

	HasEscalation     bool
	EscalationOrdinal int // CAUCount+1 when no escalation or bedside order was placed
	ByTier            map[grader.Tier][]grader.Order
	MustCoverage      float64
	ShouldCoverage    float64
	CouldCount        int
	ShouldntCount     int
	Redundant         []grader.Order
	Contraindicated   []grader.Order

	Alignment grader.Alignment
}

// Analyze computes every signal for one evaluation run. Collaborators are invoked once
// per student message (classifier) and once per run (comparator).
func Analyze(in *grader.Input, collab grader.Collaborators) (*Signals, error) {
	res, err := CountCAUs(in.Messages, collab.Classifier)
	if err != nil {
		return nil, err
	}
	alignment, err := NoteAlignment(in.StudentNote, in.Case.ReferenceNote, in.Case, collab.Comparator)
	if err != nil {
		return nil, err
	}

	s := &Signals{
		Difficulty: in.Case.Difficulty,
		Unstable:   in.Case.Unstable,
		CAUs:       res,
		CAUCount:   res.Count(),
		NoCAUs:     res.Count() == 0,
		Alignment:  alignment,
	}
	asked := make(map[string]bool)
	for _, cau := range res.CAUs {
		if cau.IsQuestion {
			s.QuestionCAUs++
			key := grader.NormalizeText(in.Messages[cau.Index].Text)
			switch {
			case asked[key]:
				s.RepeatedQuestions++
			case cau.HighYield:
				s.HighYieldQuestions++
			}
			asked[key] = true
		}
		if cau.Directive() {
			s.Directives++
			switch {
			case cau.ClosedLoop && cau.Rationale:
				s.ClosedLoopWithRationale++
			case cau.ClosedLoop:
				s.ClosedLoopDirectives++
			default:
				s.OpenLoopDirectives++
			}
		}
	}
	s.QuestionStreak = LongestQuestionOnlyStreak(res, in.Orders)

	s.FirstMeaningfulOrderOrdinal = s.CAUCount + 1
	if pos, ok := PositionOfFirstMeaningfulOrder(in.Orders); ok {
		s.HasMeaningfulOrder = true
		s.FirstMeaningfulOrderPosition = pos
		s.FirstMeaningfulOrderOrdinal = res.OrdinalAt(pos)
	}
	s.EscalationOrdinal = s.CAUCount + 1
	if pos, ok := PositionOfFirstEscalation(in.Orders); ok {
		s.HasEscalation = true
		s.EscalationOrdinal = res.OrdinalAt(pos)
	}

	s.ByTier = OrdersByNecessityTier(in.Orders)
	s.MustCoverage = Coverage(grader.TierMust, in.Orders, in.Case.OrderCatalog)
	s.ShouldCoverage = Coverage(grader.TierShould, in.Orders, in.Case.OrderCatalog)
	s.CouldCount = len(s.ByTier[grader.TierCould])
	s.ShouldntCount = len(s.ByTier[grader.TierShouldnt])
	s.Redundant = RedundantOrders(in.Orders, in.Case.StatusChanges)
	s.Contraindicated = Contraindicated(in.Orders)

	logrus.Debugf("classify %s: caus=%d questions=%d/%d directives=%d streak=%d first-order-ordinal=%d alignment=%s",
		in.ID, s.CAUCount, s.HighYieldQuestions, s.QuestionCAUs, s.Directives, s.QuestionStreak, s.FirstMeaningfulOrderOrdinal, s.Alignment)
	return s, nil
}

// HighYieldFraction returns the share of question CAUs judged high-yield.
func (s *Signals) HighYieldFraction() float64 {
	return fraction(s.HighYieldQuestions, s.QuestionCAUs)
}

func fraction(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// DirectiveFraction returns the share of directives in a closed-loop category.
func (s *Signals) DirectiveFraction(n int) float64 {
	return fraction(n, s.Directives)
}
