// Package classify turns a transcript, its orders and the case context into the
// counts and flags the scorer consumes. Linguistic judgement is delegated to the
// injected collaborators; everything here is deterministic bookkeeping.
package classify

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/medsim/case-eval/grader"
)

// MessageClass is the classifier verdict on one student message.
type MessageClass struct {
	Index    int // index into the input message slice
	Position int
	grader.Classification
}

// CAU is a student message carrying clinical content.
type CAU struct {
	MessageClass
	Ordinal int // 1-based count of CAUs up to and including this one
}

// Result holds the classification sequence of student messages in transcript order.
type Result struct {
	Messages []MessageClass // every student message, acknowledgements included
	CAUs     []CAU
}

// Count returns the number of CAUs.
func (r *Result) Count() int { return len(r.CAUs) }

// OrdinalAt returns how many CAUs were sent at or before the given sequence position.
func (r *Result) OrdinalAt(position int) int {
	return sort.Search(len(r.CAUs), func(i int) bool { return r.CAUs[i].Position > position })
}

var errNoClassifier = errors.New("no CAU classifier configured")

// CountCAUs classifies every student message and counts those with clinical content.
// Counterpart messages are skipped entirely. Messages split across several turns count
// once per turn. A collaborator error or an unclassifiable verdict fails the whole call.
func CountCAUs(messages []grader.Message, classifier grader.CAUClassifier) (*Result, error) {
	if classifier == nil {
		return nil, &grader.ClassificationError{Collaborator: grader.CollaboratorClassifier, Index: -1, Err: errNoClassifier}
	}
	order := make([]int, len(messages))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return messages[order[a]].Position < messages[order[b]].Position })

	res := &Result{}
	for _, idx := range order {
		m := messages[idx]
		if m.Role != grader.RoleStudent {
			continue
		}
		c, err := classifier.Classify(m.Text)
		if err != nil {
			return nil, &grader.ClassificationError{Collaborator: grader.CollaboratorClassifier, Index: idx, Err: err}
		}
		if !c.Classifiable() {
			return nil, &grader.ClassificationError{
				Collaborator: grader.CollaboratorClassifier,
				Index:        idx,
				Err:          fmt.Errorf("unclassifiable verdict %+v", c),
			}
		}
		mc := MessageClass{Index: idx, Position: m.Position, Classification: c}
		res.Messages = append(res.Messages, mc)
		if c.IsCAU() {
			res.CAUs = append(res.CAUs, CAU{MessageClass: mc, Ordinal: len(res.CAUs) + 1})
		}
	}
	return res, nil
}

// LongestQuestionOnlyStreak returns the longest run of consecutive question-only CAUs.
// A CAU with an instruction or action ends the run, and so does an order placed
// between two CAUs. An order shares its position with the message that placed it and
// counts as placed after that message.
func LongestQuestionOnlyStreak(res *Result, orders []grader.Order) int {
	positions := make([]int, len(orders))
	for i, o := range orders {
		positions[i] = o.Position
	}
	sort.Ints(positions)

	longest, streak := 0, 0
	prev := math.MinInt
	for _, cau := range res.CAUs {
		if orderPlacedIn(positions, prev, cau.Position) {
			streak = 0
		}
		if cau.IsQuestionOnly() {
			streak++
			longest = max(longest, streak)
		} else {
			streak = 0
		}
		prev = cau.Position
	}
	return longest
}

// orderPlacedIn reports whether any sorted position lies in [from, to).
func orderPlacedIn(sorted []int, from, to int) bool {
	i := sort.SearchInts(sorted, from)
	return i < len(sorted) && sorted[i] < to
}
