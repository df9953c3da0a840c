package collab

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/medsim/case-eval/grader"
)

const defaultMemoSize = 4096

// memoClassifier caches verdicts by message text. Errors are never cached, so a
// failed collaborator call is retried by the next evaluation, not by this one.
type memoClassifier struct {
	delegate grader.CAUClassifier
	cache    *lru.Cache[string, grader.Classification]
}

// Memoize wraps a classifier with an LRU cache keyed by normalized text.
// A non-positive size falls back to the default.
func Memoize(delegate grader.CAUClassifier, size int) (grader.CAUClassifier, error) {
	if delegate == nil {
		return nil, fmt.Errorf("memoize: nil classifier")
	}
	if size <= 0 {
		size = defaultMemoSize
	}
	cache, err := lru.New[string, grader.Classification](size)
	if err != nil {
		return nil, fmt.Errorf("memoize: %w", err)
	}
	return &memoClassifier{delegate: delegate, cache: cache}, nil
}

func (m *memoClassifier) Classify(text string) (grader.Classification, error) {
	key := grader.NormalizeText(text)
	if c, ok := m.cache.Get(key); ok {
		return c, nil
	}
	c, err := m.delegate.Classify(text)
	if err != nil {
		return c, err
	}
	m.cache.Add(key, c)
	return c, nil
}
