// Package collab provides collaborator implementations for the engine: a lexical CAU
// classifier, a parser for verdicts produced by an external language model, an LRU
// memoizing decorator and note comparators.
package collab

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/medsim/case-eval/grader"
)

// Lexicon holds the word lists of the lexical classifier.
type Lexicon struct {
	Acknowledgements  []string `yaml:"acknowledgements"`
	QuestionOpeners   []string `yaml:"question_openers"`
	ActionVerbs       []string `yaml:"action_verbs"`
	InstructionVerbs  []string `yaml:"instruction_verbs"`
	ClosedLoopPhrases []string `yaml:"closed_loop_phrases"`
	RationalePhrases  []string `yaml:"rationale_phrases"`
	VagueQuestions    []string `yaml:"vague_questions"`
	MaxHighYieldWords int      `yaml:"max_high_yield_words"`
}

// DefaultLexicon returns the built-in word lists.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Acknowledgements: []string{
			"ok", "okay", "k", "thanks", "thank you", "got it", "sounds good", "great", "will do",
			"sure", "yes", "yep", "no problem", "alright", "understood", "cool", "perfect", "noted",
		},
		QuestionOpeners: []string{"what", "how", "when", "where", "why", "which", "who", "any"},
		ActionVerbs: []string{
			"order", "start", "give", "administer", "bolus", "push", "draw", "send", "transfuse",
			"intubate", "place", "obtain", "begin", "initiate", "hang",
		},
		InstructionVerbs: []string{
			"check", "call", "page", "monitor", "recheck", "repeat", "hold", "stop", "increase",
			"decrease", "titrate", "keep", "elevate", "notify", "get", "consult", "prepare",
		},
		ClosedLoopPhrases: []string{
			"let me know", "report back", "call me", "update me", "confirm", "tell me when",
			"read back", "page me", "once it's done", "when it's done", "results",
		},
		RationalePhrases: []string{
			"because", "since", "so that", "to rule out", "concerned", "worried", "in order to",
			"we need to", "let's", "together", "i'm thinking", "my concern",
		},
		VagueQuestions: []string{
			"any updates", "how is the patient", "how are things", "what's going on", "anything else",
			"what do you think", "how's it going",
		},
		MaxHighYieldWords: 20,
	}
}

// LoadLexicon reads a YAML lexicon with strict field checking. Lists left empty in the
// file keep their default values.
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("reading lexicon: %w", err)
	}
	var lx Lexicon
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&lx); err != nil {
		return Lexicon{}, fmt.Errorf("parsing lexicon: %w", err)
	}
	def := DefaultLexicon()
	fill := func(dst *[]string, src []string) {
		if len(*dst) == 0 {
			*dst = src
		}
	}
	fill(&lx.Acknowledgements, def.Acknowledgements)
	fill(&lx.QuestionOpeners, def.QuestionOpeners)
	fill(&lx.ActionVerbs, def.ActionVerbs)
	fill(&lx.InstructionVerbs, def.InstructionVerbs)
	fill(&lx.ClosedLoopPhrases, def.ClosedLoopPhrases)
	fill(&lx.RationalePhrases, def.RationalePhrases)
	fill(&lx.VagueQuestions, def.VagueQuestions)
	if lx.MaxHighYieldWords <= 0 {
		lx.MaxHighYieldWords = def.MaxHighYieldWords
	}
	return lx, nil
}

// Lexical is a deterministic keyword classifier. It never reports an unclassifiable
// verdict: a message with no question, instruction or action is treated as
// acknowledgement or etiquette.
type Lexical struct {
	ack        map[string]bool
	openers    map[string]bool
	actions    map[string]bool
	instructs  map[string]bool
	closedLoop []string
	rationale  []string
	vague      []string
	maxHYWords int
}

// NewLexical builds a classifier from a lexicon.
func NewLexical(lx Lexicon) *Lexical {
	ack := make(map[string]bool)
	for _, phrase := range lx.Acknowledgements {
		for _, w := range tokenize(strings.ToLower(phrase)) {
			ack[w] = true
		}
	}
	return &Lexical{
		ack:        ack,
		openers:    wordSet(lx.QuestionOpeners),
		actions:    wordSet(lx.ActionVerbs),
		instructs:  wordSet(lx.InstructionVerbs),
		closedLoop: lower(lx.ClosedLoopPhrases),
		rationale:  lower(lx.RationalePhrases),
		vague:      lower(lx.VagueQuestions),
		maxHYWords: lx.MaxHighYieldWords,
	}
}

// Classify labels one message.
func (l *Lexical) Classify(text string) (grader.Classification, error) {
	norm := strings.ToLower(strings.TrimSpace(text))
	words := tokenize(norm)

	var c grader.Classification
	if !strings.Contains(norm, "?") && l.acknowledgementOnly(words) {
		c.IsAcknowledgementOnly = true
		return c, nil
	}
	c.IsQuestion = strings.Contains(norm, "?") || (len(words) > 1 && l.openers[words[0]])
	for _, w := range words {
		if l.actions[w] {
			c.IsAction = true
		}
		if l.instructs[w] {
			c.IsInstruction = true
		}
	}
	c.ClosedLoop = containsAny(norm, l.closedLoop)
	if c.ClosedLoop && !c.IsAction {
		c.IsInstruction = true
	}
	if !c.IsCAU() {
		c.IsAcknowledgementOnly = true
		c.ClosedLoop = false
		return c, nil
	}
	c.Rationale = c.Directive() && containsAny(norm, l.rationale)
	c.ClosedLoop = c.ClosedLoop && c.Directive()
	c.HighYield = c.IsQuestion && len(words) <= l.maxHYWords && !containsAny(norm, l.vague)
	return c, nil
}

// acknowledgementOnly reports whether every word belongs to an acknowledgement phrase.
// An empty message is etiquette too.
func (l *Lexical) acknowledgementOnly(words []string) bool {
	for _, w := range words {
		if !l.ack[w] {
			return false
		}
	}
	return true
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func wordSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[strings.ToLower(strings.TrimSpace(it))] = true
	}
	return set
}

func lower(items []string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = strings.ToLower(strings.TrimSpace(it))
	}
	return out
}

// containsAny reports whether s contains any phrase on word boundaries.
func containsAny(s string, phrases []string) bool {
	padded := " " + strings.Join(tokenize(s), " ") + " "
	for _, p := range phrases {
		if p == "" {
			continue
		}
		if strings.Contains(padded, " "+strings.Join(tokenize(p), " ")+" ") {
			return true
		}
	}
	return false
}
