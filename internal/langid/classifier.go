package langid

import (
	"strings"
	"unicode/utf8"
)

// Undetermined is the ISO 639-3 code classifiers use when they cannot decide.
const Undetermined = "und"

// Candidate is one ranked classifier guess.
type Candidate struct {
	ISO3  string
	Score float64
}

// ClassifyOptions tunes one classifier call.
type ClassifyOptions struct {
	// MinLength is the minimum trimmed rune count the classifier will
	// consider. Shorter input is undetermined.
	MinLength int
}

// Classifier ranks candidate languages for a text.
//
// An empty result, or a first candidate of Undetermined, means no guess.
// Scores are in [0,1] and results are ordered best first.
type Classifier interface {
	Classify(text string, opts ClassifyOptions) ([]Candidate, error)
}

// ClassifierFunc adapts a function into a Classifier.
type ClassifierFunc func(text string, opts ClassifyOptions) ([]Candidate, error)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(text string, opts ClassifyOptions) ([]Candidate, error) {
	return f(text, opts)
}

func undetermined() []Candidate {
	return []Candidate{{ISO3: Undetermined}}
}

func belowMinLength(text string, opts ClassifyOptions) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) < opts.MinLength
}
