// Package langid guesses the language of short free text.
//
// Detection runs an ordered list of strategies. Short text is checked with
// cheap script and word-list heuristics first. Everything else, and short
// text the heuristics have no opinion on, goes to a statistical classifier.
package langid

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"
)

// Detection is one language guess.
type Detection struct {
	Name       string `json:"language"`
	Code       string `json:"code"`
	Confidence int    `json:"confidence"`
}

// Identifier turns free text into a Detection.
type Identifier struct {
	classifier Classifier
	params     Params
	logger     *slog.Logger
	strategies []strategy
}

// strategy returns a ranked list, nil for "no opinion", or an empty list to
// stop with no detection.
type strategy struct {
	name string
	run  func(id *Identifier, text string) []Detection
}

// New builds an Identifier backed by classifier.
func New(classifier Classifier, params Params, logger *slog.Logger) *Identifier {
	id := &Identifier{
		classifier: classifier,
		params:     params,
		logger:     logger,
	}
	id.strategies = []strategy{
		{name: "short_non_latin", run: (*Identifier).shortNonLatin},
		{name: "short_english", run: (*Identifier).shortEnglish},
		{name: "statistical", run: (*Identifier).statistical},
	}
	return id
}

// Identify returns the best guess for text, or false when no language can
// be determined. It never fails: classifier errors are reported as no
// detection.
func (id *Identifier) Identify(text string) (Detection, bool) {
	all := id.IdentifyAll(text)
	if len(all) == 0 {
		return Detection{}, false
	}
	return all[0], true
}

// IdentifyAll returns every ranked guess, best first.
func (id *Identifier) IdentifyAll(text string) []Detection {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < id.params.MinLength {
		return nil
	}

	for _, s := range id.strategies {
		results := id.runStrategy(s, trimmed)
		if results == nil {
			continue
		}
		if len(results) == 0 {
			id.debug("no language identified", "strategy", s.name)
			return nil
		}
		id.debug("language identified",
			"strategy", s.name,
			"code", results[0].Code,
			"confidence", results[0].Confidence,
		)
		return results
	}
	return nil
}

func (id *Identifier) runStrategy(s strategy, text string) (results []Detection) {
	defer func() {
		if r := recover(); r != nil {
			id.debug("language strategy panicked", "strategy", s.name, "error", fmt.Sprint(r))
			results = []Detection{}
		}
	}()
	return s.run(id, text)
}

func (id *Identifier) isShort(text string) bool {
	return utf8.RuneCountInString(text) < id.params.ShortTextLength
}

func (id *Identifier) shortNonLatin(text string) []Detection {
	if !id.isShort(text) || !HasNonLatin(text) {
		return nil
	}
	candidates, err := id.classify(text, id.params.ShortClassifierMinLength)
	if err != nil {
		return []Detection{}
	}
	if len(candidates) == 0 {
		return nil
	}
	return []Detection{detection(ISO1FromISO3(candidates[0].ISO3), id.params.ShortNonLatinConfidence)}
}

func (id *Identifier) shortEnglish(text string) []Detection {
	if !id.isShort(text) || !LikelyEnglish(text, id.params.EnglishRatio) {
		return nil
	}
	return []Detection{english(id.params.ShortEnglishConfidence)}
}

func (id *Identifier) statistical(text string) []Detection {
	candidates, err := id.classify(text, id.params.LongClassifierMinLength)
	if err != nil {
		return []Detection{}
	}
	if len(candidates) == 0 {
		if HasNonLatin(text) {
			return []Detection{}
		}
		return []Detection{english(id.params.LatinFallbackConfidence)}
	}

	results := make([]Detection, 0, id.params.MaxCandidates+1)
	for _, candidate := range candidates {
		if candidate.ISO3 == Undetermined {
			continue
		}
		if len(results) == id.params.MaxCandidates {
			break
		}
		confidence := int(math.Round(candidate.Score * 100))
		results = append(results, detection(ISO1FromISO3(candidate.ISO3), confidence))
	}

	if len(results) > 0 && results[0].Code != "en" && LikelyEnglish(text, id.params.EnglishRatio) {
		results = append([]Detection{english(id.params.EnglishOverrideConfidence)}, results...)
	}
	return results
}

// classify returns no candidates when the classifier is undetermined.
func (id *Identifier) classify(text string, minLength int) ([]Candidate, error) {
	if id.classifier == nil {
		return nil, nil
	}
	candidates, err := id.classifier.Classify(text, ClassifyOptions{MinLength: minLength})
	if err != nil {
		id.debug("language classifier failed", "error", err.Error())
		return nil, err
	}
	if len(candidates) == 0 || candidates[0].ISO3 == Undetermined {
		return nil, nil
	}
	return candidates, nil
}

func (id *Identifier) debug(msg string, args ...any) {
	if id.logger == nil {
		return
	}
	id.logger.Debug(msg, args...)
}

func detection(code string, confidence int) Detection {
	return Detection{Name: DisplayName(code), Code: code, Confidence: confidence}
}

func english(confidence int) Detection {
	return Detection{Name: "English", Code: "en", Confidence: confidence}
}
