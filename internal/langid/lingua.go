package langid

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// LinguaClassifier ranks languages with lingua's n-gram models.
type LinguaClassifier struct {
	languages []lingua.Language
	preload   bool

	once     sync.Once
	detector lingua.LanguageDetector
}

// NewLinguaClassifier returns a classifier over the lingua languages whose
// mapped ISO 639-1 code passes keep (nil keeps all). Models load on first
// use unless preload is set.
func NewLinguaClassifier(keep func(iso1 string) bool, preload bool) *LinguaClassifier {
	selected := make([]lingua.Language, 0)
	for _, lang := range lingua.AllLanguages() {
		iso1 := ISO1FromISO3(strings.ToLower(lang.IsoCode639_3().String()))
		if keep != nil && !keep(iso1) {
			continue
		}
		selected = append(selected, lang)
	}
	return &LinguaClassifier{languages: selected, preload: preload}
}

// NewLinguaClassifierFor returns a classifier restricted to explicit languages.
func NewLinguaClassifierFor(languages ...lingua.Language) *LinguaClassifier {
	return &LinguaClassifier{languages: languages}
}

// Classify implements Classifier.
func (c *LinguaClassifier) Classify(text string, opts ClassifyOptions) ([]Candidate, error) {
	if belowMinLength(text, opts) {
		return undetermined(), nil
	}

	// Lingua's values sum to 1 across every language. Scores are relative
	// to the best candidate, which always scores 1.
	values := c.build().ComputeLanguageConfidenceValues(text)
	if len(values) == 0 || values[0].Value() <= 0 {
		return undetermined(), nil
	}
	top := values[0].Value()
	out := make([]Candidate, 0, len(values))
	for _, value := range values {
		if value.Value() <= 0 {
			continue
		}
		out = append(out, Candidate{
			ISO3:  strings.ToLower(value.Language().IsoCode639_3().String()),
			Score: value.Value() / top,
		})
	}
	return out, nil
}

func (c *LinguaClassifier) build() lingua.LanguageDetector {
	c.once.Do(func() {
		var builder lingua.LanguageDetectorBuilder
		if len(c.languages) >= 2 {
			builder = lingua.NewLanguageDetectorBuilder().FromLanguages(c.languages...)
		} else {
			builder = lingua.NewLanguageDetectorBuilder().FromAllLanguages()
		}
		if c.preload {
			builder = builder.WithPreloadedLanguageModels()
		}
		c.detector = builder.Build()
	})
	return c.detector
}
