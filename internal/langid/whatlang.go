package langid

import "github.com/abadojack/whatlanggo"

// WhatlangClassifier ranks languages with whatlanggo's trigram profiles.
//
// whatlanggo yields a single guess, so results hold at most one candidate.
type WhatlangClassifier struct{}

// Classify implements Classifier.
func (WhatlangClassifier) Classify(text string, opts ClassifyOptions) ([]Candidate, error) {
	if belowMinLength(text, opts) {
		return undetermined(), nil
	}

	info := whatlanggo.Detect(text)
	if info.Script == nil || info.Lang < 0 {
		return undetermined(), nil
	}
	code := info.Lang.Iso6393()
	if code == "" {
		return undetermined(), nil
	}
	return []Candidate{{ISO3: code, Score: info.Confidence}}, nil
}
