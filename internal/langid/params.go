package langid

// Params holds the thresholds and fixed confidences used by Identifier.
type Params struct {
	// MinLength is the minimum trimmed rune count for any detection.
	MinLength int
	// ShortTextLength routes texts shorter than this through the short-text
	// strategies first.
	ShortTextLength int
	// EnglishRatio is the common-word fraction that marks text as English.
	EnglishRatio float64
	// MaxCandidates caps the ranked list returned by IdentifyAll.
	MaxCandidates int

	ShortNonLatinConfidence   int
	ShortEnglishConfidence    int
	LatinFallbackConfidence   int
	EnglishOverrideConfidence int

	// ShortClassifierMinLength and LongClassifierMinLength are passed to the
	// classifier on the short non-Latin and statistical paths.
	ShortClassifierMinLength int
	LongClassifierMinLength  int
}

// DefaultParams returns the stock heuristic tuning.
func DefaultParams() Params {
	return Params{
		MinLength:                 2,
		ShortTextLength:           20,
		EnglishRatio:              0.4,
		MaxCandidates:             5,
		ShortNonLatinConfidence:   75,
		ShortEnglishConfidence:    85,
		LatinFallbackConfidence:   60,
		EnglishOverrideConfidence: 80,
		ShortClassifierMinLength:  1,
		LongClassifierMinLength:   3,
	}
}
