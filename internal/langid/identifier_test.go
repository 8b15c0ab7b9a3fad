package langid

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeClassifier struct {
	calls    atomic.Int32
	minSeen  []int
	classify func(text string) ([]Candidate, error)
}

func (f *fakeClassifier) Classify(text string, opts ClassifyOptions) ([]Candidate, error) {
	f.calls.Add(1)
	f.minSeen = append(f.minSeen, opts.MinLength)
	if f.classify == nil {
		return undetermined(), nil
	}
	return f.classify(text)
}

func fixed(candidates ...Candidate) *fakeClassifier {
	return &fakeClassifier{classify: func(string) ([]Candidate, error) {
		return candidates, nil
	}}
}

func TestIdentifyRejectsTooShortText(t *testing.T) {
	classifier := fixed(Candidate{ISO3: "fra", Score: 1})
	id := New(classifier, DefaultParams(), nil)

	for _, text := range []string{"", " ", "a", "  b  "} {
		_, ok := id.Identify(text)
		require.False(t, ok, "text %q", text)
	}
	require.Zero(t, classifier.calls.Load())
}

func TestIdentifyShortEnglishByCommonWords(t *testing.T) {
	classifier := fixed(Candidate{ISO3: "sco", Score: 0.9})
	id := New(classifier, DefaultParams(), nil)

	got, ok := id.Identify("Hello")
	require.True(t, ok)
	require.Equal(t, Detection{Name: "English", Code: "en", Confidence: 85}, got)
	require.Zero(t, classifier.calls.Load())
}

func TestIdentifyShortNonLatinUsesClassifier(t *testing.T) {
	classifier := fixed(Candidate{ISO3: "rus", Score: 0.4})
	id := New(classifier, DefaultParams(), nil)

	got, ok := id.Identify("привет")
	require.True(t, ok)
	require.Equal(t, "ru", got.Code)
	require.Equal(t, "Russian", got.Name)
	require.Equal(t, 75, got.Confidence)
	require.Equal(t, []int{1}, classifier.minSeen)
}

func TestIdentifyShortNonLatinUndeterminedHasNoFallback(t *testing.T) {
	classifier := fixed(Candidate{ISO3: Undetermined})
	id := New(classifier, DefaultParams(), nil)

	_, ok := id.Identify("こんにちは")
	require.False(t, ok)
	require.Equal(t, []int{1, 3}, classifier.minSeen)
}

func TestIdentifyLongTextRanksClassifierCandidates(t *testing.T) {
	classifier := fixed(
		Candidate{ISO3: "fra", Score: 0.91},
		Candidate{ISO3: "ita", Score: 0.5},
	)
	id := New(classifier, DefaultParams(), nil)

	all := id.IdentifyAll("Bonjour, comment ça va?")
	require.Equal(t, []Detection{
		{Name: "French", Code: "fr", Confidence: 91},
		{Name: "Italian", Code: "it", Confidence: 50},
	}, all)
	require.Equal(t, []int{3}, classifier.minSeen)

	got, ok := id.Identify("Bonjour, comment ça va?")
	require.True(t, ok)
	require.Equal(t, "fr", got.Code)
	require.GreaterOrEqual(t, got.Confidence, 60)
}

func TestIdentifyEnglishOverridePrependsEnglish(t *testing.T) {
	classifier := fixed(Candidate{ISO3: "sco", Score: 0.7})
	id := New(classifier, DefaultParams(), nil)

	all := id.IdentifyAll("what is the name of that big old home over there")
	require.Len(t, all, 2)
	require.Equal(t, Detection{Name: "English", Code: "en", Confidence: 80}, all[0])
	require.Equal(t, "sc", all[1].Code)
}

func TestIdentifyEnglishOverrideSkippedWhenTopIsEnglish(t *testing.T) {
	classifier := fixed(Candidate{ISO3: "eng", Score: 0.66})
	id := New(classifier, DefaultParams(), nil)

	all := id.IdentifyAll("what is the name of that big old home over there")
	require.Equal(t, []Detection{{Name: "English", Code: "en", Confidence: 66}}, all)
}

func TestIdentifyLongLatinUndeterminedFallsBackToEnglish(t *testing.T) {
	id := New(fixed(), DefaultParams(), nil)

	got, ok := id.Identify("zxqv wrrbt plmok snarfle gribble")
	require.True(t, ok)
	require.Equal(t, Detection{Name: "English", Code: "en", Confidence: 60}, got)
}

func TestIdentifyLongNonLatinUndeterminedIsNoDetection(t *testing.T) {
	id := New(fixed(Candidate{ISO3: Undetermined}), DefaultParams(), nil)

	_, ok := id.Identify("это очень длинный текст без определения")
	require.False(t, ok)
}

func TestIdentifyCapsAndFiltersCandidates(t *testing.T) {
	classifier := fixed(
		Candidate{ISO3: "deu", Score: 0.875},
		Candidate{ISO3: Undetermined, Score: 0.8},
		Candidate{ISO3: "nld", Score: 0.6},
		Candidate{ISO3: "afr", Score: 0.5},
		Candidate{ISO3: "dan", Score: 0.4},
		Candidate{ISO3: "swe", Score: 0.3},
		Candidate{ISO3: "nor", Score: 0.2},
	)
	id := New(classifier, DefaultParams(), nil)

	all := id.IdentifyAll("Ich möchte heute Abend ins Kino gehen")
	require.Len(t, all, 5)
	require.Equal(t, 88, all[0].Confidence)
	codes := make([]string, 0, len(all))
	for _, d := range all {
		codes = append(codes, d.Code)
	}
	require.Equal(t, []string{"de", "nl", "af", "da", "sv"}, codes)
}

func TestIdentifyClassifierFailureIsNoDetection(t *testing.T) {
	tests := []struct {
		name     string
		classify func(string) ([]Candidate, error)
	}{
		{
			name: "error",
			classify: func(string) ([]Candidate, error) {
				return nil, errors.New("model missing")
			},
		},
		{
			name: "panic",
			classify: func(string) ([]Candidate, error) {
				panic("corrupt model")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id := New(&fakeClassifier{classify: tc.classify}, DefaultParams(), nil)
			_, ok := id.Identify("Ceci est une phrase assez longue")
			require.False(t, ok)
			_, ok = id.Identify("привет")
			require.False(t, ok)
		})
	}
}

func TestIdentifyReturnsFreshValues(t *testing.T) {
	id := New(fixed(Candidate{ISO3: "spa", Score: 0.9}), DefaultParams(), nil)

	first := id.IdentifyAll("Hola, ¿cómo estás hoy, amigo mío?")
	first[0].Code = "mutated"
	second := id.IdentifyAll("Hola, ¿cómo estás hoy, amigo mío?")
	require.Equal(t, "es", second[0].Code)
}

func TestIdentifyHonorsCustomParams(t *testing.T) {
	params := DefaultParams()
	params.ShortEnglishConfidence = 99
	params.ShortTextLength = 5
	id := New(fixed(Candidate{ISO3: "eng", Score: 0.42}), params, nil)

	got, ok := id.Identify("hi")
	require.True(t, ok)
	require.Equal(t, 99, got.Confidence)

	got, ok = id.Identify("hello there")
	require.True(t, ok)
	require.Equal(t, 42, got.Confidence)
}
