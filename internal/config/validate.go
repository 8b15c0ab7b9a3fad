package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/rbright/voxlate/internal/catalog"
)

const maxSpeechPhrases = 1024

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	endpoint, err := url.Parse(strings.TrimSpace(cfg.Translation.Endpoint))
	if err != nil || endpoint.Host == "" || (endpoint.Scheme != "http" && endpoint.Scheme != "https") {
		return nil, fmt.Errorf("translation.endpoint must be an http(s) URL")
	}
	if cfg.Translation.TimeoutMS <= 0 {
		return nil, fmt.Errorf("translation.timeout_ms must be > 0")
	}

	switch strings.ToLower(cfg.Detection.Classifier) {
	case "lingua", "whatlang":
	default:
		return nil, fmt.Errorf("detection.classifier must be one of: lingua, whatlang")
	}
	if cfg.Detection.MinLength < 1 {
		return nil, fmt.Errorf("detection.min_length must be >= 1")
	}
	if cfg.Detection.ShortTextLength < cfg.Detection.MinLength {
		return nil, fmt.Errorf("detection.short_text_length must be >= detection.min_length")
	}
	if cfg.Detection.EnglishRatio <= 0 || cfg.Detection.EnglishRatio > 1 {
		return nil, fmt.Errorf("detection.english_ratio must be in (0, 1]")
	}
	if cfg.Detection.MaxCandidates < 1 {
		return nil, fmt.Errorf("detection.max_candidates must be >= 1")
	}
	for name, value := range map[string]int{
		"short_non_latin":  cfg.Detection.Confidence.ShortNonLatin,
		"short_english":    cfg.Detection.Confidence.ShortEnglish,
		"latin_fallback":   cfg.Detection.Confidence.LatinFallback,
		"english_override": cfg.Detection.Confidence.EnglishOverride,
	} {
		if value < 0 || value > 100 {
			return nil, fmt.Errorf("detection.confidence.%s must be within 0..100", name)
		}
	}

	if cfg.Session.DebounceMS < 0 {
		return nil, fmt.Errorf("session.debounce_ms must be >= 0")
	}
	if cfg.Session.MinLength < 1 {
		return nil, fmt.Errorf("session.min_length must be >= 1")
	}
	if !catalog.Contains(cfg.Session.DefaultTarget) {
		return nil, fmt.Errorf("session.default_target %q is not a supported language", cfg.Session.DefaultTarget)
	}

	if strings.TrimSpace(cfg.RivaGRPC) == "" {
		warnings = append(warnings, Warning{Message: "riva.grpc is empty; listening and speech output are disabled"})
	} else if strings.TrimSpace(cfg.RivaHTTP) == "" {
		return nil, fmt.Errorf("riva.http must not be empty when riva.grpc is set")
	}
	if !strings.HasPrefix(strings.TrimSpace(cfg.RivaHealthPath), "/") {
		return nil, fmt.Errorf("riva.health_path must start with '/'")
	}
	if strings.TrimSpace(cfg.ASR.LanguageCode) == "" {
		return nil, fmt.Errorf("asr.language_code must not be empty")
	}

	if cfg.TTS.SampleRate <= 0 {
		return nil, fmt.Errorf("tts.sample_rate must be > 0")
	}
	if cfg.TTS.Rate <= 0 {
		return nil, fmt.Errorf("tts.rate must be > 0")
	}

	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.enable=true")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		return nil, fmt.Errorf("server.listen must not be empty")
	}

	if len(cfg.Clipboard.Argv) == 0 {
		warnings = append(warnings, Warning{Message: "clipboard_cmd is empty; copy is disabled"})
	}

	_, phraseWarnings, err := BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, err
	}
	return append(warnings, phraseWarnings...), nil
}

// BuildSpeechPhrases dedupes asr.phrases into deterministic ASR phrase payloads.
func BuildSpeechPhrases(cfg Config) ([]SpeechPhrase, []Warning, error) {
	if len(cfg.ASR.Phrases) == 0 {
		return nil, nil, nil
	}

	warnings := make([]Warning, 0)
	seen := make(map[string]bool, len(cfg.ASR.Phrases))
	phrases := make([]SpeechPhrase, 0, len(cfg.ASR.Phrases))
	for _, phrase := range cfg.ASR.Phrases {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		if seen[phrase] {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("asr.phrases lists %q more than once", phrase)})
			continue
		}
		seen[phrase] = true
		phrases = append(phrases, SpeechPhrase{Phrase: phrase, Boost: float32(cfg.ASR.PhraseBoost)})
	}

	if len(phrases) > maxSpeechPhrases {
		return nil, nil, fmt.Errorf("asr.phrases count %d exceeds %d", len(phrases), maxSpeechPhrases)
	}

	sort.Slice(phrases, func(i, j int) bool { return phrases[i].Phrase < phrases[j].Phrase })
	return phrases, warnings, nil
}
