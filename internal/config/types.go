// Package config resolves, parses, validates, and defaults voxlate configuration.
package config

// Config is the fully materialized runtime configuration.
type Config struct {
	Translation    TranslationConfig
	Detection      DetectionConfig
	Session        SessionConfig
	RivaGRPC       string
	RivaHTTP       string
	RivaHealthPath string
	ASR            ASRConfig
	TTS            TTSConfig
	Audio          AudioConfig
	Clipboard      CommandConfig
	Indicator      IndicatorConfig
	Server         ServerConfig
	Debug          DebugConfig
}

// TranslationConfig controls the MyMemory client.
type TranslationConfig struct {
	Endpoint  string
	TimeoutMS int
	Email     string
}

// DetectionConfig controls language identification thresholds.
type DetectionConfig struct {
	Classifier      string
	MinLength       int
	ShortTextLength int
	EnglishRatio    float64
	Confidence      ConfidenceConfig
	MaxCandidates   int
}

// ConfidenceConfig holds the fixed confidences reported by heuristic strategies.
type ConfidenceConfig struct {
	ShortNonLatin   int
	ShortEnglish    int
	LatinFallback   int
	EnglishOverride int
}

// SessionConfig controls the interactive translation session.
type SessionConfig struct {
	DebounceMS    int
	MinLength     int
	DefaultTarget string
}

// ASRConfig controls request-level hints passed to Riva recognition.
type ASRConfig struct {
	AutomaticPunctuation bool
	LanguageCode         string
	Model                string
	Phrases              []string
	PhraseBoost          float64
}

// TTSConfig controls speech synthesis.
type TTSConfig struct {
	Enable     bool
	SampleRate int
	Rate       float64
	Voices     []VoiceConfig
}

// VoiceConfig pins a synthesis voice for a language tag.
type VoiceConfig struct {
	Name     string
	Language string
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// IndicatorConfig controls desktop notifications and audio cues.
type IndicatorConfig struct {
	Enable            bool
	DesktopAppName    string
	SoundEnable       bool
	SoundStartFile    string
	SoundStopFile     string
	SoundCompleteFile string
	SoundCancelFile   string
	ErrorTimeoutMS    int
}

// ServerConfig controls the local HTTP API.
type ServerConfig struct {
	Listen string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
	EnableGRPCDump  bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// SpeechPhrase is the normalized phrase payload sent to ASR adapters.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}
