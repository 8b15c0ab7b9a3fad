package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Translation *jsoncTranslation `json:"translation"`
	Detection   *jsoncDetection   `json:"detection"`
	Session     *jsoncSession     `json:"session"`
	Riva        *jsoncRiva        `json:"riva"`
	ASR         *jsoncASR         `json:"asr"`
	TTS         *jsoncTTS         `json:"tts"`
	Audio       *jsoncAudio       `json:"audio"`
	Indicator   *jsoncIndicator   `json:"indicator"`
	Server      *jsoncServer      `json:"server"`
	Debug       *jsoncDebug       `json:"debug"`

	ClipboardCmd *string `json:"clipboard_cmd"`
}

type jsoncTranslation struct {
	Endpoint  *string `json:"endpoint"`
	TimeoutMS *int    `json:"timeout_ms"`
	Email     *string `json:"email"`
}

type jsoncDetection struct {
	Classifier      *string          `json:"classifier"`
	MinLength       *int             `json:"min_length"`
	ShortTextLength *int             `json:"short_text_length"`
	EnglishRatio    *float64         `json:"english_ratio"`
	Confidence      *jsoncConfidence `json:"confidence"`
	MaxCandidates   *int             `json:"max_candidates"`
}

type jsoncConfidence struct {
	ShortNonLatin   *int `json:"short_non_latin"`
	ShortEnglish    *int `json:"short_english"`
	LatinFallback   *int `json:"latin_fallback"`
	EnglishOverride *int `json:"english_override"`
}

type jsoncSession struct {
	DebounceMS    *int    `json:"debounce_ms"`
	MinLength     *int    `json:"min_length"`
	DefaultTarget *string `json:"default_target"`
}

type jsoncRiva struct {
	GRPC       *string `json:"grpc"`
	HTTP       *string `json:"http"`
	HealthPath *string `json:"health_path"`
}

type jsoncASR struct {
	AutomaticPunctuation *bool            `json:"automatic_punctuation"`
	LanguageCode         *string          `json:"language_code"`
	Model                *string          `json:"model"`
	Phrases              *jsoncStringList `json:"phrases"`
	PhraseBoost          *float64         `json:"phrase_boost"`
}

type jsoncTTS struct {
	Enable     *bool        `json:"enable"`
	SampleRate *int         `json:"sample_rate"`
	Rate       *float64     `json:"rate"`
	Voices     []jsoncVoice `json:"voices"`
}

type jsoncVoice struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

type jsoncAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type jsoncIndicator struct {
	Enable            *bool   `json:"enable"`
	DesktopAppName    *string `json:"desktop_app_name"`
	SoundEnable       *bool   `json:"sound_enable"`
	SoundStartFile    *string `json:"sound_start_file"`
	SoundStopFile     *string `json:"sound_stop_file"`
	SoundCompleteFile *string `json:"sound_complete_file"`
	SoundCancelFile   *string `json:"sound_cancel_file"`
	ErrorTimeoutMS    *int    `json:"error_timeout_ms"`
}

type jsoncServer struct {
	Listen *string `json:"listen"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
	GRPCDump  *bool `json:"grpc_dump"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		out := make([]string, 0)
		for _, part := range strings.Split(single, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*l = out
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validated, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, append(warnings, validated...), nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if t := payload.Translation; t != nil {
		setString(&cfg.Translation.Endpoint, t.Endpoint)
		setInt(&cfg.Translation.TimeoutMS, t.TimeoutMS)
		setString(&cfg.Translation.Email, t.Email)
	}

	if d := payload.Detection; d != nil {
		setString(&cfg.Detection.Classifier, d.Classifier)
		setInt(&cfg.Detection.MinLength, d.MinLength)
		setInt(&cfg.Detection.ShortTextLength, d.ShortTextLength)
		setFloat(&cfg.Detection.EnglishRatio, d.EnglishRatio)
		setInt(&cfg.Detection.MaxCandidates, d.MaxCandidates)
		if c := d.Confidence; c != nil {
			setInt(&cfg.Detection.Confidence.ShortNonLatin, c.ShortNonLatin)
			setInt(&cfg.Detection.Confidence.ShortEnglish, c.ShortEnglish)
			setInt(&cfg.Detection.Confidence.LatinFallback, c.LatinFallback)
			setInt(&cfg.Detection.Confidence.EnglishOverride, c.EnglishOverride)
		}
	}

	if s := payload.Session; s != nil {
		setInt(&cfg.Session.DebounceMS, s.DebounceMS)
		setInt(&cfg.Session.MinLength, s.MinLength)
		setString(&cfg.Session.DefaultTarget, s.DefaultTarget)
	}

	if r := payload.Riva; r != nil {
		setString(&cfg.RivaGRPC, r.GRPC)
		setString(&cfg.RivaHTTP, r.HTTP)
		setString(&cfg.RivaHealthPath, r.HealthPath)
	}

	if a := payload.ASR; a != nil {
		setBool(&cfg.ASR.AutomaticPunctuation, a.AutomaticPunctuation)
		setString(&cfg.ASR.LanguageCode, a.LanguageCode)
		setString(&cfg.ASR.Model, a.Model)
		setFloat(&cfg.ASR.PhraseBoost, a.PhraseBoost)
		if a.Phrases != nil {
			cfg.ASR.Phrases = make([]string, 0, len(*a.Phrases))
			for _, phrase := range *a.Phrases {
				if phrase = strings.TrimSpace(phrase); phrase != "" {
					cfg.ASR.Phrases = append(cfg.ASR.Phrases, phrase)
				}
			}
		}
	}

	if t := payload.TTS; t != nil {
		setBool(&cfg.TTS.Enable, t.Enable)
		setInt(&cfg.TTS.SampleRate, t.SampleRate)
		setFloat(&cfg.TTS.Rate, t.Rate)
		if t.Voices != nil {
			cfg.TTS.Voices = make([]VoiceConfig, 0, len(t.Voices))
			for i, voice := range t.Voices {
				name := strings.TrimSpace(voice.Name)
				language := strings.TrimSpace(voice.Language)
				if name == "" || language == "" {
					return nil, fmt.Errorf("tts.voices[%d] requires name and language", i)
				}
				cfg.TTS.Voices = append(cfg.TTS.Voices, VoiceConfig{Name: name, Language: language})
			}
		}
	}

	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
	}

	if i := payload.Indicator; i != nil {
		setBool(&cfg.Indicator.Enable, i.Enable)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		setBool(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setString(&cfg.Indicator.SoundStartFile, i.SoundStartFile)
		setString(&cfg.Indicator.SoundStopFile, i.SoundStopFile)
		setString(&cfg.Indicator.SoundCompleteFile, i.SoundCompleteFile)
		setString(&cfg.Indicator.SoundCancelFile, i.SoundCancelFile)
		setInt(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}

	if s := payload.Server; s != nil {
		setString(&cfg.Server.Listen, s.Listen)
	}

	if payload.ClipboardCmd != nil {
		raw := *payload.ClipboardCmd
		argv, err := parseArgv(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid clipboard_cmd: %w", err)
		}
		cfg.Clipboard = CommandConfig{Raw: raw, Argv: argv}
	}

	if d := payload.Debug; d != nil {
		setBool(&cfg.Debug.EnableAudioDump, d.AudioDump)
		setBool(&cfg.Debug.EnableGRPCDump, d.GRPCDump)
	}

	if cfg.Translation.Email == "" && payload.Translation != nil && payload.Translation.Email != nil {
		warnings = append(warnings, Warning{Message: "translation.email is empty; anonymous MyMemory quota applies"})
	}

	return warnings, nil
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
