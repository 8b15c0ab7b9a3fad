package riva

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// DefaultSynthesisSampleRate is the PCM rate requested from Synthesize.
const DefaultSynthesisSampleRate = 22050

// SynthConfig controls the speech synthesis client.
type SynthConfig struct {
	Endpoint    string
	SampleRate  int
	DialTimeout time.Duration
}

// VoiceInfo is one synthesis voice advertised by the server.
type VoiceInfo struct {
	Name         string
	LanguageCode string
}

// Synthesizer issues unary synthesis calls over one connection.
type Synthesizer struct {
	conn       *grpc.ClientConn
	sampleRate int
}

// DialSynthesizer connects to the synthesis service and waits for readiness.
func DialSynthesizer(ctx context.Context, cfg SynthConfig) (*Synthesizer, error) {
	conn, err := dialReady(ctx, cfg.Endpoint, cfg.DialTimeout)
	if err != nil {
		return nil, err
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = DefaultSynthesisSampleRate
	}
	return &Synthesizer{conn: conn, sampleRate: rate}, nil
}

// SampleRate returns the rate of PCM returned by Synthesize.
func (s *Synthesizer) SampleRate() int {
	return s.sampleRate
}

// Synthesize renders text to mono 16-bit little-endian PCM.
func (s *Synthesizer) Synthesize(ctx context.Context, text, languageCode, voiceName string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("synthesis text is empty")
	}

	req := newMessage(schema.synthesizeRequest)
	setField(req, "text", protoreflect.ValueOfString(text))
	setField(req, "language_code", protoreflect.ValueOfString(languageCode))
	setField(req, "encoding", protoreflect.ValueOfEnum(encodingLinearPCM))
	setField(req, "sample_rate_hz", protoreflect.ValueOfInt32(int32(s.sampleRate)))
	if voiceName != "" {
		setField(req, "voice_name", protoreflect.ValueOfString(voiceName))
	}

	resp := newMessage(schema.synthesizeResponse)
	if err := s.conn.Invoke(ctx, methodSynthesize, req, resp); err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	return resp.Get(field(schema.synthesizeResponse, "audio")).Bytes(), nil
}

// Voices lists the voices of every loaded synthesis model.
func (s *Synthesizer) Voices(ctx context.Context) ([]VoiceInfo, error) {
	req := newMessage(schema.synthesisConfigReq)
	resp := newMessage(schema.synthesisConfigResp)
	if err := s.conn.Invoke(ctx, methodSynthesisConfig, req, resp); err != nil {
		return nil, fmt.Errorf("get synthesis config: %w", err)
	}
	return decodeVoices(resp), nil
}

// Close releases the connection.
func (s *Synthesizer) Close() error {
	return s.conn.Close()
}

func decodeVoices(resp protoreflect.Message) []VoiceInfo {
	configs := resp.Get(field(schema.synthesisConfigResp, "model_config")).List()
	paramsField := field(schema.synthesisModelConfig, "parameters")

	seen := make(map[string]bool)
	var voices []VoiceInfo
	add := func(name, language string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		voices = append(voices, VoiceInfo{Name: name, LanguageCode: language})
	}

	for i := 0; i < configs.Len(); i++ {
		params := make(map[string]string)
		configs.Get(i).Message().Get(paramsField).Map().Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
			params[k.String()] = v.String()
			return true
		})

		base := strings.TrimSpace(params["voice_name"])
		language := strings.TrimSpace(params["language_code"])
		subvoices := parseSubvoices(params["subvoices"])
		if len(subvoices) == 0 {
			add(base, language)
			continue
		}
		for _, sub := range subvoices {
			add(base+"."+sub, language)
		}
	}

	sort.SliceStable(voices, func(i, j int) bool { return voices[i].Name < voices[j].Name })
	return voices
}

// parseSubvoices reads "Female-1:0,Male-1:1" into subvoice names.
func parseSubvoices(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(part), ":")
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
