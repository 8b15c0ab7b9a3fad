package speech

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rbright/voxlate/internal/audio"
	"github.com/rbright/voxlate/internal/config"
	"github.com/rbright/voxlate/internal/riva"
)

type synthClient interface {
	Synthesize(ctx context.Context, text, languageCode, voiceName string) ([]byte, error)
	Voices(ctx context.Context) ([]riva.VoiceInfo, error)
	SampleRate() int
	Close() error
}

// SpeakerOptions configures a Speaker.
type SpeakerOptions struct {
	// OnEvent receives utterance lifecycle events. It must not block.
	OnEvent func(Event)
	Logger  *slog.Logger
}

// Speaker reads text aloud through Riva synthesis and PulseAudio playback.
// At most one utterance plays at a time.
type Speaker struct {
	cfg     config.Config
	onEvent func(Event)
	logger  *slog.Logger

	dial func(context.Context, riva.SynthConfig) (synthClient, error)
	play func(context.Context, audio.Playback) error

	connMu sync.Mutex
	client synthClient
	voices []Voice
	listed bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSpeaker builds a speaker. The Riva connection is opened lazily.
func NewSpeaker(cfg config.Config, opts SpeakerOptions) *Speaker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Speaker{
		cfg:     cfg,
		onEvent: opts.OnEvent,
		logger:  logger,
		dial: func(ctx context.Context, sc riva.SynthConfig) (synthClient, error) {
			return riva.DialSynthesizer(ctx, sc)
		},
		play: audio.Play,
	}
}

// Speak synthesizes text in languageTag and blocks until playback ends.
// A running utterance is cancelled first. An utterance stopped by Cancel or
// by a newer Speak returns nil.
func (s *Speaker) Speak(ctx context.Context, text, languageTag string) error {
	if !s.cfg.TTS.Enable {
		return Unsupported(errors.New("tts.enable is false"))
	}
	if strings.TrimSpace(s.cfg.RivaGRPC) == "" {
		return Unsupported(errors.New("riva.grpc is empty"))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("nothing to speak")
	}

	uctx, done := s.begin(ctx)
	defer done()

	client, err := s.connect(uctx)
	if err != nil {
		return Unsupported(err)
	}

	voice := s.voiceFor(uctx, client, languageTag)
	event := Event{Text: text, Language: languageTag, Voice: voice.Name}

	s.emit(event, EventStart, nil)
	err = s.render(uctx, client, text, languageTag, voice.Name)
	switch {
	case err == nil:
		s.emit(event, EventEnd, nil)
		return nil
	case uctx.Err() != nil && ctx.Err() == nil:
		s.emit(event, EventEnd, nil)
		return nil
	case errors.Is(err, audio.ErrUnavailable):
		err = Unsupported(err)
	}
	s.emit(event, EventError, err)
	return err
}

// Cancel stops the active utterance, if any, and waits for it to finish.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Voices lists configured voices followed by the voices the server reports.
func (s *Speaker) Voices(ctx context.Context) ([]Voice, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, Unsupported(err)
	}
	return s.listVoices(ctx, client), nil
}

// Close cancels speech and releases the Riva connection.
func (s *Speaker) Close() error {
	s.Cancel()

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	s.voices = nil
	s.listed = false
	return err
}

// begin installs a new utterance context after stopping the previous one.
func (s *Speaker) begin(ctx context.Context) (context.Context, func()) {
	uctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	prevCancel, prevDone := s.cancel, s.done
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	return uctx, func() {
		cancel()
		s.mu.Lock()
		if s.done == done {
			s.cancel, s.done = nil, nil
		}
		s.mu.Unlock()
		close(done)
	}
}

func (s *Speaker) render(ctx context.Context, client synthClient, text, languageTag, voiceName string) error {
	started := time.Now()
	pcm, err := client.Synthesize(ctx, s.markup(text), languageTag, voiceName)
	if err != nil {
		return err
	}
	s.logger.Debug("speech synthesized",
		"language", languageTag,
		"voice", voiceName,
		"bytes", len(pcm),
		"latency_ms", time.Since(started).Milliseconds(),
	)

	return s.play(ctx, audio.Playback{
		Samples:    audio.SamplesFromPCM16LE(pcm),
		SampleRate: client.SampleRate(),
		MediaName:  "voxlate speech",
	})
}

// markup wraps text in an SSML prosody element when tts.rate is not 1.
func (s *Speaker) markup(text string) string {
	rate := s.cfg.TTS.Rate
	if rate <= 0 || rate == 1 {
		return text
	}
	percent := strconv.FormatFloat(rate*100, 'f', 0, 64)
	return fmt.Sprintf(`<speak><prosody rate="%s%%">%s</prosody></speak>`, percent, html.EscapeString(text))
}

func (s *Speaker) connect(ctx context.Context) (synthClient, error) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	client, err := s.dial(ctx, riva.SynthConfig{
		Endpoint:    s.cfg.RivaGRPC,
		SampleRate:  s.cfg.TTS.SampleRate,
		DialTimeout: 3 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	s.client = client
	return client, nil
}

func (s *Speaker) voiceFor(ctx context.Context, client synthClient, languageTag string) Voice {
	voice, ok := SelectVoice(s.listVoices(ctx, client), languageTag)
	if !ok {
		return Voice{}
	}
	return voice
}

// listVoices caches the server list after the first successful query.
func (s *Speaker) listVoices(ctx context.Context, client synthClient) []Voice {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if !s.listed {
		infos, err := client.Voices(ctx)
		if err != nil {
			s.logger.Warn("list synthesis voices", "error", err.Error())
		} else {
			s.voices = make([]Voice, 0, len(infos))
			for _, info := range infos {
				s.voices = append(s.voices, Voice{Name: info.Name, Language: info.LanguageCode})
			}
			s.listed = true
		}
	}

	voices := make([]Voice, 0, len(s.cfg.TTS.Voices)+len(s.voices))
	for _, v := range s.cfg.TTS.Voices {
		voices = append(voices, Voice{Name: v.Name, Language: v.Language})
	}
	return append(voices, s.voices...)
}

func (s *Speaker) emit(base Event, kind EventKind, err error) {
	if s.onEvent == nil {
		return
	}
	base.Kind = kind
	base.Err = err
	s.onEvent(base)
}
