package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rbright/voxlate/internal/audio"
	"github.com/rbright/voxlate/internal/config"
	"github.com/rbright/voxlate/internal/riva"
)

// ErrNotStarted reports a stop or cancel with no active recognition.
var ErrNotStarted = errors.New("speech recognition not started")

// StopResult is one finished recognition pass.
type StopResult struct {
	Transcript    string
	Language      string
	AudioDevice   string
	BytesCaptured int64
	GRPCLatency   time.Duration
}

type streamClient interface {
	SendAudio([]byte) error
	CloseAndCollect(context.Context) ([]string, time.Duration, error)
	Cancel() error
}

type captureClient interface {
	Stop() error
	Chunks() <-chan []byte
	BytesCaptured() int64
	RawPCM() []byte
}

// Recognizer runs one non-continuous capture -> Riva ASR pass at a time.
type Recognizer struct {
	cfg      config.Config
	language string
	logger   *slog.Logger

	selectDevice func(context.Context, string, string) (audio.Selection, error)
	dialStream   func(context.Context, riva.StreamConfig) (streamClient, error)
	startCapture func(context.Context, audio.Device) (captureClient, error)

	mu        sync.Mutex
	started   bool
	selection audio.Selection
	capture   captureClient
	stream    streamClient
	sendErrCh chan error

	debugGRPCFile *os.File
}

// NewRecognizer builds a recognizer for the BCP 47 tag language.
// An empty tag uses asr.language_code.
func NewRecognizer(cfg config.Config, language string, logger *slog.Logger) *Recognizer {
	if strings.TrimSpace(language) == "" {
		language = cfg.ASR.LanguageCode
	}
	return &Recognizer{
		cfg:          cfg,
		language:     language,
		logger:       logger,
		selectDevice: audio.SelectDevice,
		dialStream: func(ctx context.Context, sc riva.StreamConfig) (streamClient, error) {
			return riva.DialStream(ctx, sc)
		},
		startCapture: func(ctx context.Context, device audio.Device) (captureClient, error) {
			return audio.StartCapture(ctx, device)
		},
	}
}

// Language returns the recognition language tag.
func (r *Recognizer) Language() string {
	return r.language
}

// Start selects the input device, opens the Riva stream, and begins capture.
// Missing infrastructure is reported as ErrUnsupported.
func (r *Recognizer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return errors.New("speech recognizer already started")
	}
	if strings.TrimSpace(r.cfg.RivaGRPC) == "" {
		return Unsupported(errors.New("riva.grpc is empty"))
	}

	phrases, _, err := config.BuildSpeechPhrases(r.cfg)
	if err != nil {
		return fmt.Errorf("build speech contexts: %w", err)
	}

	selection, err := r.selectDevice(ctx, r.cfg.Audio.Input, r.cfg.Audio.Fallback)
	if err != nil {
		return Unsupported(err)
	}
	r.selection = selection
	if selection.Warning != "" {
		r.logWarn(selection.Warning)
	}

	if r.cfg.Debug.EnableGRPCDump {
		file, ferr := createDebugFile("grpc", "jsonl")
		if ferr != nil {
			return ferr
		}
		r.debugGRPCFile = file
	}

	rivaPhrases := make([]riva.SpeechPhrase, 0, len(phrases))
	for _, phrase := range phrases {
		rivaPhrases = append(rivaPhrases, riva.SpeechPhrase{Phrase: phrase.Phrase, Boost: phrase.Boost})
	}

	var debugSink io.Writer
	if r.debugGRPCFile != nil {
		debugSink = r.debugGRPCFile
	}
	stream, err := r.dialStream(ctx, riva.StreamConfig{
		Endpoint:              r.cfg.RivaGRPC,
		LanguageCode:          r.language,
		Model:                 r.cfg.ASR.Model,
		AutomaticPunctuation:  r.cfg.ASR.AutomaticPunctuation,
		SpeechPhrases:         rivaPhrases,
		DialTimeout:           3 * time.Second,
		OpenTimeout:           3 * time.Second,
		DebugResponseSinkJSON: debugSink,
	})
	if err != nil {
		r.closeDebugArtifactsLocked()
		return Unsupported(err)
	}

	capture, err := r.startCapture(ctx, selection.Device)
	if err != nil {
		_ = stream.Cancel()
		r.closeDebugArtifactsLocked()
		return Unsupported(err)
	}

	r.stream = stream
	r.capture = capture
	r.sendErrCh = make(chan error, 1)
	r.started = true
	go r.sendLoop()
	return nil
}

// StopAndTranscribe stops capture, drains the stream, and assembles the transcript.
func (r *Recognizer) StopAndTranscribe(ctx context.Context) (StopResult, error) {
	r.mu.Lock()
	started := r.started
	capture := r.capture
	stream := r.stream
	sendErrCh := r.sendErrCh
	selection := r.selection
	r.resetLocked()
	r.mu.Unlock()

	if !started || capture == nil || stream == nil {
		return StopResult{}, ErrNotStarted
	}
	defer r.closeDebugArtifacts()

	_ = capture.Stop()
	result := StopResult{
		Language:    r.language,
		AudioDevice: describeDevice(selection.Device),
	}

	var sendErr error
	if sendErrCh != nil {
		sendErr = <-sendErrCh
	}
	result.BytesCaptured = capture.BytesCaptured()
	r.writeDebugAudio(capture.RawPCM())

	if sendErr != nil {
		_ = stream.Cancel()
		return result, fmt.Errorf("send audio stream: %w", sendErr)
	}

	closeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	segments, latency, err := stream.CloseAndCollect(closeCtx)
	result.GRPCLatency = latency
	if err != nil {
		return result, fmt.Errorf("collect final transcript: %w", err)
	}

	result.Transcript = assemble(segments)
	return result, nil
}

// Cancel stops capture and stream without producing a transcript.
func (r *Recognizer) Cancel(_ context.Context) error {
	r.mu.Lock()
	capture := r.capture
	stream := r.stream
	r.resetLocked()
	r.mu.Unlock()

	if capture != nil {
		_ = capture.Stop()
		r.writeDebugAudio(capture.RawPCM())
	}
	if stream != nil {
		_ = stream.Cancel()
	}
	r.closeDebugArtifacts()
	return nil
}

func (r *Recognizer) resetLocked() {
	r.started = false
	r.capture = nil
	r.stream = nil
	r.sendErrCh = nil
}

// sendLoop forwards capture chunks to Riva and reports the first send failure.
func (r *Recognizer) sendLoop() {
	r.mu.Lock()
	capture := r.capture
	stream := r.stream
	errCh := r.sendErrCh
	r.mu.Unlock()

	if errCh == nil {
		return
	}
	if capture == nil || stream == nil {
		errCh <- ErrNotStarted
		return
	}

	for chunk := range capture.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		if err := stream.SendAudio(chunk); err != nil {
			_ = capture.Stop()
			errCh <- err
			return
		}
	}
	errCh <- nil
}

// assemble joins recognized segments with normalized whitespace.
func assemble(segments []string) string {
	return strings.Join(strings.Fields(strings.Join(segments, " ")), " ")
}

func describeDevice(device audio.Device) string {
	description := strings.TrimSpace(device.Description)
	id := strings.TrimSpace(device.ID)
	switch {
	case description == "":
		return id
	case id == "":
		return description
	default:
		return fmt.Sprintf("%s (%s)", description, id)
	}
}

func (r *Recognizer) logWarn(message string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Warn(message, args...)
}
