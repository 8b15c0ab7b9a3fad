// Package session owns one interactive translation session: debounced input,
// language detection, the latest translation, and speech playback.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rbright/voxlate/internal/catalog"
	"github.com/rbright/voxlate/internal/langid"
	"github.com/rbright/voxlate/internal/speech"
	"github.com/rbright/voxlate/internal/translate"
)

const (
	DefaultDebounce  = 300 * time.Millisecond
	DefaultMinLength = 3
)

var (
	ErrClosed            = errors.New("session closed")
	ErrUnsupportedTarget = errors.New("unsupported target language")
	ErrNothingToSwap     = errors.New("nothing to swap: need both a detection and a translation")
	ErrNothingToSpeak    = errors.New("nothing to speak")
	ErrNothingToCopy     = errors.New("nothing to copy")
	ErrNoClipboard       = errors.New("clipboard is not configured")
)

// Detector identifies the language of input text.
type Detector interface {
	Identify(text string) (langid.Detection, bool)
}

// Speaker plays text aloud. Speak blocks until the utterance ends or is
// cancelled; Cancel stops any active utterance.
type Speaker interface {
	Speak(ctx context.Context, text, language string) error
	Cancel()
}

// Clipboard copies text for the user.
type Clipboard interface {
	Copy(ctx context.Context, text string) error
}

// Source selects which side of the session an action applies to.
type Source string

const (
	SourceInput       Source = "input"
	SourceTranslation Source = "translation"
)

// ParseSource accepts "input"/"original" and "translation"/"output".
func ParseSource(raw string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "translation", "output":
		return SourceTranslation, nil
	case "input", "original":
		return SourceInput, nil
	default:
		return "", fmt.Errorf("unknown source %q (want input or translation)", raw)
	}
}

// Options configures a Coordinator.
type Options struct {
	ID         string
	Detector   Detector
	Translator translate.Translator
	Speaker    Speaker
	Clipboard  Clipboard
	Target     string
	Debounce   time.Duration
	MinLength  int
	Logger     *slog.Logger
}

// Coordinator serializes every session transition behind one mutex.
// Detection and translation run off the caller's goroutine; only the most
// recently started run may change state.
type Coordinator struct {
	detector   Detector
	translator translate.Translator
	speaker    Speaker
	clipboard  Clipboard
	debounce   time.Duration
	minLength  int
	logger     *slog.Logger

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu         sync.Mutex
	state      State
	settled    string
	generation uint64
	timer      *time.Timer
	inflight   context.CancelFunc
	detecting  bool
	idle       chan struct{}
	closed     bool
	subs       map[int]chan State
	nextSub    int
}

// New returns a Coordinator with defaults applied to unset options.
func New(opts Options) *Coordinator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	minLength := opts.MinLength
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	target := catalog.Normalize(opts.Target)
	if !catalog.Contains(target) {
		target = catalog.DefaultTarget
	}
	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = uuid.NewString()
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Coordinator{
		detector:   opts.Detector,
		translator: opts.Translator,
		speaker:    opts.Speaker,
		clipboard:  opts.Clipboard,
		debounce:   debounce,
		minLength:  minLength,
		logger:     opts.Logger,
		ctx:        ctx,
		stop:       stop,
		state:      State{ID: id, Target: target},
		subs:       make(map[int]chan State),
	}
}

// ID returns the session identifier.
func (c *Coordinator) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ID
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe returns a channel of state snapshots and a function that
// detaches it. Slow readers see only the newest snapshot.
func (c *Coordinator) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// SetInput replaces the input text and restarts the debounce window.
func (c *Coordinator) SetInput(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.state.Input = text
	c.armLocked()
	c.publishLocked()
	return nil
}

// Flush ends a pending debounce window immediately.
func (c *Coordinator) Flush() {
	c.mu.Lock()
	if c.closed || c.timer == nil || !c.timer.Stop() {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()
	c.settle()
}

// Wait blocks until no debounce or translation is pending and returns the
// resulting state.
func (c *Coordinator) Wait(ctx context.Context) (State, error) {
	for {
		c.mu.Lock()
		idle := c.idle
		if idle == nil {
			snapshot := c.state.clone()
			c.mu.Unlock()
			return snapshot, nil
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		case <-idle:
		}
	}
}

// SetTarget changes the target language. When a detection exists for the
// settled input, the translation is re-run for the new target.
func (c *Coordinator) SetTarget(code string) error {
	code = catalog.Normalize(code)
	if !catalog.Contains(code) {
		return fmt.Errorf("%w: %q", ErrUnsupportedTarget, code)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.state.Target == code {
		return nil
	}

	c.state.Target = code
	if c.timer == nil && !c.detecting && c.state.Detection != nil && c.passesGate(c.settled) {
		gen := c.nextGenerationLocked()
		c.startTranslationLocked(gen, c.settled, c.state.Detection.Code, code)
	}
	c.publishLocked()
	return nil
}

// Swap makes the translation the new input and the detected language the
// new target.
func (c *Coordinator) Swap() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.state.Translation == nil || c.state.Detection == nil {
		return ErrNothingToSwap
	}

	c.state.Input = c.state.Translation.Text
	c.state.Target = c.state.Detection.Code
	c.armLocked()
	c.publishLocked()
	return nil
}

// Clear resets the session to empty input and stops speech playback.
func (c *Coordinator) Clear() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.nextGenerationLocked()
	c.settled = ""
	c.state.Input = ""
	c.state.Detection = nil
	c.state.Translation = nil
	c.state.setErr(nil)
	c.setPendingLocked(false)
	c.publishLocked()
	c.mu.Unlock()

	if c.speaker != nil {
		c.speaker.Cancel()
	}
	return nil
}

// Speak reads the input (in the detected language) or the translation (in
// the target language) aloud.
func (c *Coordinator) Speak(ctx context.Context, source Source) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state.SpeechUnsupported {
		c.mu.Unlock()
		return speech.ErrUnsupported
	}
	text, language := c.pickLocked(source)
	c.mu.Unlock()

	if strings.TrimSpace(text) == "" || language == "" {
		return ErrNothingToSpeak
	}
	if c.speaker == nil {
		c.markSpeechUnsupported()
		return speech.ErrUnsupported
	}

	err := c.speaker.Speak(ctx, text, catalog.SpeechTag(language))
	if errors.Is(err, speech.ErrUnsupported) {
		c.markSpeechUnsupported()
	}
	return err
}

// StopSpeaking cancels any active utterance.
func (c *Coordinator) StopSpeaking() {
	if c.speaker != nil {
		c.speaker.Cancel()
	}
}

// Copy puts the input or translation on the clipboard.
func (c *Coordinator) Copy(ctx context.Context, source Source) error {
	c.mu.Lock()
	text, _ := c.pickLocked(source)
	c.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return ErrNothingToCopy
	}
	if c.clipboard == nil {
		return ErrNoClipboard
	}
	return c.clipboard.Copy(ctx, text)
}

// Close stops pending work and detaches all subscribers.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.nextGenerationLocked()
	c.setPendingLocked(false)
	for id, sub := range c.subs {
		delete(c.subs, id)
		close(sub)
	}
	c.mu.Unlock()

	c.stop()
	if c.speaker != nil {
		c.speaker.Cancel()
	}
	c.wg.Wait()
}

func (c *Coordinator) pickLocked(source Source) (text, language string) {
	switch source {
	case SourceInput:
		if c.state.Detection != nil {
			language = c.state.Detection.Code
		}
		return c.state.Input, language
	default:
		if c.state.Translation == nil {
			return "", ""
		}
		return c.state.Translation.Text, c.state.Translation.TargetCode
	}
}

func (c *Coordinator) markSpeechUnsupported() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.SpeechUnsupported {
		return
	}
	c.state.SpeechUnsupported = true
	c.log(slog.LevelWarn, "speech unavailable; disabling playback for this session")
	c.publishLocked()
}

// armLocked supersedes in-flight work and (re)starts the debounce window.
func (c *Coordinator) armLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.nextGenerationLocked()
	c.setPendingLocked(true)

	var timer *time.Timer
	timer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		if c.timer != timer {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		c.mu.Unlock()
		c.settle()
	})
	c.timer = timer
}

// settle runs detection for the current input and starts its translation.
func (c *Coordinator) settle() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	gen := c.nextGenerationLocked()
	text := c.state.Input
	c.settled = text

	if !c.passesGate(text) || c.detector == nil {
		c.state.Detection = nil
		c.state.Translation = nil
		c.state.setErr(nil)
		c.setPendingLocked(c.timer != nil)
		c.publishLocked()
		c.mu.Unlock()
		return
	}
	c.detecting = true
	c.mu.Unlock()

	detection, ok := c.detector.Identify(text)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.detecting = false
	if gen != c.generation || c.closed {
		c.log(slog.LevelDebug, "discarding stale detection", "generation", gen)
		return
	}

	if !ok {
		c.state.Detection = nil
		c.state.Translation = nil
		c.state.setErr(nil)
		c.setPendingLocked(c.timer != nil)
		c.publishLocked()
		return
	}

	c.state.Detection = &detection
	c.startTranslationLocked(gen, text, detection.Code, c.state.Target)
	c.publishLocked()
}

func (c *Coordinator) startTranslationLocked(gen uint64, text, source, target string) {
	if c.translator == nil {
		c.setPendingLocked(c.timer != nil)
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.inflight = cancel
	c.setPendingLocked(true)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		started := time.Now()
		result, err := c.translator.Translate(ctx, text, source, target)

		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.generation || c.closed {
			c.log(slog.LevelDebug, "discarding stale translation",
				"generation", gen,
				"current_generation", c.generation,
			)
			return
		}
		c.inflight = nil

		if err != nil {
			c.state.Translation = nil
			c.state.setErr(err)
		} else {
			c.state.Translation = &result
			c.state.setErr(nil)
		}
		c.setPendingLocked(c.timer != nil)
		c.log(slog.LevelDebug, "translation applied",
			"generation", gen,
			"langpair", source+"|"+target,
			"duration_ms", time.Since(started).Milliseconds(),
			"ok", err == nil,
		)
		c.publishLocked()
	}()
}

// nextGenerationLocked supersedes any in-flight run.
func (c *Coordinator) nextGenerationLocked() uint64 {
	c.generation++
	c.state.Generation = c.generation
	if c.inflight != nil {
		c.inflight()
		c.inflight = nil
	}
	return c.generation
}

func (c *Coordinator) setPendingLocked(pending bool) {
	c.state.Pending = pending
	if pending {
		if c.idle == nil {
			c.idle = make(chan struct{})
		}
		return
	}
	if c.idle != nil {
		close(c.idle)
		c.idle = nil
	}
}

func (c *Coordinator) publishLocked() {
	snapshot := c.state.clone()
	for _, sub := range c.subs {
		select {
		case sub <- snapshot:
		default:
			select {
			case <-sub:
			default:
			}
			select {
			case sub <- snapshot:
			default:
			}
		}
	}
}

func (c *Coordinator) passesGate(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= c.minLength
}

func (c *Coordinator) log(level slog.Level, msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Log(context.Background(), level, msg, append([]any{"session_id", c.state.ID}, args...)...)
}
