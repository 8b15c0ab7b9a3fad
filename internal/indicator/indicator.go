// Package indicator shows desktop notifications and plays audio cues for
// listening sessions and translations.
package indicator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/voxlate/internal/config"
)

// Notifier sends replaceable freedesktop notifications and audio cues.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	notify  func(ctx context.Context, appName string, replaceID uint32, summary, body string, timeoutMS int) (uint32, error)
	dismiss func(ctx context.Context, id uint32) error
	cue     func(ctx context.Context, kind cueKind, cfg config.IndicatorConfig) error

	mu             sync.Mutex
	notificationID uint32
	soundMu        sync.Mutex
}

// New creates a notifier from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
		notify:   desktopNotify,
		dismiss:  desktopDismiss,
		cue:      emitCue,
	}
}

// ShowListening signals capture start and emits the start cue.
func (n *Notifier) ShowListening(ctx context.Context) {
	n.playCue(cueStart)
	n.show(ctx, n.messages.listening, "", 300000)
}

// ShowTranscribing signals the post-capture recognition state.
func (n *Notifier) ShowTranscribing(ctx context.Context) {
	n.show(ctx, n.messages.processing, "", 300000)
}

// ShowError displays an error message for indicator.error_timeout_ms.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	if text == "" {
		text = n.messages.errorText
	}
	n.show(ctx, text, "", n.errorTimeout())
}

// ShowTranslation displays a finished translation.
func (n *Notifier) ShowTranslation(ctx context.Context, source, target, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	summary := fmt.Sprintf(n.messages.translated, strings.ToUpper(source), strings.ToUpper(target))
	n.show(ctx, summary, text, 6000)
}

// CueStop emits the stop cue.
func (n *Notifier) CueStop(context.Context) {
	n.playCue(cueStop)
}

// CueComplete emits the successful-dispatch cue.
func (n *Notifier) CueComplete(context.Context) {
	n.playCue(cueComplete)
}

// CueCancel emits the cancel cue.
func (n *Notifier) CueCancel(context.Context) {
	n.playCue(cueCancel)
}

// Hide closes the current notification.
func (n *Notifier) Hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.mu.Lock()
	id := n.notificationID
	n.notificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return
	}
	n.run(ctx, func(ctx context.Context) error { return n.dismiss(ctx, id) })
}

func (n *Notifier) errorTimeout() int {
	if n.cfg.ErrorTimeoutMS <= 0 {
		return 1200
	}
	return n.cfg.ErrorTimeoutMS
}

// show replaces the current notification and remembers its ID.
func (n *Notifier) show(ctx context.Context, summary, body string, timeoutMS int) {
	if !n.cfg.Enable {
		return
	}
	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "voxlate"
	}

	n.run(ctx, func(ctx context.Context) error {
		n.mu.Lock()
		replaceID := n.notificationID
		n.mu.Unlock()

		id, err := n.notify(ctx, appName, replaceID, summary, body, timeoutMS)
		if err != nil {
			return err
		}

		n.mu.Lock()
		n.notificationID = id
		n.mu.Unlock()
		return nil
	})
}

// run executes an indicator operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	go func() {
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		defer cancel()
		if err := n.cue(ctx, kind, n.cfg); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
