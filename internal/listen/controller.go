// Package listen drives one speech-to-text listening session: capture,
// recognition, and dispatch of the final transcript.
package listen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/voxlate/internal/fsm"
	"github.com/rbright/voxlate/internal/ipc"
	"github.com/rbright/voxlate/internal/speech"
)

type action int

const (
	actionStop action = iota + 1
	actionCancel
)

// Commands lists the control commands Handle serves.
var Commands = []string{"listen", "stop", "cancel"}

// Result is the outcome of one Run.
type Result struct {
	State         fsm.State
	Transcript    string
	Language      string
	Cancelled     bool
	Err           error
	AudioDevice   string
	BytesCaptured int64
	GRPCLatency   time.Duration
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Indicator is the listening-facing subset of indicator behavior.
type Indicator interface {
	ShowListening(context.Context)
	ShowTranscribing(context.Context)
	ShowError(context.Context, string)
	CueStop(context.Context)
	CueComplete(context.Context)
	CueCancel(context.Context)
	Hide(context.Context)
}

type noopIndicator struct{}

func (noopIndicator) ShowListening(context.Context)     {}
func (noopIndicator) ShowTranscribing(context.Context)  {}
func (noopIndicator) ShowError(context.Context, string) {}
func (noopIndicator) CueStop(context.Context)           {}
func (noopIndicator) CueComplete(context.Context)       {}
func (noopIndicator) CueCancel(context.Context)         {}
func (noopIndicator) Hide(context.Context)              {}

// Controller runs listening sessions against one recognizer.
type Controller struct {
	logger     *slog.Logger
	recognizer Recognizer
	commit     Committer
	indicator  Indicator

	mu          sync.RWMutex
	state       fsm.State
	unsupported bool
	base        context.Context
	onResult    func(Result)

	actions chan action
}

// NewController constructs a controller. Nil collaborators get inert stand-ins.
func NewController(
	logger *slog.Logger,
	recognizer Recognizer,
	committer Committer,
	indicator Indicator,
) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if recognizer == nil {
		recognizer = unsupportedRecognizer{}
	}
	if committer == nil {
		committer = CommitFunc(func(context.Context, string) error { return nil })
	}
	if indicator == nil {
		indicator = noopIndicator{}
	}

	return &Controller{
		logger:     logger,
		recognizer: recognizer,
		commit:     committer,
		indicator:  indicator,
		state:      fsm.StateIdle,
		actions:    make(chan action, 1),
	}
}

// Attach enables the "listen" command. Sessions it starts run under ctx and
// report through onResult.
func (c *Controller) Attach(ctx context.Context, onResult func(Result)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = ctx
	c.onResult = onResult
}

// State returns the current lifecycle state.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Unsupported reports whether a previous start found no speech support.
func (c *Controller) Unsupported() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unsupported
}

func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// Run executes one session from start until stop, cancel, or failure.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: time.Now()}

	if c.Unsupported() {
		return c.finish(result, speech.ErrUnsupported)
	}
	if err := c.transition(fsm.EventStart); err != nil {
		return c.finish(result, err)
	}
	return c.listen(ctx, result)
}

// listen runs a session whose start transition has already been applied.
func (c *Controller) listen(ctx context.Context, result Result) Result {
	c.indicator.ShowListening(ctx)
	if err := c.recognizer.Start(ctx); err != nil {
		if errors.Is(err, speech.ErrUnsupported) {
			c.mu.Lock()
			c.unsupported = true
			c.mu.Unlock()
			c.logger.Warn("speech recognition unsupported; listening disabled", "error", err.Error())
		}
		c.indicator.ShowError(ctx, "Unable to start listening")
		c.toErrorAndReset()
		return c.finish(result, err)
	}

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
		defer cancel()
		c.indicator.Hide(cleanupCtx)
	}()

	select {
	case <-ctx.Done():
		_ = c.recognizer.Cancel(context.Background())
		c.indicator.CueCancel(context.Background())
		c.toErrorAndReset()
		return c.finish(result, ctx.Err())
	case a := <-c.actions:
		switch a {
		case actionCancel:
			_ = c.recognizer.Cancel(context.Background())
			c.indicator.CueCancel(context.Background())
			_ = c.transition(fsm.EventCancel)
			result.Cancelled = true
			return c.finish(result, nil)
		case actionStop:
			return c.stop(ctx, result)
		default:
			c.toErrorAndReset()
			return c.finish(result, fmt.Errorf("unknown action %d", a))
		}
	}
}

func (c *Controller) stop(ctx context.Context, result Result) Result {
	if err := c.transition(fsm.EventStop); err != nil {
		c.toErrorAndReset()
		return c.finish(result, err)
	}
	c.indicator.ShowTranscribing(ctx)

	stopResult, err := c.recognizer.StopAndTranscribe(ctx)
	c.indicator.CueStop(context.Background())
	result.Transcript = stopResult.Transcript
	result.Language = stopResult.Language
	result.AudioDevice = stopResult.AudioDevice
	result.BytesCaptured = stopResult.BytesCaptured
	result.GRPCLatency = stopResult.GRPCLatency

	if err != nil {
		c.indicator.ShowError(context.Background(), "Speech recognition failed")
		c.toErrorAndReset()
		return c.finish(result, err)
	}
	if strings.TrimSpace(stopResult.Transcript) == "" {
		c.indicator.ShowError(context.Background(), "No speech detected")
		c.toErrorAndReset()
		return c.finish(result, ErrEmptyTranscript)
	}
	if err := c.commit.Commit(ctx, stopResult.Transcript); err != nil {
		c.indicator.ShowError(context.Background(), "Transcript dispatch failed")
		c.toErrorAndReset()
		return c.finish(result, err)
	}
	c.indicator.CueComplete(context.Background())

	return c.finish(result, c.transition(fsm.EventTranscribed))
}

func (c *Controller) finish(result Result, err error) Result {
	result.State = c.State()
	result.Err = err
	result.FinishedAt = time.Now()
	return result
}

// Handle serves listen, stop, cancel, and status control commands.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		return ipc.Response{OK: true, State: string(c.State()), Message: "status"}
	case "listen":
		return c.requestListen()
	case "stop":
		return c.requestStop()
	case "cancel":
		return c.requestCancel()
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

// requestListen starts a background session when attached and idle.
func (c *Controller) requestListen() ipc.Response {
	c.mu.Lock()
	base, onResult, state := c.base, c.onResult, c.state
	var refusal string
	switch {
	case base == nil:
		refusal = "listening is not available in this process"
	case c.unsupported:
		refusal = speech.ErrUnsupported.Error()
	default:
		next, err := fsm.Transition(state, fsm.EventStart)
		if err != nil {
			refusal = fmt.Sprintf("cannot listen from state %s", state)
		} else {
			c.state = next
		}
	}
	c.mu.Unlock()

	if refusal != "" {
		return ipc.Response{OK: false, State: string(state), Error: refusal}
	}

	started := time.Now()
	go func() {
		result := c.listen(base, Result{StartedAt: started})
		if onResult != nil {
			onResult(result)
		}
	}()
	return ipc.Response{OK: true, State: string(fsm.StateListening), Message: "listening"}
}

// requestStop enqueues a stop action when state permits it.
func (c *Controller) requestStop() ipc.Response {
	state := c.State()
	if state == fsm.StateTranscribing {
		return ipc.Response{OK: false, State: string(state), Error: "already transcribing"}
	}
	if state != fsm.StateListening {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot stop from state %s", state)}
	}

	select {
	case c.actions <- actionStop:
		return ipc.Response{OK: true, State: string(state), Message: "stop requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "stop already requested"}
	}
}

// requestCancel enqueues a cancel action when state permits it.
func (c *Controller) requestCancel() ipc.Response {
	state := c.State()
	if state == fsm.StateTranscribing {
		return ipc.Response{OK: false, State: string(state), Error: "cannot cancel while transcribing"}
	}
	if state != fsm.StateListening {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot cancel from state %s", state)}
	}

	select {
	case c.actions <- actionCancel:
		return ipc.Response{OK: true, State: string(state), Message: "cancel requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "cancel already requested"}
	}
}

// toErrorAndReset passes through the error state back to idle.
func (c *Controller) toErrorAndReset() {
	_ = c.transition(fsm.EventFail)
	_ = c.transition(fsm.EventReset)
}
