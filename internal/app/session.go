package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/voxlate/internal/catalog"
	"github.com/rbright/voxlate/internal/cli"
	"github.com/rbright/voxlate/internal/ipc"
	"github.com/rbright/voxlate/internal/listen"
	"github.com/rbright/voxlate/internal/session"
	"github.com/rbright/voxlate/internal/translate"
)

const (
	socketProbeTimeout = 180 * time.Millisecond
	socketRetries      = 8
	forwardTimeout     = 220 * time.Millisecond
	settleTimeout      = 15 * time.Second
)

var replAliases = map[string]string{
	"to":   "target",
	"q":    "quit",
	"exit": "quit",
}

const replHelp = `Type text to translate it. Commands:
  :to CODE                     set the target language
  :swap                        swap input and translation
  :clear                       clear the session
  :speak [input|translation]   read text aloud
  :stop-speaking               stop reading aloud
  :copy [input|translation]    copy to the clipboard
  :listen / :stop / :cancel    dictate input
  :status                      print the session state
  :quit                        end the session
`

func (r Runner) commandSession(ctx context.Context, svc *services, parsed cli.Parsed) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	speaker := svc.newSpeaker()
	defer func() { _ = speaker.Close() }()

	coord := svc.newSession("", svc.target(parsed.To), speaker)
	defer coord.Close()

	language := ""
	if parsed.From != "" {
		language = catalog.SpeechTag(parsed.From)
	}
	listener := svc.newListener(language, func(_ context.Context, transcript string) error {
		if err := coord.SetInput(transcript); err != nil {
			return err
		}
		coord.Flush()
		return nil
	})
	listener.Attach(ctx, func(result listen.Result) {
		logListenResult(svc.logger, result)
		if result.Cancelled || result.Err != nil {
			return
		}
		if state, err := coord.Wait(ctx); err == nil {
			svc.announce(ctx, state)
		}
	})

	mux := ipc.NewMux()
	mux.Route(coord, session.Commands...)
	mux.Route(listener, listen.Commands...)

	stopControl, err := r.serveControl(ctx, mux, svc.logger)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: a voxlate session is already running")
		} else {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
		}
		return 1
	}
	defer stopControl()

	printer := &updatePrinter{out: r.Stdout, errOut: r.Stderr}
	updates, detach := coord.Subscribe()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for state := range updates {
			printer.print(state)
		}
	}()

	svc.logger.Info("session started", "session_id", coord.ID(), "target", coord.Snapshot().Target)
	lines := readLines(ctx, r.Stdin)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if r.sessionLine(ctx, coord, mux, line) {
				break loop
			}
		}
	}

	if ctx.Err() == nil {
		coord.Flush()
		waitCtx, cancelWait := context.WithTimeout(ctx, settleTimeout)
		_, _ = coord.Wait(waitCtx)
		cancelWait()
	}

	detach()
	<-printed
	printer.print(coord.Snapshot())
	svc.logger.Info("session ended", "session_id", coord.ID())
	return 0
}

// sessionLine applies one line of interactive input and reports whether the
// session should end.
func (r Runner) sessionLine(ctx context.Context, coord *session.Coordinator, handler ipc.Handler, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, ":") {
		if err := coord.SetInput(line); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
		}
		return false
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return false
	}
	command := strings.ToLower(fields[0])
	if alias, ok := replAliases[command]; ok {
		command = alias
	}
	switch command {
	case "quit":
		return true
	case "help":
		fmt.Fprint(r.Stderr, replHelp)
		return false
	}

	resp := handler.Handle(ctx, ipc.Request{Command: command, Args: fields[1:]})
	switch {
	case !resp.OK:
		fmt.Fprintf(r.Stderr, "error: %s\n", resp.Error)
	case command == "status":
		fmt.Fprintln(r.Stdout, resp.State)
	case resp.Message != "":
		fmt.Fprintln(r.Stderr, resp.Message)
	}
	return false
}

// updatePrinter writes each new translation or failure once.
type updatePrinter struct {
	out             io.Writer
	errOut          io.Writer
	lastTranslation string
	lastError       string
}

func (p *updatePrinter) print(state session.State) {
	if t := state.Translation; t != nil && !t.Empty() {
		key := t.SourceCode + "|" + t.TargetCode + "|" + t.Text
		if key != p.lastTranslation {
			p.lastTranslation = key
			fmt.Fprintf(p.out, "[%s→%s] %s\n", t.SourceCode, t.TargetCode, t.Text)
		}
	}
	if state.Error != "" {
		key := fmt.Sprintf("%d|%s", state.Generation, state.Error)
		if key != p.lastError {
			p.lastError = key
			fmt.Fprintf(p.errOut, "error: %s\n", state.Error)
		}
	}
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	out := make(chan string)
	if in == nil {
		close(out)
		return out
	}
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxStdinBytes)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// serveControl exposes handler on the per-user control socket. Without a
// runtime dir the process runs uncontrolled.
func (r Runner) serveControl(ctx context.Context, handler ipc.Handler, logger *slog.Logger) (func(), error) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		logger.Warn("control socket unavailable", "error", err.Error())
		return func() {}, nil
	}

	listener, err := ipc.Acquire(ctx, socketPath, socketProbeTimeout, socketRetries)
	if err != nil {
		return nil, err
	}

	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(serveCtx, listener, handler)
	}()

	return func() {
		cancel()
		if serveErr := <-done; serveErr != nil {
			logger.Error("control server failed", "error", serveErr.Error())
		}
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}, nil
}

func (r Runner) commandListen(ctx context.Context, svc *services, parsed cli.Parsed) int {
	if resp, handled, err := forward(ctx, "listen"); handled {
		return r.reportForward(resp, err)
	}

	target := svc.target(parsed.To)
	language := svc.cfg.ASR.LanguageCode
	if parsed.From != "" {
		language = catalog.SpeechTag(parsed.From)
	}
	source := catalog.Normalize(language)

	var translated translate.Result
	controller := svc.newListener(language, func(ctx context.Context, transcript string) error {
		result, err := svc.translator.Translate(ctx, transcript, source, target)
		if err != nil {
			return err
		}
		translated = result
		return nil
	})

	stopControl, err := r.serveControl(ctx, controller, svc.logger)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			resp, _, forwardErr := forward(ctx, "listen")
			return r.reportForward(resp, forwardErr)
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer stopControl()

	result := controller.Run(ctx)
	logListenResult(svc.logger, result)

	if result.Cancelled {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}

	fmt.Fprintf(r.Stderr, "heard: %s\n", strings.TrimSpace(result.Transcript))
	fmt.Fprintln(r.Stdout, translated.Text)
	svc.indicator.ShowTranslation(ctx, translated.SourceCode, translated.TargetCode, translated.Text)
	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	resp, handled, err := forward(ctx, "status")
	if !handled {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	state := resp.State
	if state == "" {
		state = "idle"
	}
	fmt.Fprintln(r.Stdout, state)

	var snapshot session.State
	if len(resp.Data) == 0 || json.Unmarshal(resp.Data, &snapshot) != nil {
		return 0
	}
	if snapshot.Detection != nil {
		fmt.Fprintf(r.Stdout, "detected: %s (%s, %d%%)\n", snapshot.Detection.Name, snapshot.Detection.Code, snapshot.Detection.Confidence)
	}
	if snapshot.Translation != nil && !snapshot.Translation.Empty() {
		fmt.Fprintf(r.Stdout, "[%s→%s] %s\n", snapshot.Translation.SourceCode, snapshot.Translation.TargetCode, snapshot.Translation.Text)
	}
	if snapshot.Error != "" {
		fmt.Fprintf(r.Stdout, "error: %s\n", snapshot.Error)
	}
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string, args ...string) int {
	resp, handled, err := forward(ctx, command, args...)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no running voxlate session")
		return 1
	}
	return r.reportForward(resp, err)
}

func (r Runner) reportForward(resp ipc.Response, err error) int {
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// forward sends a command to the running session. handled is false when no
// session owns the control socket.
func forward(ctx context.Context, command string, args ...string) (ipc.Response, bool, error) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return ipc.Response{}, false, nil
	}

	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command, Args: args}, forwardTimeout)
	if err != nil {
		if errors.Is(err, ipc.ErrNotRunning) {
			return ipc.Response{}, false, nil
		}
		return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
	}
	if !resp.OK {
		return resp, true, errors.New(resp.Error)
	}
	return resp, true, nil
}

func logListenResult(logger *slog.Logger, result listen.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", result.State,
		"cancelled", result.Cancelled,
		"language", result.Language,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"audio_device", result.AudioDevice,
		"bytes_captured", result.BytesCaptured,
		"transcript_length", len(result.Transcript),
		"grpc_latency_ms", result.GRPCLatency.Milliseconds(),
	}

	if result.Err != nil {
		logger.Error("listen failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("listen complete", fields...)
}
