// Package app wires CLI commands to translation, session, and speech services.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rbright/voxlate/internal/audio"
	"github.com/rbright/voxlate/internal/catalog"
	"github.com/rbright/voxlate/internal/cli"
	"github.com/rbright/voxlate/internal/config"
	"github.com/rbright/voxlate/internal/doctor"
	"github.com/rbright/voxlate/internal/logging"
	"github.com/rbright/voxlate/internal/server"
	"github.com/rbright/voxlate/internal/session"
	"github.com/rbright/voxlate/internal/speech"
	"github.com/rbright/voxlate/internal/version"
)

const maxStdinBytes = 1 << 20

type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdin: os.Stdin, Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("voxlate"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("voxlate"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}
	if parsed.Command == cli.CommandLanguages {
		for _, lang := range catalog.All() {
			fmt.Fprintf(r.Stdout, "%s\t%s\n", lang.Code, lang.Name)
		}
		return 0
	}

	logRuntime, err := logging.New(logging.Options{Verbose: parsed.Verbose, Console: r.Stderr})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	if parsed.To != "" && !catalog.Contains(parsed.To) {
		fmt.Fprintf(r.Stderr, "error: unsupported target language %q\n", parsed.To)
		return 2
	}
	if parsed.From != "" && !catalog.Contains(parsed.From) {
		fmt.Fprintf(r.Stderr, "error: unsupported source language %q\n", parsed.From)
		return 2
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	svc := newServices(cfgLoaded.Config, logger)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandDetect:
		return r.commandDetect(svc, parsed)
	case cli.CommandTranslate:
		return r.commandTranslate(ctx, svc, parsed)
	case cli.CommandSpeak:
		return r.commandSpeak(ctx, svc, parsed)
	case cli.CommandServe:
		return r.commandServe(ctx, svc)
	case cli.CommandSession:
		return r.commandSession(ctx, svc, parsed)
	case cli.CommandListen:
		return r.commandListen(ctx, svc, parsed)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop, cli.CommandCancel, cli.CommandSwap, cli.CommandClear, cli.CommandTarget:
		return r.forwardOrFail(ctx, string(parsed.Command), parsed.Args...)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// inputText returns the positional text, or stdin when none was given.
func (r Runner) inputText(parsed cli.Parsed) (string, error) {
	if text := parsed.Text(); text != "" {
		return text, nil
	}
	if r.Stdin == nil {
		return "", nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Stdin, maxStdinBytes))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (r Runner) commandDetect(svc *services, parsed cli.Parsed) int {
	text, err := r.inputText(parsed)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if text == "" {
		fmt.Fprintln(r.Stderr, "error: detect needs text as arguments or on stdin")
		return 2
	}

	detections := svc.identifier.IdentifyAll(text)
	if len(detections) == 0 {
		fmt.Fprintln(r.Stderr, "error: no language detected")
		return 1
	}
	for _, detection := range detections {
		fmt.Fprintf(r.Stdout, "%s\t%s\t%d\n", detection.Code, detection.Name, detection.Confidence)
	}
	return 0
}

// sourceFor resolves the --from flag, falling back to detection.
func sourceFor(svc *services, parsed cli.Parsed, text string) (string, bool) {
	if parsed.From != "" {
		return catalog.Normalize(parsed.From), true
	}
	detection, ok := svc.identifier.Identify(text)
	if !ok {
		return "", false
	}
	svc.logger.Debug("source detected", "code", detection.Code, "confidence", detection.Confidence)
	return detection.Code, true
}

func (r Runner) commandTranslate(ctx context.Context, svc *services, parsed cli.Parsed) int {
	text, err := r.inputText(parsed)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if text == "" {
		fmt.Fprintln(r.Stderr, "error: translate needs text as arguments or on stdin")
		return 2
	}

	source, ok := sourceFor(svc, parsed, text)
	if !ok {
		fmt.Fprintln(r.Stderr, "error: no language detected; pass --from")
		return 1
	}

	result, err := svc.translator.Translate(ctx, text, source, svc.target(parsed.To))
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, result.Text)
	return 0
}

func (r Runner) commandSpeak(ctx context.Context, svc *services, parsed cli.Parsed) int {
	text := parsed.Text()
	if text == "" {
		return r.forwardOrFail(ctx, "speak", "translation")
	}

	source, ok := sourceFor(svc, parsed, text)
	if !ok {
		fmt.Fprintln(r.Stderr, "error: no language detected; pass --from")
		return 1
	}

	speaker := svc.newSpeaker()
	defer func() { _ = speaker.Close() }()

	err := speaker.Speak(ctx, text, catalog.SpeechTag(source))
	if err == nil || (ctx.Err() != nil && !errors.Is(err, speech.ErrUnsupported)) {
		return 0
	}
	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	return 1
}

func (r Runner) commandServe(ctx context.Context, svc *services) int {
	srv := server.New(server.Options{
		Detector:   svc.identifier,
		Translator: svc.translator,
		NewSession: func(id string) *session.Coordinator {
			return svc.newSession(id, svc.cfg.Session.DefaultTarget, nil)
		},
		DefaultTarget: svc.cfg.Session.DefaultTarget,
		Logger:        svc.logger,
	})

	fmt.Fprintf(r.Stdout, "serving on http://%s\n", svc.cfg.Server.Listen)
	if err := srv.ListenAndServe(ctx, svc.cfg.Server.Listen); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}
