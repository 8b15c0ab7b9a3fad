// Package doctor runs readiness diagnostics for config, translation, speech, and desktop tools.
package doctor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/voxlate/internal/audio"
	"github.com/rbright/voxlate/internal/config"
	"github.com/rbright/voxlate/internal/riva"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// probes are the live checks that reach outside the process.
type probes struct {
	selectDevice func(ctx context.Context, input, fallback string) (audio.Selection, error)
	listVoices   func(ctx context.Context, cfg config.Config) ([]riva.VoiceInfo, error)
	pingGRPC     func(ctx context.Context, endpoint string, timeout time.Duration) error
}

func defaultProbes() probes {
	return probes{
		selectDevice: audio.SelectDevice,
		listVoices:   listRivaVoices,
		pingGRPC:     riva.Ping,
	}
}

// Run executes config, translation, speech, and desktop checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	return run(ctx, cfg, defaultProbes())
}

func run(ctx context.Context, loaded config.Loaded, p probes) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}
	checks = append(checks, checkTranslationEndpoint(ctx, cfg))

	if strings.TrimSpace(cfg.RivaGRPC) == "" {
		checks = append(checks, Check{Name: "speech", Pass: true, Message: "disabled (riva_grpc is empty)"})
	} else {
		checks = append(checks, checkRivaReady(ctx, cfg))
		checks = append(checks, checkRivaGRPC(ctx, cfg, p.pingGRPC))
		checks = append(checks, checkAudioSelection(ctx, cfg, p.selectDevice))
		if cfg.TTS.Enable {
			checks = append(checks, checkVoices(ctx, cfg, p.listVoices))
		}
	}

	if len(cfg.Clipboard.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.Clipboard.Argv, "clipboard_cmd"))
	}
	if cfg.Indicator.Enable {
		checks = append(checks, checkBinary("busctl", "desktop notifications"))
	}
	if cfg.Indicator.SoundEnable && hasCueFile(cfg.Indicator) {
		checks = append(checks, checkBinary("pw-play", "cue file playback"))
	}

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if n := len(loaded.Warnings); n > 0 {
		message += fmt.Sprintf(" (%d warnings)", n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkTranslationEndpoint verifies the translation service answers HTTP.
// Any non-5xx response counts as reachable; no text is sent.
func checkTranslationEndpoint(ctx context.Context, cfg config.Config) Check {
	endpoint := strings.TrimSpace(cfg.Translation.Endpoint)
	if endpoint == "" {
		return Check{Name: "translation.endpoint", Pass: false, Message: "translation endpoint is empty"}
	}
	status, err := probeHTTP(ctx, endpoint)
	if err != nil {
		return Check{Name: "translation.endpoint", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	if status >= 500 {
		return Check{Name: "translation.endpoint", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", status, endpoint)}
	}
	return Check{Name: "translation.endpoint", Pass: true, Message: fmt.Sprintf("reachable at %s", endpoint)}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func checkAudioSelection(
	ctx context.Context,
	cfg config.Config,
	selectDevice func(context.Context, string, string) (audio.Selection, error),
) Check {
	selection, err := selectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkRivaReady probes the configured Riva HTTP ready endpoint.
func checkRivaReady(ctx context.Context, cfg config.Config) Check {
	base := strings.TrimSpace(cfg.RivaHTTP)
	if base == "" {
		return Check{Name: "riva.ready", Pass: false, Message: "riva_http is empty"}
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	url := strings.TrimRight(base, "/") + cfg.RivaHealthPath
	status, err := probeHTTP(ctx, url)
	if err != nil {
		return Check{Name: "riva.ready", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	if status < 200 || status >= 300 {
		return Check{Name: "riva.ready", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", status, url)}
	}
	return Check{Name: "riva.ready", Pass: true, Message: fmt.Sprintf("ready at %s", url)}
}

func checkRivaGRPC(
	ctx context.Context,
	cfg config.Config,
	ping func(context.Context, string, time.Duration) error,
) Check {
	if err := ping(ctx, cfg.RivaGRPC, probeTimeout); err != nil {
		return Check{Name: "riva.grpc", Pass: false, Message: err.Error()}
	}
	return Check{Name: "riva.grpc", Pass: true, Message: fmt.Sprintf("ready at %s", cfg.RivaGRPC)}
}

func checkVoices(
	ctx context.Context,
	cfg config.Config,
	listVoices func(context.Context, config.Config) ([]riva.VoiceInfo, error),
) Check {
	voices, err := listVoices(ctx, cfg)
	if err != nil {
		return Check{Name: "tts.voices", Pass: false, Message: err.Error()}
	}
	if len(voices) == 0 {
		return Check{Name: "tts.voices", Pass: false, Message: "server advertises no synthesis voices"}
	}
	languages := map[string]struct{}{}
	for _, voice := range voices {
		languages[voice.LanguageCode] = struct{}{}
	}
	return Check{
		Name:    "tts.voices",
		Pass:    true,
		Message: fmt.Sprintf("%d voices across %d languages", len(voices), len(languages)),
	}
}

func listRivaVoices(ctx context.Context, cfg config.Config) ([]riva.VoiceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*probeTimeout)
	defer cancel()

	synth, err := riva.DialSynthesizer(ctx, riva.SynthConfig{
		Endpoint:    cfg.RivaGRPC,
		SampleRate:  cfg.TTS.SampleRate,
		DialTimeout: probeTimeout,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = synth.Close() }()
	return synth.Voices(ctx)
}

func probeHTTP(ctx context.Context, url string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}

func hasCueFile(cfg config.IndicatorConfig) bool {
	for _, path := range []string{cfg.SoundStartFile, cfg.SoundStopFile, cfg.SoundCompleteFile, cfg.SoundCancelFile} {
		if strings.TrimSpace(path) != "" {
			return true
		}
	}
	return false
}
