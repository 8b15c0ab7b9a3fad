package doctor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rbright/voxlate/internal/audio"
	"github.com/rbright/voxlate/internal/config"
	"github.com/rbright/voxlate/internal/riva"
	"github.com/stretchr/testify/require"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckConfig(t *testing.T) {
	missing := checkConfig(config.Loaded{Path: "/tmp/none.jsonc"})
	require.True(t, missing.Pass)
	require.Contains(t, missing.Message, "using defaults")

	loaded := checkConfig(config.Loaded{
		Path:     "/tmp/config.jsonc",
		Exists:   true,
		Warnings: []config.Warning{{Line: 3, Message: "unknown key"}},
	})
	require.True(t, loaded.Pass)
	require.Contains(t, loaded.Message, "(1 warnings)")
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "clipboard_cmd")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryFound(t *testing.T) {
	check := checkBinary("sh", "shell available")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "shell available")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckCommandUsesBinaryFromPath(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "fake-bin")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/usr/bin/env bash\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check := checkCommand([]string{"fake-bin", "--arg"}, "clipboard_cmd")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "clipboard_cmd command is available")
}

func TestCheckTranslationEndpointReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.URL.Query().Get("q"))
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Translation.Endpoint = server.URL + "/get"

	check := checkTranslationEndpoint(context.Background(), cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "reachable at")
}

func TestCheckTranslationEndpointServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Translation.Endpoint = server.URL

	check := checkTranslationEndpoint(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "HTTP 502")
}

func TestCheckTranslationEndpointEmpty(t *testing.T) {
	cfg := config.Default()
	cfg.Translation.Endpoint = " "

	check := checkTranslationEndpoint(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "endpoint is empty")
}

func TestCheckRivaReadySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/health/ready", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.RivaHTTP = strings.TrimPrefix(server.URL, "http://")
	cfg.RivaHealthPath = "/v1/health/ready"

	check := checkRivaReady(context.Background(), cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "ready at")
}

func TestCheckRivaReadyFailureStatusCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.RivaHTTP = server.URL
	cfg.RivaHealthPath = "/v1/health/ready"

	check := checkRivaReady(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "HTTP 503")
}

func TestCheckRivaReadyEmptyBaseURL(t *testing.T) {
	cfg := config.Default()
	cfg.RivaHTTP = ""

	check := checkRivaReady(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "riva_http is empty")
}

func TestCheckAudioSelectionReportsWarning(t *testing.T) {
	check := checkAudioSelection(context.Background(), config.Default(),
		func(context.Context, string, string) (audio.Selection, error) {
			return audio.Selection{
				Device:  audio.Device{ID: "alsa_input.usb"},
				Warning: "preferred input unavailable",
			}, nil
		})
	require.True(t, check.Pass)
	require.Equal(t, `selected "alsa_input.usb" (preferred input unavailable)`, check.Message)
}

func TestCheckAudioSelectionFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSelection(context.Background(), config.Default(), audio.SelectDevice)
	require.False(t, check.Pass)
	require.Equal(t, "audio.device", check.Name)
}

func TestCheckRivaGRPC(t *testing.T) {
	cfg := config.Default()
	failed := checkRivaGRPC(context.Background(), cfg, func(context.Context, string, time.Duration) error {
		return errors.New("wait for riva grpc readiness: still connecting")
	})
	require.False(t, failed.Pass)
	require.Contains(t, failed.Message, "still connecting")

	ok := checkRivaGRPC(context.Background(), cfg, func(context.Context, string, time.Duration) error { return nil })
	require.True(t, ok.Pass)
	require.Equal(t, "ready at 127.0.0.1:50051", ok.Message)
}

func TestCheckVoices(t *testing.T) {
	check := checkVoices(context.Background(), config.Default(),
		func(context.Context, config.Config) ([]riva.VoiceInfo, error) {
			return []riva.VoiceInfo{
				{Name: "English-US.Female-1", LanguageCode: "en-US"},
				{Name: "English-US.Male-1", LanguageCode: "en-US"},
				{Name: "Spanish-US.Female-1", LanguageCode: "es-US"},
			}, nil
		})
	require.True(t, check.Pass)
	require.Equal(t, "3 voices across 2 languages", check.Message)

	empty := checkVoices(context.Background(), config.Default(),
		func(context.Context, config.Config) ([]riva.VoiceInfo, error) { return nil, nil })
	require.False(t, empty.Pass)

	failed := checkVoices(context.Background(), config.Default(),
		func(context.Context, config.Config) ([]riva.VoiceInfo, error) {
			return nil, errors.New("connection refused")
		})
	require.False(t, failed.Pass)
	require.Equal(t, "connection refused", failed.Message)
}

func TestRunSkipsSpeechChecksWithoutRiva(t *testing.T) {
	translation := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(translation.Close)

	cfg := config.Default()
	cfg.Translation.Endpoint = translation.URL
	cfg.RivaGRPC = ""
	cfg.Clipboard = config.CommandConfig{}
	cfg.Indicator.Enable = false

	report := run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: cfg}, probes{
		selectDevice: func(context.Context, string, string) (audio.Selection, error) {
			t.Fatal("audio selection should be skipped")
			return audio.Selection{}, nil
		},
		listVoices: func(context.Context, config.Config) ([]riva.VoiceInfo, error) {
			t.Fatal("voice listing should be skipped")
			return nil, nil
		},
		pingGRPC: func(context.Context, string, time.Duration) error {
			t.Fatal("grpc ping should be skipped")
			return nil
		},
	})

	require.True(t, report.OK(), report.String())
	require.Equal(t, []string{"config", "translation.endpoint", "speech"}, checkNames(report))
}

func TestRunIncludesSpeechAndDesktopChecks(t *testing.T) {
	binDir := t.TempDir()
	for _, name := range []string{"fake-copy", "busctl", "pw-play"} {
		require.NoError(t, os.WriteFile(filepath.Join(binDir, name), []byte("#!/usr/bin/env sh\nexit 0\n"), 0o755))
	}
	t.Setenv("PATH", binDir+":"+os.Getenv("PATH"))

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(backend.Close)

	cfg := config.Default()
	cfg.Translation.Endpoint = backend.URL
	cfg.RivaGRPC = "127.0.0.1:50051"
	cfg.RivaHTTP = backend.URL
	cfg.TTS.Enable = true
	cfg.Clipboard = config.CommandConfig{Raw: "fake-copy", Argv: []string{"fake-copy"}}
	cfg.Indicator.Enable = true
	cfg.Indicator.SoundEnable = true
	cfg.Indicator.SoundStartFile = "/tmp/start.wav"

	report := run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: cfg}, probes{
		selectDevice: func(context.Context, string, string) (audio.Selection, error) {
			return audio.Selection{Device: audio.Device{ID: "mic"}}, nil
		},
		listVoices: func(context.Context, config.Config) ([]riva.VoiceInfo, error) {
			return []riva.VoiceInfo{{Name: "English-US.Female-1", LanguageCode: "en-US"}}, nil
		},
		pingGRPC: func(_ context.Context, endpoint string, _ time.Duration) error {
			require.Equal(t, "127.0.0.1:50051", endpoint)
			return nil
		},
	})

	require.True(t, report.OK(), report.String())
	require.Equal(t, []string{
		"config",
		"translation.endpoint",
		"riva.ready",
		"riva.grpc",
		"audio.device",
		"tts.voices",
		"fake-copy",
		"busctl",
		"pw-play",
	}, checkNames(report))
}

func checkNames(report Report) []string {
	names := make([]string, 0, len(report.Checks))
	for _, check := range report.Checks {
		names = append(names, check.Name)
	}
	return names
}
