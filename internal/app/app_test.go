package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rbright/voxlate/internal/fsm"
	"github.com/rbright/voxlate/internal/ipc"
	"github.com/rbright/voxlate/internal/langid"
	"github.com/rbright/voxlate/internal/listen"
	"github.com/rbright/voxlate/internal/session"
	"github.com/rbright/voxlate/internal/translate"
	"github.com/stretchr/testify/require"
)

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "voxlate")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestExecuteLanguages(t *testing.T) {
	var stdout bytes.Buffer
	exitCode := Execute(context.Background(), []string{"languages"}, &stdout, &bytes.Buffer{})
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "en\tEnglish\n")
	require.Contains(t, stdout.String(), "es\tSpanish\n")
}

func TestRunnerRejectsUnsupportedTarget(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "translate", "--to", "tlh", "hello"})
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), `unsupported target language "tlh"`)
}

func TestRunnerTranslateToFilipino(t *testing.T) {
	mymemory := newMyMemory(t, "Magandang umaga")
	paths := setupRunnerEnv(t, mymemory.URL)

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "translate", "--from", "en", "--to", "tl", "good morning"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "Magandang umaga\n", stdout.String())
	require.Equal(t, []string{"en|tl"}, mymemory.pairs())
}

func TestRunnerDetectPrintsRankedCandidates(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "detect", "Bonjour, comment ça va?"})
	require.Equal(t, 0, exitCode)
	require.True(t, strings.HasPrefix(stdout.String(), "fr\tFrench\t"), stdout.String())
}

func TestRunnerDetectNeedsText(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	var stderr bytes.Buffer
	runner := Runner{Stdin: strings.NewReader("  \n"), Stdout: &bytes.Buffer{}, Stderr: &stderr}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "detect"})
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "detect needs text")
}

func TestRunnerDetectReportsNoDetection(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "detect", "a"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "no language detected")
}

func TestRunnerTranslateDetectsSource(t *testing.T) {
	mymemory := newMyMemory(t, "Hola, ¿cómo estás?")
	paths := setupRunnerEnv(t, mymemory.URL)

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "translate", "Bonjour, comment ça va?"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "Hola, ¿cómo estás?\n", stdout.String())
	require.Equal(t, []string{"fr|es"}, mymemory.pairs())
}

func TestRunnerTranslateReadsStdinWithExplicitPair(t *testing.T) {
	mymemory := newMyMemory(t, "Guten Morgen")
	paths := setupRunnerEnv(t, mymemory.URL)

	var stdout bytes.Buffer
	runner := Runner{Stdin: strings.NewReader("good morning\n"), Stdout: &stdout, Stderr: &bytes.Buffer{}}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "translate", "--from", "en", "--to", "DE"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "Guten Morgen\n", stdout.String())
	require.Equal(t, []string{"en|de"}, mymemory.pairs())
}

func TestRunnerTranslateReportsClassifiedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"responseData":{"translatedText":"MYMEMORY WARNING: YOU USED ALL AVAILABLE FREE TRANSLATIONS FOR TODAY."},"responseStatus":200}`))
	}))
	t.Cleanup(server.Close)
	paths := setupRunnerEnv(t, server.URL)

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "translate", "--from", "en", "hello there"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "daily limit")
}

func TestRunnerSpeakUnsupportedWithoutRiva(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "speak", "--from", "en", "hello"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "speech is not supported")
}

func TestRunnerListenUnsupportedWithoutRiva(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "listen"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "speech is not supported")

	_, statErr := os.Stat(filepath.Join(paths.runtimeDir, "voxlate.sock"))
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRunnerSessionTranslatesPipedInput(t *testing.T) {
	mymemory := newMyMemory(t, "Hola, ¿cómo estás?")
	paths := setupRunnerEnv(t, mymemory.URL)

	var stdout bytes.Buffer
	runner := Runner{
		Stdin:  strings.NewReader("Bonjour, comment ça va?\n"),
		Stdout: &stdout,
		Stderr: &bytes.Buffer{},
	}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "session"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "[fr→es] Hola, ¿cómo estás?\n", stdout.String())

	_, statErr := os.Stat(filepath.Join(paths.runtimeDir, "voxlate.sock"))
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRunnerSessionRefusesSecondOwner(t *testing.T) {
	paths := setupRunnerEnv(t, "")
	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "voxlate.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{OK: true, State: "idle"}
	})
	defer shutdown()

	var stderr bytes.Buffer
	runner := Runner{Stdin: strings.NewReader(""), Stdout: &bytes.Buffer{}, Stderr: &stderr}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "session"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "already running")
}

func TestRunnerStatusIdleWhenSocketUnavailable(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "idle\n", stdout.String())
}

func TestRunnerStopReturnsNoActiveSession(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "stop"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "no running voxlate session")
}

func TestRunnerForwardsCommandsToActiveSession(t *testing.T) {
	paths := setupRunnerEnv(t, "")
	requests := make(chan ipc.Request, 16)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "voxlate.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		requests <- req
		return ipc.Response{OK: true, State: "translated", Message: req.Command + " handled"}
	})
	defer shutdown()

	cases := [][]string{
		{"stop"},
		{"cancel"},
		{"swap"},
		{"clear"},
		{"target", "de"},
		{"speak"},
		{"listen"},
	}
	for _, args := range cases {
		var stdout bytes.Buffer
		runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}
		exitCode := runner.Execute(context.Background(), append([]string{"--config", paths.configPath}, args...))
		require.Equal(t, 0, exitCode, args)
		require.Equal(t, args[0]+" handled\n", stdout.String())
	}

	got := make([]ipc.Request, 0, len(cases))
	for range cases {
		got = append(got, <-requests)
	}
	require.Equal(t, []ipc.Request{
		{Command: "stop"},
		{Command: "cancel"},
		{Command: "swap"},
		{Command: "clear"},
		{Command: "target", Args: []string{"de"}},
		{Command: "speak", Args: []string{"translation"}},
		{Command: "listen"},
	}, got)
}

func TestRunnerForwardReportsSessionErrors(t *testing.T) {
	paths := setupRunnerEnv(t, "")
	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "voxlate.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{OK: false, Error: "nothing to swap: need both a detection and a translation"}
	})
	defer shutdown()

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "swap"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "nothing to swap")
}

func TestRunnerStatusPrintsSessionSnapshot(t *testing.T) {
	paths := setupRunnerEnv(t, "")
	snapshot := session.State{
		ID:          "s1",
		Input:       "Bonjour",
		Target:      "es",
		Detection:   &langid.Detection{Name: "French", Code: "fr", Confidence: 90},
		Translation: &translate.Result{Text: "Hola", SourceCode: "fr", TargetCode: "es"},
	}
	data, err := json.Marshal(snapshot)
	require.NoError(t, err)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "voxlate.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		require.Equal(t, "status", req.Command)
		return ipc.Response{OK: true, State: snapshot.Phase(), Data: data}
	})
	defer shutdown()

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "translated\ndetected: French (fr, 90%)\n[fr→es] Hola\n", stdout.String())
}

func TestRunnerStatusFallsBackToIdleWhenServerStateEmpty(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "voxlate.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{OK: true, State: ""}
	})
	defer shutdown()

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "idle\n", stdout.String())
}

func TestForwardTreatsStaleSocketFileAsNotRunning(t *testing.T) {
	runtimeDir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)
	socketPath := filepath.Join(runtimeDir, "voxlate.sock")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o600))

	_, handled, err := forward(context.Background(), "status")
	require.False(t, handled)
	require.NoError(t, err)

	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
}

func TestForwardTreatsReadFailuresAsHandledErrors(t *testing.T) {
	runtimeDir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)
	socketPath := filepath.Join(runtimeDir, "voxlate.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, acceptErr := listener.Accept()
		if acceptErr == nil {
			_ = conn.Close()
		}
	}()

	_, handled, err := forward(context.Background(), "status")
	require.True(t, handled)
	require.Error(t, err)
	require.Contains(t, err.Error(), `forward command "status":`)

	<-done
	require.NoError(t, listener.Close())
}

func TestForwardWithoutRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")

	_, handled, err := forward(context.Background(), "status")
	require.False(t, handled)
	require.NoError(t, err)
}

func TestRunnerDoctorCommandDispatchesAndPrintsReport(t *testing.T) {
	mymemory := newMyMemory(t, "unused")
	paths := setupRunnerEnv(t, mymemory.URL)

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Equal(t, 0, exitCode, stdout.String())
	require.Contains(t, stdout.String(), "[OK] config: loaded")
	require.Contains(t, stdout.String(), "[OK] translation.endpoint")
	require.Contains(t, stdout.String(), "[OK] speech: disabled")
	require.Empty(t, mymemory.pairs())
}

func TestRunnerDevicesCommandDispatches(t *testing.T) {
	paths := setupRunnerEnv(t, "")
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestSessionLineDispatchesCommands(t *testing.T) {
	coord := session.New(session.Options{Target: "es", Debounce: time.Hour})
	t.Cleanup(coord.Close)

	mux := ipc.NewMux()
	mux.Route(coord, session.Commands...)

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	require.False(t, runner.sessionLine(context.Background(), coord, mux, "  "))
	require.False(t, runner.sessionLine(context.Background(), coord, mux, ":to de"))
	require.Equal(t, "de", coord.Snapshot().Target)
	require.Contains(t, stderr.String(), "target updated")

	require.False(t, runner.sessionLine(context.Background(), coord, mux, "hello there"))
	require.Equal(t, "hello there", coord.Snapshot().Input)

	require.False(t, runner.sessionLine(context.Background(), coord, mux, ":status"))
	require.Equal(t, "pending\n", stdout.String())

	require.False(t, runner.sessionLine(context.Background(), coord, mux, ":swap"))
	require.Contains(t, stderr.String(), "error: nothing to swap")

	require.False(t, runner.sessionLine(context.Background(), coord, mux, ":help"))
	require.Contains(t, stderr.String(), ":speak [input|translation]")

	require.True(t, runner.sessionLine(context.Background(), coord, mux, ":q"))
}

func TestUpdatePrinterPrintsEachChangeOnce(t *testing.T) {
	var out, errOut bytes.Buffer
	printer := &updatePrinter{out: &out, errOut: &errOut}

	translated := session.State{Translation: &translate.Result{Text: "Hola", SourceCode: "en", TargetCode: "es"}}
	printer.print(session.State{Input: "hel", Pending: true})
	printer.print(translated)
	printer.print(translated)
	require.Equal(t, "[en→es] Hola\n", out.String())

	failed := session.State{Generation: 3, Error: "translation request timed out"}
	printer.print(failed)
	printer.print(failed)
	require.Equal(t, "error: translation request timed out\n", errOut.String())
}

func TestLogListenResultWritesFailureAndSuccess(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	started := time.Now()
	finished := started.Add(1500 * time.Millisecond)

	logListenResult(logger, listen.Result{
		State:         fsm.StateIdle,
		StartedAt:     started,
		FinishedAt:    finished,
		AudioDevice:   "Mic",
		BytesCaptured: 123,
		Transcript:    "hello",
		Language:      "en-US",
		GRPCLatency:   20 * time.Millisecond,
	})

	require.Contains(t, logBuf.String(), "listen complete")
	require.Contains(t, logBuf.String(), `"transcript_length":5`)
	require.Contains(t, logBuf.String(), `"duration_ms":1500`)

	logBuf.Reset()
	logListenResult(logger, listen.Result{
		State:      fsm.StateIdle,
		StartedAt:  started,
		FinishedAt: finished,
		Err:        errors.New("boom"),
	})
	require.Contains(t, logBuf.String(), "listen failed")
	require.Contains(t, logBuf.String(), "boom")
}

type myMemory struct {
	*httptest.Server
	mu   sync.Mutex
	seen []string
}

func (m *myMemory) pairs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.seen...)
}

// newMyMemory serves a fixed translation and records each requested langpair.
func newMyMemory(t *testing.T, translation string) *myMemory {
	t.Helper()
	m := &myMemory{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pair := r.URL.Query().Get("langpair")
		if pair != "" {
			m.mu.Lock()
			m.seen = append(m.seen, pair)
			m.mu.Unlock()
		}
		body, _ := json.Marshal(map[string]any{
			"responseData":   map[string]any{"translatedText": translation},
			"responseStatus": 200,
		})
		_, _ = w.Write(body)
	}))
	t.Cleanup(m.Close)
	return m
}

type runnerPaths struct {
	configPath string
	runtimeDir string
}

// setupRunnerEnv isolates XDG dirs and writes a config with speech and
// desktop integrations disabled.
func setupRunnerEnv(t *testing.T, endpoint string) runnerPaths {
	t.Helper()

	t.Setenv("XDG_STATE_HOME", t.TempDir())
	for _, name := range []string{
		"VOXLATE_CONFIG",
		"VOXLATE_TRANSLATION_ENDPOINT",
		"VOXLATE_TRANSLATION_EMAIL",
		"VOXLATE_RIVA_GRPC",
		"VOXLATE_RIVA_HTTP",
		"VOXLATE_SERVER_LISTEN",
		"VOXLATE_CLIPBOARD_CMD",
	} {
		// t.Setenv restores the original value; Unsetenv hides it meanwhile.
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	runtimeDir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)

	if endpoint == "" {
		endpoint = "http://127.0.0.1:9/get"
	}
	content := fmt.Sprintf(`{
  "translation": {"endpoint": %q, "timeout_ms": 2000},
  "session": {"debounce_ms": 10},
  "riva": {"grpc": "", "http": ""},
  "clipboard_cmd": "cat",
  "indicator": {"enable": false, "sound_enable": false},
}
`, endpoint)
	configPath := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	return runnerPaths{configPath: configPath, runtimeDir: runtimeDir}
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}
