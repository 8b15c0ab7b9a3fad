package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func isolateConfigEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VOXLATE_CONFIG", "")
	for _, override := range envOverrides {
		t.Setenv(override.name, "")
		require.NoError(t, os.Unsetenv(override.name))
	}
}

func TestResolvePathPrecedence(t *testing.T) {
	isolateConfigEnv(t)
	xdg := t.TempDir()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv("HOME", home)

	tests := []struct {
		name     string
		explicit string
		env      string
		noXDG    bool
		want     string
	}{
		{name: "flag wins", explicit: "/tmp/flag.jsonc", env: "/tmp/env.jsonc", want: "/tmp/flag.jsonc"},
		{name: "env before xdg", env: "/tmp/env.jsonc", want: "/tmp/env.jsonc"},
		{name: "xdg", want: filepath.Join(xdg, "voxlate", "config.jsonc")},
		{name: "home fallback", noXDG: true, want: filepath.Join(home, ".config", "voxlate", "config.jsonc")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("VOXLATE_CONFIG", tc.env)
			if tc.noXDG {
				t.Setenv("XDG_CONFIG_HOME", " ")
			}
			resolved, err := ResolvePath(tc.explicit)
			require.NoError(t, err)
			require.Equal(t, tc.want, resolved)
		})
	}
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	isolateConfigEnv(t)
	path := filepath.Join(t.TempDir(), "missing.jsonc")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.Len(t, loaded.Warnings, 1)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
	require.Empty(t, loaded.Overrides)
}

func TestLoadExistingJSONCParsesAndValidates(t *testing.T) {
	isolateConfigEnv(t)
	path := filepath.Join(t.TempDir(), "config.jsonc")
	contents := `
{
  "riva": {
    "grpc": "127.0.0.1:50051",
    "http": "127.0.0.1:9000"
  },
  "session": {
    "default_target": "de",
  },
  // keep the free tier
  "translation": {"email": "me@example.com"}
}
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, "127.0.0.1:50051", loaded.Config.RivaGRPC)
	require.Equal(t, "127.0.0.1:9000", loaded.Config.RivaHTTP)
	require.Equal(t, "de", loaded.Config.Session.DefaultTarget)
	require.Equal(t, "me@example.com", loaded.Config.Translation.Email)
	require.Empty(t, loaded.Warnings)
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	isolateConfigEnv(t)
	path := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"translation": {"email": "file@example.com"}}`), 0o600))

	t.Setenv("VOXLATE_TRANSLATION_EMAIL", " env@example.com ")
	t.Setenv("VOXLATE_CLIPBOARD_CMD", "xclip -selection clipboard")
	t.Setenv("VOXLATE_SERVER_LISTEN", "127.0.0.1:9999")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "env@example.com", loaded.Config.Translation.Email)
	require.Equal(t, []string{"xclip", "-selection", "clipboard"}, loaded.Config.Clipboard.Argv)
	require.Equal(t, "127.0.0.1:9999", loaded.Config.Server.Listen)
	require.Equal(t, []string{
		"VOXLATE_TRANSLATION_EMAIL",
		"VOXLATE_SERVER_LISTEN",
		"VOXLATE_CLIPBOARD_CMD",
	}, loaded.Overrides)
}

func TestLoadRejectsInvalidOverride(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("VOXLATE_TRANSLATION_ENDPOINT", "ftp://example.com")

	_, err := Load(filepath.Join(t.TempDir(), "missing.jsonc"))
	require.ErrorContains(t, err, "VOXLATE_TRANSLATION_ENDPOINT")
	require.ErrorContains(t, err, "translation.endpoint")
}

func TestLoadImplicitPathUsesXDG(t *testing.T) {
	isolateConfigEnv(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	path := filepath.Join(xdg, "voxlate", "config.jsonc")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(`{"tts": {"enable": false}}`), 0o600))

	loaded, err := Load("")
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Config.TTS.Enable)
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	isolateConfigEnv(t)
	path := filepath.Join(t.TempDir(), "broken.jsonc")
	require.NoError(t, os.WriteFile(path, []byte("{ not-json }"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}
