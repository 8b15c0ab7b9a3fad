package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	appDir   = "voxlate"
	fileName = "config.jsonc"
)

// ResolvePath picks the config file: the --config flag, then $VOXLATE_CONFIG,
// then $XDG_CONFIG_HOME/voxlate, then ~/.config/voxlate.
func ResolvePath(explicit string) (string, error) {
	for _, candidate := range []string{explicit, os.Getenv("VOXLATE_CONFIG")} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate, nil
		}
	}

	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return "", errors.New("cannot locate config: neither XDG_CONFIG_HOME nor HOME is set")
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appDir, fileName), nil
}
