package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Loaded is one resolved configuration with the file it came from.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
	// Overrides names the environment variables applied on top of the file.
	Overrides []string
}

// envOverrides map environment variables onto the settings most often
// changed per machine. They win over the file.
var envOverrides = []struct {
	name  string
	apply func(*Config, string) error
}{
	{"VOXLATE_TRANSLATION_ENDPOINT", func(c *Config, v string) error { c.Translation.Endpoint = v; return nil }},
	{"VOXLATE_TRANSLATION_EMAIL", func(c *Config, v string) error { c.Translation.Email = v; return nil }},
	{"VOXLATE_RIVA_GRPC", func(c *Config, v string) error { c.RivaGRPC = v; return nil }},
	{"VOXLATE_RIVA_HTTP", func(c *Config, v string) error { c.RivaHTTP = v; return nil }},
	{"VOXLATE_SERVER_LISTEN", func(c *Config, v string) error { c.Server.Listen = v; return nil }},
	{"VOXLATE_CLIPBOARD_CMD", func(c *Config, v string) error {
		argv, err := parseArgv(v)
		if err != nil {
			return err
		}
		c.Clipboard = CommandConfig{Raw: v, Argv: argv}
		return nil
	}},
}

// Load reads the config file (missing means defaults), applies environment
// overrides, and validates the result.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: path, Config: Default(), Exists: true}
	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Exists = false
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", path),
		})
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	default:
		cfg, warnings, parseErr := Parse(string(content), loaded.Config)
		if parseErr != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", path, parseErr)
		}
		loaded.Config = cfg
		loaded.Warnings = append(loaded.Warnings, warnings...)
	}

	for _, override := range envOverrides {
		value, ok := os.LookupEnv(override.name)
		if !ok {
			continue
		}
		if err := override.apply(&loaded.Config, strings.TrimSpace(value)); err != nil {
			return Loaded{}, fmt.Errorf("%s: %w", override.name, err)
		}
		loaded.Overrides = append(loaded.Overrides, override.name)
	}
	if len(loaded.Overrides) > 0 {
		if _, err := Validate(loaded.Config); err != nil {
			return Loaded{}, fmt.Errorf("config after %s: %w", strings.Join(loaded.Overrides, ", "), err)
		}
	}

	return loaded, nil
}
