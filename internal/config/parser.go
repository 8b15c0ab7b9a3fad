package config

import (
	"errors"
	"strings"
)

// Parse reads JSONC configuration content over base.
// Content that is blank once comments are removed validates and returns base.
func Parse(content string, base Config) (Config, []Warning, error) {
	stripped, err := stripJSONCComments(content)
	if err != nil {
		return Config{}, nil, err
	}

	trimmed := strings.TrimSpace(stripped)
	if trimmed == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}
	if !strings.HasPrefix(trimmed, "{") {
		return Config{}, nil, errors.New("config must be a JSONC object")
	}
	return parseJSONC(content, base)
}
