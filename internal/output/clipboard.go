// Package output copies text to the system clipboard through a configured
// command.
package output

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/voxlate/internal/config"
)

// ErrClipboardDisabled reports that clipboard_cmd is empty.
var ErrClipboardDisabled = errors.New("clipboard is disabled; set clipboard_cmd")

const copyTimeout = 2 * time.Second

// Clipboard pipes text into the clipboard command.
type Clipboard struct {
	argv   []string
	logger *slog.Logger
}

// NewClipboard constructs a clipboard from clipboard_cmd.
func NewClipboard(cmd config.CommandConfig, logger *slog.Logger) *Clipboard {
	return &Clipboard{argv: append([]string(nil), cmd.Argv...), logger: logger}
}

// Enabled reports whether a clipboard command is configured.
func (c *Clipboard) Enabled() bool {
	return len(c.argv) > 0
}

// Copy writes text to the clipboard. Blank text is a no-op.
func (c *Clipboard) Copy(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if !c.Enabled() {
		return ErrClipboardDisabled
	}

	copyCtx, cancel := context.WithTimeout(ctx, copyTimeout)
	defer cancel()
	if err := runCommandWithInput(copyCtx, c.argv, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	if c.logger != nil {
		c.logger.Debug("clipboard set", "chars", len([]rune(text)))
	}
	return nil
}

// Commit adapts Copy to transcript dispatch.
func (c *Clipboard) Commit(ctx context.Context, transcript string) error {
	return c.Copy(ctx, transcript)
}

// runCommandWithInput executes argv with input on stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(input)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if trimmed := strings.TrimSpace(string(out)); trimmed != "" {
			return fmt.Errorf("run %s: %w (%s)", argv[0], err, trimmed)
		}
		return fmt.Errorf("run %s: %w", argv[0], err)
	}
	return nil
}
