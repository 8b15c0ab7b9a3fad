package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rbright/voxlate/internal/ipc"
	"github.com/rbright/voxlate/internal/speech"
)

// Commands lists the control commands Handle serves.
var Commands = []string{"status", "input", "target", "swap", "clear", "speak", "stop-speaking", "copy"}

// Handle serves control commands for this session from other processes.
func (c *Coordinator) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		return c.respond("status", nil)
	case "input":
		if err := c.SetInput(strings.Join(req.Args, " ")); err != nil {
			return c.respond("", err)
		}
		c.Flush()
		return c.respond("input accepted", nil)
	case "target":
		return c.respond("target updated", c.SetTarget(req.Arg(0)))
	case "swap":
		return c.respond("swapped", c.Swap())
	case "clear":
		return c.respond("cleared", c.Clear())
	case "speak":
		source, err := ParseSource(req.Arg(0))
		if err != nil {
			return c.respond("", err)
		}
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return c.respond("", ErrClosed)
		}
		text, _ := c.pickLocked(source)
		if strings.TrimSpace(text) == "" {
			c.mu.Unlock()
			return c.respond("", ErrNothingToSpeak)
		}
		c.wg.Add(1)
		c.mu.Unlock()
		go func() {
			defer c.wg.Done()
			if err := c.Speak(c.ctx, source); err != nil {
				c.mu.Lock()
				c.log(levelFor(err), "speak failed", "source", string(source), "error", err.Error())
				c.mu.Unlock()
			}
		}()
		return c.respond("speaking", nil)
	case "stop-speaking":
		c.StopSpeaking()
		return c.respond("speech stopped", nil)
	case "copy":
		source, err := ParseSource(req.Arg(0))
		if err != nil {
			return c.respond("", err)
		}
		return c.respond("copied", c.Copy(ctx, source))
	default:
		return c.respond("", fmt.Errorf("unknown command: %s", req.Command))
	}
}

func levelFor(err error) slog.Level {
	if errors.Is(err, speech.ErrUnsupported) || errors.Is(err, context.Canceled) {
		return slog.LevelWarn
	}
	return slog.LevelError
}

func (c *Coordinator) respond(message string, err error) ipc.Response {
	snapshot := c.Snapshot()
	resp := ipc.Response{OK: err == nil, State: snapshot.Phase(), Message: message}
	if err != nil {
		resp.Error = err.Error()
		resp.Message = ""
	}
	if data, marshalErr := json.Marshal(snapshot); marshalErr == nil {
		resp.Data = data
	}
	return resp
}
