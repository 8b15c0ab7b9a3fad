// Package ipc carries control commands to a running voxlate session over a
// unix socket, one JSON line per request and response.
package ipc

import "encoding/json"

// Request is one control command.
type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Arg returns the i-th argument or "".
func (r Request) Arg(i int) string {
	if i < 0 || i >= len(r.Args) {
		return ""
	}
	return r.Args[i]
}

// Response is the reply to one Request. Data carries a command-specific
// JSON payload such as a session snapshot.
type Response struct {
	OK      bool            `json:"ok"`
	State   string          `json:"state,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}
