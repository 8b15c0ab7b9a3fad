package session

import (
	"github.com/rbright/voxlate/internal/langid"
	"github.com/rbright/voxlate/internal/translate"
)

// State is one snapshot of a translation session.
type State struct {
	ID          string            `json:"id"`
	Input       string            `json:"input"`
	Target      string            `json:"target"`
	Detection   *langid.Detection `json:"detection,omitempty"`
	Translation *translate.Result `json:"translation,omitempty"`
	// Err is the failure of the latest translation run, if any.
	Err       error  `json:"-"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	Generation        uint64 `json:"generation"`
	Pending           bool   `json:"pending"`
	SpeechUnsupported bool   `json:"speech_unsupported,omitempty"`
}

// Phase summarizes the state for status output.
func (s State) Phase() string {
	switch {
	case s.Pending:
		return "pending"
	case s.Err != nil:
		return "error"
	case s.Translation != nil:
		return "translated"
	case s.Detection != nil:
		return "detected"
	default:
		return "idle"
	}
}

func (s *State) setErr(err error) {
	s.Err = err
	if err == nil {
		s.Error = ""
		s.ErrorKind = ""
		return
	}
	s.Error = err.Error()
	s.ErrorKind = string(translate.KindOf(err))
}

func (s State) clone() State {
	out := s
	if s.Detection != nil {
		detection := *s.Detection
		out.Detection = &detection
	}
	if s.Translation != nil {
		translation := *s.Translation
		out.Translation = &translation
	}
	return out
}
