// Package speech provides speech recognition and synthesis backed by Riva
// and PulseAudio.
package speech

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported reports that a speech capability is absent in this
// environment (no Riva endpoint, no audio server, no device).
var ErrUnsupported = errors.New("speech is not supported in this environment")

// Unsupported wraps cause so errors.Is(err, ErrUnsupported) holds.
func Unsupported(cause error) error {
	if cause == nil {
		return ErrUnsupported
	}
	return fmt.Errorf("%w: %v", ErrUnsupported, cause)
}

// EventKind names an utterance lifecycle event.
type EventKind string

const (
	EventStart EventKind = "start"
	EventEnd   EventKind = "end"
	EventError EventKind = "error"
)

// Event is one utterance lifecycle notification.
type Event struct {
	Kind     EventKind
	Text     string
	Language string
	Voice    string
	Err      error
}

// Voice is one synthesis voice.
type Voice struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

// SelectVoice picks the voice whose language tag shares the longest
// subtag-aligned prefix with tag. The first voice wins ties.
func SelectVoice(voices []Voice, tag string) (Voice, bool) {
	want := splitTag(tag)
	if len(want) == 0 {
		return Voice{}, false
	}

	best := -1
	bestLen := 0
	for i, voice := range voices {
		n := sharedSubtags(want, splitTag(voice.Language))
		if n > bestLen {
			best, bestLen = i, n
		}
	}
	if best < 0 {
		return Voice{}, false
	}
	return voices[best], true
}

func splitTag(tag string) []string {
	tag = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(tag, "_", "-")))
	if tag == "" {
		return nil
	}
	return strings.Split(tag, "-")
}

func sharedSubtags(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
