package listen

import (
	"context"
	"errors"

	"github.com/rbright/voxlate/internal/speech"
)

// ErrEmptyTranscript reports a stop that recognized no usable speech.
var ErrEmptyTranscript = errors.New("no speech recognized; check microphone input or mute state")

// Recognizer is the capture and recognition surface the controller drives.
type Recognizer interface {
	Start(context.Context) error
	StopAndTranscribe(context.Context) (speech.StopResult, error)
	Cancel(context.Context) error
}

// unsupportedRecognizer stands in when no recognizer is wired.
type unsupportedRecognizer struct{}

func (unsupportedRecognizer) Start(context.Context) error {
	return speech.ErrUnsupported
}

func (unsupportedRecognizer) StopAndTranscribe(context.Context) (speech.StopResult, error) {
	return speech.StopResult{}, speech.ErrUnsupported
}

func (unsupportedRecognizer) Cancel(context.Context) error {
	return nil
}

// Committer receives the transcript of a listening session that stopped
// cleanly: the session feeds it to the coordinator, one-shot listen
// translates it.
type Committer interface {
	Commit(context.Context, string) error
}

// CommitFunc adapts a function to Committer.
type CommitFunc func(context.Context, string) error

func (f CommitFunc) Commit(ctx context.Context, transcript string) error {
	return f(ctx, transcript)
}
