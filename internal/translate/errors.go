package translate

import (
	"errors"
	"fmt"
)

// Kind classifies translation failures.
type Kind string

const (
	KindUnsupportedPair    Kind = "unsupported_language_pair"
	KindServiceUnavailable Kind = "service_unavailable"
	KindRateLimited        Kind = "rate_limit_exceeded"
	KindTimeout            Kind = "timeout"
	KindConnectivity       Kind = "connectivity_failure"
	KindGeneric            Kind = "translation_failure"
)

// Error is a classified translation failure.
type Error struct {
	Kind       Kind
	Source     string
	Target     string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnsupportedPair:
		return fmt.Sprintf("translation from %s to %s is not supported", e.Source, e.Target)
	case KindServiceUnavailable:
		return fmt.Sprintf("translation service unavailable (status %d)", e.StatusCode)
	case KindRateLimited:
		return "translation daily limit reached; try again later"
	case KindTimeout:
		return "translation request timed out"
	case KindConnectivity:
		if e.Err != nil {
			return fmt.Sprintf("cannot reach translation service: %v", e.Err)
		}
		return "cannot reach translation service"
	}
	if e.Message != "" {
		return "translation failed: " + e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("translation failed: %v", e.Err)
	}
	return "translation failed"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a translation Error of kind.
func IsKind(err error, kind Kind) bool {
	var terr *Error
	return errors.As(err, &terr) && terr.Kind == kind
}

// KindOf returns the Kind of err, or "" when err is not a translation Error.
func KindOf(err error) Kind {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Kind
	}
	return ""
}
