package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned by a released or disposed handle
	ErrInvalidState = errors.New("player handle released")

	// ErrNotReady is returned by Start when the player cannot play yet
	ErrNotReady = errors.New("player not ready")
)

// ErrorKind categorizes playback failures
type ErrorKind int

const (
	// CandidateUnready means the winner could not start yet; re-evaluated next pass
	CandidateUnready ErrorKind = iota
	// EngineStartFailure means Start failed; the candidate is excluded from selection
	EngineStartFailure
	// InvalidState means an operation hit a released handle
	InvalidState
	// StaleCallback means an event arrived from a superseded handle
	StaleCallback
	// EngineFailure means the active engine reported an asynchronous error
	EngineFailure
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case CandidateUnready:
		return "CandidateUnready"
	case EngineStartFailure:
		return "EngineStartFailure"
	case InvalidState:
		return "InvalidState"
	case StaleCallback:
		return "StaleCallback"
	case EngineFailure:
		return "EngineFailure"
	default:
		return "Unknown"
	}
}

// PlaybackError is reported for a single media item
type PlaybackError struct {
	Kind    ErrorKind
	MediaID MediaID
	Err     error
}

func (e *PlaybackError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.MediaID)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.MediaID, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}
