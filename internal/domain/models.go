package domain

import (
	"time"

	"github.com/samber/mo"
)

// MediaID identifies one playable item independently of the player or slot
// currently showing it. It must stay stable across attach/detach cycles.
type MediaID string

// EngineState is the playback state reported by a media engine
type EngineState int

const (
	// EngineIdle indicates no media is prepared
	EngineIdle EngineState = iota
	// EngineBuffering indicates the engine is waiting for data
	EngineBuffering
	// EngineReady indicates the engine can play immediately
	EngineReady
	// EngineEnded indicates playback reached the end of the media
	EngineEnded
)

// String returns a human-readable label for the engine state.
func (s EngineState) String() string {
	switch s {
	case EngineIdle:
		return "Idle"
	case EngineBuffering:
		return "Buffering"
	case EngineReady:
		return "Ready"
	case EngineEnded:
		return "Ended"
	default:
		return "Unknown"
	}
}

// PlaybackState is the saved progress of one media item
type PlaybackState struct {
	MediaID MediaID
	// Position is absent when the media was unseekable or finished
	Position mo.Option[time.Duration]
	Duration time.Duration
}

// Candidate is a player eligible for one arbitration pass.
// Candidates are ephemeral and never retained after the pass.
type Candidate struct {
	Handle  PlayerHandle
	MediaID MediaID
	// Score is the normalized visibility in [0,1]
	Score float64
	// Order is the candidate's position in its container, lower first
	Order int
	// Ready reports whether the player is attached and capable of playback
	Ready bool
}

// HandleEventKind discriminates HandleEvent
type HandleEventKind int

const (
	// EventStateChanged carries Playing and State
	EventStateChanged HandleEventKind = iota
	// EventError carries Err
	EventError
	// EventPositionDiscontinuity signals a seek or timeline jump
	EventPositionDiscontinuity
)

// HandleEvent is emitted by a PlayerHandle to its listener
type HandleEvent struct {
	Kind    HandleEventKind
	Playing bool
	State   EngineState
	Err     error
}

// ContainerEventKind discriminates ContainerEvent
type ContainerEventKind int

const (
	// ContainerCandidatesChanged carries a full candidate snapshot
	ContainerCandidatesChanged ContainerEventKind = iota
	// ContainerCandidateDetached carries the MediaID of a detached candidate
	ContainerCandidateDetached
	// ContainerCandidateFinished carries the MediaID of a candidate that played
	// to its end and was replaced by the next item
	ContainerCandidateFinished
)

// ContainerEvent is emitted by a CandidateSource
type ContainerEvent struct {
	Kind       ContainerEventKind
	Candidates []Candidate
	MediaID    MediaID
}
