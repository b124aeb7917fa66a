package domain

import (
	"context"
	"time"

	"github.com/samber/mo"
)

// PlayerHandle wraps one candidate player instance.
// Implementations delegate side effects to the concrete media engine.
// After the handle is released every command returns ErrInvalidState
// and queries report their last known values.
//
//go:generate mockgen -destination=mocks/player_handle_mock.go -package=mocks github.com/genricoloni/reelkeeper/internal/domain PlayerHandle
type PlayerHandle interface {
	// Start begins or resumes playback. It may return ErrNotReady
	Start() error

	// Pause suspends playback, keeping the engine prepared
	Pause() error

	// Stop halts playback and may release engine resources. Must be idempotent
	Stop() error

	// SeekTo moves playback to an absolute position
	SeekTo(position time.Duration) error

	// CurrentPosition returns the playback position, absent when unknown
	CurrentPosition() mo.Option[time.Duration]

	// Duration returns the media length, absent when unknown
	Duration() mo.Option[time.Duration]

	// IsPlaying reports whether the engine is currently playing
	IsPlaying() bool

	// SetVolume sets the volume in [0,1]
	SetVolume(volume float64) error

	// BufferPercentage returns the buffered share of the media (0-100)
	BufferPercentage() int

	// SetEventListener installs the single event listener, nil removes it.
	// Events may be delivered on any goroutine.
	SetEventListener(listener func(HandleEvent))
}

// Policy selects at most one winner among candidates.
// Implementations must be pure.
type Policy interface {
	SelectWinner(candidates []Candidate) mo.Option[Candidate]
}

// StateStore keeps saved progress per MediaID
type StateStore interface {
	Save(id MediaID, position mo.Option[time.Duration], duration time.Duration)
	Get(id MediaID) (PlaybackState, bool)
	Remove(id MediaID)
	Clear()
	All() []PlaybackState
	Len() int
}

// StatePersister stores PlaybackState snapshots across process restarts
type StatePersister interface {
	Load(ctx context.Context) ([]PlaybackState, error)
	Save(ctx context.Context, states []PlaybackState) error
	Close() error
}

// CandidateSource defines the container adapter feeding the manager
type CandidateSource interface {
	// Start begins watching the container.
	// It should block until context is cancelled or an error occurs
	Start(ctx context.Context) error

	// Stop gracefully stops the source and closes the events channel
	Stop(ctx context.Context) error

	// Events returns a read-only channel of container changes
	Events() <-chan ContainerEvent
}

// ErrorReporter receives playback errors the manager does not propagate
type ErrorReporter interface {
	Report(err *PlaybackError)
}

// ReleaseAction is applied to a player that loses the active slot
type ReleaseAction string

const (
	// ReleasePause keeps the engine prepared for a fast resume
	ReleasePause ReleaseAction = "pause"
	// ReleaseStop frees engine resources
	ReleaseStop ReleaseAction = "stop"
)

// Config defines the interface for application configuration
type Config interface {
	// GetReleaseAction returns what to do with a player losing arbitration
	GetReleaseAction() ReleaseAction

	// GetClearOnUnregister reports whether saved states are dropped on teardown
	GetClearOnUnregister() bool

	// GetStoreCapacity returns the saved state bound, 0 for unbounded
	GetStoreCapacity() int

	// GetMinScore returns the minimum visibility score to be eligible
	GetMinScore() float64

	// GetDebounce returns the window used to collapse candidate updates, negative disables it
	GetDebounce() time.Duration

	// GetCheckpointInterval returns how often active progress is saved, negative disables it
	GetCheckpointInterval() time.Duration

	// GetDBPath returns the path of the state database
	GetDBPath() string

	// GetPlayerPriority returns MPRIS player names, most preferred first
	GetPlayerPriority() []string
}
