// Package manager arbitrates playback so that at most one player runs at a
// time, and keeps resume positions for every media item it has played.
package manager

import (
	"errors"
	"sync"
	"time"

	"github.com/genricoloni/reelkeeper/internal/domain"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

// Status is the state of the active slot
type Status int

const (
	// StatusEmpty means no player is active
	StatusEmpty Status = iota
	// StatusActive means one player is playing or intentionally paused
	StatusActive
)

// String returns the status name.
func (s Status) String() string {
	if s == StatusActive {
		return "ACTIVE"
	}
	return "EMPTY"
}

// Options tunes the transitions
type Options struct {
	// ReleaseAction is applied to a player losing arbitration
	ReleaseAction domain.ReleaseAction
	// ClearOnUnregister drops every saved state on OnUnregistered
	ClearOnUnregister bool
}

// Dispatcher schedules fn on the goroutine that owns the manager
type Dispatcher func(fn func())

// slot is the single active player. It is only mutated by Manager transitions.
type slot struct {
	handle       domain.PlayerHandle
	mediaID      domain.MediaID
	generation   uint64
	lastPosition mo.Option[time.Duration]
	lastDuration time.Duration
	userPaused   bool
}

// refresh records the handle's current progress, keeping the previous
// values when the handle no longer reports them
func (s *slot) refresh() {
	if pos, ok := s.handle.CurrentPosition().Get(); ok {
		s.lastPosition = mo.Some(pos)
	}
	if d, ok := s.handle.Duration().Get(); ok {
		s.lastDuration = d
	}
}

// Manager is the playback state machine.
//
// Manager is not safe for concurrent use: every exported method must be
// called from a single goroutine (see engine.Engine). Handle events are
// funnelled back through the Dispatcher; without one they are queued and
// run at the end of the next exported call, or by DrainEvents.
type Manager struct {
	logger   *zap.Logger
	policy   domain.Policy
	store    domain.StateStore
	reporter domain.ErrorReporter
	opts     Options

	active     *slot
	generation uint64
	registered bool
	// benched identities are excluded from selection until they leave the
	// candidate set or are detached
	benched map[domain.MediaID]string

	mu       sync.Mutex // guards dispatch and queue
	dispatch Dispatcher
	queue    []func()
}

// New creates a manager. A nil reporter logs errors only.
func New(logger *zap.Logger, policy domain.Policy, store domain.StateStore, reporter domain.ErrorReporter, opts Options) *Manager {
	if reporter == nil {
		reporter = NewLogReporter(logger)
	}
	if opts.ReleaseAction == "" {
		opts.ReleaseAction = domain.ReleasePause
	}
	return &Manager{
		logger:   logger,
		policy:   policy,
		store:    store,
		reporter: reporter,
		opts:     opts,
		benched:  make(map[domain.MediaID]string),
	}
}

// NewFromConfig creates a manager using the application configuration
func NewFromConfig(logger *zap.Logger, cfg domain.Config, policy domain.Policy, store domain.StateStore, reporter domain.ErrorReporter) *Manager {
	return New(logger, policy, store, reporter, Options{
		ReleaseAction:     cfg.GetReleaseAction(),
		ClearOnUnregister: cfg.GetClearOnUnregister(),
	})
}

// SetDispatcher routes handle events through d instead of the internal queue
func (m *Manager) SetDispatcher(d Dispatcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatch = d
}

// OnRegistered marks the manager as attached to its container
func (m *Manager) OnRegistered() {
	defer m.drain()
	m.registered = true
	m.logger.Info("Manager registered", zap.Int("savedStates", m.store.Len()))
}

// OnUnregistered persists and stops the active player and, when configured,
// drops every saved state
func (m *Manager) OnUnregistered() {
	defer m.drain()
	if m.active != nil {
		m.persist()
		m.release(domain.ReleaseStop)
	}
	if m.opts.ClearOnUnregister {
		m.store.Clear()
	}
	m.benched = make(map[domain.MediaID]string)
	m.registered = false
	m.logger.Info("Manager unregistered", zap.Bool("cleared", m.opts.ClearOnUnregister))
}

// OnCandidatesChanged runs one arbitration pass and applies the resulting transition
func (m *Manager) OnCandidatesChanged(candidates []domain.Candidate) {
	defer m.drain()
	if !m.registered {
		m.logger.Debug("Ignoring candidates while unregistered", zap.Int("count", len(candidates)))
		return
	}

	m.pruneBench(candidates)
	eligible := lo.Reject(candidates, func(c domain.Candidate, _ int) bool {
		_, benched := m.benched[c.MediaID]
		return benched
	})

	winner, ok := m.policy.SelectWinner(eligible).Get()
	m.pauseStrays(candidates, winner.Handle)

	if !ok {
		if m.active != nil {
			m.logger.Info("No eligible candidate, releasing active player",
				zap.String("mediaID", string(m.active.mediaID)),
				zap.String("action", string(m.opts.ReleaseAction)))
			m.persist()
			m.release(m.opts.ReleaseAction)
		}
		return
	}

	if m.active != nil && m.active.mediaID == winner.MediaID && m.active.handle == winner.Handle {
		m.resumeIfIdle()
		return
	}

	m.swap(winner)
}

// OnCandidateDetached empties the slot immediately when id is active.
// The player is stopped and its progress saved.
func (m *Manager) OnCandidateDetached(id domain.MediaID) {
	defer m.drain()
	delete(m.benched, id)

	if m.active == nil || m.active.mediaID != id {
		return
	}
	m.logger.Info("Active candidate detached", zap.String("mediaID", string(id)))
	m.persist()
	m.release(domain.ReleaseStop)
}

// OnCandidateFinished completes id when it is active: its saved position is
// cleared so it restarts from zero. Otherwise it behaves like a detach.
func (m *Manager) OnCandidateFinished(id domain.MediaID) {
	defer m.drain()
	delete(m.benched, id)

	if m.active == nil || m.active.mediaID != id {
		return
	}
	m.active.refresh()
	m.complete()
}

// StartPlayback resumes the active player, clearing an explicit pause
func (m *Manager) StartPlayback() {
	defer m.drain()
	if m.active == nil {
		return
	}
	m.active.userPaused = false
	if err := m.active.handle.Start(); err != nil {
		if errors.Is(err, domain.ErrNotReady) {
			// Slot is kept; the next pass resumes it once the player is ready
			m.report(domain.CandidateUnready, m.active.mediaID, err)
			return
		}
		m.failActive(domain.EngineStartFailure, err)
	}
}

// PausePlayback pauses the active player. Arbitration will not restart it
// until StartPlayback is called or it loses the slot.
func (m *Manager) PausePlayback() {
	defer m.drain()
	if m.active == nil {
		return
	}
	m.persist()
	m.active.userPaused = true
	if err := m.active.handle.Pause(); err != nil {
		m.logHandleError("pause", m.active.mediaID, err)
	}
}

// StopPlayback saves progress, stops the active player and empties the slot
func (m *Manager) StopPlayback() {
	defer m.drain()
	if m.active == nil {
		return
	}
	m.persist()
	m.release(domain.ReleaseStop)
}

// SetVolume sets the volume of the active player
func (m *Manager) SetVolume(volume float64) {
	defer m.drain()
	if m.active == nil {
		return
	}
	if err := m.active.handle.SetVolume(volume); err != nil {
		m.logHandleError("set volume", m.active.mediaID, err)
	}
}

// Checkpoint saves the active player's progress without a transition
func (m *Manager) Checkpoint() {
	defer m.drain()
	if m.active != nil {
		m.persist()
	}
}

// DrainEvents runs queued handle events when no Dispatcher is set
func (m *Manager) DrainEvents() {
	m.drain()
}

// Active returns the MediaID of the active player
func (m *Manager) Active() (domain.MediaID, bool) {
	if m.active == nil {
		return "", false
	}
	return m.active.mediaID, true
}

// Status returns the slot state
func (m *Manager) Status() Status {
	if m.active == nil {
		return StatusEmpty
	}
	return StatusActive
}

// PlaybackState returns the saved state for id
func (m *Manager) PlaybackState(id domain.MediaID) (domain.PlaybackState, bool) {
	return m.store.Get(id)
}

// PlaybackStates returns every saved state, one per MediaID
func (m *Manager) PlaybackStates() []domain.PlaybackState {
	return m.store.All()
}

// RemovePlaybackState forgets id, typically after the item left the container for good
func (m *Manager) RemovePlaybackState(id domain.MediaID) {
	m.store.Remove(id)
}

// RestorePlaybackStates imports states saved by the host
func (m *Manager) RestorePlaybackStates(states []domain.PlaybackState) {
	for _, s := range states {
		m.store.Save(s.MediaID, s.Position, s.Duration)
	}
	m.logger.Info("Playback states restored", zap.Int("count", len(states)))
}

// swap moves the slot to winner: release the current player, restore the
// winner's saved position, then start it
func (m *Manager) swap(winner domain.Candidate) {
	if m.active != nil {
		m.logger.Info("Swapping active player",
			zap.String("from", string(m.active.mediaID)),
			zap.String("to", string(winner.MediaID)))
		m.persist()
		m.release(m.opts.ReleaseAction)
	}
	m.activate(winner)
}

func (m *Manager) activate(c domain.Candidate) {
	m.generation++
	gen := m.generation
	s := &slot{
		handle:       c.Handle,
		mediaID:      c.MediaID,
		generation:   gen,
		lastPosition: mo.None[time.Duration](),
	}

	if saved, ok := m.store.Get(c.MediaID); ok {
		s.lastDuration = saved.Duration
		if pos, ok := saved.Position.Get(); ok {
			if err := c.Handle.SeekTo(pos); err != nil {
				m.logHandleError("seek", c.MediaID, err)
			} else {
				s.lastPosition = mo.Some(pos)
			}
		}
	}

	// Listen before starting so early engine events are not lost; they are
	// queued and checked against the generation once the slot is set.
	c.Handle.SetEventListener(m.listener(gen, c.MediaID))

	if err := c.Handle.Start(); err != nil {
		c.Handle.SetEventListener(nil)
		m.startFailed(c, err)
		return
	}

	m.active = s
	m.logger.Info("Player started",
		zap.String("mediaID", string(c.MediaID)),
		zap.Uint64("generation", gen),
		zap.Duration("resumeAt", s.lastPosition.OrEmpty()))
}

func (m *Manager) startFailed(c domain.Candidate, err error) {
	if errors.Is(err, domain.ErrNotReady) {
		m.report(domain.CandidateUnready, c.MediaID, err)
		return
	}

	kind := domain.EngineStartFailure
	if errors.Is(err, domain.ErrInvalidState) {
		kind = domain.InvalidState
	}
	if stopErr := c.Handle.Stop(); stopErr != nil {
		m.logHandleError("stop", c.MediaID, stopErr)
	}
	m.benched[c.MediaID] = kind.String()
	m.report(kind, c.MediaID, err)
}

// resumeIfIdle restarts the active player when the policy keeps it but it stopped playing
func (m *Manager) resumeIfIdle() {
	if m.active.userPaused || m.active.handle.IsPlaying() {
		return
	}
	m.logger.Debug("Resuming active player", zap.String("mediaID", string(m.active.mediaID)))
	if err := m.active.handle.Start(); err != nil {
		if errors.Is(err, domain.ErrNotReady) {
			m.report(domain.CandidateUnready, m.active.mediaID, err)
			return
		}
		m.failActive(domain.EngineStartFailure, err)
	}
}

// pauseStrays pauses any candidate that plays without owning the slot
func (m *Manager) pauseStrays(candidates []domain.Candidate, keep domain.PlayerHandle) {
	for _, c := range candidates {
		if c.Handle == nil || c.Handle == keep {
			continue
		}
		if m.active != nil && c.Handle == m.active.handle {
			continue
		}
		if c.Handle.IsPlaying() {
			m.logger.Info("Pausing player outside the active slot", zap.String("mediaID", string(c.MediaID)))
			if err := c.Handle.Pause(); err != nil {
				m.logHandleError("pause", c.MediaID, err)
			}
		}
	}
}

// failActive persists, stops and benches the active player, then reports err
func (m *Manager) failActive(kind domain.ErrorKind, err error) {
	id := m.active.mediaID
	m.persist()
	m.release(domain.ReleaseStop)
	m.benched[id] = kind.String()
	m.report(kind, id, err)
}

// persist saves the active player's progress
func (m *Manager) persist() {
	m.active.refresh()
	m.store.Save(m.active.mediaID, m.active.lastPosition, m.active.lastDuration)
	m.logger.Debug("Playback state saved",
		zap.String("mediaID", string(m.active.mediaID)),
		zap.Duration("position", m.active.lastPosition.OrEmpty()),
		zap.Duration("duration", m.active.lastDuration))
}

// release empties the slot in the same step that pauses or stops its player
func (m *Manager) release(action domain.ReleaseAction) {
	s := m.active
	m.active = nil
	s.handle.SetEventListener(nil)

	var err error
	if action == domain.ReleaseStop {
		err = s.handle.Stop()
	} else {
		err = s.handle.Pause()
	}
	if err != nil {
		m.logHandleError(string(action), s.mediaID, err)
	}
}

func (m *Manager) pruneBench(candidates []domain.Candidate) {
	if len(m.benched) == 0 {
		return
	}
	present := lo.SliceToMap(candidates, func(c domain.Candidate) (domain.MediaID, struct{}) {
		return c.MediaID, struct{}{}
	})
	for id := range m.benched {
		if _, ok := present[id]; !ok {
			delete(m.benched, id)
		}
	}
}

func (m *Manager) report(kind domain.ErrorKind, id domain.MediaID, err error) {
	m.reporter.Report(&domain.PlaybackError{Kind: kind, MediaID: id, Err: err})
}

func (m *Manager) logHandleError(op string, id domain.MediaID, err error) {
	if errors.Is(err, domain.ErrInvalidState) {
		m.logger.Debug("Operation on released handle ignored",
			zap.String("op", op),
			zap.String("mediaID", string(id)))
		return
	}
	m.logger.Warn("Player operation failed",
		zap.String("op", op),
		zap.String("mediaID", string(id)),
		zap.Error(err))
}
