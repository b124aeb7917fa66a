package manager

import (
	"time"

	"github.com/genricoloni/reelkeeper/internal/domain"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

// listener returns the callback installed on the handle owning generation gen
func (m *Manager) listener(gen uint64, id domain.MediaID) func(domain.HandleEvent) {
	return func(ev domain.HandleEvent) {
		m.post(func() { m.onHandleEvent(gen, id, ev) })
	}
}

// post hands fn to the owning goroutine. Safe to call from any goroutine.
func (m *Manager) post(fn func()) {
	m.mu.Lock()
	d := m.dispatch
	if d == nil {
		m.queue = append(m.queue, fn)
	}
	m.mu.Unlock()

	if d != nil {
		d(fn)
	}
}

// drain runs queued events, including the ones they enqueue
func (m *Manager) drain() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		fn()
	}
}

// onHandleEvent applies an engine event. Events from any handle other than
// the current slot generation are stale and dropped.
func (m *Manager) onHandleEvent(gen uint64, id domain.MediaID, ev domain.HandleEvent) {
	if m.active == nil || m.active.generation != gen {
		m.logger.Debug("Ignoring stale handle event",
			zap.String("kind", domain.StaleCallback.String()),
			zap.String("mediaID", string(id)),
			zap.Uint64("generation", gen))
		return
	}

	switch ev.Kind {
	case domain.EventStateChanged:
		m.active.refresh()
		if ev.State == domain.EngineEnded {
			m.complete()
		}

	case domain.EventPositionDiscontinuity:
		m.active.refresh()

	case domain.EventError:
		m.logger.Warn("Active player reported an error",
			zap.String("mediaID", string(id)),
			zap.Error(ev.Err))
		m.failActive(domain.EngineFailure, ev.Err)
	}
}

// complete releases a player that reached the end of its media. The saved
// position is cleared so the item restarts from zero, and the item is
// benched so it does not replay while it stays in the candidate set.
func (m *Manager) complete() {
	s := m.active
	m.logger.Info("Playback completed", zap.String("mediaID", string(s.mediaID)))
	m.store.Save(s.mediaID, mo.None[time.Duration](), s.lastDuration)
	m.release(domain.ReleaseStop)
	m.benched[s.mediaID] = "completed"
}
