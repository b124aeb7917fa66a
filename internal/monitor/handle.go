package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/genricoloni/reelkeeper/internal/domain"
	"github.com/godbus/dbus/v5"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

const noTrack = dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack")

// MPRIS PlaybackStatus values
const (
	statusPlaying = "Playing"
	statusPaused  = "Paused"
	statusStopped = "Stopped"
)

// track is the part of MPRIS metadata a handle needs
type track struct {
	mediaID domain.MediaID
	trackID dbus.ObjectPath
	length  mo.Option[time.Duration]
	title   string
}

// MprisHandle drives one MPRIS player for one track.
// A track change on the player produces a new handle; the old one is released.
type MprisHandle struct {
	logger  *zap.Logger
	conn    DBusClient
	busName string
	track   track

	mu            sync.Mutex
	status        string
	canPlay       bool
	lastPosition  mo.Option[time.Duration]
	stopRequested bool
	released      bool
	listener      func(domain.HandleEvent)
}

func newMprisHandle(logger *zap.Logger, conn DBusClient, busName string, t track, status string, canPlay bool) *MprisHandle {
	return &MprisHandle{
		logger:       logger.With(zap.String("player", busName), zap.String("mediaID", string(t.mediaID))),
		conn:         conn,
		busName:      busName,
		track:        t,
		status:       status,
		canPlay:      canPlay,
		lastPosition: mo.None[time.Duration](),
	}
}

// MediaID returns the identity of the track this handle plays
func (h *MprisHandle) MediaID() domain.MediaID {
	return h.track.mediaID
}

// Ready reports whether the player can be started
func (h *MprisHandle) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.released && h.canPlay && h.track.mediaID != ""
}

// Start sends Play
func (h *MprisHandle) Start() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return domain.ErrInvalidState
	}
	if !h.canPlay {
		h.mu.Unlock()
		return fmt.Errorf("%s reports CanPlay=false: %w", h.busName, domain.ErrNotReady)
	}
	h.stopRequested = false
	h.mu.Unlock()

	return h.command("Play", statusPlaying)
}

// Pause sends Pause
func (h *MprisHandle) Pause() error {
	if err := h.guard(); err != nil {
		return err
	}
	return h.command("Pause", statusPaused)
}

// Stop sends Stop. MPRIS Stop is itself idempotent.
func (h *MprisHandle) Stop() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return domain.ErrInvalidState
	}
	h.stopRequested = true
	h.mu.Unlock()

	return h.command("Stop", statusStopped)
}

// SeekTo moves to an absolute position with SetPosition, or with a relative
// Seek when the player exposes no track id
func (h *MprisHandle) SeekTo(position time.Duration) error {
	if err := h.guard(); err != nil {
		return err
	}

	var err error
	if h.track.trackID != "" && h.track.trackID != noTrack {
		err = h.call("SetPosition", h.track.trackID, position.Microseconds())
	} else {
		current := h.CurrentPosition().OrEmpty()
		err = h.call("Seek", (position - current).Microseconds())
	}
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.lastPosition = mo.Some(position)
	h.mu.Unlock()
	return nil
}

// CurrentPosition reads the Position property, falling back to the last
// value read once the player stops answering
func (h *MprisHandle) CurrentPosition() mo.Option[time.Duration] {
	h.mu.Lock()
	if h.released {
		defer h.mu.Unlock()
		return h.lastPosition
	}
	h.mu.Unlock()

	variant, err := h.conn.GetProperty(h.busName, mprisPath, playerInterface+".Position")
	if err != nil {
		h.logger.Debug("Position unavailable", zap.Error(err))
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.lastPosition
	}

	us, ok := toInt64(variant.Value())
	if !ok || us < 0 {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.lastPosition
	}

	pos := time.Duration(us) * time.Microsecond
	h.mu.Lock()
	h.lastPosition = mo.Some(pos)
	h.mu.Unlock()
	return mo.Some(pos)
}

// Duration returns mpris:length of the current track
func (h *MprisHandle) Duration() mo.Option[time.Duration] {
	return h.track.length
}

// IsPlaying reports whether the last known PlaybackStatus is Playing
func (h *MprisHandle) IsPlaying() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.released && h.status == statusPlaying
}

// SetVolume writes the Volume property, clamped to [0,1]
func (h *MprisHandle) SetVolume(volume float64) error {
	if err := h.guard(); err != nil {
		return err
	}
	if err := h.conn.SetProperty(h.busName, mprisPath, playerInterface+".Volume", lo.Clamp(volume, 0, 1)); err != nil {
		return fmt.Errorf("%s set volume: %w", h.busName, err)
	}
	return nil
}

// BufferPercentage is not exposed by MPRIS. A playable player counts as fully buffered.
func (h *MprisHandle) BufferPercentage() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.canPlay {
		return 100
	}
	return 0
}

// SetEventListener installs the listener, nil removes it
func (h *MprisHandle) SetEventListener(listener func(domain.HandleEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released && listener != nil {
		return
	}
	h.listener = listener
}

// applyStatus records a PlaybackStatus change and notifies the listener.
// A player stopping on its own after playing is reported as ended.
// It reports whether the player started playing with no listener, that is
// outside the active slot.
func (h *MprisHandle) applyStatus(status string) (stray bool) {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return false
	}
	prev := h.status
	h.status = status
	stray = status == statusPlaying && prev != statusPlaying && h.listener == nil

	ev := domain.HandleEvent{Kind: domain.EventStateChanged}
	switch status {
	case statusPlaying:
		ev.Playing = true
		ev.State = domain.EngineReady
	case statusPaused:
		ev.State = domain.EngineReady
	default:
		ev.State = domain.EngineIdle
		if prev == statusPlaying && !h.stopRequested {
			ev.State = domain.EngineEnded
		}
	}
	h.mu.Unlock()

	h.emit(ev)
	return stray
}

// applySeeked records a jump reported by the player
func (h *MprisHandle) applySeeked(position time.Duration) {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.lastPosition = mo.Some(position)
	h.mu.Unlock()

	h.emit(domain.HandleEvent{Kind: domain.EventPositionDiscontinuity})
}

// setCanPlay updates CanPlay and reports whether it changed
func (h *MprisHandle) setCanPlay(canPlay bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	changed := h.canPlay != canPlay
	h.canPlay = canPlay
	return changed
}

// release detaches the handle from its player. Later commands fail with ErrInvalidState.
func (h *MprisHandle) release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released = true
	h.listener = nil
}

func (h *MprisHandle) emit(ev domain.HandleEvent) {
	h.mu.Lock()
	l := h.listener
	h.mu.Unlock()
	if l != nil {
		l(ev)
	}
}

func (h *MprisHandle) guard() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return domain.ErrInvalidState
	}
	return nil
}

// command calls method and records the status it leads to, so IsPlaying is
// right before the PropertiesChanged signal arrives
func (h *MprisHandle) command(method, status string) error {
	if err := h.call(method); err != nil {
		return err
	}
	h.mu.Lock()
	h.status = status
	h.mu.Unlock()
	return nil
}

func (h *MprisHandle) call(method string, args ...any) error {
	if err := h.conn.CallMethod(h.busName, mprisPath, playerInterface+"."+method, args...); err != nil {
		return fmt.Errorf("%s %s: %w", h.busName, method, err)
	}
	return nil
}

// toInt64 accepts the integer types players use for Position and mpris:length
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
