//go:build linux

package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/reelkeeper/internal/domain"
	"github.com/godbus/dbus/v5"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

// Unlisted players score this; listed ones score from 1.0 down towards it
const defaultScore = 0.5

// player is one MPRIS bus name and the handle for its current track
type player struct {
	name   string
	handle *MprisHandle
	order  int
}

// MprisMonitor turns the MPRIS players on the session bus into candidate
// sets for the manager. Each player is one candidate, identified by the
// track it has loaded.
type MprisMonitor struct {
	logger  *zap.Logger
	events  chan domain.ContainerEvent
	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	conn    DBusClient                 // Interface for testability
	dial    func() (DBusClient, error) // Opens conn in Start

	lastDropWarning time.Time      // Rate limiting for "channel full" warnings
	wg              sync.WaitGroup // Tracks active producer goroutines

	// Maps unique bus names (:1.45) to well-known names (org.mpris.MediaPlayer2.spotify)
	playerNames map[string]string
	players     map[string]*player // Keyed by well-known name
	nextOrder   int
	priority    []string
}

// NewMprisMonitor creates a new MPRIS monitor instance
func NewMprisMonitor(logger *zap.Logger, cfg domain.Config) *MprisMonitor {
	return &MprisMonitor{
		logger: logger,
		events: make(chan domain.ContainerEvent, 10),
		dial: func() (DBusClient, error) {
			return NewStdDBusClient()
		},
		playerNames: make(map[string]string),
		players:     make(map[string]*player),
		priority:    cfg.GetPlayerPriority(),
	}
}

// Start connects to the session bus and blocks emitting candidate events
// until ctx is cancelled or Stop is called
func (m *MprisMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true

	monitorCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.logger.Info("MPRIS monitor started")

	// Connect to Session Bus (this may block)
	conn, err := m.dial()
	if err != nil {
		m.logger.Error("Failed to connect to session bus", zap.Error(err))
		// Reset running state on failure
		m.mu.Lock()
		defer m.mu.Unlock()
		m.running = false
		m.cancel = nil
		return fmt.Errorf("session bus connection failed: %w", err)
	}

	// Check if we were stopped while connecting to D-Bus
	select {
	case <-monitorCtx.Done():
		m.logger.Info("Monitor stopped during D-Bus connection")
		if err := conn.Close(); err != nil {
			m.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
		}
		return monitorCtx.Err()
	default:
	}

	// Protect connection assignment with mutex to avoid race with Stop()
	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	// Subscribe before the initial scan so no change falls in between
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		m.logger.Error("Failed to add match signal", zap.Error(err))
		return fmt.Errorf("failed to add match signal: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface(playerInterface),
		dbus.WithMatchMember("Seeked"),
	); err != nil {
		m.logger.Warn("Failed to add Seeked match signal", zap.Error(err))
	}

	// Add match rule for NameOwnerChanged to track new/removed players dynamically
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		m.logger.Warn("Failed to add NameOwnerChanged match signal", zap.Error(err))
		// Non-fatal, continue without dynamic tracking
	} else {
		m.logger.Info("Dynamic player tracking enabled via NameOwnerChanged")
	}

	signals := make(chan *dbus.Signal, 32)
	conn.Signal(signals)

	// Protect initial player detection with WaitGroup
	// This prevents race condition if Stop() is called during detection
	m.wg.Add(1)
	func() {
		defer m.wg.Done()
		if err := m.detectExistingPlayers(monitorCtx); err != nil {
			m.logger.Warn("Failed to detect existing players", zap.Error(err))
		}
	}()

	// Start signal monitoring goroutine
	m.wg.Add(1)
	go m.monitorSignals(monitorCtx, signals)

	// Block until context is cancelled
	<-monitorCtx.Done()

	m.logger.Info("MPRIS monitor stopped")
	return monitorCtx.Err()
}

// Stop gracefully stops the monitor and releases every handle
func (m *MprisMonitor) Stop(ctx context.Context) error {
	m.mu.Lock()

	if !m.running {
		m.mu.Unlock()
		return nil
	}

	if m.cancel != nil {
		m.cancel()
	}

	m.running = false
	m.mu.Unlock()

	// Wait for all producer goroutines to terminate before closing channel
	// This prevents "send on closed channel" panic
	m.logger.Debug("Waiting for monitoring goroutines to finish")
	m.wg.Wait()

	// Now safe to close the channel
	close(m.events)

	m.mu.Lock()
	for _, p := range m.players {
		p.handle.release()
	}
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
		}
	}
	m.mu.Unlock()

	m.logger.Info("MPRIS monitor shutdown complete")
	return nil
}

// Events returns a read-only channel of candidate changes
func (m *MprisMonitor) Events() <-chan domain.ContainerEvent {
	return m.events
}

// detectExistingPlayers queries D-Bus for currently running MPRIS players
// and emits one candidate set for all of them
func (m *MprisMonitor) detectExistingPlayers(ctx context.Context) error {
	names, err := m.conn.ListNames()
	if err != nil {
		return fmt.Errorf("failed to list bus names: %w", err)
	}

	// Filter for MPRIS player names (org.mpris.MediaPlayer2.*)
	mpris := lo.Filter(names, func(name string, _ int) bool {
		return strings.HasPrefix(name, mprisPrefix)
	})
	sort.Strings(mpris)

	for _, name := range mpris {
		m.logger.Info("Detected MPRIS player", zap.String("name", name))

		// Get the unique bus name for this well-known name
		if uniqueName, err := m.conn.GetNameOwner(name); err == nil {
			m.mu.Lock()
			m.playerNames[uniqueName] = name
			m.mu.Unlock()
			m.logger.Debug("Mapped player name",
				zap.String("unique", uniqueName),
				zap.String("wellKnown", name))
		}

		if err := m.addPlayer(name); err != nil {
			m.logger.Warn("Failed to read player state",
				zap.String("player", name),
				zap.Error(err))
		}
	}

	m.logger.Info("Player detection complete", zap.Int("count", len(mpris)))
	m.emitCandidates(ctx)
	return nil
}

// addPlayer reads a player's track, status and CanPlay and starts tracking it
func (m *MprisMonitor) addPlayer(name string) error {
	metaVariant, err := m.conn.GetProperty(name, mprisPath, playerInterface+".Metadata")
	if err != nil {
		return fmt.Errorf("failed to get metadata: %w", err)
	}

	// SAFE CAST: Some players return nil or unexpected types when nothing is loaded
	metadata, ok := metaVariant.Value().(map[string]dbus.Variant)
	if !ok {
		m.logger.Debug("Metadata variant is not a map, treating as no track", zap.String("player", name))
	}
	t := m.parseTrack(metadata)

	status := statusStopped
	if v, err := m.conn.GetProperty(name, mprisPath, playerInterface+".PlaybackStatus"); err == nil {
		if s, ok := v.Value().(string); ok {
			status = s
		}
	}

	canPlay := false
	if v, err := m.conn.GetProperty(name, mprisPath, playerInterface+".CanPlay"); err == nil {
		canPlay, _ = v.Value().(bool)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.players[name]; ok {
		old.handle.release()
	}
	m.players[name] = &player{
		name:   name,
		handle: newMprisHandle(m.logger, m.conn, name, t, status, canPlay),
		order:  m.nextOrder,
	}
	m.nextOrder++

	m.logger.Debug("Tracking player",
		zap.String("player", name),
		zap.String("mediaID", string(t.mediaID)),
		zap.String("title", t.title),
		zap.String("status", status),
		zap.Bool("canPlay", canPlay))
	return nil
}

// removePlayer stops tracking name, detaching its current track
func (m *MprisMonitor) removePlayer(ctx context.Context, name string) {
	m.mu.Lock()
	p, ok := m.players[name]
	if ok {
		delete(m.players, name)
		p.handle.release()
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	if id := p.handle.MediaID(); id != "" {
		m.emit(ctx, domain.ContainerEvent{Kind: domain.ContainerCandidateDetached, MediaID: id})
	}
	m.emitCandidates(ctx)
}

// monitorSignals listens for D-Bus signals and processes them
func (m *MprisMonitor) monitorSignals(ctx context.Context, signals <-chan *dbus.Signal) {
	defer m.wg.Done() // Signal completion when goroutine exits

	m.logger.Info("Signal monitoring goroutine started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Signal monitoring goroutine stopped")
			return
		case sig, ok := <-signals:
			if !ok {
				m.logger.Warn("D-Bus signal channel closed")
				return
			}
			if sig == nil {
				continue
			}
			// Handle different signal types
			switch sig.Name {
			case "org.freedesktop.DBus.NameOwnerChanged":
				m.handleNameOwnerChanged(ctx, sig)
			case playerInterface + ".Seeked":
				m.handleSeeked(sig)
			default:
				m.handleSignal(ctx, sig)
			}
		}
	}
}

// handleNameOwnerChanged processes NameOwnerChanged signals to track player lifecycle
func (m *MprisMonitor) handleNameOwnerChanged(ctx context.Context, sig *dbus.Signal) {
	if len(sig.Body) < 3 {
		return
	}

	name, ok := sig.Body[0].(string)
	if !ok || !strings.HasPrefix(name, mprisPrefix) {
		return // Not an MPRIS player
	}

	oldOwner, _ := sig.Body[1].(string)
	newOwner, _ := sig.Body[2].(string)

	switch {
	case newOwner != "" && oldOwner == "":
		// New player appeared
		m.mu.Lock()
		m.playerNames[newOwner] = name
		m.mu.Unlock()

		m.logger.Info("New MPRIS player detected",
			zap.String("player", name),
			zap.String("unique", newOwner))

		if err := m.addPlayer(name); err != nil {
			m.logger.Warn("Failed to read new player state",
				zap.String("player", name),
				zap.Error(err))
			return
		}
		m.emitCandidates(ctx)

	case newOwner == "" && oldOwner != "":
		// Player disappeared
		m.mu.Lock()
		delete(m.playerNames, oldOwner)
		m.mu.Unlock()

		m.logger.Info("MPRIS player removed",
			zap.String("player", name),
			zap.String("unique", oldOwner))
		m.removePlayer(ctx, name)

	case newOwner != "" && oldOwner != "":
		// Ownership transfer (rare), the player object is the same
		m.mu.Lock()
		delete(m.playerNames, oldOwner)
		m.playerNames[newOwner] = name
		m.mu.Unlock()

		m.logger.Debug("MPRIS player ownership changed",
			zap.String("player", name),
			zap.String("oldUnique", oldOwner),
			zap.String("newUnique", newOwner))
	}
}

// handleSignal processes a PropertiesChanged signal from a player
func (m *MprisMonitor) handleSignal(ctx context.Context, sig *dbus.Signal) {
	// PropertiesChanged signal has 3 arguments:
	// 1. Interface name (string)
	// 2. Changed properties (map[string]Variant)
	// 3. Invalidated properties ([]string)

	if sig.Name != "org.freedesktop.DBus.Properties.PropertiesChanged" {
		return
	}

	if len(sig.Body) < 2 {
		return
	}

	interfaceName, ok := sig.Body[0].(string)
	if !ok || interfaceName != playerInterface {
		return
	}

	changedProps, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	playerName := m.getPlayerName(sig.Sender)

	m.logger.Debug("Received PropertiesChanged signal",
		zap.String("sender", sig.Sender),
		zap.String("player", playerName),
		zap.Int("properties", len(changedProps)))

	p, ok := m.lookup(playerName)
	if !ok {
		m.logger.Debug("Signal from untracked player, ignoring", zap.String("player", playerName))
		return
	}

	changed := false

	if v, ok := changedProps["Metadata"]; ok {
		metadata, ok := v.Value().(map[string]dbus.Variant)
		if !ok {
			m.logger.Warn("Invalid metadata format in signal, ignoring")
			return
		}
		if m.changeTrack(ctx, p, m.parseTrack(metadata)) {
			changed = true
			p, _ = m.lookup(playerName)
		}
	}

	if v, ok := changedProps["CanPlay"]; ok {
		if canPlay, ok := v.Value().(bool); ok && p.handle.setCanPlay(canPlay) {
			changed = true
		}
	}

	if v, ok := changedProps["PlaybackStatus"]; ok {
		status, ok := v.Value().(string)
		if !ok {
			m.logger.Warn("Invalid playback status format in signal, ignoring")
		} else {
			m.logger.Info("Playback status changed",
				zap.String("player", playerName),
				zap.String("status", status))
			if p.handle.applyStatus(status) {
				// Arbitrate so a player outside the slot is paused again
				changed = true
			}
		}
	}

	if changed {
		m.emitCandidates(ctx)
	}
}

// changeTrack swaps the player's handle when the loaded track has a new
// identity. The old identity is detached, or finished when the player
// advanced on its own while playing.
func (m *MprisMonitor) changeTrack(ctx context.Context, p *player, t track) bool {
	old := p.handle
	if t.mediaID == old.MediaID() {
		return false
	}

	old.mu.Lock()
	status, canPlay := old.status, old.canPlay
	finished := status == statusPlaying && !old.stopRequested
	old.mu.Unlock()

	m.mu.Lock()
	old.release()
	m.players[p.name] = &player{
		name:   p.name,
		handle: newMprisHandle(m.logger, m.conn, p.name, t, status, canPlay),
		order:  p.order,
	}
	m.mu.Unlock()

	m.logger.Info("Track changed",
		zap.String("player", p.name),
		zap.String("from", string(old.MediaID())),
		zap.String("to", string(t.mediaID)),
		zap.String("title", t.title),
		zap.Bool("finished", finished))

	if id := old.MediaID(); id != "" {
		kind := domain.ContainerCandidateDetached
		if finished {
			kind = domain.ContainerCandidateFinished
		}
		m.emit(ctx, domain.ContainerEvent{Kind: kind, MediaID: id})
	}
	return true
}

// handleSeeked forwards a Seeked signal (position in microseconds) to the handle
func (m *MprisMonitor) handleSeeked(sig *dbus.Signal) {
	if len(sig.Body) < 1 {
		return
	}
	us, ok := toInt64(sig.Body[0])
	if !ok {
		return
	}
	p, ok := m.lookup(m.getPlayerName(sig.Sender))
	if !ok {
		return
	}
	p.handle.applySeeked(time.Duration(us) * time.Microsecond)
}

// parseTrack extracts identity and length from MPRIS metadata.
// The identity is xesam:url, or mpris:trackid when no url is published.
func (m *MprisMonitor) parseTrack(metadata map[string]dbus.Variant) track {
	t := track{length: mo.None[time.Duration]()}
	if metadata == nil {
		return t
	}

	if v, ok := metadata["mpris:trackid"]; ok {
		switch id := v.Value().(type) {
		case dbus.ObjectPath:
			t.trackID = id
		case string:
			// Some non-compliant players send a plain string
			t.trackID = dbus.ObjectPath(id)
		}
	}

	if v, ok := metadata["xesam:url"]; ok {
		if url, ok := v.Value().(string); ok && url != "" {
			t.mediaID = domain.MediaID(url)
		}
	}
	if t.mediaID == "" && t.trackID != "" && t.trackID != noTrack {
		t.mediaID = domain.MediaID(t.trackID)
	}

	if v, ok := metadata["mpris:length"]; ok {
		if us, ok := toInt64(v.Value()); ok && us > 0 {
			t.length = mo.Some(time.Duration(us) * time.Microsecond)
		} else {
			m.logger.Debug("Unexpected mpris:length in metadata",
				zap.String("type", fmt.Sprintf("%T", v.Value())))
		}
	}

	if v, ok := metadata["xesam:title"]; ok {
		if title, ok := v.Value().(string); ok {
			t.title = title
		}
	}

	return t
}

// candidates snapshots the tracked players in appearance order.
// Players without a track are left out; a track loaded in two players
// belongs to the one that appeared first.
func (m *MprisMonitor) candidates() []domain.Candidate {
	m.mu.RLock()
	players := lo.Values(m.players)
	m.mu.RUnlock()

	sort.Slice(players, func(i, j int) bool { return players[i].order < players[j].order })

	withTrack := lo.Filter(players, func(p *player, _ int) bool {
		return p.handle.MediaID() != ""
	})
	unique := lo.UniqBy(withTrack, func(p *player) domain.MediaID {
		return p.handle.MediaID()
	})

	return lo.Map(unique, func(p *player, _ int) domain.Candidate {
		return domain.Candidate{
			Handle:  p.handle,
			MediaID: p.handle.MediaID(),
			Score:   m.score(p.name),
			Order:   p.order,
			Ready:   p.handle.Ready(),
		}
	})
}

// score ranks a player by its position in the priority list.
// "org.mpris.MediaPlayer2.vlc.instance42" matches the entry "vlc".
func (m *MprisMonitor) score(name string) float64 {
	short := strings.SplitN(strings.TrimPrefix(name, mprisPrefix), ".", 2)[0]
	idx := lo.IndexOf(m.priority, short)
	if idx < 0 {
		return defaultScore
	}
	return 1 - (1-defaultScore)*float64(idx)/float64(len(m.priority))
}

func (m *MprisMonitor) emitCandidates(ctx context.Context) {
	m.emit(ctx, domain.ContainerEvent{
		Kind:       domain.ContainerCandidatesChanged,
		Candidates: m.candidates(),
	})
}

// emit delivers ev to the consumer. A full channel is logged (rate limited)
// and then waited on, since dropping a detach would leave a stale slot.
func (m *MprisMonitor) emit(ctx context.Context, ev domain.ContainerEvent) {
	select {
	case m.events <- ev:
		return
	default:
		m.logChannelFullWarning()
	}

	select {
	case m.events <- ev:
	case <-ctx.Done():
	}
}

func (m *MprisMonitor) lookup(name string) (*player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[name]
	return p, ok
}

// getPlayerName returns the well-known player name for a unique bus name
// Falls back to the unique name if no mapping exists
func (m *MprisMonitor) getPlayerName(uniqueName string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if wellKnown, ok := m.playerNames[uniqueName]; ok {
		return wellKnown
	}
	return uniqueName
}

// logChannelFullWarning logs a warning about channel being full, but rate-limited
// to avoid log spam during rapid track changes (e.g., fast skipping)
func (m *MprisMonitor) logChannelFullWarning() {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit to max one warning per 5 seconds
	const warningInterval = 5 * time.Second
	now := time.Now()

	if now.Sub(m.lastDropWarning) >= warningInterval {
		m.logger.Warn("Events channel full, waiting for the engine to catch up")
		m.lastDropWarning = now
	}
}
