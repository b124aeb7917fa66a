//go:build linux

package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/genricoloni/reelkeeper/internal/domain"
	"github.com/genricoloni/reelkeeper/internal/manager"
	"github.com/genricoloni/reelkeeper/internal/monitor/mocks"
	"github.com/genricoloni/reelkeeper/internal/policy"
	"github.com/genricoloni/reelkeeper/internal/store"
	"github.com/godbus/dbus/v5"
	"github.com/samber/mo"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const (
	metaProp    = playerInterface + ".Metadata"
	statusProp  = playerInterface + ".PlaybackStatus"
	canPlayProp = playerInterface + ".CanPlay"
)

// expectPlayerState sets up the three reads addPlayer performs
func expectPlayerState(m *mocks.MockDBusClient, name, url, status string) {
	m.EXPECT().GetProperty(name, mprisPath, metaProp).
		Return(dbus.MakeVariant(map[string]dbus.Variant{"xesam:url": dbus.MakeVariant(url)}), nil)
	m.EXPECT().GetProperty(name, mprisPath, statusProp).
		Return(dbus.MakeVariant(status), nil)
	m.EXPECT().GetProperty(name, mprisPath, canPlayProp).
		Return(dbus.MakeVariant(true), nil)
}

// TestAddPlayer unifies all scenarios regarding reading a player's state:
// 1. Success (Happy Path)
// 2. DBus Errors (Connection fail)
// 3. Invalid Data types (Robustness)
func TestAddPlayer(t *testing.T) {
	playerName := "org.mpris.MediaPlayer2.spotify"

	tests := []struct {
		name        string
		setupMock   func(*mocks.MockDBusClient)
		expectError bool
		expectTrack bool
		wantID      domain.MediaID
		wantPlaying bool
		wantReady   bool
	}{
		{
			name: "Success - Valid Metadata",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().GetProperty(playerName, mprisPath, metaProp).
					Return(dbus.MakeVariant(map[string]dbus.Variant{
						"xesam:title":   dbus.MakeVariant("Stairway to Heaven"),
						"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath("/com/spotify/track/stairway")),
					}), nil)
				m.EXPECT().GetProperty(playerName, mprisPath, statusProp).
					Return(dbus.MakeVariant("Playing"), nil)
				m.EXPECT().GetProperty(playerName, mprisPath, canPlayProp).
					Return(dbus.MakeVariant(true), nil)
			},
			expectTrack: true,
			wantID:      "/com/spotify/track/stairway",
			wantPlaying: true,
			wantReady:   true,
		},
		{
			name: "DBus Error - Connection Fail",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().GetProperty(playerName, mprisPath, metaProp).
					Return(dbus.MakeVariant(""), fmt.Errorf("connection timeout"))
			},
			expectError: true,
		},
		{
			name: "Invalid Data - Metadata is Int not Map",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().GetProperty(playerName, mprisPath, metaProp).
					Return(dbus.MakeVariant(12345), nil) // Wrong type
				m.EXPECT().GetProperty(playerName, mprisPath, statusProp).
					Return(dbus.MakeVariant("Stopped"), nil)
				m.EXPECT().GetProperty(playerName, mprisPath, canPlayProp).
					Return(dbus.Variant{}, fmt.Errorf("no such property"))
			},
			expectTrack: true, // Tracked, waiting for a track to load
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockClient := mocks.NewMockDBusClient(ctrl)
			tt.setupMock(mockClient)

			mon := newTestMonitor()
			mon.conn = mockClient

			err := mon.addPlayer(playerName)

			// Verify Error Return
			if tt.expectError && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}

			p, ok := mon.lookup(playerName)
			if ok != tt.expectTrack {
				t.Fatalf("tracked = %v, want %v", ok, tt.expectTrack)
			}
			if !ok {
				return
			}
			if got := p.handle.MediaID(); got != tt.wantID {
				t.Errorf("MediaID() = %q, want %q", got, tt.wantID)
			}
			if got := p.handle.IsPlaying(); got != tt.wantPlaying {
				t.Errorf("IsPlaying() = %v, want %v", got, tt.wantPlaying)
			}
			if got := p.handle.Ready(); got != tt.wantReady {
				t.Errorf("Ready() = %v, want %v", got, tt.wantReady)
			}

			// addPlayer never publishes on its own
			select {
			case ev := <-mon.Events():
				t.Errorf("Unexpected event emitted: %+v", ev)
			default:
			}
		})
	}
}

// TestDetectExistingPlayers verifies the initial scan of DBus names.
func TestDetectExistingPlayers(t *testing.T) {
	tests := []struct {
		name             string
		setupMock        func(*mocks.MockDBusClient)
		expectError      bool
		expectedIDs      []domain.MediaID
		expectedMappings map[string]string
	}{
		{
			name: "Success - Detects Spotify and VLC",
			setupMock: func(m *mocks.MockDBusClient) {
				// 1. ListNames
				m.EXPECT().ListNames().Return([]string{
					"org.freedesktop.DBus",
					"org.mpris.MediaPlayer2.vlc",
					"org.mpris.MediaPlayer2.spotify",
					"com.example.OtherApp",
				}, nil)

				// 2. GetNameOwner (Mapping)
				m.EXPECT().GetNameOwner("org.mpris.MediaPlayer2.spotify").Return(":1.100", nil)
				m.EXPECT().GetNameOwner("org.mpris.MediaPlayer2.vlc").Return(":1.200", nil)

				// 3. Player state, scanned in name order
				expectPlayerState(m, "org.mpris.MediaPlayer2.spotify", "spotify:track:a", "Playing")
				expectPlayerState(m, "org.mpris.MediaPlayer2.vlc", "file:///b.mkv", "Paused")
			},
			expectedIDs: []domain.MediaID{"spotify:track:a", "file:///b.mkv"},
			expectedMappings: map[string]string{
				":1.100": "org.mpris.MediaPlayer2.spotify",
				":1.200": "org.mpris.MediaPlayer2.vlc",
			},
		},
		{
			name: "Failure - ListNames fails",
			setupMock: func(m *mocks.MockDBusClient) {
				m.EXPECT().ListNames().Return(nil, fmt.Errorf("bus error"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockClient := mocks.NewMockDBusClient(ctrl)
			tt.setupMock(mockClient)

			mon := newTestMonitor()
			mon.conn = mockClient

			err := mon.detectExistingPlayers(t.Context())

			// Check Error
			if tt.expectError && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}

			// Check Mappings
			if len(mon.playerNames) != len(tt.expectedMappings) {
				t.Errorf("Mapping count mismatch: want %d, got %d", len(tt.expectedMappings), len(mon.playerNames))
			}
			for k, v := range tt.expectedMappings {
				if mon.playerNames[k] != v {
					t.Errorf("Mapping mismatch for %s: want %s, got %s", k, v, mon.playerNames[k])
				}
			}

			if tt.expectError {
				return
			}

			// One candidate set for the whole scan
			ev := expectEvent(t, mon)
			if ev.Kind != domain.ContainerCandidatesChanged || len(ev.Candidates) != len(tt.expectedIDs) {
				t.Fatalf("event = %+v, want %d candidates", ev, len(tt.expectedIDs))
			}
			for i, id := range tt.expectedIDs {
				if ev.Candidates[i].MediaID != id || ev.Candidates[i].Order != i {
					t.Errorf("candidate %d = %+v, want %s at order %d", i, ev.Candidates[i], id, i)
				}
			}
			expectNoEvent(t, mon)
		})
	}
}

// TestStartStop drives the full lifecycle over a mocked bus: initial scan,
// a player appearing, and shutdown.
func TestStartStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mocks.NewMockDBusClient(ctrl)
	signals := make(chan chan<- *dbus.Signal, 1)

	mockClient.EXPECT().AddMatchSignal(gomock.Any()).Return(nil).Times(3)
	mockClient.EXPECT().Signal(gomock.Any()).Do(func(ch chan<- *dbus.Signal) {
		signals <- ch
	})
	mockClient.EXPECT().ListNames().Return([]string{"org.freedesktop.DBus"}, nil)
	expectPlayerState(mockClient, testPlayer, "file:///videos/intro.mkv", "Stopped")
	mockClient.EXPECT().Close().Return(nil)

	mon := newTestMonitor()
	mon.running = false
	mon.dial = func() (DBusClient, error) { return mockClient, nil }

	startErr := make(chan error, 1)
	go func() { startErr <- mon.Start(context.Background()) }()

	initial := expectEvent(t, mon)
	if len(initial.Candidates) != 0 {
		t.Fatalf("initial candidates = %+v, want none", initial.Candidates)
	}

	sigCh := <-signals
	sigCh <- &dbus.Signal{
		Name: "org.freedesktop.DBus.NameOwnerChanged",
		Body: []interface{}{testPlayer, "", ":1.7"},
	}

	appeared := expectEvent(t, mon)
	if len(appeared.Candidates) != 1 || appeared.Candidates[0].MediaID != "file:///videos/intro.mkv" {
		t.Fatalf("candidates = %+v, want the new player", appeared.Candidates)
	}
	handle := appeared.Candidates[0].Handle

	if err := mon.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case err := <-startErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Start() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after Stop()")
	}

	if _, ok := <-mon.Events(); ok {
		t.Error("events channel still open after Stop()")
	}
	if err := handle.Start(); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("handle.Start() after Stop() = %v, want ErrInvalidState", err)
	}

	// Second Stop is a no-op
	if err := mon.Stop(context.Background()); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestStart_DialFailure(t *testing.T) {
	mon := newTestMonitor()
	mon.running = false
	mon.dial = func() (DBusClient, error) { return nil, fmt.Errorf("no session bus") }

	if err := mon.Start(context.Background()); err == nil {
		t.Fatal("Start() error = nil, want dial error")
	}
	if mon.running {
		t.Error("monitor still marked running after dial failure")
	}
}

// TestStrayPlayerIsPausedByManager starts a second player behind the manager's
// back and checks the resulting candidate set gets it paused again
func TestStrayPlayerIsPausedByManager(t *testing.T) {
	const vlc = "org.mpris.MediaPlayer2.vlc"

	ctrl := gomock.NewController(t)
	conn := mocks.NewMockDBusClient(ctrl)
	conn.EXPECT().CallMethod(testPlayer, mprisPath, playerInterface+".Play").Return(nil).Times(1)
	conn.EXPECT().CallMethod(vlc, mprisPath, playerInterface+".Pause").Return(nil).Times(1)

	mon := newTestMonitor("mpv", "vlc")
	mon.conn = conn
	mpv := mon.trackForTest(testPlayer, ":1.100", testTrack(), statusPaused, true)
	other := mon.trackForTest(vlc, ":1.200", track{
		mediaID: "file:///videos/other.mkv",
		length:  mo.Some(time.Minute),
	}, statusPaused, true)

	mgr := manager.New(zap.NewNop(), policy.New(0), store.NewMemoryStore(zap.NewNop(), 0), nil, manager.Options{})
	mgr.OnRegistered()
	mgr.OnCandidatesChanged(mon.candidates())

	if id, ok := mgr.Active(); !ok || id != testTrack().mediaID {
		t.Fatalf("Active() = %q, %v, want mpv's track", id, ok)
	}

	// The user presses play in vlc
	mon.handleSignal(t.Context(), propertiesChanged(":1.200", map[string]dbus.Variant{
		"PlaybackStatus": dbus.MakeVariant("Playing"),
	}))
	if !other.IsPlaying() {
		t.Fatal("vlc status not recorded")
	}

	ev := expectEvent(t, mon)
	if ev.Kind != domain.ContainerCandidatesChanged {
		t.Fatalf("event = %+v, want a candidate set", ev)
	}
	mgr.OnCandidatesChanged(ev.Candidates)

	if other.IsPlaying() {
		t.Error("vlc still playing outside the active slot")
	}
	if !mpv.IsPlaying() {
		t.Error("mpv stopped playing")
	}
	if id, _ := mgr.Active(); id != testTrack().mediaID {
		t.Errorf("Active() = %q, want mpv's track", id)
	}
}
