package monitor

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/genricoloni/reelkeeper/internal/domain"
	"github.com/genricoloni/reelkeeper/internal/monitor/mocks"
	"github.com/godbus/dbus/v5"
	"github.com/samber/mo"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const testPlayer = "org.mpris.MediaPlayer2.mpv"

func testTrack() track {
	return track{
		mediaID: "file:///videos/intro.mkv",
		trackID: dbus.ObjectPath("/org/mpv/track/1"),
		length:  mo.Some(3 * time.Minute),
		title:   "Intro",
	}
}

func newTestHandle(t *testing.T, status string, canPlay bool) (*MprisHandle, *mocks.MockDBusClient) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mocks.NewMockDBusClient(ctrl)
	return newMprisHandle(zap.NewNop(), client, testPlayer, testTrack(), status, canPlay), client
}

func TestMprisHandle_Commands(t *testing.T) {
	tests := []struct {
		name       string
		run        func(h *MprisHandle) error
		method     string
		wantStatus string
	}{
		{"Start", (*MprisHandle).Start, "Play", statusPlaying},
		{"Pause", (*MprisHandle).Pause, "Pause", statusPaused},
		{"Stop", (*MprisHandle).Stop, "Stop", statusStopped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, client := newTestHandle(t, statusPaused, true)
			client.EXPECT().CallMethod(testPlayer, mprisPath, playerInterface+"."+tt.method).Return(nil)

			if err := tt.run(h); err != nil {
				t.Fatalf("%s() error = %v", tt.name, err)
			}
			if h.status != tt.wantStatus {
				t.Errorf("status = %q, want %q", h.status, tt.wantStatus)
			}
			if got := h.IsPlaying(); got != (tt.wantStatus == statusPlaying) {
				t.Errorf("IsPlaying() = %v", got)
			}
		})
	}
}

func TestMprisHandle_StartNotReady(t *testing.T) {
	h, _ := newTestHandle(t, statusStopped, false)

	err := h.Start()
	if !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("Start() error = %v, want ErrNotReady", err)
	}
	if h.Ready() {
		t.Error("Ready() = true for a player with CanPlay=false")
	}
	if h.BufferPercentage() != 0 {
		t.Errorf("BufferPercentage() = %d, want 0", h.BufferPercentage())
	}
}

func TestMprisHandle_CallErrorWrapped(t *testing.T) {
	h, client := newTestHandle(t, statusPaused, true)
	busErr := fmt.Errorf("org.freedesktop.DBus.Error.NoReply")
	client.EXPECT().CallMethod(testPlayer, mprisPath, playerInterface+".Play").Return(busErr)

	err := h.Start()
	if !errors.Is(err, busErr) {
		t.Fatalf("Start() error = %v, want wrapped bus error", err)
	}
	if h.IsPlaying() {
		t.Error("IsPlaying() = true after failed Play")
	}
}

func TestMprisHandle_SeekTo(t *testing.T) {
	t.Run("SetPosition with track id", func(t *testing.T) {
		h, client := newTestHandle(t, statusPaused, true)
		client.EXPECT().
			CallMethod(testPlayer, mprisPath, playerInterface+".SetPosition", dbus.ObjectPath("/org/mpv/track/1"), int64(90_000_000)).
			Return(nil)

		if err := h.SeekTo(90 * time.Second); err != nil {
			t.Fatalf("SeekTo() error = %v", err)
		}
		if got := h.lastPosition; got != mo.Some(90*time.Second) {
			t.Errorf("lastPosition = %v, want 90s", got)
		}
	})

	t.Run("relative Seek without track id", func(t *testing.T) {
		h, client := newTestHandle(t, statusPaused, true)
		h.track.trackID = noTrack
		gomock.InOrder(
			client.EXPECT().GetProperty(testPlayer, mprisPath, playerInterface+".Position").
				Return(dbus.MakeVariant(int64(30_000_000)), nil),
			client.EXPECT().CallMethod(testPlayer, mprisPath, playerInterface+".Seek", int64(60_000_000)).
				Return(nil),
		)

		if err := h.SeekTo(90 * time.Second); err != nil {
			t.Fatalf("SeekTo() error = %v", err)
		}
	})
}

func TestMprisHandle_CurrentPosition(t *testing.T) {
	h, client := newTestHandle(t, statusPlaying, true)
	gomock.InOrder(
		client.EXPECT().GetProperty(testPlayer, mprisPath, playerInterface+".Position").
			Return(dbus.MakeVariant(int64(12_500_000)), nil),
		client.EXPECT().GetProperty(testPlayer, mprisPath, playerInterface+".Position").
			Return(dbus.Variant{}, fmt.Errorf("player gone")),
	)

	if got := h.CurrentPosition(); got != mo.Some(12500*time.Millisecond) {
		t.Fatalf("CurrentPosition() = %v, want 12.5s", got)
	}
	// Falls back to the last value read
	if got := h.CurrentPosition(); got != mo.Some(12500*time.Millisecond) {
		t.Errorf("CurrentPosition() after error = %v, want cached 12.5s", got)
	}
	if got := h.Duration(); got != mo.Some(3*time.Minute) {
		t.Errorf("Duration() = %v, want 3m", got)
	}
}

func TestMprisHandle_SetVolumeClamped(t *testing.T) {
	h, client := newTestHandle(t, statusPlaying, true)
	client.EXPECT().SetProperty(testPlayer, mprisPath, playerInterface+".Volume", 1.0).Return(nil)
	client.EXPECT().SetProperty(testPlayer, mprisPath, playerInterface+".Volume", 0.0).Return(nil)

	if err := h.SetVolume(1.7); err != nil {
		t.Fatal(err)
	}
	if err := h.SetVolume(-0.2); err != nil {
		t.Fatal(err)
	}
}

func TestMprisHandle_Released(t *testing.T) {
	// No D-Bus traffic is expected once released
	h, _ := newTestHandle(t, statusPlaying, true)
	h.lastPosition = mo.Some(40 * time.Second)

	events := 0
	h.SetEventListener(func(domain.HandleEvent) { events++ })
	h.release()

	for name, op := range map[string]func() error{
		"Start":     h.Start,
		"Pause":     h.Pause,
		"Stop":      h.Stop,
		"SeekTo":    func() error { return h.SeekTo(time.Second) },
		"SetVolume": func() error { return h.SetVolume(0.5) },
	} {
		if err := op(); !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("%s() error = %v, want ErrInvalidState", name, err)
		}
	}

	if h.IsPlaying() {
		t.Error("IsPlaying() = true on released handle")
	}
	if got := h.CurrentPosition(); got != mo.Some(40*time.Second) {
		t.Errorf("CurrentPosition() = %v, want last known 40s", got)
	}

	h.SetEventListener(func(domain.HandleEvent) { events++ })
	h.applyStatus(statusPaused)
	h.applySeeked(time.Second)
	if events != 0 {
		t.Errorf("released handle delivered %d events", events)
	}
}

func TestMprisHandle_ApplyStatus(t *testing.T) {
	tests := []struct {
		name          string
		prev          string
		stopRequested bool
		status        string
		wantPlaying   bool
		wantState     domain.EngineState
	}{
		{"starts playing", statusPaused, false, statusPlaying, true, domain.EngineReady},
		{"paused", statusPlaying, false, statusPaused, false, domain.EngineReady},
		{"stops on its own", statusPlaying, false, statusStopped, false, domain.EngineEnded},
		{"stopped on request", statusPlaying, true, statusStopped, false, domain.EngineIdle},
		{"stopped while paused", statusPaused, false, statusStopped, false, domain.EngineIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandle(t, tt.prev, true)
			h.stopRequested = tt.stopRequested

			var got []domain.HandleEvent
			h.SetEventListener(func(ev domain.HandleEvent) { got = append(got, ev) })

			h.applyStatus(tt.status)

			if len(got) != 1 {
				t.Fatalf("got %d events, want 1", len(got))
			}
			ev := got[0]
			if ev.Kind != domain.EventStateChanged || ev.Playing != tt.wantPlaying || ev.State != tt.wantState {
				t.Errorf("event = %+v, want playing=%v state=%v", ev, tt.wantPlaying, tt.wantState)
			}
		})
	}
}

func TestMprisHandle_ApplyStatusStray(t *testing.T) {
	tests := []struct {
		name      string
		prev      string
		status    string
		listening bool
		want      bool
	}{
		{"starts without listener", statusPaused, statusPlaying, false, true},
		{"starts with listener", statusPaused, statusPlaying, true, false},
		{"already playing", statusPlaying, statusPlaying, false, false},
		{"pauses without listener", statusPlaying, statusPaused, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandle(t, tt.prev, true)
			if tt.listening {
				h.SetEventListener(func(domain.HandleEvent) {})
			}
			if got := h.applyStatus(tt.status); got != tt.want {
				t.Errorf("applyStatus(%s) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestMprisHandle_ApplySeeked(t *testing.T) {
	h, _ := newTestHandle(t, statusPlaying, true)

	var got []domain.HandleEvent
	h.SetEventListener(func(ev domain.HandleEvent) { got = append(got, ev) })

	h.applySeeked(75 * time.Second)

	if len(got) != 1 || got[0].Kind != domain.EventPositionDiscontinuity {
		t.Fatalf("events = %+v, want one discontinuity", got)
	}
	if h.lastPosition != mo.Some(75*time.Second) {
		t.Errorf("lastPosition = %v, want 75s", h.lastPosition)
	}
}

func TestToInt64(t *testing.T) {
	tests := []struct {
		in   any
		want int64
		ok   bool
	}{
		{int64(5), 5, true},
		{uint64(6), 6, true},
		{int32(7), 7, true},
		{uint32(8), 8, true},
		{float64(9), 9, true},
		{"10", 0, false},
	}
	for _, tt := range tests {
		got, ok := toInt64(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("toInt64(%#v) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
