package manager

import (
	"fmt"
	"sync"
	"time"

	"github.com/genricoloni/reelkeeper/internal/domain"
	"github.com/samber/mo"
)

// fakeHandle records the commands it receives and behaves like a minimal engine
type fakeHandle struct {
	mu       sync.Mutex
	calls    []string
	playing  bool
	position mo.Option[time.Duration]
	duration mo.Option[time.Duration]
	startErr error
	listener func(domain.HandleEvent)
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		position: mo.Some(time.Duration(0)),
		duration: mo.Some(time.Minute),
	}
}

func (h *fakeHandle) record(call string) {
	h.calls = append(h.calls, call)
}

func (h *fakeHandle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("start")
	if h.startErr != nil {
		return h.startErr
	}
	h.playing = true
	return nil
}

func (h *fakeHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("pause")
	h.playing = false
	return nil
}

func (h *fakeHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("stop")
	h.playing = false
	return nil
}

func (h *fakeHandle) SeekTo(position time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record(fmt.Sprintf("seek:%v", position))
	h.position = mo.Some(position)
	return nil
}

func (h *fakeHandle) CurrentPosition() mo.Option[time.Duration] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position
}

func (h *fakeHandle) Duration() mo.Option[time.Duration] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.duration
}

func (h *fakeHandle) IsPlaying() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

func (h *fakeHandle) SetVolume(volume float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record(fmt.Sprintf("volume:%.1f", volume))
	return nil
}

func (h *fakeHandle) BufferPercentage() int { return 100 }

func (h *fakeHandle) SetEventListener(listener func(domain.HandleEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listener = listener
}

// emit delivers ev to the installed listener, if any
func (h *fakeHandle) emit(ev domain.HandleEvent) {
	h.mu.Lock()
	l := h.listener
	h.mu.Unlock()
	if l != nil {
		l(ev)
	}
}

func (h *fakeHandle) setPosition(p mo.Option[time.Duration]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.position = p
}

func (h *fakeHandle) hasListener() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listener != nil
}

func (h *fakeHandle) callLog() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *fakeHandle) count(call string) int {
	n := 0
	for _, c := range h.callLog() {
		if c == call {
			n++
		}
	}
	return n
}
