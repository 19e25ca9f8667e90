package driver

import (
	"sync"

	"github.com/Alia5/padbridge/input"
)

// FeedbackHub fans rumble events out per slot. The zero value is ready to use.
type FeedbackHub struct {
	mu    sync.Mutex
	slots [MaxOutputDevices]*input.Notifier[Feedback]
}

func (h *FeedbackHub) notifier(slot int) *input.Notifier[Feedback] {
	if CheckSlot(slot) != nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.slots[slot] == nil {
		h.slots[slot] = &input.Notifier[Feedback]{}
	}
	return h.slots[slot]
}

func (h *FeedbackHub) Subscribe(slot int, fn func(Feedback)) func() {
	n := h.notifier(slot)
	if n == nil {
		return func() {}
	}
	return n.Subscribe(fn)
}

func (h *FeedbackHub) Notify(slot int, fb Feedback) {
	if n := h.notifier(slot); n != nil {
		n.Notify(fb)
	}
}
