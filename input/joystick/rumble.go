package joystick

import "time"

// RumbleTimer tracks a rumble request that the OS stops after a fixed
// duration, so that a steady request can be sent again before it expires.
type RumbleTimer struct {
	// Every is the resend period. It must be shorter than the OS duration.
	Every time.Duration

	active bool
	sent   time.Time
}

// Sent records a request made at now. active is false when every motor was
// set to zero.
func (t *RumbleTimer) Sent(active bool, now time.Time) {
	t.active = active
	t.sent = now
}

// Due reports whether the active request must be sent again at now.
func (t *RumbleTimer) Due(now time.Time) bool {
	return t.active && now.Sub(t.sent) >= t.Every
}
