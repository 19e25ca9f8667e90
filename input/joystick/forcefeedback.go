package joystick

import (
	"log/slog"
	"sync"
)

// MaxMagnitude is the full scale effect magnitude.
const MaxMagnitude = 10000

// MaxActuators is the number of rumble motors driven: large then small.
const MaxActuators = 2

// ForceFeedback keeps one running constant force per actuator.
type ForceFeedback struct {
	handle Handle
	logger *slog.Logger
	count  int

	mu      sync.Mutex
	effects [MaxActuators]Effect
}

func NewForceFeedback(handle Handle, actuators int, logger *slog.Logger) *ForceFeedback {
	return &ForceFeedback{handle: handle, logger: logger, count: min(actuators, MaxActuators)}
}

func (f *ForceFeedback) Count() int { return f.count }

// Set replaces the running effects. big and small are in [0,1].
func (f *ForceFeedback) Set(big, small float64) {
	values := [MaxActuators]float64{big, small}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < f.count; i++ {
		magnitude := int(min(max(values[i], 0), 1) * MaxMagnitude)
		eff, err := f.handle.CreateConstantForce(ConstantForce{Actuator: i, Magnitude: magnitude})
		if old := f.effects[i]; old != nil {
			old.Dispose()
			f.effects[i] = nil
		}
		if err != nil {
			f.logger.Warn("Failed to create force feedback effect", "actuator", i, "error", err)
			continue
		}
		f.effects[i] = eff
		if err := eff.Start(); err != nil {
			f.logger.Warn("Failed to start force feedback effect", "actuator", i, "error", err)
		}
	}
}

// Close disposes every effect.
func (f *ForceFeedback) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, eff := range f.effects {
		if eff != nil {
			eff.Dispose()
			f.effects[i] = nil
		}
	}
}
