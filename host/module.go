package host

import "time"

// Module is a component managed by a Runner.
type Module interface {
	OnCreate(param any) error
	OnStart() error
	// OnUpdate runs once per frame with the unscaled time since the last frame.
	OnUpdate(dt time.Duration)
	OnGUI(gui GUI)
	OnDestroy()
}

// GUI receives one-line diagnostic labels.
type GUI interface {
	Label(text string)
}

// Pumper delivers work queued from other goroutines onto the logic thread.
type Pumper interface {
	Pump() int
}
