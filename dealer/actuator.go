package dealer

import "github.com/calvinmclean/carddealer"

// Positioner drives the sweeping servo
type Positioner interface {
	// SetPositionDuty writes a PWM duty value. Callers keep it within the configured duty range.
	SetPositionDuty(duty int) error
	// Stop ends the sweep and releases the servo
	Stop() error
}

// Feeder drives the dispensing DC motors. A speed of 0 switches the motor off.
type Feeder interface {
	SetDispenseStage(motor carddealer.Motor, speed int) error
}

// Observer is notified of session activity. It is used for metrics and must not block.
type Observer interface {
	SessionStarted(carddealer.Session)
	SessionFinished(Result)
	StationReached(station int, overwrote bool)
	EventDiscarded(reason string)
	CardDealt(station int)
}

// NopObserver ignores everything
type NopObserver struct{}

var _ Observer = NopObserver{}

// SessionStarted implements Observer.
func (NopObserver) SessionStarted(carddealer.Session) {}

// SessionFinished implements Observer.
func (NopObserver) SessionFinished(Result) {}

// StationReached implements Observer.
func (NopObserver) StationReached(int, bool) {}

// EventDiscarded implements Observer.
func (NopObserver) EventDiscarded(string) {}

// CardDealt implements Observer.
func (NopObserver) CardDealt(int) {}
