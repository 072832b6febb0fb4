// Package device has the actuator drivers used by the dealer: the Raspberry Pi GPIO driver and a
// Simulator that records every write.
package device

import "errors"

var (
	// ErrInit is returned when the GPIO hardware cannot be opened
	ErrInit = errors.New("hardware initialization failed")
	// ErrClosed is returned for writes after Close
	ErrClosed = errors.New("device closed")
)
