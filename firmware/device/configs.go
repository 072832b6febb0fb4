//go:build tinygo

package device

import (
	"machine"

	"tinygo.org/x/drivers/servo"
)

// ServoConfig has device-level values for setting up the sweep Servo
type ServoConfig struct {
	Pin machine.Pin
	PWM servo.PWM
}

// MotorConfig has the pins for the DC motor drivers. Both pins must be on the same PWM peripheral.
type MotorConfig struct {
	Feed  machine.Pin
	Eject machine.Pin
	PWM   servo.PWM
	// Period is the motor PWM period in nanoseconds
	Period uint64
}
