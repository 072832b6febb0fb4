package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stianeikeland/go-rpio/v4"

	"github.com/calvinmclean/carddealer"
	"github.com/calvinmclean/carddealer/dealer"
	"github.com/calvinmclean/carddealer/device/softpwm"
)

// PinConfig has the BCM pin numbers and PWM settings for the Raspberry Pi
type PinConfig struct {
	Servo int
	Feed  int
	Eject int

	// PWMFrequency is the servo pulse frequency in Hz
	PWMFrequency int
	// PWMRange is the number of counts in one servo period. Duty values are in these counts.
	PWMRange uint32
	// MotorPeriod is the software PWM period of the DC motor pins
	MotorPeriod time.Duration
}

// DefaultPinConfig uses hardware PWM on BCM 12 for the servo at 50Hz with a 2000-count range, so one
// count is 10µs. The motors are on BCM 18 and 19.
func DefaultPinConfig() PinConfig {
	return PinConfig{
		Servo:        12,
		Feed:         18,
		Eject:        19,
		PWMFrequency: 50,
		PWMRange:     2000,
		MotorPeriod:  softpwm.DefaultPeriod,
	}
}

// RPi drives the servo and motors through /dev/gpiomem
type RPi struct {
	lock   sync.Mutex
	closed bool

	servo  rpio.Pin
	cycle  uint32
	motors map[carddealer.Motor]*softpwm.Pin

	log zerolog.Logger
}

var (
	_ dealer.Positioner = &RPi{}
	_ dealer.Feeder     = &RPi{}
)

// OpenRPi maps the GPIO memory and configures the pins. It returns ErrInit if the GPIO is not available.
func OpenRPi(cfg PinConfig, log zerolog.Logger) (*RPi, error) {
	if cfg.PWMFrequency <= 0 || cfg.PWMRange == 0 {
		return nil, fmt.Errorf("%w: invalid PWM frequency %d or range %d", ErrInit, cfg.PWMFrequency, cfg.PWMRange)
	}

	err := rpio.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: opening gpio: %w", ErrInit, err)
	}

	servo := rpio.Pin(cfg.Servo)
	servo.Mode(rpio.Pwm)
	servo.Freq(cfg.PWMFrequency * int(cfg.PWMRange))
	servo.DutyCycle(0, cfg.PWMRange)

	motors := map[carddealer.Motor]*softpwm.Pin{}
	for motor, n := range map[carddealer.Motor]int{carddealer.MotorFeed: cfg.Feed, carddealer.MotorEject: cfg.Eject} {
		pin := rpio.Pin(n)
		pin.Output()
		motors[motor] = softpwm.New(pinSetter(pin), cfg.MotorPeriod)
	}

	log.Info().
		Int("servo_pin", cfg.Servo).
		Int("feed_pin", cfg.Feed).
		Int("eject_pin", cfg.Eject).
		Msg("gpio ready")

	return &RPi{
		servo:  servo,
		cycle:  cfg.PWMRange,
		motors: motors,
		log:    log,
	}, nil
}

func pinSetter(pin rpio.Pin) func(bool) {
	return func(high bool) {
		if high {
			pin.High()
		} else {
			pin.Low()
		}
	}
}

// SetPositionDuty implements dealer.Positioner.
func (r *RPi) SetPositionDuty(duty int) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.closed {
		return ErrClosed
	}
	if duty < 0 || uint32(duty) > r.cycle {
		return fmt.Errorf("duty %d outside of 0..%d", duty, r.cycle)
	}

	r.servo.DutyCycle(uint32(duty), r.cycle)
	return nil
}

// Stop implements dealer.Positioner. It stops the servo pulses.
func (r *RPi) Stop() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.closed {
		return ErrClosed
	}

	r.servo.DutyCycle(0, r.cycle)
	return nil
}

// SetDispenseStage implements dealer.Feeder.
func (r *RPi) SetDispenseStage(motor carddealer.Motor, speed int) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.closed {
		return ErrClosed
	}

	pin, ok := r.motors[motor]
	if !ok {
		return fmt.Errorf("no pin for %s motor", motor)
	}

	pin.Write(speed)
	return nil
}

// Close switches everything off and releases the GPIO memory
func (r *RPi) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	for _, pin := range r.motors {
		pin.Close()
	}
	r.servo.DutyCycle(0, r.cycle)

	return rpio.Close()
}
