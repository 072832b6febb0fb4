//go:build tinygo

package device

import (
	"errors"
	"machine"
	"time"

	"tinygo.org/x/drivers/servo"

	"github.com/calvinmclean/carddealer"
	"github.com/calvinmclean/carddealer/dealer"
)

// microsecondsPerCount converts duty counts (a 2000-count range at 50Hz) to pulse width
const microsecondsPerCount = 10

// Device drives the sweep servo and the dispenser motors on a microcontroller
type Device struct {
	servo    servo.Servo
	motorPWM servo.PWM
	channels map[carddealer.Motor]uint8
}

var (
	_ dealer.Positioner = &Device{}
	_ dealer.Feeder     = &Device{}
)

// New configures the servo and motor PWM outputs
func New(servoCfg ServoConfig, motorCfg MotorConfig) (*Device, error) {
	myServo, err := servo.New(servoCfg.PWM, servoCfg.Pin)
	if err != nil {
		return nil, errors.New("error creating servo: " + err.Error())
	}

	err = motorCfg.PWM.Configure(machine.PWMConfig{Period: motorCfg.Period})
	if err != nil {
		return nil, errors.New("error configuring motor pwm: " + err.Error())
	}

	channels := map[carddealer.Motor]uint8{}
	for motor, pin := range map[carddealer.Motor]machine.Pin{
		carddealer.MotorFeed:  motorCfg.Feed,
		carddealer.MotorEject: motorCfg.Eject,
	} {
		ch, err := motorCfg.PWM.Channel(pin)
		if err != nil {
			return nil, errors.New("error creating " + motor.String() + " channel: " + err.Error())
		}
		motorCfg.PWM.Set(ch, 0)
		channels[motor] = ch
	}

	return &Device{
		servo:    myServo,
		motorPWM: motorCfg.PWM,
		channels: channels,
	}, nil
}

// SetPositionDuty implements dealer.Positioner.
func (d *Device) SetPositionDuty(duty int) error {
	d.servo.SetMicroseconds(int16(duty * microsecondsPerCount))
	return nil
}

// Stop implements dealer.Positioner.
func (d *Device) Stop() error {
	d.servo.SetMicroseconds(0)
	return nil
}

// SetDispenseStage implements dealer.Feeder.
func (d *Device) SetDispenseStage(motor carddealer.Motor, speed int) error {
	ch, ok := d.channels[motor]
	if !ok {
		return errors.New("no channel for " + motor.String() + " motor")
	}
	if speed < 0 {
		speed = 0
	}
	if speed > 100 {
		speed = 100
	}

	d.motorPWM.Set(ch, d.motorPWM.Top()*uint32(speed)/100)
	return nil
}

// SerialReader adapts machine.Serial to io.Reader. It blocks until at least one byte is available.
type SerialReader struct{}

func (SerialReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for machine.Serial.Buffered() == 0 {
		time.Sleep(10 * time.Millisecond)
	}

	n := 0
	for n < len(p) && machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
	}
	return n, nil
}
