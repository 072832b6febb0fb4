package controller

import (
	"errors"
	"fmt"

	"go.bug.st/serial"
)

// SerialPortNone selects stdin and stdout instead of a serial port
const SerialPortNone = "none"

var ErrNoSerialPorts = errors.New("no serial ports found")

// GetSerialPorts lists the serial ports on this host
func GetSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("error listing serial ports: %w", err)
	}
	if len(ports) == 0 {
		return nil, ErrNoSerialPorts
	}
	return ports, nil
}

// OpenSerial opens the command link with 8N1 framing
func OpenSerial(port string, baudRate int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("error opening serial port %q: %w", port, err)
	}
	return p, nil
}
