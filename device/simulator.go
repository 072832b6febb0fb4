package device

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/calvinmclean/carddealer"
	"github.com/calvinmclean/carddealer/dealer"
)

// ErrInjected is the error returned by a Simulator after its configured number of successful writes
var ErrInjected = errors.New("injected failure")

// CallKind is the type of a recorded write
type CallKind int

const (
	CallDuty CallKind = iota
	CallStop
	CallStage
)

// Call is one recorded write
type Call struct {
	Kind  CallKind
	Duty  int
	Motor carddealer.Motor
	Speed int
	At    time.Time
}

// Simulator implements the dealer's Positioner and Feeder without hardware. It records every call so
// tests can inspect them, and logs them for dry runs.
type Simulator struct {
	lock  sync.Mutex
	calls []Call

	positionWrites int
	failPositionAt int
	dispenseWrites int
	failDispenseAt int
	closed         bool

	log zerolog.Logger
}

var (
	_ dealer.Positioner = &Simulator{}
	_ dealer.Feeder     = &Simulator{}
)

// NewSimulator creates a Simulator that logs writes to log
func NewSimulator(log zerolog.Logger) *Simulator {
	return &Simulator{log: log}
}

// FailPositionAfter makes every servo write after the first n fail. Zero disables it.
func (s *Simulator) FailPositionAfter(n int) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.failPositionAt = n
}

// FailDispenseAfter makes every motor write after the first n fail. Zero disables it.
func (s *Simulator) FailDispenseAfter(n int) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.failDispenseAt = n
}

// SetPositionDuty implements dealer.Positioner.
func (s *Simulator) SetPositionDuty(duty int) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.positionWrites++
	if s.failPositionAt > 0 && s.positionWrites > s.failPositionAt {
		return ErrInjected
	}

	s.calls = append(s.calls, Call{Kind: CallDuty, Duty: duty, At: time.Now()})
	s.log.Trace().Int("duty", duty).Msg("servo")

	return nil
}

// Stop implements dealer.Positioner.
func (s *Simulator) Stop() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.calls = append(s.calls, Call{Kind: CallStop, At: time.Now()})
	s.log.Debug().Msg("servo stopped")

	return nil
}

// SetDispenseStage implements dealer.Feeder.
func (s *Simulator) SetDispenseStage(motor carddealer.Motor, speed int) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.dispenseWrites++
	if s.failDispenseAt > 0 && s.dispenseWrites > s.failDispenseAt {
		return ErrInjected
	}

	s.calls = append(s.calls, Call{Kind: CallStage, Motor: motor, Speed: speed, At: time.Now()})
	s.log.Debug().Stringer("motor", motor).Int("speed", speed).Msg("motor")

	return nil
}

// Calls returns a copy of every recorded write
func (s *Simulator) Calls() []Call {
	s.lock.Lock()
	defer s.lock.Unlock()

	calls := make([]Call, len(s.calls))
	copy(calls, s.calls)
	return calls
}

// Duties returns every servo duty written, in order
func (s *Simulator) Duties() []int {
	var duties []int
	for _, c := range s.Calls() {
		if c.Kind == CallDuty {
			duties = append(duties, c.Duty)
		}
	}
	return duties
}

// Stages returns every motor write, in order
func (s *Simulator) Stages() []Call {
	var stages []Call
	for _, c := range s.Calls() {
		if c.Kind == CallStage {
			stages = append(stages, c)
		}
	}
	return stages
}

// Reset forgets all recorded calls and injected failures
func (s *Simulator) Reset() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.calls = nil
	s.positionWrites = 0
	s.dispenseWrites = 0
	s.failPositionAt = 0
	s.failDispenseAt = 0
}

// Close makes further writes fail
func (s *Simulator) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.closed = true
	return nil
}
