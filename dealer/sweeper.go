package dealer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// SweepConfig has the sweep range and the servo calibration
type SweepConfig struct {
	// Lower and Upper bound the virtual angle in degrees
	Lower float64
	Upper float64
	// Step is how far the angle moves per tick
	Step float64
	// Interval is the time between ticks. Zero sweeps as fast as possible.
	Interval time.Duration
	// Tolerance is the largest distance from a station position that still counts as reaching it
	Tolerance float64

	// Duty is DutyCenter + angle*DutyPerDegree, clamped to MinDuty..MaxDuty
	DutyCenter    float64
	DutyPerDegree float64
	MinDuty       int
	MaxDuty       int
}

// DefaultSweepConfig sweeps -90..90 one degree every 100ms. The duty values are for a 2000-count PWM range
// at 50Hz, so 150 is a 1.5ms pulse.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Lower:         -90,
		Upper:         90,
		Step:          1,
		Interval:      100 * time.Millisecond,
		Tolerance:     0.1,
		DutyCenter:    150,
		DutyPerDegree: 100.0 / 90.0,
		MinDuty:       50,
		MaxDuty:       250,
	}
}

func (c SweepConfig) validate() error {
	switch {
	case c.Step <= 0:
		return fmt.Errorf("sweep step must be positive, got %v", c.Step)
	case c.Upper-c.Lower < c.Step:
		return fmt.Errorf("sweep range %v..%v is shorter than one step", c.Lower, c.Upper)
	case c.Tolerance <= 0:
		return fmt.Errorf("tolerance must be positive, got %v", c.Tolerance)
	case c.MinDuty > c.MaxDuty:
		return fmt.Errorf("duty range %d..%d is empty", c.MinDuty, c.MaxDuty)
	case c.Interval < 0:
		return fmt.Errorf("sweep interval must not be negative, got %v", c.Interval)
	}
	return nil
}

// Duty converts an angle into the servo duty value. The result is always within MinDuty..MaxDuty, even
// for angles past the sweep bounds.
func (c SweepConfig) Duty(angle float64) int {
	return clamp(int(c.DutyCenter+angle*c.DutyPerDegree), c.MinDuty, c.MaxDuty)
}

// reachable checks that some step of the sweep lands within tolerance of the position
func (c SweepConfig) reachable(position float64) bool {
	if position < c.Lower || position > c.Upper {
		return false
	}

	for _, origin := range []float64{c.Lower, c.Upper} {
		k := math.Round(math.Abs(position-origin) / c.Step)
		if math.Abs(math.Abs(position-origin)-k*c.Step) < c.Tolerance {
			return true
		}
	}
	return false
}

// sweep is a triangle wave between lower and upper. The angle is always computed from the origin of the
// current pass so rounding errors do not accumulate.
type sweep struct {
	lower, upper, step float64

	origin    float64
	direction int
	index     int

	last    float64
	visited bool
}

func newSweep(cfg SweepConfig) *sweep {
	return &sweep{
		lower:     cfg.Lower,
		upper:     cfg.Upper,
		step:      cfg.Step,
		origin:    cfg.Lower,
		direction: +1,
	}
}

// next returns the next angle to write. An angle past either bound is never returned: the direction
// reverses and the step index restarts from that bound instead.
func (w *sweep) next() float64 {
	for {
		angle := w.origin + float64(w.index)*w.step*float64(w.direction)
		if angle > w.upper || angle < w.lower {
			w.reverse()
			continue
		}

		w.index++
		w.last = angle
		w.visited = true
		return angle
	}
}

func (w *sweep) reverse() {
	w.direction = -w.direction
	w.origin = w.lower
	if w.direction < 0 {
		w.origin = w.upper
	}

	w.index = 0
	// the bound was the last angle written, don't write it twice
	if w.visited && math.Abs(w.last-w.origin) < w.step/2 {
		w.index = 1
	}
}

// stationsAt returns every station whose position is within tolerance of the angle
func stationsAt(angle float64, positions []float64, tolerance float64) []int {
	var stations []int
	for i, p := range positions {
		if math.Abs(angle-p) < tolerance {
			stations = append(stations, i)
		}
	}
	return stations
}

// Sweeper is the producer side of a session. It moves the servo back and forth and publishes an event to
// the Coordinator every time the angle reaches a station.
type Sweeper struct {
	cfg       SweepConfig
	positions []float64

	coord    *Coordinator
	out      Positioner
	observer Observer
	limiter  *rate.Limiter
	log      zerolog.Logger

	wave *sweep
}

// NewSweeper creates a Sweeper for one session
func NewSweeper(cfg SweepConfig, positions []float64, coord *Coordinator, out Positioner, observer Observer, log zerolog.Logger) *Sweeper {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Sweeper{
		cfg:       cfg,
		positions: positions,
		coord:     coord,
		out:       out,
		observer:  observer,
		limiter:   rate.NewLimiter(rate.Every(cfg.Interval), 1),
		log:       log,
		wave:      newSweep(cfg),
	}
}

// Run sweeps until the session is complete or ctx is cancelled. The servo is always stopped on return.
func (s *Sweeper) Run(ctx context.Context) (err error) {
	defer func() {
		stopErr := s.out.Stop()
		if stopErr != nil {
			err = errors.Join(err, fmt.Errorf("%w: stopping servo: %w", ErrActuator, stopErr))
		}
		s.log.Debug().Err(err).Msg("sweep stopped")
	}()

	for !s.coord.IsComplete() {
		if err := ctx.Err(); err != nil {
			return err
		}

		angle := s.wave.next()
		duty := s.cfg.Duty(angle)
		if err := s.out.SetPositionDuty(duty); err != nil {
			return fmt.Errorf("%w: servo duty %d: %w", ErrActuator, duty, err)
		}
		s.log.Debug().Float64("angle", angle).Int("duty", duty).Msg("moved")

		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		for _, station := range stationsAt(angle, s.positions, s.cfg.Tolerance) {
			accepted, overwrote := s.coord.Publish(station)
			if !accepted {
				break
			}
			s.observer.StationReached(station, overwrote)
			s.log.Info().
				Int("station", station+1).
				Float64("position", s.positions[station]).
				Bool("overwrote", overwrote).
				Msg("station reached")
		}
	}

	return nil
}

func clamp(value, min, max int) int {
	if value < min {
		value = min
	}
	if value > max {
		value = max
	}
	return value
}
