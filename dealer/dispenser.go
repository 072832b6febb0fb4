package dealer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/calvinmclean/carddealer"
)

// ErrActuator wraps any failed write to the servo or motors. It is fatal for the session.
var ErrActuator = errors.New("actuator failure")

// Stage is one step of a dispense cycle: run a motor at Speed for Hold, then switch it off
type Stage struct {
	Motor carddealer.Motor
	Speed int
	Hold  time.Duration
}

// DispenseConfig has the stages of one dispense cycle, run in order
type DispenseConfig struct {
	Stages []Stage
}

// DefaultDispenseConfig feeds a card, ejects it, then nudges the feed motor slowly to settle the stack
func DefaultDispenseConfig() DispenseConfig {
	return DispenseConfig{
		Stages: []Stage{
			{Motor: carddealer.MotorFeed, Speed: 100, Hold: 700 * time.Millisecond},
			{Motor: carddealer.MotorEject, Speed: 100, Hold: 500 * time.Millisecond},
			{Motor: carddealer.MotorFeed, Speed: 3, Hold: 100 * time.Millisecond},
		},
	}
}

func (c DispenseConfig) validate() error {
	if len(c.Stages) == 0 {
		return errors.New("dispense cycle has no stages")
	}
	for i, s := range c.Stages {
		if s.Speed <= 0 || s.Speed > 100 {
			return fmt.Errorf("stage %d speed %d not in 1..100", i+1, s.Speed)
		}
		if s.Hold < 0 {
			return fmt.Errorf("stage %d hold must not be negative", i+1)
		}
	}
	return nil
}

// Duration is how long one cycle takes
func (c DispenseConfig) Duration() time.Duration {
	var d time.Duration
	for _, s := range c.Stages {
		d += s.Hold
	}
	return d
}

// Dispenser is the consumer side of a session. It waits for station events, keeps each station at or
// below its quota and runs the dispense cycle for every accepted event.
type Dispenser struct {
	cfg DispenseConfig

	coord    *Coordinator
	out      Feeder
	observer Observer
	log      zerolog.Logger
}

// NewDispenser creates a Dispenser for one session
func NewDispenser(cfg DispenseConfig, coord *Coordinator, out Feeder, observer Observer, log zerolog.Logger) *Dispenser {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Dispenser{
		cfg:      cfg,
		coord:    coord,
		out:      out,
		observer: observer,
		log:      log,
	}
}

// Run deals cards until every station has its quota. It returns ctx's error if the session is aborted
// and an ErrActuator error if a motor write fails.
func (d *Dispenser) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, d.coord.Close)
	defer stop()

	for !d.coord.IsComplete() {
		station, ok := d.coord.TakePending()
		if !ok {
			// closed early or complete
			return ctx.Err()
		}

		count, err := d.coord.Record(station)
		switch {
		case errors.Is(err, ErrQuotaMet):
			d.observer.EventDiscarded("quota_met")
			d.log.Debug().Int("station", station+1).Msg("station already has its cards")
			continue
		case errors.Is(err, ErrUnknownStation):
			d.observer.EventDiscarded("unknown_station")
			d.log.Warn().Int("station", station+1).Msg("discarding event for unknown station")
			continue
		case err != nil:
			return err
		}

		err = d.cycle()
		if err != nil {
			return err
		}

		d.observer.CardDealt(station)
		d.log.Info().Int("station", station+1).Int("card", count).Msg("dealt card")
	}

	return nil
}

// cycle runs every stage to completion. It is not interrupted by cancellation so a card is never left
// half-fed. If a write fails, all motors are switched off.
func (d *Dispenser) cycle() error {
	for _, s := range d.cfg.Stages {
		err := d.out.SetDispenseStage(s.Motor, s.Speed)
		if err != nil {
			return d.fail(fmt.Errorf("%w: starting %s motor: %w", ErrActuator, s.Motor, err))
		}

		time.Sleep(s.Hold)

		err = d.out.SetDispenseStage(s.Motor, 0)
		if err != nil {
			return d.fail(fmt.Errorf("%w: stopping %s motor: %w", ErrActuator, s.Motor, err))
		}
	}
	return nil
}

func (d *Dispenser) fail(err error) error {
	for _, m := range carddealer.Motors {
		offErr := d.out.SetDispenseStage(m, 0)
		if offErr != nil {
			d.log.Error().Err(offErr).Stringer("motor", m).Msg("failed to switch off motor")
		}
	}
	return err
}
