package dealer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/calvinmclean/carddealer"
)

var (
	// ErrSessionActive is returned by Start while another session is still running
	ErrSessionActive = errors.New("session already running")
	// ErrNoSession is returned by Abort when nothing is running
	ErrNoSession = errors.New("no session running")
	// ErrNotEnoughPositions is returned when a request has more stations than configured positions
	ErrNotEnoughPositions = errors.New("not enough station positions configured")
	// ErrUnreachablePosition is returned for a station position the sweep would never land on
	ErrUnreachablePosition = errors.New("station position is not reachable by the sweep")
	// ErrOverlappingPositions is returned when two station positions can match the same angle
	ErrOverlappingPositions = errors.New("station positions overlap")
)

// Config has everything needed to run sessions
type Config struct {
	Sweep    SweepConfig
	Dispense DispenseConfig

	// Positions is the ordered list of station angles. A session with N stations uses the first N.
	Positions []float64

	// MailboxCapacity is how many station events can wait for the dispenser. 1 keeps a single pending
	// event, and a newer event replaces an unconsumed one.
	MailboxCapacity int

	Observer Observer
	// OnFinish is called with the result after both loops have exited and before Wait returns
	OnFinish func(Result)

	Logger zerolog.Logger
}

// DefaultConfig uses the original dealer's calibration with three stations at -60, 0 and 60 degrees
func DefaultConfig() Config {
	return Config{
		Sweep:           DefaultSweepConfig(),
		Dispense:        DefaultDispenseConfig(),
		Positions:       []float64{-60, 0, 60},
		MailboxCapacity: 1,
	}
}

// Result is the outcome of a finished session
type Result struct {
	Session carddealer.Session
	Ledger  []int
	Dealt   int

	Published   int
	Overwritten int
	Discarded   int

	Duration time.Duration

	// Err is nil when every card was dealt, context.Canceled when aborted, or an ErrActuator error
	Err error
}

// Complete is true when the session dealt every card
func (r Result) Complete() bool {
	return r.Err == nil && r.Dealt == r.Session.Target()
}

// Aborted is true when the session was cancelled before completion
func (r Result) Aborted() bool {
	return errors.Is(r.Err, context.Canceled)
}

// Dealer runs one distribution session at a time. Each session gets its own Coordinator shared by a
// Sweeper and a Dispenser running in parallel.
type Dealer struct {
	cfg        Config
	positioner Positioner
	feeder     Feeder
	log        zerolog.Logger

	lock    sync.Mutex
	active  *run
	lastRun *run
}

type run struct {
	session carddealer.Session
	coord   *Coordinator
	cancel  context.CancelFunc
	done    chan struct{}
	result  Result
}

// New creates a Dealer. It fails if the configuration can never complete a session.
func New(cfg Config, positioner Positioner, feeder Feeder) (*Dealer, error) {
	if positioner == nil || feeder == nil {
		return nil, errors.New("positioner and feeder are required")
	}

	err := cfg.Sweep.validate()
	if err != nil {
		return nil, fmt.Errorf("invalid sweep config: %w", err)
	}

	err = cfg.Dispense.validate()
	if err != nil {
		return nil, fmt.Errorf("invalid dispense config: %w", err)
	}

	err = validatePositions(cfg.Sweep, cfg.Positions)
	if err != nil {
		return nil, err
	}

	if cfg.MailboxCapacity < 1 {
		cfg.MailboxCapacity = 1
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}

	return &Dealer{
		cfg:        cfg,
		positioner: positioner,
		feeder:     feeder,
		log:        cfg.Logger,
	}, nil
}

func validatePositions(sweep SweepConfig, positions []float64) error {
	for i, p := range positions {
		if !sweep.reachable(p) {
			return fmt.Errorf("%w: station %d at %v", ErrUnreachablePosition, i+1, p)
		}
		for j := i + 1; j < len(positions); j++ {
			if math.Abs(p-positions[j]) < 2*sweep.Tolerance {
				return fmt.Errorf("%w: stations %d and %d", ErrOverlappingPositions, i+1, j+1)
			}
		}
	}
	return nil
}

// Start begins a session in the background and returns immediately. Cancelling ctx aborts the session.
func (d *Dealer) Start(ctx context.Context, req carddealer.Request) (carddealer.Session, error) {
	r, err := d.start(ctx, req)
	if err != nil {
		return carddealer.Session{}, err
	}
	return r.session, nil
}

// Run starts a session and waits for it to finish
func (d *Dealer) Run(ctx context.Context, req carddealer.Request) (Result, error) {
	r, err := d.start(ctx, req)
	if err != nil {
		return Result{}, err
	}

	<-r.done
	return r.result, r.result.Err
}

func (d *Dealer) start(ctx context.Context, req carddealer.Request) (*run, error) {
	err := req.Validate()
	if err != nil {
		return nil, err
	}

	if req.Stations > len(d.cfg.Positions) {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrNotEnoughPositions, req.Stations, len(d.cfg.Positions))
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	if d.active != nil {
		return nil, ErrSessionActive
	}

	positions := make([]float64, req.Stations)
	copy(positions, d.cfg.Positions)

	session := carddealer.Session{
		ID:        xid.New().String(),
		Request:   req,
		Positions: positions,
		StartedAt: time.Now(),
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		session: session,
		coord:   NewCoordinator(req, d.cfg.MailboxCapacity),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	r.coord.start()

	d.active = r
	d.lastRun = r

	d.cfg.Observer.SessionStarted(session)
	d.log.Info().
		Str("session", session.ID).
		Int("stations", req.Stations).
		Int("quota", req.Quota).
		Floats64("positions", positions).
		Msg("session started")

	go d.run(runCtx, r)

	return r, nil
}

func (d *Dealer) run(ctx context.Context, r *run) {
	defer r.cancel()

	log := d.log.With().Str("session", r.session.ID).Logger()

	sweeper := NewSweeper(d.cfg.Sweep, r.session.Positions, r.coord, d.positioner, d.cfg.Observer, log.With().Str("loop", "sweep").Logger())
	dispenser := NewDispenser(d.cfg.Dispense, r.coord, d.feeder, d.cfg.Observer, log.With().Str("loop", "dispense").Logger())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		return dispenser.Run(gctx)
	})
	err := g.Wait()

	r.coord.finish()
	snap := r.coord.Snapshot()

	result := Result{
		Session:     r.session,
		Ledger:      snap.Ledger,
		Dealt:       snap.Completed,
		Published:   snap.Published,
		Overwritten: snap.Overwritten,
		Discarded:   snap.Discarded,
		Duration:    time.Since(r.session.StartedAt),
		Err:         err,
	}

	level := zerolog.InfoLevel
	switch {
	case result.Aborted():
		level = zerolog.WarnLevel
	case err != nil:
		level = zerolog.ErrorLevel
	}
	log.WithLevel(level).Err(err).
		Ints("ledger", result.Ledger).
		Int("dealt", result.Dealt).
		Int("overwritten", result.Overwritten).
		Int("discarded", result.Discarded).
		Dur("duration", result.Duration).
		Msg("session finished")

	d.lock.Lock()
	r.result = result
	d.active = nil
	d.lock.Unlock()

	d.cfg.Observer.SessionFinished(result)
	if d.cfg.OnFinish != nil {
		d.cfg.OnFinish(result)
	}

	close(r.done)
}

// Wait blocks until the current session, or the most recent one, has finished and returns its result. It
// returns false if no session was ever started.
func (d *Dealer) Wait() (Result, bool) {
	d.lock.Lock()
	r := d.lastRun
	d.lock.Unlock()

	if r == nil {
		return Result{}, false
	}

	<-r.done
	return r.result, true
}

// Abort cancels the running session. Use Wait to block until both loops have exited.
func (d *Dealer) Abort() error {
	d.lock.Lock()
	r := d.active
	d.lock.Unlock()

	if r == nil {
		return ErrNoSession
	}

	r.cancel()
	return nil
}

// Close aborts anything running and waits for it
func (d *Dealer) Close() {
	_ = d.Abort()
	d.Wait()
}

// Status returns the state of the running session, or Idle
func (d *Dealer) Status() carddealer.Status {
	d.lock.Lock()
	r := d.active
	d.lock.Unlock()

	if r == nil {
		return carddealer.Status{State: carddealer.StateIdle}
	}

	snap := r.coord.Snapshot()
	return carddealer.Status{
		State:     snap.State,
		SessionID: r.session.ID,
		Request:   r.session.Request,
		Ledger:    snap.Ledger,
		Dealt:     snap.Completed,
		StartedAt: r.session.StartedAt,
	}
}

// Positions returns the configured station positions
func (d *Dealer) Positions() []float64 {
	positions := make([]float64, len(d.cfg.Positions))
	copy(positions, d.cfg.Positions)
	return positions
}
