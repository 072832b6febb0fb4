package dealer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinmclean/carddealer"
	"github.com/calvinmclean/carddealer/dealer"
	"github.com/calvinmclean/carddealer/device"
)

func testConfig() dealer.Config {
	cfg := dealer.DefaultConfig()
	cfg.Sweep.Interval = 0
	cfg.Dispense = dealer.DispenseConfig{
		Stages: []dealer.Stage{
			{Motor: carddealer.MotorFeed, Speed: 100, Hold: time.Millisecond},
			{Motor: carddealer.MotorEject, Speed: 100, Hold: time.Millisecond},
			{Motor: carddealer.MotorFeed, Speed: 3, Hold: time.Millisecond},
		},
	}
	return cfg
}

func newDealer(t *testing.T, cfg dealer.Config) (*dealer.Dealer, *device.Simulator) {
	t.Helper()

	sim := device.NewSimulator(zerolog.Nop())
	d, err := dealer.New(cfg, sim, sim)
	require.NoError(t, err)
	t.Cleanup(d.Close)

	return d, sim
}

// cycles counts eject starts, one per dealt card
func cycles(sim *device.Simulator) int {
	n := 0
	for _, c := range sim.Stages() {
		if c.Motor == carddealer.MotorEject && c.Speed > 0 {
			n++
		}
	}
	return n
}

type recordingObserver struct {
	dealer.NopObserver

	lock     sync.Mutex
	started  []carddealer.Session
	finished []dealer.Result
	dealt    []int
}

func (o *recordingObserver) SessionStarted(s carddealer.Session) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.started = append(o.started, s)
}

func (o *recordingObserver) SessionFinished(r dealer.Result) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.finished = append(o.finished, r)
}

func (o *recordingObserver) CardDealt(station int) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.dealt = append(o.dealt, station)
}

func TestDealThreeStationsTwoEach(t *testing.T) {
	observer := &recordingObserver{}
	var onFinish []dealer.Result

	cfg := testConfig()
	cfg.Observer = observer
	cfg.OnFinish = func(r dealer.Result) { onFinish = append(onFinish, r) }

	d, sim := newDealer(t, cfg)

	result, err := d.Run(context.Background(), carddealer.Request{Stations: 3, Quota: 2})
	require.NoError(t, err)

	assert.True(t, result.Complete())
	assert.False(t, result.Aborted())
	assert.Equal(t, []int{2, 2, 2}, result.Ledger)
	assert.Equal(t, 6, result.Dealt)
	assert.Equal(t, 6, cycles(sim))
	assert.Equal(t, []float64{-60, 0, 60}, result.Session.Positions)
	assert.NotEmpty(t, result.Session.ID)

	for _, duty := range sim.Duties() {
		require.GreaterOrEqual(t, duty, 50)
		require.LessOrEqual(t, duty, 250)
	}

	calls := sim.Calls()
	var lastServo device.Call
	for _, c := range calls {
		if c.Kind != device.CallStage {
			lastServo = c
		}
	}
	assert.Equal(t, device.CallStop, lastServo.Kind, "servo is stopped at the end")

	assert.Len(t, observer.started, 1)
	assert.Len(t, observer.finished, 1)
	assert.Len(t, observer.dealt, 6)
	require.Len(t, onFinish, 1)
	assert.Equal(t, result.Session.ID, onFinish[0].Session.ID)

	assert.Equal(t, carddealer.StateIdle, d.Status().State)
}

func TestDealUsesFirstPositions(t *testing.T) {
	d, sim := newDealer(t, testConfig())

	result, err := d.Run(context.Background(), carddealer.Request{Stations: 1, Quota: 3})
	require.NoError(t, err)

	assert.Equal(t, []int{3}, result.Ledger)
	assert.Equal(t, []float64{-60}, result.Session.Positions)
	assert.Equal(t, 3, cycles(sim))
}

func TestStartRejectsInvalidRequests(t *testing.T) {
	d, sim := newDealer(t, testConfig())

	tests := []struct {
		name string
		req  carddealer.Request
		err  error
	}{
		{"NoStations", carddealer.Request{Stations: 0, Quota: 1}, carddealer.ErrInvalidRequest},
		{"QuotaTooLarge", carddealer.Request{Stations: 1, Quota: 10}, carddealer.ErrInvalidRequest},
		{"NotEnoughPositions", carddealer.Request{Stations: 4, Quota: 1}, dealer.ErrNotEnoughPositions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Start(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.Empty(t, sim.Calls(), "no actuator output without a session")
	_, ok := d.Wait()
	assert.False(t, ok)
}

func TestNewRejectsBadPositions(t *testing.T) {
	sim := device.NewSimulator(zerolog.Nop())

	tests := []struct {
		name      string
		positions []float64
		err       error
	}{
		{"BetweenSteps", []float64{-60, 12.5}, dealer.ErrUnreachablePosition},
		{"OutOfRange", []float64{120}, dealer.ErrUnreachablePosition},
		{"Overlapping", []float64{0, 0}, dealer.ErrOverlappingPositions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Positions = tt.positions

			_, err := dealer.New(cfg, sim, sim)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	_, err := dealer.New(testConfig(), nil, sim)
	assert.Error(t, err)
}

func TestBusyAndAbort(t *testing.T) {
	cfg := testConfig()
	cfg.Sweep.Interval = 5 * time.Millisecond

	d, _ := newDealer(t, cfg)

	assert.ErrorIs(t, d.Abort(), dealer.ErrNoSession)

	session, err := d.Start(context.Background(), carddealer.Request{Stations: 3, Quota: 9})
	require.NoError(t, err)

	status := d.Status()
	assert.Equal(t, carddealer.StateRunning, status.State)
	assert.Equal(t, session.ID, status.SessionID)

	_, err = d.Start(context.Background(), carddealer.Request{Stations: 1, Quota: 1})
	assert.ErrorIs(t, err, dealer.ErrSessionActive)

	require.NoError(t, d.Abort())

	result, ok := d.Wait()
	require.True(t, ok)
	assert.True(t, result.Aborted())
	assert.False(t, result.Complete())
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, session.ID, result.Session.ID)
	assert.Equal(t, carddealer.StateIdle, d.Status().State)

	// a new session can start once the old one has joined
	next, err := d.Start(context.Background(), carddealer.Request{Stations: 1, Quota: 1})
	require.NoError(t, err)
	assert.NotEqual(t, session.ID, next.ID)

	result, _ = d.Wait()
	assert.Equal(t, next.ID, result.Session.ID)
}

func TestContextCancelAborts(t *testing.T) {
	cfg := testConfig()
	cfg.Sweep.Interval = 5 * time.Millisecond

	d, sim := newDealer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(50*time.Millisecond, cancel)
	defer timer.Stop()

	result, err := d.Run(ctx, carddealer.Request{Stations: 3, Quota: 9})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, result.Aborted())
	assert.Less(t, result.Dealt, 27)

	stopped := false
	for _, c := range sim.Calls() {
		if c.Kind == device.CallStop {
			stopped = true
		}
	}
	assert.True(t, stopped, "servo is stopped after an abort")
}

func TestActuatorFailureEndsSession(t *testing.T) {
	t.Run("Dispense", func(t *testing.T) {
		d, sim := newDealer(t, testConfig())
		sim.FailDispenseAfter(2)

		result, err := d.Run(context.Background(), carddealer.Request{Stations: 3, Quota: 2})
		assert.ErrorIs(t, err, dealer.ErrActuator)
		assert.ErrorIs(t, err, device.ErrInjected)
		assert.False(t, result.Complete())
		assert.False(t, result.Aborted())
		assert.Equal(t, carddealer.StateIdle, d.Status().State)
	})

	t.Run("Position", func(t *testing.T) {
		d, sim := newDealer(t, testConfig())
		sim.FailPositionAfter(10)

		result, err := d.Run(context.Background(), carddealer.Request{Stations: 3, Quota: 2})
		assert.ErrorIs(t, err, dealer.ErrActuator)
		assert.Equal(t, 0, result.Dealt, "the first station is never reached")
		assert.Len(t, sim.Duties(), 10)
	})
}

func TestSlowDispenseFastSweep(t *testing.T) {
	run := func(t *testing.T, capacity int) dealer.Result {
		cfg := testConfig()
		cfg.Sweep.Step = 5
		cfg.Sweep.Interval = time.Millisecond
		cfg.Dispense.Stages = []dealer.Stage{
			{Motor: carddealer.MotorFeed, Speed: 100, Hold: 50 * time.Millisecond},
			{Motor: carddealer.MotorEject, Speed: 100, Hold: 50 * time.Millisecond},
			{Motor: carddealer.MotorFeed, Speed: 3, Hold: 50 * time.Millisecond},
		}
		cfg.MailboxCapacity = capacity

		d, _ := newDealer(t, cfg)
		result, err := d.Run(context.Background(), carddealer.Request{Stations: 2, Quota: 1})
		require.NoError(t, err)
		return result
	}

	t.Run("SingleSlotOverwrites", func(t *testing.T) {
		result := run(t, 1)
		assert.True(t, result.Complete())
		assert.Positive(t, result.Overwritten)
	})

	t.Run("BoundedQueueKeepsEvents", func(t *testing.T) {
		result := run(t, 64)
		assert.True(t, result.Complete())
		assert.Zero(t, result.Overwritten)
		assert.GreaterOrEqual(t, result.Published, 2)
	})
}

func TestPositions(t *testing.T) {
	d, _ := newDealer(t, testConfig())

	positions := d.Positions()
	assert.Equal(t, []float64{-60, 0, 60}, positions)

	positions[0] = 5
	assert.Equal(t, []float64{-60, 0, 60}, d.Positions())
}
