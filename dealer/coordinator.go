package dealer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/calvinmclean/carddealer"
)

var (
	// ErrQuotaMet is returned by Record when the station already has all of its cards
	ErrQuotaMet = errors.New("station quota already met")
	// ErrUnknownStation is returned by Record for a station index outside of the session
	ErrUnknownStation = errors.New("unknown station")
)

// Coordinator is the state shared by the sweep and dispense loops of one session. It owns the pending
// event mailbox, the delivery ledger and the completion counter, all guarded by a single mutex.
type Coordinator struct {
	lock    *sync.Mutex
	pending *sync.Cond

	mailbox mailbox
	ledger  []int
	quota   int

	// completed is always the sum of ledger
	completed int
	target    int

	state  carddealer.State
	closed bool

	published   int
	overwritten int
	discarded   int
}

// Snapshot is a copy of the Coordinator's counters
type Snapshot struct {
	State       carddealer.State
	Ledger      []int
	Completed   int
	Target      int
	Published   int
	Overwritten int
	Discarded   int
}

// NewCoordinator creates an Idle Coordinator for the request. capacity is the number of events that can
// be pending at once; 1 keeps the single-slot handoff.
func NewCoordinator(req carddealer.Request, capacity int) *Coordinator {
	lock := &sync.Mutex{}
	return &Coordinator{
		lock:    lock,
		pending: sync.NewCond(lock),
		mailbox: newMailbox(capacity),
		ledger:  make([]int, req.Stations),
		quota:   req.Quota,
		target:  req.Target(),
		state:   carddealer.StateIdle,
	}
}

// Publish hands a station-reached event to the dispense loop and wakes one waiter. It never blocks on the
// consumer. accepted is false once the session is complete or closed; overwrote is true when a pending
// event was replaced.
func (c *Coordinator) Publish(station int) (accepted, overwrote bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed || c.completed >= c.target {
		return false, false
	}

	c.published++
	overwrote = c.mailbox.put(station)
	if overwrote {
		c.overwritten++
	}
	c.pending.Signal()

	return true, overwrote
}

// TakePending waits until an event is pending and takes it. It returns false without waiting once the
// session is complete or closed.
func (c *Coordinator) TakePending() (int, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for c.mailbox.empty() && !c.closed && c.completed < c.target {
		c.pending.Wait()
	}

	if c.closed || c.completed >= c.target {
		return 0, false
	}

	return c.mailbox.take()
}

// Record counts one delivery for the station. The ledger entry and the completion counter change together.
// It returns the station's new count.
func (c *Coordinator) Record(station int) (int, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if station < 0 || station >= len(c.ledger) {
		c.discarded++
		return 0, fmt.Errorf("%w: %d", ErrUnknownStation, station)
	}
	if c.ledger[station] >= c.quota {
		c.discarded++
		return c.ledger[station], ErrQuotaMet
	}

	c.ledger[station]++
	c.completed++
	if c.completed == c.target {
		c.state = carddealer.StateCompleting
		// wake anything still waiting so it can see completion
		c.pending.Broadcast()
	}

	return c.ledger[station], nil
}

// IsComplete reports whether every station has its quota
func (c *Coordinator) IsComplete() bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.completed >= c.target
}

// Close stops the session early. Waiters wake up and see no more events.
func (c *Coordinator) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.closed = true
	c.pending.Broadcast()
}

// State returns the current session state
func (c *Coordinator) State() carddealer.State {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state
}

// Snapshot copies the counters
func (c *Coordinator) Snapshot() Snapshot {
	c.lock.Lock()
	defer c.lock.Unlock()

	ledger := make([]int, len(c.ledger))
	copy(ledger, c.ledger)

	return Snapshot{
		State:       c.state,
		Ledger:      ledger,
		Completed:   c.completed,
		Target:      c.target,
		Published:   c.published,
		Overwritten: c.overwritten,
		Discarded:   c.discarded,
	}
}

func (c *Coordinator) start() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.state = carddealer.StateRunning
}

// finish is called once both loops have exited
func (c *Coordinator) finish() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.closed = true
	c.state = carddealer.StateIdle
}
