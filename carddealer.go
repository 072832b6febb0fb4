package carddealer

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// MaxStations is the largest station count a single-digit command can carry
	MaxStations = 9
	// MaxQuota is the largest per-station quota a single-digit command can carry
	MaxQuota = 9
)

// ErrInvalidRequest is returned when a Request has a station count or quota outside of 1..9
var ErrInvalidRequest = errors.New("invalid request")

// State is the lifecycle state of a distribution session
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleting
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateCompleting:
		return "Completing"
	default:
		fallthrough
	case StateIdle:
		return "Idle"
	}
}

// MarshalText implements encoding.TextMarshaler so JSON shows the name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Motor identifies one of the two DC motor channels of the dispenser
type Motor int

const (
	// MotorFeed pushes the top card out of the stack
	MotorFeed Motor = iota
	// MotorEject throws the fed card towards the station
	MotorEject
)

// Motors lists every motor channel, used to switch everything off after a failure
var Motors = []Motor{MotorFeed, MotorEject}

func (m Motor) String() string {
	switch m {
	case MotorFeed:
		return "Feed"
	case MotorEject:
		return "Eject"
	default:
		return "Unknown"
	}
}

// Request is what a command asks for: how many stations get cards and how many each
type Request struct {
	Stations int
	Quota    int
}

// Validate makes sure both values fit a single-digit command
func (r Request) Validate() error {
	if r.Stations < 1 || r.Stations > MaxStations {
		return fmt.Errorf("%w: station count %d not in 1..%d", ErrInvalidRequest, r.Stations, MaxStations)
	}
	if r.Quota < 1 || r.Quota > MaxQuota {
		return fmt.Errorf("%w: quota %d not in 1..%d", ErrInvalidRequest, r.Quota, MaxQuota)
	}
	return nil
}

// Target is the total number of cards for the request
func (r Request) Target() int {
	return r.Stations * r.Quota
}

func (r Request) String() string {
	return fmt.Sprintf("P%dC%d", r.Stations, r.Quota)
}

// Session is a started distribution. It does not change after it is started.
type Session struct {
	ID        string
	Request   Request
	Positions []float64
	StartedAt time.Time
}

// Target is the total number of cards the session deals
func (s Session) Target() int {
	return s.Request.Target()
}

// Status is a point-in-time view of the dealer
type Status struct {
	State     State     `json:"state"`
	SessionID string    `json:"session_id,omitempty"`
	Request   Request   `json:"request"`
	Ledger    []int     `json:"ledger,omitempty"`
	Dealt     int       `json:"dealt"`
	StartedAt time.Time `json:"started_at,omitzero"`
}

// String formats the status for a single reply line, like "Running abc P3C2 3/6 [2 1 0]"
func (s Status) String() string {
	if s.SessionID == "" {
		return s.State.String()
	}

	b := &strings.Builder{}
	fmt.Fprintf(b, "%s %s %s %d/%d [", s.State, s.SessionID, s.Request, s.Dealt, s.Request.Target())
	for i, n := range s.Ledger {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(b, "%d", n)
	}
	b.WriteByte(']')
	return b.String()
}
