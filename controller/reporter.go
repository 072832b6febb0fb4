package controller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/calvinmclean/carddealer"
	"github.com/calvinmclean/carddealer/dealer"
	"github.com/calvinmclean/carddealer/report"
)

const (
	reportQueueSize = 64
	reportTimeout   = 5 * time.Second
)

type reportClient interface {
	SessionStarted(ctx context.Context, s carddealer.Session) error
	CardDealt(ctx context.Context, sessionID string, d report.Delivery) error
	SessionFinished(ctx context.Context, r dealer.Result) error
}

type noopReportClient struct{}

var _ reportClient = noopReportClient{}

// SessionStarted implements reportClient.
func (noopReportClient) SessionStarted(context.Context, carddealer.Session) error {
	return nil
}

// CardDealt implements reportClient.
func (noopReportClient) CardDealt(context.Context, string, report.Delivery) error {
	return nil
}

// SessionFinished implements reportClient.
func (noopReportClient) SessionFinished(context.Context, dealer.Result) error {
	return nil
}

// reporter is a dealer.Observer that forwards session activity to a reportClient from its own goroutine so
// the sweep and dispense loops never wait on the network
type reporter struct {
	dealer.NopObserver

	client reportClient
	jobs   chan func(context.Context) error
	wg     sync.WaitGroup
	closed sync.Once
	log    zerolog.Logger

	lock      sync.Mutex
	sessionID string
	cards     int
}

var _ dealer.Observer = &reporter{}

func newReporter(client reportClient, log zerolog.Logger) *reporter {
	r := &reporter{
		client: client,
		jobs:   make(chan func(context.Context) error, reportQueueSize),
		log:    log,
	}

	r.wg.Add(1)
	go r.work()

	return r
}

func (r *reporter) work() {
	defer r.wg.Done()

	for job := range r.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		err := job(ctx)
		cancel()
		if err != nil {
			r.log.Error().Err(err).Msg("error sending report")
		}
	}
}

func (r *reporter) enqueue(job func(context.Context) error) {
	select {
	case r.jobs <- job:
	default:
		r.log.Warn().Msg("report queue full, dropping update")
	}
}

// SessionStarted implements dealer.Observer.
func (r *reporter) SessionStarted(s carddealer.Session) {
	r.lock.Lock()
	r.sessionID = s.ID
	r.cards = 0
	r.lock.Unlock()

	r.enqueue(func(ctx context.Context) error {
		return r.client.SessionStarted(ctx, s)
	})
}

// CardDealt implements dealer.Observer.
func (r *reporter) CardDealt(station int) {
	r.lock.Lock()
	r.cards++
	id := r.sessionID
	d := report.Delivery{Station: station, Card: r.cards, Time: time.Now()}
	r.lock.Unlock()

	r.enqueue(func(ctx context.Context) error {
		return r.client.CardDealt(ctx, id, d)
	})
}

// SessionFinished implements dealer.Observer.
func (r *reporter) SessionFinished(result dealer.Result) {
	r.enqueue(func(ctx context.Context) error {
		return r.client.SessionFinished(ctx, result)
	})
}

// Close sends everything still queued and stops the worker
func (r *reporter) Close() {
	r.closed.Do(func() {
		close(r.jobs)
	})
	r.wg.Wait()
}
