// Package metrics provides Prometheus metrics for the card dealer.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/calvinmclean/carddealer"
	"github.com/calvinmclean/carddealer/dealer"
)

var (
	SessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carddealer_sessions_started_total",
		Help: "Total number of distribution sessions started.",
	})

	SessionsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carddealer_sessions_finished_total",
		Help: "Total number of distribution sessions finished, by result (complete/aborted/failed).",
	}, []string{"result"})

	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "carddealer_session_duration_seconds",
		Help:    "Duration of finished distribution sessions.",
		Buckets: prometheus.ExponentialBuckets(5, 2, 8),
	})

	CardsDealtTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carddealer_cards_dealt_total",
		Help: "Total number of dispense cycles completed, by station (1-based).",
	}, []string{"station"})

	StationEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carddealer_station_events_total",
		Help: "Total number of station-reached events published by the sweep, by station (1-based).",
	}, []string{"station"})

	EventsOverwrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carddealer_events_overwritten_total",
		Help: "Total number of pending station events replaced before the dispenser took them.",
	})

	EventsDiscardedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carddealer_events_discarded_total",
		Help: "Total number of station events taken by the dispenser without dealing, by reason.",
	}, []string{"reason"})

	CommandsIgnoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carddealer_commands_ignored_total",
		Help: "Total number of inbound frames ignored as malformed.",
	})

	ActiveSession = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "carddealer_session_active",
		Help: "1 while a distribution session is running.",
	})
)

// Observer records dealer activity in the package metrics
type Observer struct{}

var _ dealer.Observer = Observer{}

// SessionStarted implements dealer.Observer.
func (Observer) SessionStarted(carddealer.Session) {
	SessionsStartedTotal.Inc()
	ActiveSession.Set(1)
}

// SessionFinished implements dealer.Observer.
func (Observer) SessionFinished(r dealer.Result) {
	ActiveSession.Set(0)
	SessionDuration.Observe(r.Duration.Seconds())
	SessionsFinishedTotal.WithLabelValues(resultLabel(r)).Inc()
}

// StationReached implements dealer.Observer.
func (Observer) StationReached(station int, overwrote bool) {
	StationEventsTotal.WithLabelValues(stationLabel(station)).Inc()
	if overwrote {
		EventsOverwrittenTotal.Inc()
	}
}

// EventDiscarded implements dealer.Observer.
func (Observer) EventDiscarded(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	EventsDiscardedTotal.WithLabelValues(reason).Inc()
}

// CardDealt implements dealer.Observer.
func (Observer) CardDealt(station int) {
	CardsDealtTotal.WithLabelValues(stationLabel(station)).Inc()
}

// IncCommandIgnored records a malformed inbound frame
func IncCommandIgnored() {
	CommandsIgnoredTotal.Inc()
}

func resultLabel(r dealer.Result) string {
	switch {
	case r.Complete():
		return "complete"
	case r.Aborted():
		return "aborted"
	default:
		return "failed"
	}
}

func stationLabel(station int) string {
	return strconv.Itoa(station + 1)
}
