package metrics

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinmclean/carddealer"
	"github.com/calvinmclean/carddealer/dealer"
)

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	err := counter.Write(metric)
	require.NoError(t, err)
	return metric.GetCounter().GetValue()
}

func getCounterVecValue(t *testing.T, counterVec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	return getCounterValue(t, counterVec.WithLabelValues(labels...))
}

func TestObserverSession(t *testing.T) {
	o := Observer{}
	session := carddealer.Session{ID: "abc", Request: carddealer.Request{Stations: 1, Quota: 1}}

	started := getCounterValue(t, SessionsStartedTotal)
	o.SessionStarted(session)
	assert.Equal(t, started+1, getCounterValue(t, SessionsStartedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(ActiveSession))

	tests := []struct {
		name   string
		result dealer.Result
		label  string
	}{
		{"Complete", dealer.Result{Session: session, Dealt: 1, Duration: time.Second}, "complete"},
		{"Aborted", dealer.Result{Session: session, Err: context.Canceled}, "aborted"},
		{"Failed", dealer.Result{Session: session, Err: errors.New("stuck")}, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o.SessionStarted(session)

			before := getCounterVecValue(t, SessionsFinishedTotal, tt.label)
			o.SessionFinished(tt.result)

			assert.Equal(t, before+1, getCounterVecValue(t, SessionsFinishedTotal, tt.label))
			assert.Equal(t, 0.0, testutil.ToFloat64(ActiveSession))
		})
	}

	assert.Equal(t, 1, testutil.CollectAndCount(SessionDuration))
}

func TestObserverEvents(t *testing.T) {
	o := Observer{}

	reached := getCounterVecValue(t, StationEventsTotal, "2")
	overwritten := getCounterValue(t, EventsOverwrittenTotal)
	o.StationReached(1, false)
	o.StationReached(1, true)
	assert.Equal(t, reached+2, getCounterVecValue(t, StationEventsTotal, "2"))
	assert.Equal(t, overwritten+1, getCounterValue(t, EventsOverwrittenTotal))

	dealt := getCounterVecValue(t, CardsDealtTotal, "1")
	o.CardDealt(0)
	assert.Equal(t, dealt+1, getCounterVecValue(t, CardsDealtTotal, "1"))

	quotaMet := getCounterVecValue(t, EventsDiscardedTotal, "quota_met")
	unknown := getCounterVecValue(t, EventsDiscardedTotal, "unknown")
	o.EventDiscarded("quota_met")
	o.EventDiscarded("")
	assert.Equal(t, quotaMet+1, getCounterVecValue(t, EventsDiscardedTotal, "quota_met"))
	assert.Equal(t, unknown+1, getCounterVecValue(t, EventsDiscardedTotal, "unknown"))

	ignored := getCounterValue(t, CommandsIgnoredTotal)
	IncCommandIgnored()
	assert.Equal(t, ignored+1, getCounterValue(t, CommandsIgnoredTotal))
}

func TestMetricsExposed(t *testing.T) {
	IncCommandIgnored()

	recorder := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))

	body := recorder.Body.String()
	assert.Contains(t, body, "carddealer_commands_ignored_total")
	assert.Contains(t, body, "carddealer_session_active")
}
