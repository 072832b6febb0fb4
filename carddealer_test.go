package carddealer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"Smallest", Request{Stations: 1, Quota: 1}, false},
		{"Largest", Request{Stations: 9, Quota: 9}, false},
		{"NoStations", Request{Stations: 0, Quota: 2}, true},
		{"TooManyStations", Request{Stations: 10, Quota: 2}, true},
		{"NoQuota", Request{Stations: 3, Quota: 0}, true},
		{"NegativeQuota", Request{Stations: 3, Quota: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRequestTarget(t *testing.T) {
	req := Request{Stations: 3, Quota: 2}
	assert.Equal(t, 6, req.Target())
	assert.Equal(t, "P3C2", req.String())
	assert.Equal(t, 6, Session{Request: req}.Target())
}

func TestStatusString(t *testing.T) {
	t.Run("Idle", func(t *testing.T) {
		assert.Equal(t, "Idle", Status{}.String())
	})

	t.Run("Running", func(t *testing.T) {
		s := Status{
			State:     StateRunning,
			SessionID: "abc",
			Request:   Request{Stations: 3, Quota: 2},
			Ledger:    []int{2, 1, 0},
			Dealt:     3,
		}
		assert.Equal(t, "Running abc P3C2 3/6 [2 1 0]", s.String())
	})
}

func TestStatusJSON(t *testing.T) {
	data, err := json.Marshal(Status{State: StateCompleting, SessionID: "abc", Dealt: 1})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Completing", got["state"])
	assert.Equal(t, "abc", got["session_id"])
	assert.NotContains(t, got, "started_at")

	data, err = json.Marshal(Status{State: StateRunning, StartedAt: time.Date(2025, 11, 27, 16, 6, 26, 0, time.UTC)})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"started_at":"2025-11-27T16:06:26Z"`)
}

func TestMotorString(t *testing.T) {
	assert.Equal(t, "Feed", MotorFeed.String())
	assert.Equal(t, "Eject", MotorEject.String())
	assert.Equal(t, "Unknown", Motor(7).String())
	assert.Len(t, Motors, 2)
}
