package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/calvinmclean/babyapi"

	"github.com/calvinmclean/carddealer"
	"github.com/calvinmclean/carddealer/dealer"
)

// Report is the remote record of one distribution session
type Report struct {
	ID         string    `json:"id"`
	Stations   int       `json:"stations"`
	Quota      int       `json:"quota"`
	Positions  []float64 `json:"positions,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Ledger     []int     `json:"ledger,omitempty"`
	Dealt      int       `json:"dealt"`
	Result     string    `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Delivery is a single dealt card
type Delivery struct {
	Station int       `json:"station"`
	Card    int       `json:"card"`
	Time    time.Time `json:"time"`
}

type report struct {
	// include NilResource so we don't implement Render/Bind which are not needed
	*babyapi.NilResource
	Report
}

func (r report) GetID() string {
	return r.Report.ID
}

// Client sends session reports to a babyapi server
type Client struct {
	client *babyapi.Client[*report]
}

func NewClient(addr string) *Client {
	client := babyapi.NewClient[*report](addr, "/reports")
	return &Client{client: client}
}

// SessionStarted creates the report for a new session
func (c *Client) SessionStarted(ctx context.Context, s carddealer.Session) error {
	_, err := c.client.Post(ctx, &report{
		Report: Report{
			ID:        s.ID,
			Stations:  s.Request.Stations,
			Quota:     s.Request.Quota,
			Positions: s.Positions,
			StartedAt: s.StartedAt,
		},
	})
	if err != nil {
		return fmt.Errorf("error creating report: %w", err)
	}
	return nil
}

// CardDealt adds a delivery to the session's report
func (c *Client) CardDealt(ctx context.Context, sessionID string, d Delivery) error {
	url, err := c.client.URL(sessionID)
	if err != nil {
		return fmt.Errorf("error building url: %w", err)
	}
	url += "/add-delivery"

	return c.makeRequest(ctx, url, d)
}

// SessionFinished completes the report with the result
func (c *Client) SessionFinished(ctx context.Context, r dealer.Result) error {
	rep := Report{
		ID:         r.Session.ID,
		Stations:   r.Session.Request.Stations,
		Quota:      r.Session.Request.Quota,
		StartedAt:  r.Session.StartedAt,
		FinishedAt: r.Session.StartedAt.Add(r.Duration),
		Ledger:     r.Ledger,
		Dealt:      r.Dealt,
		Result:     ResultName(r),
	}
	if r.Err != nil {
		rep.Error = r.Err.Error()
	}

	_, err := c.client.Patch(ctx, r.Session.ID, &report{Report: rep})
	if err != nil {
		return fmt.Errorf("error updating report: %w", err)
	}
	return nil
}

// ResultName is "complete", "aborted" or "failed"
func ResultName(r dealer.Result) string {
	switch {
	case r.Complete():
		return "complete"
	case r.Aborted():
		return "aborted"
	default:
		return "failed"
	}
}

func (c *Client) makeRequest(ctx context.Context, url string, body any) error {
	var bodyReader io.Reader = http.NoBody
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error encoding body: %w", err)
		}

		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bodyReader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Add("Content-Type", "application/json")

	resp, err := c.client.MakeGenericRequest(req, nil)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	if resp.Response.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status code: %d, response: %v", resp.Response.StatusCode, resp.Body)
	}

	return nil
}
