// Package upstream fetches block records from the remote block API when
// the local cache cannot serve a request.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/xtxerr/blockvol/internal/errors"
	"github.com/xtxerr/blockvol/internal/types"
)

// maxErrorBody caps how much of an upstream error body is carried into the
// returned error message.
const maxErrorBody = 256

// Client fetches block-volume samples from the remote block API.
type Client struct {
	baseURL string
	http    *http.Client
}

// blockRecord is the wire shape of one remote block. Only the fields this
// service consumes are declared; the record carries more.
type blockRecord struct {
	Height       int64             `json:"height"`
	CreatedAt    string            `json:"created_at"`
	Transactions []json.RawMessage `json:"transactions"`
}

// New creates a client for the block API at baseURL. A zero timeout
// disables the client-side deadline; callers can still bound requests
// through the context.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves samples for the range, ascending by block height. An
// unbounded range requests the fixed first-DefaultWindow blocks; the client
// never asks the upstream for the full dataset. Network failures and
// non-2xx responses surface as ErrUpstreamUnavailable.
func (c *Client) Fetch(ctx context.Context, rng types.Range) ([]types.Sample, error) {
	start, end := rng.Start, rng.End
	if !rng.Bounded {
		start, end = 0, types.DefaultWindow-1
	}

	u, err := url.Parse(c.baseURL + "/blocks")
	if err != nil {
		return nil, errors.NewUpstreamUnavailable(err)
	}
	q := u.Query()
	q.Set("start", strconv.FormatInt(start, 10))
	q.Set("end", strconv.FormatInt(end, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.NewUpstreamUnavailable(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewUpstreamUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errors.NewUpstreamUnavailable(
			fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var records []blockRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, errors.NewUpstreamUnavailable(errors.Wrap(err, "decode response"))
	}

	samples := make([]types.Sample, 0, len(records))
	for _, rec := range records {
		epoch, err := types.EpochFromTimestamp(rec.CreatedAt)
		if err != nil {
			return nil, errors.NewUpstreamUnavailable(
				errors.Wrapf(err, "block %d", rec.Height))
		}
		samples = append(samples, types.Sample{
			Epoch:  epoch,
			Volume: int64(len(rec.Transactions)),
		})
	}

	return samples, nil
}
