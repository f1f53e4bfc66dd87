// Package fitbit implements the provider-facing side of fitsync: the metric
// API client and the OAuth2 authorizer.
package fitbit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	fitsync "github.com/pilab-dev/fitsync"
	"github.com/pilab-dev/fitsync/domain"
)

const (
	// DefaultAPIBaseURL is the provider's REST API host.
	DefaultAPIBaseURL = "https://api.fitbit.com"

	// DefaultUTCOffset is applied to local weight-log timestamps.
	// TODO: read the per-user timezone from /1/user/-/profile.json instead.
	DefaultUTCOffset = "-04:00"

	maxResponseBytes = 4 << 20
)

// Client fetches bounded time ranges of metric streams from the provider's
// REST API using a bearer token.
type Client struct {
	baseURL    string
	utcOffset  string
	httpClient *http.Client
}

func NewClient(baseURL, utcOffset string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	if utcOffset == "" {
		utcOffset = DefaultUTCOffset
	}
	return &Client{
		baseURL:   baseURL,
		utcOffset: utcOffset,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch retrieves the records of stream within [from, to]. The provider's
// date-range endpoints have day resolution; both bounds are truncated to
// their date.
//
// Errors are classified for the sync engine: fitsync.ErrUnauthorized when the
// token is rejected, fitsync.ErrRateLimited and fitsync.ErrUnavailable for
// transient failures callers may retry on the next tick.
func (c *Client) Fetch(ctx context.Context, accessToken string, stream domain.MetricStream, from, to time.Time) ([]domain.MetricPoint, error) {
	spec, ok := streamTable[stream]
	if !ok {
		return nil, fmt.Errorf("unknown metric stream %q", stream)
	}

	url := c.baseURL + fmt.Sprintf(spec.path, from.Format(dateLayout), to.Format(dateLayout))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", stream, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fitsync.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", fitsync.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", fitsync.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d", fitsync.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch %s: unexpected status %d", stream, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", stream, err)
	}

	points, err := spec.extract(body, c.utcOffset)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("stream", string(stream)).
		Str("from", from.Format(dateLayout)).
		Str("to", to.Format(dateLayout)).
		Int("records", len(points)).
		Msg("provider fetch completed")

	return points, nil
}
