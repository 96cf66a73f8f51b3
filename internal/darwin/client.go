// Package darwin talks to the National Rail live departure board SOAP
// service.
package darwin

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"departure-board-backend/internal/board"
	"departure-board-backend/internal/metrics"
)

var (
	// ErrUnavailable means the board could not be fetched after retries.
	ErrUnavailable = errors.New("darwin unavailable")
	// ErrServiceDetails means one service's details could not be fetched.
	ErrServiceDetails = errors.New("service details unavailable")
)

// Board is a station departure board.
type Board struct {
	CRS                string
	LocationName       string
	FilterLocationName string
	Generated          time.Time
	Messages           []string
	Services           []board.ServiceRecord
}

// Details are the parts of a service's details the board uses.
type Details struct {
	CallingPoints []board.CallingPoint
	DelayReason   string
	CancelReason  string
}

// Reason is the cancellation reason, else the delay reason.
func (d Details) Reason() string {
	if d.CancelReason != "" {
		return d.CancelReason
	}
	return d.DelayReason
}

// Options configures a Client.
type Options struct {
	Endpoint        string
	APIKey          string
	Timeout         time.Duration
	RequestsPerSec  float64
	BoardAttempts   int
	DetailsAttempts int
	DetailsTTL      time.Duration
	// InitialInterval and MaxInterval bound the retry backoff.
	InitialInterval time.Duration
	MaxInterval     time.Duration
	HTTPClient      *http.Client
}

// Client is a throttled, retrying OpenLDBWS client.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	details *cache.Cache
	logger  *log.Logger
}

// New creates a Client, filling unset options with defaults.
func New(opts Options, logger *log.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 5
	}
	if opts.BoardAttempts <= 0 {
		opts.BoardAttempts = 3
	}
	if opts.DetailsAttempts <= 0 {
		opts.DetailsAttempts = 2
	}
	if opts.DetailsTTL <= 0 {
		opts.DetailsTTL = 20 * time.Second
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = time.Second
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 10 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		opts:    opts,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
		details: cache.New(opts.DetailsTTL, 2*opts.DetailsTTL),
		logger:  logger,
	}
}

// FetchBoard returns up to rows departures from crs, optionally only
// those calling at filterCRS. An empty filter or "ALL" means no filter.
func (c *Client) FetchBoard(ctx context.Context, crs, filterCRS string, rows int) (*Board, error) {
	req := &boardRequest{NumRows: rows, CRS: strings.ToUpper(crs)}
	if filterCRS != "" && !strings.EqualFold(filterCRS, board.AllDestinations) {
		req.FilterCRS = strings.ToUpper(filterCRS)
		req.FilterType = "to"
	}

	res, err := retry(ctx, c, "board "+req.CRS, c.opts.BoardAttempts, func() (*stationBoardResult, error) {
		env, err := c.call(ctx, "GetDepartureBoard", requestBody{Board: req})
		if err != nil {
			return nil, err
		}
		if env.Body.Board == nil {
			return nil, backoff.Permanent(errors.New("response has no station board"))
		}
		return env.Body.Board, nil
	})
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("board").Inc()
		return nil, fmt.Errorf("%w: board %s: %v", ErrUnavailable, req.CRS, err)
	}
	return toBoard(res), nil
}

// FetchServiceDetails returns the calling points and reasons for a
// service. Results are memoised for a short time.
func (c *Client) FetchServiceDetails(ctx context.Context, serviceID string) (Details, error) {
	if v, ok := c.details.Get(serviceID); ok {
		return v.(Details), nil
	}

	res, err := retry(ctx, c, "service "+serviceID, c.opts.DetailsAttempts, func() (*serviceDetailsResult, error) {
		env, err := c.call(ctx, "GetServiceDetails", requestBody{Details: &detailsRequest{ServiceID: serviceID}})
		if err != nil {
			return nil, err
		}
		if env.Body.Details == nil {
			return nil, backoff.Permanent(errors.New("response has no service details"))
		}
		return env.Body.Details, nil
	})
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("service_details").Inc()
		return Details{}, fmt.Errorf("%w: %s: %v", ErrServiceDetails, serviceID, err)
	}

	d := toDetails(res)
	c.details.SetDefault(serviceID, d)
	return d, nil
}

func retry[T any](ctx context.Context, c *Client, what string, attempts int, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialInterval
	b.MaxInterval = c.opts.MaxInterval
	b.MaxElapsedTime = 0

	return backoff.RetryNotifyWithData(
		op,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx),
		func(err error, d time.Duration) {
			c.logger.Printf("Warning: %s failed, retrying in %s: %v", what, d.Round(time.Millisecond), err)
		},
	)
}

func (c *Client) call(ctx context.Context, action string, body requestBody) (*responseEnvelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, backoff.Permanent(err)
	}

	payload, err := xml.Marshal(newEnvelope(c.opts.APIKey, body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("encode request: %w", err))
	}
	buf := bytes.NewBufferString(xml.Header)
	buf.Write(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, buf)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", fmt.Sprintf(`application/soap+xml; charset=utf-8; action="%s%s"`, actionNS, action))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env responseEnvelope
	decodeErr := xml.Unmarshal(raw, &env)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, backoff.Permanent(fmt.Errorf("%s: access denied (HTTP %d)", action, resp.StatusCode))
	case decodeErr == nil && env.Body.Fault != nil:
		return nil, fmt.Errorf("%s: soap fault: %s", action, env.Body.Fault.message())
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s: unexpected status %d", action, resp.StatusCode)
	case decodeErr != nil:
		return nil, fmt.Errorf("%s: decode response: %w", action, decodeErr)
	}
	return &env, nil
}

func toBoard(r *stationBoardResult) *Board {
	b := &Board{CRS: r.CRS, LocationName: r.LocationName, FilterLocationName: r.FilterLocationName}
	if t, err := time.Parse(time.RFC3339, r.GeneratedAt); err == nil {
		b.Generated = t
	}
	for _, m := range r.Messages {
		if txt := m.text(); txt != "" {
			b.Messages = append(b.Messages, txt)
		}
	}
	for _, s := range r.Services {
		b.Services = append(b.Services, board.ServiceRecord{
			Destination:  destinationText(s.Destinations),
			Scheduled:    s.STD,
			Estimated:    s.ETD,
			OperatorName: s.Operator,
			OperatorCode: s.OperatorCode,
			Platform:     s.Platform,
			ServiceID:    s.ServiceID,
		})
	}
	return b
}

func toDetails(r *serviceDetailsResult) Details {
	d := Details{DelayReason: r.DelayReason, CancelReason: r.CancelReason}
	for _, cp := range r.Subsequent {
		d.CallingPoints = append(d.CallingPoints, board.CallingPoint{Name: cp.Name, Scheduled: cp.ST, Estimated: cp.ET})
	}
	return d
}
