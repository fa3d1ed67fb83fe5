package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rendis/eyescan/internal/metrics"
	"github.com/rendis/eyescan/internal/ratelimit"
)

const (
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/place"

	defaultRetries = 3
	baseBackoff    = 2 * time.Second
	maxBackoff     = 30 * time.Second
	jitterFactor   = 0.5
)

// Options configures a Client. The zero value talks to the public API.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	ProxyURL   string
	ChromeTLS  bool // dial with a Chrome TLS fingerprint
	MaxRetries int
	// BaseBackoff and MaxBackoff bound the exponential backoff between retries.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Wait        ratelimit.WaitFunc
	// Budget is charged for every retried attempt. The first attempt of a call is
	// charged by the caller.
	Budget      *ratelimit.Budget
	Logger      zerolog.Logger
	HTTPClient  *http.Client
}

// Client calls the Places nearby search, text search and details endpoints.
type Client struct {
	http        *http.Client
	baseURL     string
	key         string
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	wait        ratelimit.WaitFunc
	budget      *ratelimit.Budget
	log         zerolog.Logger
}

func NewClient(apiKey string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultRetries
	}
	if opts.BaseBackoff == 0 {
		opts.BaseBackoff = baseBackoff
	}
	if opts.MaxBackoff == 0 {
		opts.MaxBackoff = maxBackoff
	}
	if opts.Wait == nil {
		opts.Wait = ratelimit.Sleep
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Transport: NewTransport(opts.ChromeTLS, opts.ProxyURL),
			Timeout:   opts.Timeout,
		}
	}

	return &Client{
		http:        hc,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		key:         apiKey,
		maxRetries:  opts.MaxRetries,
		baseBackoff: opts.BaseBackoff,
		maxBackoff:  opts.MaxBackoff,
		wait:        opts.Wait,
		budget:      opts.Budget,
		log:         opts.Logger,
	}
}

// Nearby performs a radius-bounded nearby search.
func (c *Client) Nearby(ctx context.Context, req NearbyRequest) (*SearchResponse, error) {
	params := url.Values{}
	if req.PageToken != "" {
		// A page token replaces every other parameter.
		params.Set("pagetoken", req.PageToken)
	} else {
		params.Set("location", formatLatLng(req.Lat, req.Lng))
		if req.Radius > 0 {
			params.Set("radius", strconv.Itoa(req.Radius))
		}
		if req.Keyword != "" {
			params.Set("keyword", req.Keyword)
		}
		if req.Type != "" {
			params.Set("type", req.Type)
		}
	}
	return c.search(ctx, EndpointNearby, params)
}

// Text performs a free-text search.
func (c *Client) Text(ctx context.Context, req TextRequest) (*SearchResponse, error) {
	params := url.Values{}
	if req.PageToken != "" {
		params.Set("pagetoken", req.PageToken)
	} else {
		params.Set("query", req.Query)
		if req.Type != "" {
			params.Set("type", req.Type)
		}
	}
	return c.search(ctx, EndpointText, params)
}

// Details fetches the requested fields of a place.
func (c *Client) Details(ctx context.Context, placeID string, fields []string) (*PlaceDetails, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	if len(fields) > 0 {
		params.Set("fields", strings.Join(fields, ","))
	}

	resp, err := call[detailsResponse](ctx, c, EndpointDetails, params)
	if err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

func (c *Client) search(ctx context.Context, endpoint string, params url.Values) (*SearchResponse, error) {
	return call[SearchResponse](ctx, c, endpoint, params)
}

type statusCarrier interface {
	responseStatus() (status, message string)
}

func (r *SearchResponse) responseStatus() (string, string)  { return r.Status, r.ErrorMessage }
func (r *detailsResponse) responseStatus() (string, string) { return r.Status, r.ErrorMessage }

// call performs a request with retry and exponential backoff on transient failures.
// ZERO_RESULTS is a successful empty response.
func call[T any, PT interface {
	*T
	statusCarrier
}](ctx context.Context, c *Client, endpoint string, params url.Values) (PT, error) {
	params.Set("key", c.key)
	reqURL := c.baseURL + "/" + endpoint + "/json?" + params.Encode()

	var lastErr error
	for attempt := range c.maxRetries {
		out := PT(new(T))
		err := c.doRequest(ctx, endpoint, reqURL, out)
		if err == nil {
			st, msg := out.responseStatus()
			switch st {
			case StatusOK, StatusZeroResults:
				return out, nil
			case "":
				err = fmt.Errorf("%s: %w: missing status", endpoint, ErrMalformed)
			default:
				err = &StatusError{Endpoint: endpoint, Status: st, Message: msg}
			}
		}

		lastErr = err
		if !retryable(err) || attempt == c.maxRetries-1 {
			break
		}

		backoff := c.baseBackoff * time.Duration(1<<uint(attempt))
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
		jitter := time.Duration(float64(backoff) * jitterFactor * rand.Float64())
		c.log.Warn().Err(err).Str("endpoint", endpoint).Int("attempt", attempt+1).
			Dur("backoff", backoff+jitter).Msg("retrying places call")
		if werr := c.wait(ctx, backoff+jitter); werr != nil {
			return nil, werr
		}
		if c.budget != nil {
			if werr := c.budget.Spend(ctx); werr != nil {
				return nil, werr
			}
		}
	}

	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, endpoint, reqURL string, out statusCarrier) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordRequest(endpoint, "transport_error", time.Since(start))
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		metrics.RecordRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))
		return &HTTPError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordRequest(endpoint, "transport_error", time.Since(start))
		return fmt.Errorf("reading body: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		metrics.RecordRequest(endpoint, "malformed", time.Since(start))
		return fmt.Errorf("%s: %w: %v", endpoint, ErrMalformed, err)
	}

	label, _ := out.responseStatus()
	if label == "" {
		label = "unknown"
	}
	metrics.RecordRequest(endpoint, label, time.Since(start))
	return nil
}

func formatLatLng(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}
