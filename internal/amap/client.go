package amap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/nerrad567/citywalk-core/internal/breaker"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/logging"
	"github.com/nerrad567/citywalk-core/internal/metrics"
)

// ProviderName labels AMap results and metrics.
const ProviderName = "amap"

const (
	// DefaultBaseURL is the public AMap REST endpoint.
	DefaultBaseURL = "https://restapi.amap.com"

	defaultTimeout = 10 * time.Second
	defaultQPS     = 3

	maxBodySize = 4 << 20
)

var (
	// ErrMissingKey is returned by New without an API key.
	ErrMissingKey = errors.New("amap: api key is required")

	// ErrNoResult is returned when AMap answers successfully with no route,
	// geocode or place.
	ErrNoResult = errors.New("amap: no result")
)

// APIError is a non-success answer from AMap.
type APIError struct {
	HTTPStatus int
	Info       string
	InfoCode   string
}

func (e *APIError) Error() string {
	if e.InfoCode != "" {
		return fmt.Sprintf("amap: %s (infocode %s, http %d)", e.Info, e.InfoCode, e.HTTPStatus)
	}
	return fmt.Sprintf("amap: %s (http %d)", e.Info, e.HTTPStatus)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Key     string
	City    string // limits geocoding and transit planning
	Timeout time.Duration
	QPS     float64
}

// Client talks to the AMap web service API.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	baseURL string
	key     string
	city    string
	http    *http.Client
	limiter *rate.Limiter
	breaker *breaker.Breaker
	logger  *logging.Logger
}

// New creates a client.
func New(cfg Config, logger *logging.Logger) (*Client, error) {
	if cfg.Key == "" {
		return nil, ErrMissingKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.QPS <= 0 {
		cfg.QPS = defaultQPS
	}
	if logger == nil {
		logger = logging.Default()
	}
	burst := int(cfg.QPS)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.Key,
		city:    cfg.City,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.QPS), burst),
		breaker: breaker.New(ProviderName, logger),
		logger:  logger.With("component", "amap"),
	}, nil
}

// Source names the provider for cached places.
func (c *Client) Source() string { return ProviderName }

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() string { return c.breaker.State() }

// status is the envelope shared by v3 responses.
type status struct {
	Status   string `json:"status"`
	Info     string `json:"info"`
	InfoCode string `json:"infocode"`
}

// get performs a rate-limited, breaker-guarded GET and returns the body.
// operation labels the metrics.
func (c *Client) get(ctx context.Context, operation, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("amap: waiting for rate limiter: %w", err)
	}

	params.Set("key", c.key)
	params.Set("output", "json")
	reqURL := c.baseURL + path + "?" + params.Encode()

	start := time.Now()
	body, err := breaker.Do(c.breaker, func() ([]byte, error) {
		return c.do(ctx, reqURL)
	})
	outcome := "success"
	switch {
	case breaker.IsRejected(err):
		outcome = "rejected"
	case err != nil:
		outcome = "error"
	}
	metrics.RecordCollaboratorCall(ProviderName, operation, outcome, time.Since(start))

	if err != nil {
		c.logger.Warn("amap request failed", "operation", operation, "error", err)
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("amap: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("amap: request failed: %w", redactKey(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("amap: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{HTTPStatus: resp.StatusCode, Info: http.StatusText(resp.StatusCode)}
	}
	return body, nil
}

// redactKey masks the key query parameter in a transport error so it
// never reaches logs or callers.
func redactKey(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	u, perr := url.Parse(ue.URL)
	if perr != nil {
		return &url.Error{Op: ue.Op, URL: "[unparseable url]", Err: ue.Err}
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return &url.Error{Op: ue.Op, URL: u.String(), Err: ue.Err}
}

// checkStatus validates a v3 status envelope.
func checkStatus(body []byte) error {
	var st status
	if err := json.Unmarshal(body, &st); err != nil {
		return fmt.Errorf("amap: decoding response: %w", err)
	}
	if st.Status != "1" {
		return &APIError{HTTPStatus: http.StatusOK, Info: st.Info, InfoCode: st.InfoCode}
	}
	return nil
}
