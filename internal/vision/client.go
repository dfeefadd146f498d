// Package vision is an HTTP client for an external building recognizer.
//
// The recognizer receives the camera frame as a multipart upload together
// with the device pose and the model version to use, and answers with the
// recognized building. The client implements recognition.Recognizer.
package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/goccy/go-json"

	"github.com/nerrad567/citywalk-core/internal/breaker"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/logging"
	"github.com/nerrad567/citywalk-core/internal/metrics"
	"github.com/nerrad567/citywalk-core/internal/recognition"
)

// ProviderName labels recognizer metrics.
const ProviderName = "vision"

const (
	defaultTimeout = 15 * time.Second
	maxBodySize    = 1 << 20
)

// ErrMissingURL is returned by New without an endpoint.
var ErrMissingURL = errors.New("vision: recognizer url is required")

// StatusError is a non-2xx answer from the recognizer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vision: recognizer returned %d: %s", e.StatusCode, e.Body)
}

// Config configures a Client.
type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// Client posts frames to the recognizer.
type Client struct {
	url     string
	token   string
	http    *http.Client
	breaker *breaker.Breaker
	logger  *logging.Logger
}

// New creates a client.
func New(cfg Config, logger *logging.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrMissingURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		url:     cfg.URL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker.New(ProviderName, logger),
		logger:  logger.With("component", "vision"),
	}, nil
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() string { return c.breaker.State() }

type poseField struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Heading   float64 `json:"heading"`
}

type response struct {
	BuildingID   *int64  `json:"building_id"`
	BuildingName string  `json:"building_name"`
	Confidence   float64 `json:"confidence"`
	ModelVersion string  `json:"model_version"`
}

// Recognize uploads the frame and returns the recognizer's answer.
func (c *Client) Recognize(ctx context.Context, in recognition.Input) (*recognition.Result, error) {
	body, contentType, err := encode(in)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := breaker.Do(c.breaker, func() ([]byte, error) {
		return c.post(ctx, body, contentType)
	})
	outcome := "success"
	switch {
	case breaker.IsRejected(err):
		outcome = "rejected"
	case err != nil:
		outcome = "error"
	}
	metrics.RecordCollaboratorCall(ProviderName, "recognize", outcome, time.Since(start))
	if err != nil {
		c.logger.Warn("recognizer request failed", "error", err)
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("vision: decoding response: %w", err)
	}
	if resp.ModelVersion == "" {
		resp.ModelVersion = in.ModelVersion
	}
	return &recognition.Result{
		BuildingID:   resp.BuildingID,
		BuildingName: resp.BuildingName,
		Confidence:   resp.Confidence,
		ModelVersion: resp.ModelVersion,
		Raw:          raw,
	}, nil
}

func (c *Client) post(ctx context.Context, body []byte, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("vision: creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("vision: reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	return data, nil
}

// encode builds the multipart body: image, pose (JSON) and model_version.
func encode(in recognition.Input) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	filename := in.Image.Filename
	if filename == "" {
		filename = "frame.jpg"
	}
	contentType := in.Image.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("vision: creating image part: %w", err)
	}
	if _, err := part.Write(in.Image.Data); err != nil {
		return nil, "", fmt.Errorf("vision: writing image part: %w", err)
	}

	pose, err := json.Marshal(poseField{
		Latitude:  in.Pose.Position.Lat,
		Longitude: in.Pose.Position.Lon,
		Heading:   in.Pose.Heading,
	})
	if err != nil {
		return nil, "", fmt.Errorf("vision: encoding pose: %w", err)
	}
	if err := mw.WriteField("pose", string(pose)); err != nil {
		return nil, "", fmt.Errorf("vision: writing pose: %w", err)
	}
	if in.ModelVersion != "" {
		if err := mw.WriteField("model_version", in.ModelVersion); err != nil {
			return nil, "", fmt.Errorf("vision: writing model version: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("vision: closing multipart body: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
