package specialist

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Deepfake verdict labels.
const (
	DeepfakeLikelyReal = "likely_real"
	DeepfakeLikelyFake = "likely_fake"
	DeepfakeUnknown    = "unknown"
)

// fakeThreshold is the classifier probability above which an image is
// labeled likely fake.
const fakeThreshold = 0.7

// DefaultDeepfakeTimeout bounds the classifier call.
const DefaultDeepfakeTimeout = 30 * time.Second

// Deepfake client errors.
var (
	ErrMissingDeepfakeKey = errors.New("deepfake api key is required")
	ErrMissingDeepfakeURL = errors.New("deepfake endpoint is required")
)

// DeepfakeResult is the classifier's opinion on one image.
type DeepfakeResult struct {
	// Verdict is one of likely_real, likely_fake, unknown.
	Verdict string `json:"verdict"`

	// FakeProbability is the raw classifier score, clamped to [0, 1].
	FakeProbability float64 `json:"fake_probability"`
}

// DeepfakeClient calls an external deepfake detection API.
type DeepfakeClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// DeepfakeClientConfig configures a deepfake client.
type DeepfakeClientConfig struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// NewDeepfakeClient creates a deepfake classifier client.
func NewDeepfakeClient(cfg DeepfakeClientConfig) (*DeepfakeClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingDeepfakeKey
	}
	if cfg.Endpoint == "" {
		return nil, ErrMissingDeepfakeURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDeepfakeTimeout
	}

	return &DeepfakeClient{
		apiKey:   cfg.APIKey,
		endpoint: cfg.Endpoint,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

type deepfakeRequest struct {
	Image    string `json:"image"`
	MimeType string `json:"mime_type,omitempty"`
}

type deepfakeResponse struct {
	FakeProbability float64 `json:"fake_probability"`
}

// Classify sends the image inline and maps the returned probability to a
// coarse verdict label. The probability is clamped on receipt since the
// provider is untrusted input.
func (c *DeepfakeClient) Classify(ctx context.Context, image []byte, mimeType string) (*DeepfakeResult, error) {
	payload, err := json.Marshal(deepfakeRequest{
		Image:    base64.StdEncoding.EncodeToString(image),
		MimeType: mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode deepfake request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build deepfake request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepfake request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read deepfake response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepfake classifier returned status %d", resp.StatusCode)
	}

	var dr deepfakeResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return nil, fmt.Errorf("failed to decode deepfake response: %w", err)
	}

	p := dr.FakeProbability
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}

	verdict := DeepfakeLikelyReal
	if p > fakeThreshold {
		verdict = DeepfakeLikelyFake
	}

	return &DeepfakeResult{
		Verdict:         verdict,
		FakeProbability: p,
	}, nil
}
