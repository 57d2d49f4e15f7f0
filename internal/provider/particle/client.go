package particle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/keg-monitor-core/internal/infrastructure/config"
	"github.com/nerrad567/keg-monitor-core/internal/provider"
)

const (
	defaultBaseURL = "https://api.particle.io"
	defaultTimeout = 10 * time.Second

	// maxResponseSize caps how much of a cloud response is decoded.
	maxResponseSize = 1 << 20
)

// Client calls the Particle cloud REST API.
type Client struct {
	baseURL    string
	apiKey     string
	enabled    bool
	httpClient *http.Client
	logger     provider.Logger
}

// NewClient creates a client from the particle section of config.yaml.
func NewClient(cfg config.ParticleConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		enabled:    cfg.DeviceServicesEnabled,
		httpClient: &http.Client{Timeout: timeout},
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger provider.Logger) {
	c.logger = logger
}

// Enabled reports whether device services are switched on.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Get fetches /v1/devices/{chipID}{path}.
func (c *Client) Get(ctx context.Context, chipID, path string) (int, map[string]any, error) {
	return c.do(ctx, http.MethodGet, chipID, path, nil)
}

// Post sends body as JSON to /v1/devices/{chipID}{path}.
func (c *Client) Post(ctx context.Context, chipID, path string, body any) (int, map[string]any, error) {
	return c.do(ctx, http.MethodPost, chipID, path, body)
}

// Call invokes a firmware function. An empty arg sends no body.
func (c *Client) Call(ctx context.Context, chipID, function, arg string) (int, map[string]any, error) {
	var body any
	if arg != "" {
		body = map[string]string{"arg": arg}
	}
	return c.Post(ctx, chipID, "/"+function, body)
}

func (c *Client) guard() error {
	if !c.enabled {
		c.logger.Info("device services are not enabled for particle devices")
		return provider.ErrDisabled
	}
	if c.apiKey == "" {
		c.logger.Warn("device services are enabled for particle devices but no API key is configured")
		return provider.ErrNotConfigured
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, chipID, path string, body any) (int, map[string]any, error) {
	if err := c.guard(); err != nil {
		return 0, nil, err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + "/v1/devices/" + url.PathEscape(chipID) + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("particle request failed", "method", method, "chip_id", chipID, "path", path, "error", err)
		return 0, nil, fmt.Errorf("particle %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data := map[string]any{}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return resp.StatusCode, nil, fmt.Errorf("decoding response: %w", err)
		}
	}

	c.logger.Debug("particle response", "method", method, "path", path, "status", resp.StatusCode)
	return resp.StatusCode, data, nil
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
