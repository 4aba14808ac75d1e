// Package generate talks to a hosted chat-completion model and pulls diagram and
// infrastructure-code artifacts out of its free-form replies.
package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/rshade/archcost/internal/generate")

var chatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "archcost",
	Subsystem: "generate",
	Name:      "requests_total",
	Help:      "Chat-completion requests by outcome.",
}, []string{"outcome"})

// Client defaults.
const (
	DefaultAPIVersion  = "2024-12-01-preview"
	DefaultTimeout     = 90 * time.Second
	DefaultTemperature = 0.2
)

// maxErrorBody bounds how much of an upstream error body is kept.
const maxErrorBody = 2048

// Errors returned by the client.
var (
	ErrNotConfigured = errors.New("generation endpoint not configured")
	ErrEmptyArtifact = errors.New("generation returned no usable artifact")
)

// StatusError reports a non-success upstream status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("generation upstream returned %d: %s", e.StatusCode, e.Body)
}

// Config configures a Client.
type Config struct {
	Endpoint    string
	APIKey      string
	Deployment  string
	APIVersion  string
	Temperature float64
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Client calls a deployment-scoped chat-completion endpoint.
type Client struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger
}

// NewClient creates a Client. A Client with missing endpoint, key or deployment
// is valid but every call fails with ErrNotConfigured.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:    cfg,
		http:   hc,
		logger: logger.With().Str("component", "generate").Logger(),
	}
}

// Configured reports whether the endpoint, key and deployment are all set.
func (c *Client) Configured() bool {
	return c.cfg.Endpoint != "" && c.cfg.APIKey != "" && c.cfg.Deployment != ""
}

func (c *Client) url() string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.cfg.Endpoint, url.PathEscape(c.cfg.Deployment), url.QueryEscape(c.cfg.APIVersion))
}

// Chat sends messages and returns the content of the first choice.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	ctx, span := tracer.Start(ctx, "generate.Chat")
	defer span.End()
	span.SetAttributes(attribute.String("generate.deployment", c.cfg.Deployment))

	content, err := c.chat(ctx, messages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return content, err
}

func (c *Client) chat(ctx context.Context, messages []Message) (string, error) {
	start := time.Now()
	body, err := json.Marshal(chatRequest{Messages: messages, Temperature: c.cfg.Temperature})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		chatRequests.WithLabelValues("transport").Inc()
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		chatRequests.WithLabelValues("transport").Inc()
		return "", fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		chatRequests.WithLabelValues("status").Inc()
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Dur("elapsed", time.Since(start)).
			Msg("chat endpoint returned non-success status")
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		chatRequests.WithLabelValues("decode").Inc()
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		chatRequests.WithLabelValues("empty").Inc()
		return "", fmt.Errorf("%w: response has no choices", ErrEmptyArtifact)
	}
	chatRequests.WithLabelValues("ok").Inc()
	c.logger.Debug().
		Int("chars", len(out.Choices[0].Message.Content)).
		Dur("elapsed", time.Since(start)).
		Msg("chat completed")
	return out.Choices[0].Message.Content, nil
}
