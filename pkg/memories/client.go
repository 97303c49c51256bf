// Package memories is a client for the memories SDK API. It resolves
// settings and scope, performs the bearer-authenticated POST, and classifies
// every outcome into either a JSON result or an *Error.
package memories

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/memories-sh/memories-go/pkg/logger"
	"github.com/memories-sh/memories-go/pkg/utils"
)

// Upstream endpoints, relative to the base URL.
const (
	EndpointAddMemory      = "/api/sdk/v1/memories/add"
	EndpointSearchMemories = "/api/sdk/v1/memories/search"
	EndpointGetContext     = "/api/sdk/v1/context/get"
)

// Timeout bounds every upstream call end to end.
const Timeout = 20 * time.Second

const instrumentationName = "github.com/memories-sh/memories-go/pkg/memories"

// maxLoggedBody caps the upstream body preview in debug logs.
const maxLoggedBody = 512

// Settings supplies the values the client needs on every call. Values are
// read at call time, so a missing API key fails the call rather than startup.
type Settings interface {
	// APIKey returns the bearer token, or an error naming the missing variable.
	APIKey() (string, error)
	BaseURL() string
	ScopeDefaults() Scope
}

// Config configures a Client.
type Config struct {
	// Settings is required.
	Settings Settings

	// HTTPClient overrides the default client, which has a Timeout of 20s.
	HTTPClient *http.Client

	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Client talks to the upstream memories API.
type Client struct {
	settings   Settings
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	requests   metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewClient creates a Client. Unset optional fields fall back to a 20s
// http.Client, a discarding logger and no-op telemetry.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Settings == nil {
		return nil, errors.New("settings are required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: Timeout}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	tp := cfg.TracerProvider
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}

	mp := cfg.MeterProvider
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	requests, err := meter.Int64Counter("memories.upstream.requests",
		metric.WithDescription("Upstream memories API calls by endpoint and outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request counter: %w", err)
	}

	duration, err := meter.Float64Histogram("memories.upstream.duration",
		metric.WithDescription("Upstream memories API call latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &Client{
		settings:   cfg.Settings,
		httpClient: httpClient,
		logger:     log,
		tracer:     tp.Tracer(instrumentationName),
		requests:   requests,
		duration:   duration,
	}, nil
}

// Settings returns the settings the client reads from.
func (c *Client) Settings() Settings {
	return c.settings
}

// Post sends payload as JSON to endpoint and returns the upstream result:
// the envelope's data, or the raw body for non-envelope 2xx/3xx responses.
// Every failure is an *Error.
func (c *Client) Post(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "memories.upstream.post",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.route", endpoint)),
	)
	defer span.End()

	start := time.Now()
	result, status, err := c.post(ctx, endpoint, payload)
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	outcome := "ok"
	if err != nil {
		outcome = AsError(err).Body.Type
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.type", outcome))
	}
	if status != 0 {
		span.SetAttributes(attribute.Int("http.status_code", status))
	}

	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("outcome", outcome),
	)
	c.requests.Add(ctx, 1, attrs)
	c.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		c.logger.Warn("upstream call failed",
			"endpoint", endpoint,
			"status", status,
			"duration_ms", elapsed,
			"error", err,
		)
		return nil, err
	}

	c.logger.Debug("upstream call succeeded",
		"endpoint", endpoint,
		"status", status,
		"duration_ms", elapsed,
	)
	return result, nil
}

// post performs the call. status is 0 when no response was received.
func (c *Client) post(ctx context.Context, endpoint string, payload any) (json.RawMessage, int, error) {
	apiKey, err := c.settings.APIKey()
	if err != nil {
		return nil, 0, newError(http.StatusInternalServerError, TypeValidation, CodeMissingEnv, err.Error(), err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("encoding upstream payload: %w", err)
	}

	url := strings.TrimRight(c.settings.BaseURL(), "/") + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, newError(http.StatusBadGateway, TypeNetwork, CodeUpstreamRequestFailed, err.Error(), err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", utils.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, newError(http.StatusBadGateway, TypeNetwork, CodeUpstreamRequestFailed, err.Error(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, newError(http.StatusBadGateway, TypeNetwork, CodeUpstreamRequestFailed, err.Error(), err)
	}

	c.logger.Debug("upstream response",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"body", utils.Truncate(string(respBody), maxLoggedBody),
	)

	result, err := classify(resp.StatusCode, respBody)
	return result, resp.StatusCode, err
}
