// Package ai calls the external model provider used for market insight
// generation. Calls are paced client-side so a burst of insight requests
// does not trip the provider's own limits.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/blueocean-labs/explorer-api/internal/apperr"
	"github.com/blueocean-labs/explorer-api/internal/metrics"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxTokens   = 1024
	defaultTemperature = 0.7
)

// Config holds provider settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// Timeout bounds a single completion call.
	Timeout time.Duration
	// RequestsPerMinute paces outbound calls across all callers.
	RequestsPerMinute int
}

// Client is the provider client. Safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	pacer   *rate.Limiter
	metrics *metrics.Metrics
	log     *logger.Logger
}

// New builds a client. A zero timeout or pace falls back to defaults.
func New(cfg Config, m *metrics.Metrics, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		pacer:   rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1),
		metrics: m,
		log:     log,
	}
}

// Complete sends a prompt and returns the model's text answer.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return "", apperr.Internal("ai pacing interrupted", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"model":       c.cfg.Model,
		"max_tokens":  defaultMaxTokens,
		"temperature": defaultTemperature,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return "", apperr.Internal("encode ai request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", apperr.Internal("build ai request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.AICallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.AICalls.WithLabelValues("error").Inc()
		return "", apperr.External("ai provider", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.metrics.AICalls.WithLabelValues("error").Inc()
		return "", apperr.External("ai provider", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.metrics.AICalls.WithLabelValues("error").Inc()
		c.log.WithContext(ctx).WithFields(map[string]interface{}{
			"status": resp.StatusCode,
			"body":   truncate(string(body), 512),
		}).Warn("ai provider returned an error")
		return "", apperr.External("ai provider", fmt.Errorf("status %d", resp.StatusCode))
	}

	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() || content.String() == "" {
		c.metrics.AICalls.WithLabelValues("error").Inc()
		return "", apperr.External("ai provider", fmt.Errorf("response missing content"))
	}

	c.metrics.AICalls.WithLabelValues("success").Inc()
	return content.String(), nil
}

// Ping checks provider reachability for the health probe.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("ai provider status %d", resp.StatusCode)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
