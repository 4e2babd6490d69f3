// Package kalshi talks to the Kalshi trade API: market discovery over REST,
// live prices over REST polling or the WebSocket ticker channel.
package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultAPIBase = "https://api.elections.kalshi.com"
	DefaultWSURL   = "wss://api.elections.kalshi.com/trade-api/ws/v2"

	apiPrefix = "/trade-api/v2"

	// Tier básico: 20 lecturas/s. Usamos el 50%.
	readRatePerSec = 10

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client es el HTTP client de Kalshi con rate limiting y retries.
type Client struct {
	http      *http.Client
	base      string
	limiter   *rate.Limiter
	signer    *Signer // nil: requests sin firmar (endpoints públicos)
	retryWait time.Duration
}

// NewClient crea un Client. Si base está vacío usa producción.
func NewClient(base string, signer *Signer) *Client {
	if base == "" {
		base = DefaultAPIBase
	}
	return &Client{
		http:      &http.Client{Timeout: 10 * time.Second},
		base:      strings.TrimRight(base, "/"),
		limiter:   rate.NewLimiter(readRatePerSec, 5),
		signer:    signer,
		retryWait: baseRetryWait,
	}
}

// get hace un GET firmado (si hay signer) con rate limiting y retries.
// path es relativo a /trade-api/v2.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	fullPath := apiPrefix + path
	target := c.base + fullPath
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.signer != nil {
			h, err := c.signer.Headers(http.MethodGet, fullPath)
			if err != nil {
				return nil, err
			}
			for k, v := range h {
				req.Header[k] = v
			}
		}
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial.
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by Kalshi", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return &StatusError{Code: resp.StatusCode, Body: string(body)}
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retryWait
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// StatusError is a 4xx answer. Those are not retried.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client error %d: %s", e.Code, e.Body)
}
