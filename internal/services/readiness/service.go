// Package readiness polls a launched application until it answers.
package readiness

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/rs/zerolog"
)

// Service defines the interface for readiness polling.
type Service interface {
	Wait(ctx context.Context, cfg models.ReadinessConfig) (*models.ReadinessResult, error)
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Impl implements the readiness Service interface.
type Impl struct {
	httpClient HTTPClient
	logger     zerolog.Logger
}

// New creates a new readiness service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// NewWithClient creates a new readiness service with a custom HTTP client (for testing).
func NewWithClient(logger zerolog.Logger, httpClient HTTPClient) *Impl {
	return &Impl{
		httpClient: httpClient,
		logger:     logger,
	}
}

// Wait polls cfg.URL until any HTTP response arrives, the timeout elapses or
// ctx is done.
func (s *Impl) Wait(ctx context.Context, cfg models.ReadinessConfig) (*models.ReadinessResult, error) {
	result := &models.ReadinessResult{}
	start := time.Now()

	s.logger.Info().
		Str("url", cfg.URL).
		Dur("timeout", cfg.Timeout).
		Msg("waiting for launched application to become available")

	if err := s.poll(ctx, cfg); err != nil {
		result.WaitDuration = time.Since(start)
		result.Error = err
		return result, nil //nolint:nilerr // error is stored in result struct by design
	}

	result.Ready = true
	result.WaitDuration = time.Since(start)

	s.logger.Info().
		Dur("duration", result.WaitDuration).
		Msg("launched application is ready")

	return result, nil
}

func (s *Impl) poll(ctx context.Context, cfg models.ReadinessConfig) error {
	deadline := time.Now().Add(cfg.Timeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for %s", cfg.URL)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := s.httpClient.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			// Any response means the application is up
			return nil
		}

		s.logger.Debug().Err(err).Msg("application not ready yet")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.PollInterval):
		}
	}
}
