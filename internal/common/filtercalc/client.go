// Package filtercalc calls the remote filter calculation service behind a
// circuit breaker.
package filtercalc

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"fieldops-workers/internal/analytics/filters"
	"fieldops-workers/internal/common/config"
	"fieldops-workers/internal/common/errors"
	httpclient "fieldops-workers/internal/common/http"
	"fieldops-workers/internal/common/logger"
	"fieldops-workers/internal/common/metrics"
	"fieldops-workers/internal/models"

	"github.com/sony/gobreaker"
)

const (
	calculatePath = "/v1/filters/calculate"
	apiKeyHeader  = "X-API-Key"
	breakerName   = "filter-calculator"
)

// Client implements filters.Calculator against the remote service.
type Client struct {
	http    *httpclient.Client
	url     string
	breaker *gobreaker.CircuitBreaker
	logger  logger.Logger
}

var _ filters.Calculator = (*Client)(nil)

func New(cfg config.FilterCalculatorConfig, log logger.Logger) *Client {
	log = logger.OrNop(log).WithFields(map[string]interface{}{"component": breakerName})

	maxFailures := uint32(cfg.MaxFailures)
	if maxFailures == 0 {
		maxFailures = 5
	}

	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: uint32(cfg.HalfOpenMax),
		Interval:    millis(cfg.ResetInterval),
		Timeout:     millis(cfg.OpenTimeout),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CalculatorBreakerState.Set(float64(to))
			log.Warn("Circuit breaker state changed", map[string]interface{}{
				"from": from.String(),
				"to":   to.String(),
			})
		},
	}

	return &Client{
		http:    httpclient.NewClient(millis(cfg.Timeout)).WithHeader(apiKeyHeader, cfg.APIKey),
		url:     strings.TrimRight(cfg.BaseURL, "/") + calculatePath,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  log,
	}
}

// Calculate posts the order to the service. Client errors (4xx) are returned
// without counting against the breaker; the order itself was rejected, not
// the service.
func (c *Client) Calculate(ctx context.Context, order models.WorkOrder) (*filters.Result, error) {
	var rejected error

	out, err := c.breaker.Execute(func() (interface{}, error) {
		var res filters.Result
		err := c.http.PostJSON(ctx, c.url, order, &res)
		if err == nil {
			return &res, nil
		}
		var statusErr *httpclient.StatusError
		if stderrors.As(err, &statusErr) && !statusErr.Temporary() {
			rejected = err
			return nil, nil
		}
		return nil, err
	})

	switch {
	case err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests:
		metrics.CalculatorRequests.WithLabelValues("rejected").Inc()
		return nil, errors.NewCalculatorUnavailableError(err).WithMetadata("orderId", order.ID)
	case err != nil:
		metrics.CalculatorRequests.WithLabelValues("error").Inc()
		c.logger.Debug("Filter calculation failed", map[string]interface{}{
			"orderId": order.ID,
			"error":   err.Error(),
		})
		return nil, errors.NewCalculatorUnavailableError(err).WithMetadata("orderId", order.ID)
	case rejected != nil:
		metrics.CalculatorRequests.WithLabelValues("client_error").Inc()
		return nil, rejected
	}

	metrics.CalculatorRequests.WithLabelValues("success").Inc()
	return out.(*filters.Result), nil
}

// State reports the breaker state, for readiness reporting.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
