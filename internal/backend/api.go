package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"resty.dev/v3"
)

// ErrNotFound is returned when the backend answers 404.
var ErrNotFound = errors.New("resource not found")

// ErrConnectivity is returned when the backend could not be reached: transport
// errors, timeouts, or an open circuit breaker.
var ErrConnectivity = errors.New("could not reach server")

// Options configures the backend client.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	MaxFailures uint32
	OpenTimeout time.Duration
}

// API is the REST client for the store backend.
type API struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	logger  *zap.Logger
}

// NewAPI creates a backend client. Requests are never retried, so a sale is
// only ever submitted once per call.
func NewAPI(opts Options, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetLogger(logger.Sugar())

	maxFailures := opts.MaxFailures
	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:    "backend",
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &API{
		client:  client,
		breaker: breaker,
		logger:  logger,
	}
}

// Close releases idle connections.
func (a *API) Close() error {
	return a.client.Close()
}

// ProductByBarcode fetches a product and its variants by barcode.
func (a *API) ProductByBarcode(ctx context.Context, code string) (*Product, error) {
	var product Product
	_, err := a.do(ctx, "get product by barcode", func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("code", code).SetResult(&product).Get("/products/barcode/{code}")
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Client fetches a client record, including the current debt.
func (a *API) Client(ctx context.Context, id int64) (*Client, error) {
	var client Client
	_, err := a.do(ctx, "get client", func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("id", strconv.FormatInt(id, 10)).SetResult(&client).Get("/clients/{id}")
	})
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// CreateSale submits a sale. A connectivity error leaves the outcome unknown:
// callers must not resubmit without the cashier asking for it.
func (a *API) CreateSale(ctx context.Context, req *SaleRequest) (*SaleRecord, error) {
	var sale SaleRecord
	_, err := a.do(ctx, "create sale", func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("Content-Type", "application/json").SetBody(req).SetResult(&sale).Post("/sales")
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (a *API) do(ctx context.Context, op string, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	apiErr := &APIError{}
	resp, err := a.breaker.Execute(func() (*resty.Response, error) {
		return send(a.client.R().SetContext(ctx).SetError(apiErr))
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		a.logger.Warn("backend call rejected by circuit breaker", zap.String("op", op))
		return nil, fmt.Errorf("%s: %w", op, ErrConnectivity)
	case err != nil && errors.Is(ctx.Err(), context.Canceled):
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	case err != nil && (resp == nil || resp.StatusCode() == 0):
		a.logger.Error("backend unreachable", zap.String("op", op), zap.Error(err))
		return nil, fmt.Errorf("%s: %w: %v", op, ErrConnectivity, err)
	case err != nil:
		a.logger.Error("invalid backend response", zap.String("op", op), zap.Int("status", resp.StatusCode()), zap.Error(err))
		return nil, fmt.Errorf("%s: invalid response: %w", op, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		if apiErr.Message == "" && apiErr.Reason == "" {
			apiErr.Message = resp.String()
		}
		a.logger.Warn("backend rejected request", zap.String("op", op), zap.Int("status", apiErr.Status), zap.String("message", apiErr.Error()))
		return nil, fmt.Errorf("%s: %w", op, apiErr)
	}
	return resp, nil
}
