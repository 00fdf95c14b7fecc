package downstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/baechuer/real-time-ressys/client-core/internal/logger"
	"github.com/baechuer/real-time-ressys/client-core/internal/metrics"
	pkgctx "github.com/baechuer/real-time-ressys/client-core/internal/pkg/context"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ClientConfig holds per-method timeouts.
type ClientConfig struct {
	// ReadTimeout is used for GET requests
	ReadTimeout time.Duration
	// WriteTimeout is used for POST, PUT, PATCH, DELETE requests
	WriteTimeout time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

// HTTPClient wraps http.Client: it injects X-Request-ID, applies the
// method's timeout, maps transport errors and logs each call.
type HTTPClient struct {
	baseClient *http.Client
	config     ClientConfig
}

func NewHTTPClient(config ClientConfig) *HTTPClient {
	return &HTTPClient{
		baseClient: &http.Client{
			// per-request timeouts only
			Timeout:   0,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		config: config,
	}
}

// Do executes req. The timeout covers reading the body; closing the body
// releases it.
func (c *HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	ctx, reqID := pkgctx.EnsureRequestID(ctx)
	req.Header.Set(pkgctx.HeaderXRequestID, reqID)

	timeout := c.config.ReadTimeout
	if isWriteMethod(req.Method) {
		timeout = c.config.WriteTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	req = req.WithContext(ctx)

	log := logger.Ctx(ctx).With().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Logger()

	start := time.Now()
	resp, err := c.baseClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		cancel()
		mapped := mapError(err)
		metrics.APIRequests.WithLabelValues(req.Method, outcomeOf(mapped)).Inc()
		log.Warn().
			Err(err).
			Dur("duration", duration).
			Msg("downstream_request_failed")
		return nil, mapped
	}
	metrics.APIRequests.WithLabelValues(req.Method, statusClass(resp.StatusCode)).Inc()

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("downstream_request_completed")

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout
	}
	// connection refused, DNS errors, etc.
	return ErrUnavailable
}

func outcomeOf(err error) string {
	if errors.Is(err, ErrTimeout) {
		return "timeout"
	}
	return "unavailable"
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
