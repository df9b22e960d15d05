// Package gateway talks to the backend gateway that owns users, profiles,
// subscriptions and payment links.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/langbot/core/httpclient"
	"github.com/m3rciful/langbot/core/logger"
)

const maxBodyBytes = 1 << 20

// Client issues gateway calls. Calls run inside Do blocks; each block owns
// its own connection pool which is torn down when the block returns.
type Client struct {
	base    *url.URL
	timeout time.Duration
	opts    httpclient.Options
	open    atomic.Int64
}

// New constructs a Client from a normalized Config.
func New(cfg Config) (*Client, error) {
	if err := checkRoutes(); err != nil {
		return nil, err
	}
	base, err := cfg.BaseURL()
	if err != nil {
		return nil, err
	}
	opts := httpclient.GatewayDefaults()
	opts.ClientTimeout = cfg.Timeout()
	opts.ResponseTimeout = cfg.Timeout()
	opts.RetryAttempts = cfg.Retries
	return &Client{base: base, timeout: cfg.Timeout(), opts: opts}, nil
}

// OpenSessions reports how many Do blocks are currently running.
func (c *Client) OpenSessions() int64 {
	return c.open.Load()
}

// Do runs fn with a fresh Session and releases it on every exit path,
// including panics.
func (c *Client) Do(ctx context.Context, fn func(*Session) error) error {
	s := c.openSession()
	defer s.close()
	return fn(s)
}

func (c *Client) openSession() *Session {
	transport := httpclient.NewTransport(c.opts)
	c.open.Add(1)
	return &Session{
		client:    c,
		transport: transport,
		http:      &http.Client{Timeout: c.opts.ClientTimeout, Transport: transport},
	}
}

// Session is one logical block of gateway calls.
type Session struct {
	client    *Client
	transport *httpclient.RetryTransport
	http      *http.Client

	mu     sync.RWMutex
	closed bool
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.transport.CloseIdle()
	s.client.open.Add(-1)
}

// call issues op and decodes the JSON response into out when out is non-nil.
func (s *Session) call(ctx context.Context, op Operation, query url.Values, body, out any) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return &Error{Op: op, Err: ErrSessionClosed}
	}

	rt, ok := routes[op]
	if !ok {
		return fmt.Errorf("gateway: unknown operation %q", op)
	}

	u := *s.client.base
	u.Path = path.Join("/", u.Path, rt.path)
	u.RawQuery = query.Encode()

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Err: fmt.Errorf("encode body: %w", err)}
		}
		payload = bytes.NewReader(raw)
	}

	ctx, cancel := context.WithTimeout(ctx, s.client.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, rt.method, u.String(), payload)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-Id", reqID)

	start := time.Now()
	resp, err := s.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		gwErr := &Error{Op: op, Err: err}
		s.logCall(ctx, op, reqID, 0, start, gwErr)
		return gwErr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		gwErr := &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
		s.logCall(ctx, op, reqID, resp.StatusCode, start, gwErr)
		return gwErr
	}

	if !rt.accepts(resp.StatusCode) {
		gwErr := &Error{Op: op, Status: resp.StatusCode, Body: logger.SanitizeLimit(string(data), 256)}
		if rt.internal {
			gwErr.Status = http.StatusInternalServerError
			gwErr.Body = "Server Internal Error"
		}
		s.logCall(ctx, op, reqID, resp.StatusCode, start, gwErr)
		return gwErr
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(out); err != nil {
			gwErr := &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
			s.logCall(ctx, op, reqID, resp.StatusCode, start, gwErr)
			return gwErr
		}
	}
	s.logCall(ctx, op, reqID, resp.StatusCode, start, nil)
	return nil
}

func (s *Session) logCall(ctx context.Context, op Operation, reqID string, status int, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "fail"
	}
	attrs := []slog.Attr{
		slog.String("status", outcome),
		slog.String("op", string(op)),
		slog.String("request_id", reqID),
		slog.Duration("duration", logger.Took(start)),
	}
	if status != 0 {
		attrs = append(attrs, slog.Int("http_code", status))
	}
	if err == nil {
		logger.Debug(ctx, "gateway", "gateway.call", attrs...)
		return
	}
	attrs = append(attrs, slog.String("err", err.Error()))
	var gwErr *Error
	if errors.As(err, &gwErr) {
		attrs = append(attrs, slog.String("err_code", gwErr.Code()))
	}
	logger.Warn(ctx, "gateway", "gateway.call", attrs...)
}
