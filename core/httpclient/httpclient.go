// Package httpclient builds tuned HTTP clients shared by the Telegram runtime
// and the backend gateway.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// Options tunes transport timeouts and the retry policy.
type Options struct {
	DialTimeout       time.Duration
	TLSHandshake      time.Duration
	IdleConnTimeout   time.Duration
	ResponseTimeout   time.Duration
	ClientTimeout     time.Duration
	KeepAliveInterval time.Duration
	MaxIdleConns      int
	MaxIdlePerHost    int
	RetryAttempts     int
	RetryBackoff      time.Duration
}

// TelegramDefaults returns the settings used for Telegram Bot API calls.
func TelegramDefaults() Options {
	return Options{
		DialTimeout:       5 * time.Second,
		TLSHandshake:      5 * time.Second,
		IdleConnTimeout:   30 * time.Second,
		ResponseTimeout:   5 * time.Second,
		ClientTimeout:     30 * time.Second,
		KeepAliveInterval: 30 * time.Second,
		MaxIdleConns:      100,
		MaxIdlePerHost:    10,
		RetryAttempts:     3,
		RetryBackoff:      2 * time.Second,
	}
}

// GatewayDefaults returns the settings used for backend gateway calls.
// Every call is bounded by ClientTimeout; retries only cover dial failures.
func GatewayDefaults() Options {
	return Options{
		DialTimeout:       3 * time.Second,
		TLSHandshake:      3 * time.Second,
		IdleConnTimeout:   15 * time.Second,
		ResponseTimeout:   10 * time.Second,
		ClientTimeout:     10 * time.Second,
		KeepAliveInterval: 15 * time.Second,
		MaxIdleConns:      4,
		MaxIdlePerHost:    4,
		RetryAttempts:     1,
		RetryBackoff:      200 * time.Millisecond,
	}
}

// NewTransport returns a fresh transport wrapped with the retry policy.
// Callers that own the transport release it with CloseIdle.
func NewTransport(opts Options) *RetryTransport {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: opts.DialTimeout, KeepAlive: opts.KeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          opts.MaxIdleConns,
		MaxIdleConnsPerHost:   opts.MaxIdlePerHost,
		IdleConnTimeout:       opts.IdleConnTimeout,
		TLSHandshakeTimeout:   opts.TLSHandshake,
		ResponseHeaderTimeout: opts.ResponseTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &RetryTransport{
		Base:       base,
		MaxRetries: opts.RetryAttempts,
		Backoff:    opts.RetryBackoff,
	}
}

// New returns an HTTP client using a fresh retrying transport.
func New(opts Options) *http.Client {
	return &http.Client{
		Timeout:   opts.ClientTimeout,
		Transport: NewTransport(opts),
	}
}

// RetryTransport retries requests that failed with transient network errors.
type RetryTransport struct {
	Base       http.RoundTripper
	MaxRetries int
	Backoff    time.Duration
}

// CloseIdle drops idle keep-alive connections held by the base transport.
func (t *RetryTransport) CloseIdle() {
	if ci, ok := t.Base.(interface{ CloseIdleConnections() }); ok {
		ci.CloseIdleConnections()
	}
}

// RoundTrip implements http.RoundTripper. Requests with a body are only
// retried when the body can be replayed through GetBody.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil

	resp, err := base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.MaxRetries; attempt++ {
		if !Transient(err) || !replayable {
			break
		}
		if werr := Sleep(req.Context(), t.Backoff*time.Duration(attempt)); werr != nil {
			return nil, werr
		}
		retry := req.Clone(req.Context())
		if req.GetBody != nil {
			body, berr := req.GetBody()
			if berr != nil {
				return nil, berr
			}
			retry.Body = body
		}
		resp, err = base.RoundTrip(retry)
	}
	return resp, err
}
