package netutil

import (
	"io"
	"net"
	"net/http"
	"time"
)

// ClientOptions tunes BuildHTTPClient. Zero fields take the defaults.
type ClientOptions struct {
	Timeout         time.Duration
	ResponseTimeout time.Duration
	Retries         int
	Backoff         time.Duration
	// RetryStatuses also retries idempotent requests answered with 429/502/503/504.
	RetryStatuses bool
}

func (o *ClientOptions) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.ResponseTimeout <= 0 {
		o.ResponseTimeout = 5 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.Backoff <= 0 {
		o.Backoff = 2 * time.Second
	}
}

// BuildHTTPClient returns a client with bounded timeouts and linear-backoff
// retries of transient failures.
func BuildHTTPClient(opts ClientOptions) *http.Client {
	opts.defaults()
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: opts.ResponseTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: NewRetryTransport(transport, opts),
	}
}

// NewRetryTransport wraps base with the retry policy from opts.
func NewRetryTransport(base http.RoundTripper, opts ClientOptions) http.RoundTripper {
	opts.defaults()
	if base == nil {
		base = http.DefaultTransport
	}
	return &retryTransport{base: base, opts: opts}
}

type retryTransport struct {
	base http.RoundTripper
	opts ClientOptions
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	attempts := t.opts.Retries + 1
	var (
		resp    *http.Response
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		curr := req
		if attempt > 1 {
			curr = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				curr.Body = body
			} else if req.Body != nil && req.Body != http.NoBody {
				// body already consumed; give up with what we have
				break
			}
		}

		resp, lastErr = t.base.RoundTrip(curr)
		if !t.retryable(req, resp, lastErr) || attempt == attempts {
			break
		}
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			resp = nil
		}

		timer := time.NewTimer(t.opts.Backoff * time.Duration(attempt))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
	if resp == nil && lastErr == nil {
		lastErr = errRetryBodyConsumed
	}
	return resp, lastErr
}

func (t *retryTransport) retryable(req *http.Request, resp *http.Response, err error) bool {
	if err != nil {
		return ShouldRetry(err)
	}
	if !t.opts.RetryStatuses || resp == nil {
		return false
	}
	idempotent := req.Method == http.MethodGet || req.Method == http.MethodHead
	return idempotent && RetryStatus(resp.StatusCode)
}
