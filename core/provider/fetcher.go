// Package provider is the generic "fetch data, render text" collaborator
// used by informational commands such as weather or exchange rates.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m3rciful/financebot/core/logger"
	"github.com/m3rciful/financebot/core/netutil"
)

// Request describes one upstream call. Secrets are values such as API keys
// that must never show up in errors or logs.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Secrets []string
}

// Response is the raw upstream answer.
type Response struct {
	Status int
	Body   []byte
}

// JSON decodes the body into v.
func (r Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// FetchError reports a failed upstream call. Status is 0 for transport errors.
// URL is already redacted; Error scrubs the wrapped error text as well.
type FetchError struct {
	URL    string
	Status int
	Err    error

	raw     string
	secrets []string
}

func newFetchError(req Request, status int, err error) *FetchError {
	red := redact(req.URL, req.Secrets...)
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = red
	}
	return &FetchError{URL: red, Status: status, Err: err, raw: req.URL, secrets: req.Secrets}
}

func (e *FetchError) Error() string {
	var msg string
	switch {
	case e.Status != 0 && e.Err != nil:
		msg = fmt.Sprintf("provider: %s: status %d: %v", e.URL, e.Status, e.Err)
	case e.Status != 0:
		msg = fmt.Sprintf("provider: %s: status %d", e.URL, e.Status)
	default:
		msg = fmt.Sprintf("provider: %s: %v", e.URL, e.Err)
	}
	return scrub(msg, e.raw, e.URL, e.secrets)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Code returns the stable log code of the error.
func (e *FetchError) Code() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch_http_%d", e.Status)
	}
	return "fetch_transport"
}

// Fetcher performs upstream calls. No retry policy is implied by the interface.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}

// HTTPFetcher implements Fetcher over net/http.
type HTTPFetcher struct {
	client  *http.Client
	maxBody int64
}

// NewHTTPFetcher uses client, or the shared retrying client when nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = netutil.BuildHTTPClient(netutil.ClientOptions{
			Timeout:       15 * time.Second,
			Retries:       2,
			Backoff:       500 * time.Millisecond,
			RetryStatuses: true,
		})
	}
	return &HTTPFetcher{client: client, maxBody: 1 << 20}
}

// Fetch executes req. Non-2xx answers are returned as *FetchError with the body kept.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		return Response{}, newFetchError(req, 0, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	resp, err := f.client.Do(httpReq)
	if err != nil {
		fe := newFetchError(req, 0, err)
		f.log(ctx, req, 0, start, fe)
		return Response{}, fe
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		fe := newFetchError(req, resp.StatusCode, err)
		f.log(ctx, req, resp.StatusCode, start, fe)
		return Response{}, fe
	}
	out := Response{Status: resp.StatusCode, Body: body}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fe := newFetchError(req, resp.StatusCode, nil)
		f.log(ctx, req, resp.StatusCode, start, fe)
		return out, fe
	}
	f.log(ctx, req, resp.StatusCode, start, nil)
	return out, nil
}

func (f *HTTPFetcher) log(ctx context.Context, req Request, status int, start time.Time, err error) {
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("event", "provider.fetch"),
		slog.String("status", logger.Status(err)),
		slog.String("path", redact(req.URL, req.Secrets...)),
		slog.Int("http_code", status),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("err", scrub(err.Error(), req.URL, redact(req.URL, req.Secrets...), req.Secrets)))
	}
	logger.Provider.LogAttrs(ctx, level, "fetch", attrs...)
}

const redacted = "REDACTED"

// redact drops the query string and user info of raw and masks secrets
// that remain, typically API keys in the path.
func redact(raw string, secrets ...string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}
	u.RawQuery = ""
	u.User = nil
	return maskSecrets(u.String(), secrets)
}

// scrub replaces the raw URL in msg with its redacted form and masks secrets.
func scrub(msg, raw, red string, secrets []string) string {
	if raw != "" && raw != red {
		msg = strings.ReplaceAll(msg, raw, red)
	}
	return maskSecrets(msg, secrets)
}

func maskSecrets(s string, secrets []string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, redacted)
		if esc := url.PathEscape(secret); esc != secret {
			s = strings.ReplaceAll(s, esc, redacted)
		}
		if esc := url.QueryEscape(secret); esc != secret {
			s = strings.ReplaceAll(s, esc, redacted)
		}
	}
	return s
}
