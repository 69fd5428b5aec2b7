package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/campus/api/transport"
	"github.com/fastygo/campus/domain"
	"github.com/fastygo/campus/internal/cookies"
	"github.com/fastygo/campus/internal/metrics"
	appLogger "github.com/fastygo/campus/pkg/logger"
)

// CSRFHeader carries the csrftoken cookie value on state-changing requests.
const CSRFHeader = "X-CSRFToken"

// Config controls the backend client.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	LogoutTimeout time.Duration
	MaxRetryAfter time.Duration
	MaxConns      int
	UserAgent     string
}

// Option customises a Client.
type Option func(*Client)

// WithDial replaces the TCP dialer, e.g. with an in-memory listener.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

// WithMetrics records rate-limit retries.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithSleep overrides how the client waits before retrying.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// Client talks to the backend REST API with browser semantics: cookies are
// kept in the jar, state-changing requests carry the CSRF header and a
// bearer token is attached only when the caller passes one.
type Client struct {
	base    *url.URL
	http    *fasthttp.Client
	jar     *cookies.Jar
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a backend client sharing the given cookie jar.
func New(cfg Config, jar *cookies.Jar, logger *zap.Logger, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("client: invalid base url %q", cfg.BaseURL)
	}
	if jar == nil {
		return nil, fmt.Errorf("client: cookie jar is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.LogoutTimeout <= 0 {
		cfg.LogoutTimeout = 3 * time.Second
	}
	if cfg.MaxRetryAfter <= 0 {
		cfg.MaxRetryAfter = 30 * time.Second
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 16
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "campusctl"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		base: base,
		http: &fasthttp.Client{
			Name:                     cfg.UserAgent,
			MaxConnsPerHost:          cfg.MaxConns,
			ReadTimeout:              cfg.Timeout,
			WriteTimeout:             cfg.Timeout,
			NoDefaultUserAgentHeader: true,
		},
		jar:    jar,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Jar returns the cookie jar shared with the session manager.
func (c *Client) Jar() *cookies.Jar { return c.jar }

type call struct {
	method  string
	path    string
	query   url.Values
	body    any
	token   string
	timeout time.Duration
}

type result struct {
	status     int
	retryAfter string
	body       []byte
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	log := appLogger.WithContext(ctx, c.logger).With(
		zap.String("method", cl.method),
		zap.String("path", cl.path),
	)
	for attempt := 0; ; attempt++ {
		res, err := c.roundTrip(ctx, cl)
		if err != nil {
			log.Debug("backend request failed", zap.Error(err))
			return domain.WrapError(domain.ErrCodeUnavailable, "backend unreachable", err)
		}

		if res.status == fasthttp.StatusTooManyRequests && attempt == 0 && res.retryAfter != "" {
			wait := parseRetryAfter(res.retryAfter, time.Now(), c.cfg.MaxRetryAfter)
			log.Info("rate limited, retrying", zap.Duration("retry_after", wait))
			c.metrics.RateLimitRetried()
			if err := c.sleep(ctx, wait); err != nil {
				return domain.WrapError(domain.ErrCodeUnavailable, "request cancelled while rate limited", err)
			}
			continue
		}

		if res.status >= 200 && res.status < 300 {
			if out == nil || len(res.body) == 0 {
				return nil
			}
			if err := json.Unmarshal(res.body, out); err != nil {
				return domain.WrapError(domain.ErrCodeInternal, "malformed backend response", err)
			}
			return nil
		}

		log.Debug("backend rejected request", zap.Int("status", res.status))
		return statusError(res.status, res.body)
	}
}

func (c *Client) roundTrip(ctx context.Context, cl call) (result, error) {
	if err := ctx.Err(); err != nil {
		return result{}, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	target := c.resolve(cl.path, cl.query)
	req.SetRequestURI(target.String())
	req.Header.SetMethod(cl.method)
	req.Header.SetUserAgent(c.cfg.UserAgent)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")

	for _, ck := range c.jar.Cookies(target) {
		req.Header.SetCookie(ck.Name, ck.Value)
	}
	if cl.method != fasthttp.MethodGet && cl.method != fasthttp.MethodHead {
		if token, ok := c.jar.Get(cookies.CSRFCookieName); ok {
			req.Header.Set(CSRFHeader, token)
		}
		req.Header.Set(fasthttp.HeaderReferer, c.base.Scheme+"://"+c.base.Host+"/")
	}
	if cl.token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+cl.token)
	}
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return result{}, err
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	timeout := cl.timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return result{}, err
	}

	var received []*http.Cookie
	resp.Header.VisitAllCookie(func(_, value []byte) {
		if ck, err := http.ParseSetCookie(string(value)); err == nil {
			received = append(received, ck)
		}
	})
	c.jar.SetCookies(target, received)

	return result{
		status:     resp.StatusCode(),
		retryAfter: string(resp.Header.Peek(fasthttp.HeaderRetryAfter)),
		body:       append([]byte(nil), resp.Body()...),
	}, nil
}

func (c *Client) resolve(path string, query url.Values) *url.URL {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + path
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return &u
}

// HTTPError is the cause carried by domain errors built from HTTP statuses.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status behind err, or 0 for transport failures.
func StatusCode(err error) int {
	var h *HTTPError
	if errors.As(err, &h) {
		return h.Status
	}
	return 0
}

func statusError(status int, body []byte) error {
	var eb transport.ErrorBody
	_ = json.Unmarshal(body, &eb)
	cause := &HTTPError{Status: status, Message: eb.Text()}

	switch {
	case status == fasthttp.StatusBadRequest:
		return domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidPayload.Message, cause)
	case status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden:
		return domain.WrapError(domain.ErrCodeUnauthorized, domain.ErrUnauthorized.Message, cause)
	case status == fasthttp.StatusNotFound:
		return domain.WrapError(domain.ErrCodeNotFound, "not found", cause)
	case status == fasthttp.StatusTooManyRequests:
		return domain.WrapError(domain.ErrCodeRateLimited, domain.ErrRateLimited.Message, cause)
	case status >= 500:
		return domain.WrapError(domain.ErrCodeUnavailable, domain.ErrBackendDown.Message, cause)
	default:
		return domain.WrapError(domain.ErrCodeInternal, "unexpected backend response", cause)
	}
}

// parseRetryAfter accepts delay-seconds or an HTTP date and caps the wait.
func parseRetryAfter(v string, now time.Time, limit time.Duration) time.Duration {
	v = strings.TrimSpace(v)
	var wait time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		wait = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(v); err == nil {
		wait = at.Sub(now)
	} else {
		wait = time.Second
	}
	if wait < 0 {
		wait = 0
	}
	if wait > limit {
		wait = limit
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsNetworkError reports whether err is a transport failure rather than an
// HTTP response.
func IsNetworkError(err error) bool {
	return err != nil && domain.IsDomainError(err, domain.ErrCodeUnavailable) && StatusCode(err) == 0
}
