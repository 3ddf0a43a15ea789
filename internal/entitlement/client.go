// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package entitlement talks to the exposure backend: it requests entitlements,
// validates program entitlements, looks up programs by instant and stores
// bookmarks. Acquire adds the one-shot unencrypted fallback on top.
package entitlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ManuGH/timeshift/internal/control/http/problem"
	"github.com/ManuGH/timeshift/internal/domain/playback/model"
	"github.com/ManuGH/timeshift/internal/domain/playback/ports"
	"github.com/ManuGH/timeshift/internal/metrics"
	"github.com/ManuGH/timeshift/internal/resilience"
	"github.com/ManuGH/timeshift/internal/telemetry"
)

// Routes of the exposure API. They double as low-cardinality metric labels.
const (
	RoutePlay     = "/v2/entitlement/{assetId}/play"
	RouteValidate = "/v2/entitlement/{assetId}/validate"
	RouteProgram  = "/v2/epg/{channelId}/program"
	RouteBookmark = "/v2/bookmark/{assetId}"
)

const maxErrorBody = 64 << 10

// Options configures the client behavior.
type Options struct {
	Timeout               time.Duration
	ResponseHeaderTimeout time.Duration
	MaxRetries            int
	Backoff               time.Duration
	MaxBackoff            time.Duration
	SessionToken          string
	UserAgent             string
	RateLimit             rate.Limit
	RateLimitBurst        int
	BreakerThreshold      int
	BreakerReset          time.Duration
}

const (
	defaultTimeout        = 5 * time.Second
	defaultRetries        = 2
	defaultBackoff        = 200 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
	defaultRateLimit      = 10
	defaultRateLimitBurst = 20
)

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.ResponseHeaderTimeout <= 0 {
		opts.ResponseHeaderTimeout = opts.Timeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "timeshift"
	}
	return opts
}

// DefaultOptions returns the options used when the caller has no preference.
func DefaultOptions() Options {
	return Options{MaxRetries: defaultRetries}
}

// Client is the HTTP exposure client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.Breaker
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	token      string
	userAgent  string

	mu  sync.Mutex
	rnd *rand.Rand
}

var _ ports.EntitlementProvider = (*Client)(nil)

// NewClient creates a client for baseURL.
func NewClient(baseURL string, opts Options) *Client {
	nopts := normalizeOptions(opts)
	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: nopts.ResponseHeaderTimeout,
		TLSHandshakeTimeout:   5 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Timeout:   nopts.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		limiter: rate.NewLimiter(nopts.RateLimit, nopts.RateLimitBurst),
		breaker: resilience.NewBreaker(resilience.Settings{
			Name:      "exposure",
			Threshold: nopts.BreakerThreshold,
			Cooldown:  nopts.BreakerReset,
			IsFailure: isBackendFault,
		}),
		maxRetries: nopts.MaxRetries,
		backoff:    nopts.Backoff,
		maxBackoff: nopts.MaxBackoff,
		token:      nopts.SessionToken,
		userAgent:  nopts.UserAgent,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter only
	}
}

// BreakerState reports the exposure breaker state.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// BaseURL returns the normalised base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RequestEntitlement asks for an entitlement to play req.AssetID.
func (c *Client) RequestEntitlement(ctx context.Context, req ports.EntitlementRequest) (*model.Entitlement, error) {
	ctx, span := telemetry.Tracer("timeshift.exposure").Start(ctx, "exposure.entitlement.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.EntitlementAttributes(string(req.Kind), req.AssetID, req.ChannelID, string(req.Variant))...))
	defer span.End()

	q := url.Values{}
	if req.Kind != "" {
		q.Set("kind", string(req.Kind))
	}
	if req.ChannelID != "" {
		q.Set("channelId", req.ChannelID)
	}
	if req.Variant != model.VariantDefault {
		q.Set("drm", string(req.Variant))
	}

	var ent model.Entitlement
	path := "/v2/entitlement/" + url.PathEscape(req.AssetID) + "/play"
	if err := c.do(ctx, http.MethodGet, RoutePlay, path, q, nil, "request entitlement", &ent); err != nil {
		markSpan(span, err)
		return nil, err
	}
	if ent.MediaLocator == "" {
		err := &Error{Sentinel: ErrBadResponse, Operation: "request entitlement", Message: "missing mediaLocator"}
		markSpan(span, err)
		return nil, err
	}
	if ent.Variant == model.VariantDefault {
		ent.Variant = req.Variant
	}
	return &ent, nil
}

type validation struct {
	Status string `json:"status"`
}

// ValidateEntitlement checks whether the principal may play programID. A
// non-SUCCESS status is a denial, not an error.
func (c *Client) ValidateEntitlement(ctx context.Context, programID, channelID string) (model.Verdict, error) {
	q := url.Values{}
	if channelID != "" {
		q.Set("channelId", channelID)
	}
	var v validation
	path := "/v2/entitlement/" + url.PathEscape(programID) + "/validate"
	if err := c.do(ctx, http.MethodGet, RouteValidate, path, q, nil, "validate entitlement", &v); err != nil {
		var e *Error
		if errors.As(err, &e) && errors.Is(err, ErrForbidden) {
			reason := e.Reason
			if reason == "" {
				reason = "FORBIDDEN"
			}
			return model.Denied(reason), nil
		}
		return model.Verdict{}, err
	}
	if !strings.EqualFold(v.Status, "SUCCESS") {
		return model.Denied(v.Status), nil
	}
	return model.Granted(programID), nil
}

// ProgramAt returns the program airing on channelID at ts. A gap in the EPG is
// reported as ErrNotFound.
func (c *Client) ProgramAt(ctx context.Context, channelID string, ts int64) (*model.Program, error) {
	ctx, span := telemetry.Tracer("timeshift.exposure").Start(ctx, "exposure.epg.lookup",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.LookupAttributes(channelID, ts)...))
	defer span.End()

	q := url.Values{}
	q.Set("time", strconv.FormatInt(ts, 10))
	var p model.Program
	path := "/v2/epg/" + url.PathEscape(channelID) + "/program"
	if err := c.do(ctx, http.MethodGet, RouteProgram, path, q, nil, "lookup program", &p); err != nil {
		markSpan(span, err)
		return nil, err
	}
	if p.ChannelID == "" {
		p.ChannelID = channelID
	}
	if p.AssetID == "" {
		p.AssetID = p.ProgramID
	}
	return &p, nil
}

type bookmarkBody struct {
	LastViewedOffset *int64 `json:"lastViewedOffset,omitempty"`
	LastViewedTime   *int64 `json:"lastViewedTime,omitempty"`
}

// PutBookmark stores the last viewed point of assetID for the session principal.
func (c *Client) PutBookmark(ctx context.Context, assetID string, offsetMs, timeMs *int64) error {
	path := "/v2/bookmark/" + url.PathEscape(assetID)
	return c.do(ctx, http.MethodPut, RouteBookmark, path, nil,
		bookmarkBody{LastViewedOffset: offsetMs, LastViewedTime: timeMs}, "put bookmark", nil)
}

func markSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if code := HTTPCode(err); code > 0 {
		span.SetAttributes(attribute.Int(telemetry.HTTPStatusCodeKey, code))
	}
}

// do performs one logical call through the breaker. Transport errors and 5xx
// are retried with jittered backoff; every other status is final.
func (c *Client) do(ctx context.Context, method, route, path string, query url.Values, body any, op string, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", op, err)
		}
		payload = b
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.doWithRetries(ctx, method, route, u, payload, op, out)
	})
	if errors.Is(err, resilience.ErrOpen) {
		return &Error{Sentinel: ErrUnavailable, Operation: op, Err: err}
	}
	return err
}

func (c *Client) doWithRetries(ctx context.Context, method, route, rawURL string, payload []byte, op string, out any) error {
	tracer := telemetry.Tracer("timeshift.exposure")
	maxAttempts := c.maxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, span := tracer.Start(ctx, "exposure.request.attempt", trace.WithSpanKind(trace.SpanKindClient))
		span.SetAttributes(
			attribute.Int(telemetry.AttemptKey, attempt),
			attribute.Bool("retry", attempt > 1),
		)

		retryable, err := c.attempt(attemptCtx, method, route, rawURL, payload, op, out, attempt > 1)
		if err != nil {
			markSpan(span, err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || attempt == maxAttempts {
			break
		}
		if err := sleepWithContext(ctx, c.backoffFor(attempt-1)); err != nil {
			return &Error{Sentinel: ErrTimeout, Operation: op, Err: err}
		}
	}
	return lastErr
}

// attempt runs one HTTP exchange. The bool reports whether a retry may help.
func (c *Client) attempt(ctx context.Context, method, route, rawURL string, payload []byte, op string, out any, retried bool) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, &Error{Sentinel: ErrTimeout, Operation: op, Err: ctxErr}
		}
		return false, &Error{Sentinel: ErrRateLimited, Operation: op, Err: err}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return false, &Error{Sentinel: ErrRejected, Operation: op, Err: err}
	}
	c.applyHeaders(req, payload != nil)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	took := time.Since(start)
	if err != nil {
		metrics.RecordBackendRequest(route, 0, took, retried)
		if ctx.Err() != nil {
			return false, &Error{Sentinel: ErrTimeout, Operation: op, Err: err}
		}
		return true, &Error{Sentinel: ErrUnavailable, Operation: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.RecordBackendRequest(route, resp.StatusCode, took, retried)

	if resp.StatusCode >= http.StatusBadRequest {
		e := decodeError(resp, op)
		return resp.StatusCode >= http.StatusInternalServerError, e
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, &Error{Sentinel: ErrBadResponse, Operation: op, HTTPCode: resp.StatusCode, Err: err}
	}
	return false, nil
}

// exposureError is the backend's error body.
type exposureError struct {
	HTTPCode int    `json:"httpCode"`
	Message  string `json:"message"`
}

func decodeError(resp *http.Response, op string) *Error {
	e := &Error{Sentinel: sentinelForStatus(resp.StatusCode), Operation: op, HTTPCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return e
	}
	if p, ok := problem.Parse(resp.Header.Get("Content-Type"), raw); ok {
		e.Reason = p.Code
		e.Message = p.Detail
		return e
	}
	var body exposureError
	if json.Unmarshal(raw, &body) != nil {
		e.Message = strings.TrimSpace(string(raw))
		return e
	}
	e.Message = body.Message
	if isReasonCode(body.Message) {
		e.Reason = body.Message
	}
	return e
}

// isReasonCode matches UPPER_SNAKE_CASE codes such as NO_MEDIA_FOR_PROGRAM.
func isReasonCode(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

func (c *Client) applyHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) backoffFor(attempt int) time.Duration {
	wait := c.backoff * time.Duration(1<<attempt)
	if wait > c.maxBackoff {
		wait = c.maxBackoff
	}
	jitter := time.Duration(c.randInt63n(int64(wait/5 + 1)))
	return wait + jitter
}

func (c *Client) randInt63n(n int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rnd.Int63n(n)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
