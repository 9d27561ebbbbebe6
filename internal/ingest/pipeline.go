// Package ingest is the path from "a request hit an endpoint URL" to
// "it is persisted, observers are notified, and a response is chosen".
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/echoendpoint/echoendpoint/internal/notify"
	"github.com/echoendpoint/echoendpoint/internal/ratelimit"
	"github.com/echoendpoint/echoendpoint/internal/respond"
	"github.com/echoendpoint/echoendpoint/internal/store"
)

type Outcome int

const (
	Accepted Outcome = iota
	// NotFound means the token matched no endpoint.
	NotFound
	// RateLimited means one of the two limiters rejected the call.
	RateLimited
)

// Result is the pipeline's verdict on one inbound request. StatusCode
// and Body are only meaningful for Accepted.
type Result struct {
	Outcome    Outcome
	RequestID  int64
	StatusCode int
	Body       json.RawMessage
}

// IncomingRequest carries everything the pipeline needs from the
// transport layer. Body is consumed only after the endpoint lookup and
// both rate limiters pass, so rejected calls never buffer a payload.
type IncomingRequest struct {
	Token    string
	Method   string
	Path     string
	Query    string
	Headers  http.Header
	Body     io.Reader
	RemoteIP string
}

type Pipeline struct {
	endpoints    store.EndpointStore
	requests     store.RequestStore
	ipLimiter    *ratelimit.Limiter
	tokenLimiter *ratelimit.Limiter
	broadcaster  *notify.Broadcaster
	resolver     *respond.Resolver
	logger       *slog.Logger
}

func NewPipeline(
	endpoints store.EndpointStore,
	requests store.RequestStore,
	ipLimiter, tokenLimiter *ratelimit.Limiter,
	broadcaster *notify.Broadcaster,
	resolver *respond.Resolver,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		endpoints:    endpoints,
		requests:     requests,
		ipLimiter:    ipLimiter,
		tokenLimiter: tokenLimiter,
		broadcaster:  broadcaster,
		resolver:     resolver,
		logger:       logger.With("component", "ingest"),
	}
}

// Ingest runs the capture pipeline: endpoint lookup, both rate limits,
// body capture, persistence (which carries the last-seen update),
// notification, response resolution. An error return means the attempt
// failed reading the body or at the storage layer; everything else is
// expressed in the Result outcome.
func (p *Pipeline) Ingest(ctx context.Context, in IncomingRequest) (*Result, error) {
	endpoint, err := p.endpoints.GetEndpointByToken(ctx, in.Token)
	if errors.Is(err, store.ErrNotFound) {
		return &Result{Outcome: NotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup endpoint: %w", err)
	}

	if !p.ipLimiter.Allow(in.RemoteIP) {
		return &Result{Outcome: RateLimited}, nil
	}
	if !p.tokenLimiter.Allow(in.Token) {
		return &Result{Outcome: RateLimited}, nil
	}

	body, err := CaptureBody(in.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	headersJSON, err := encodeHeaders(in.Headers)
	if err != nil {
		return nil, fmt.Errorf("encode headers: %w", err)
	}

	receivedAt := time.Now().UTC()
	req := &store.Request{
		EndpointID:  endpoint.ID,
		ReceivedAt:  receivedAt,
		Method:      in.Method,
		Path:        in.Path,
		Query:       in.Query,
		HeadersJSON: headersJSON,
		Body:        body.Blob,
		BodyText:    body.Text,
		ContentType: optionalHeader(in.Headers, "Content-Type"),
		RemoteIP:    in.RemoteIP,
		UserAgent:   optionalHeader(in.Headers, "User-Agent"),
		Truncated:   body.Truncated,
		BodySize:    body.Size,
	}
	if err := p.requests.SaveRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("save request: %w", err)
	}

	// Notification is best effort and must never fail the ingestion.
	p.broadcaster.Publish(in.Token, notify.Notification{
		ID:         req.ID,
		ReceivedAt: receivedAt,
		Method:     in.Method,
		Path:       in.Path,
	})

	status, respBody, err := p.resolver.Resolve(ctx, in.Token)
	if err != nil {
		return nil, fmt.Errorf("resolve response: %w", err)
	}

	p.logger.Debug("captured request",
		"id", req.ID,
		"method", in.Method,
		"path", in.Path,
		"truncated", body.Truncated,
	)

	return &Result{
		Outcome:    Accepted,
		RequestID:  req.ID,
		StatusCode: status,
		Body:       respBody,
	}, nil
}

type headerEntry struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// encodeHeaders serializes headers as a JSON array of name/values pairs
// sorted by name, so the stored form is a deterministic ordered
// structure rather than a map with unstable iteration order.
func encodeHeaders(h http.Header) (string, error) {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]headerEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, headerEntry{Name: name, Values: h[name]})
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func optionalHeader(h http.Header, name string) *string {
	v := h.Get(name)
	if v == "" {
		return nil
	}
	return &v
}
