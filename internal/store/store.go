package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

type Endpoint struct {
	ID         int64      `json:"id"`
	Token      string     `json:"token"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt *time.Time `json:"last_seen_at"`
}

type Request struct {
	ID          int64     `json:"id"`
	EndpointID  int64     `json:"endpoint_id"`
	ReceivedAt  time.Time `json:"received_at"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	Query       string    `json:"query"`
	HeadersJSON string    `json:"headers_json"`
	Body        []byte    `json:"-"`
	BodyText    *string   `json:"body_text"`
	ContentType *string   `json:"content_type"`
	RemoteIP    string    `json:"remote_ip"`
	UserAgent   *string   `json:"user_agent"`
	Truncated   bool      `json:"truncated"`
	BodySize    int64     `json:"body_size"`
}

// RequestSummary is the list-view projection of a Request: everything
// except the captured body and headers.
type RequestSummary struct {
	ID          int64     `json:"id"`
	ReceivedAt  time.Time `json:"received_at"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	Query       string    `json:"query"`
	ContentType *string   `json:"content_type"`
	RemoteIP    string    `json:"remote_ip"`
	UserAgent   *string   `json:"user_agent"`
	Truncated   bool      `json:"truncated"`
	BodySize    int64     `json:"body_size"`
}

// ResponseConfig is the operator-defined synthetic response for an
// endpoint, keyed 1:1 by token with overwrite semantics.
type ResponseConfig struct {
	Token       string    `json:"token"`
	StatusCode  int       `json:"status_code"`
	BodyJSON    string    `json:"body_json"`
	ContentType string    `json:"content_type"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type EndpointStore interface {
	// CreateEndpoint generates a fresh token and persists the endpoint,
	// retrying token generation on collision.
	CreateEndpoint(ctx context.Context) (*Endpoint, error)
	GetEndpointByToken(ctx context.Context, token string) (*Endpoint, error)
	TouchLastSeen(ctx context.Context, id int64, seenAt time.Time) error
}

type RequestStore interface {
	// SaveRequest inserts the capture, assigns req.ID, and updates the
	// owning endpoint's last-seen timestamp to req.ReceivedAt in the
	// same transaction, so a capture never lands without its liveness
	// update.
	SaveRequest(ctx context.Context, req *Request) error
	// ListRequests returns summaries newest first.
	ListRequests(ctx context.Context, endpointID int64, limit, offset int) ([]*RequestSummary, error)
	GetRequest(ctx context.Context, id int64) (*Request, error)
	// ExportRequests returns full captures newest first.
	ExportRequests(ctx context.Context, endpointID int64) ([]*Request, error)
	DeleteRequests(ctx context.Context, endpointID int64) error
}

type ResponseConfigStore interface {
	GetResponseConfig(ctx context.Context, token string) (*ResponseConfig, error)
	UpsertResponseConfig(ctx context.Context, cfg *ResponseConfig) error
	DeleteResponseConfig(ctx context.Context, token string) error
}

type Store interface {
	EndpointStore
	RequestStore
	ResponseConfigStore
}
