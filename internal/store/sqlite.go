package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// tokenBytes is the amount of randomness behind each endpoint token.
// 32 bytes encodes to 43 URL-safe characters.
const tokenBytes = 32

// createRetries bounds how many times endpoint creation retries token
// generation after a UNIQUE collision before giving up.
const createRetries = 5

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS endpoints (
		id INTEGER PRIMARY KEY,
		token TEXT UNIQUE NOT NULL,
		created_at DATETIME NOT NULL,
		last_seen_at DATETIME NULL
	);
	CREATE INDEX IF NOT EXISTS idx_endpoints_token ON endpoints(token);
	CREATE TABLE IF NOT EXISTS requests (
		id INTEGER PRIMARY KEY,
		endpoint_id INTEGER NOT NULL,
		received_at DATETIME NOT NULL,
		method TEXT NOT NULL,
		path TEXT NOT NULL,
		query TEXT,
		headers_json TEXT NOT NULL,
		body_blob BLOB,
		body_text TEXT NULL,
		content_type TEXT NULL,
		remote_ip TEXT NOT NULL,
		user_agent TEXT NULL,
		truncated INTEGER NOT NULL DEFAULT 0,
		body_size INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY(endpoint_id) REFERENCES endpoints(id)
	);
	CREATE INDEX IF NOT EXISTS idx_requests_endpoint_id ON requests(endpoint_id);
	CREATE INDEX IF NOT EXISTS idx_requests_received_at ON requests(received_at);
	CREATE TABLE IF NOT EXISTS response_configs (
		token TEXT PRIMARY KEY,
		status_code INTEGER,
		body_json TEXT,
		content_type TEXT,
		updated_at DATETIME
	);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *SQLiteStore) CreateEndpoint(ctx context.Context) (*Endpoint, error) {
	now := time.Now().UTC()
	for i := 0; i < createRetries; i++ {
		token, err := newToken()
		if err != nil {
			return nil, err
		}
		res, err := s.db.ExecContext(ctx,
			"INSERT INTO endpoints (token, created_at) VALUES (?, ?)", token, now)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				continue
			}
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		return &Endpoint{ID: id, Token: token, CreatedAt: now}, nil
	}
	return nil, fmt.Errorf("create endpoint: token collisions exhausted %d retries", createRetries)
}

func (s *SQLiteStore) GetEndpointByToken(ctx context.Context, token string) (*Endpoint, error) {
	var (
		e        Endpoint
		lastSeen sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, token, created_at, last_seen_at FROM endpoints WHERE token = ?", token).
		Scan(&e.ID, &e.Token, &e.CreatedAt, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		e.LastSeenAt = &lastSeen.Time
	}
	return &e, nil
}

func (s *SQLiteStore) TouchLastSeen(ctx context.Context, id int64, seenAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE endpoints SET last_seen_at = ? WHERE id = ?", seenAt, id)
	return err
}

func (s *SQLiteStore) SaveRequest(ctx context.Context, req *Request) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO requests (
			endpoint_id, received_at, method, path, query, headers_json,
			body_blob, body_text, content_type, remote_ip, user_agent,
			truncated, body_size
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, req.EndpointID, req.ReceivedAt, req.Method, req.Path, req.Query,
		req.HeadersJSON, req.Body, req.BodyText, req.ContentType,
		req.RemoteIP, req.UserAgent, req.Truncated, req.BodySize)
	if err != nil {
		return err
	}
	if req.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE endpoints SET last_seen_at = ? WHERE id = ?",
		req.ReceivedAt, req.EndpointID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListRequests(ctx context.Context, endpointID int64, limit, offset int) ([]*RequestSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, received_at, method, path, query, content_type,
		       remote_ip, user_agent, truncated, body_size
		FROM requests
		WHERE endpoint_id = ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`, endpointID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*RequestSummary
	for rows.Next() {
		var (
			r           RequestSummary
			contentType sql.NullString
			userAgent   sql.NullString
		)
		err := rows.Scan(&r.ID, &r.ReceivedAt, &r.Method, &r.Path, &r.Query,
			&contentType, &r.RemoteIP, &userAgent, &r.Truncated, &r.BodySize)
		if err != nil {
			return nil, err
		}
		if contentType.Valid {
			r.ContentType = &contentType.String
		}
		if userAgent.Valid {
			r.UserAgent = &userAgent.String
		}
		items = append(items, &r)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) GetRequest(ctx context.Context, id int64) (*Request, error) {
	r, err := s.scanRequest(s.db.QueryRowContext(ctx, `
		SELECT id, endpoint_id, received_at, method, path, query, headers_json,
		       body_blob, body_text, content_type, remote_ip, user_agent,
		       truncated, body_size
		FROM requests
		WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *SQLiteStore) ExportRequests(ctx context.Context, endpointID int64) ([]*Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, endpoint_id, received_at, method, path, query, headers_json,
		       body_blob, body_text, content_type, remote_ip, user_agent,
		       truncated, body_size
		FROM requests
		WHERE endpoint_id = ?
		ORDER BY id DESC
	`, endpointID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []*Request
	for rows.Next() {
		r, err := s.scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanRequest(row rowScanner) (*Request, error) {
	var (
		r           Request
		bodyText    sql.NullString
		contentType sql.NullString
		userAgent   sql.NullString
	)
	err := row.Scan(&r.ID, &r.EndpointID, &r.ReceivedAt, &r.Method, &r.Path,
		&r.Query, &r.HeadersJSON, &r.Body, &bodyText, &contentType,
		&r.RemoteIP, &userAgent, &r.Truncated, &r.BodySize)
	if err != nil {
		return nil, err
	}
	if bodyText.Valid {
		r.BodyText = &bodyText.String
	}
	if contentType.Valid {
		r.ContentType = &contentType.String
	}
	if userAgent.Valid {
		r.UserAgent = &userAgent.String
	}
	return &r, nil
}

func (s *SQLiteStore) DeleteRequests(ctx context.Context, endpointID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM requests WHERE endpoint_id = ?", endpointID)
	return err
}

func (s *SQLiteStore) GetResponseConfig(ctx context.Context, token string) (*ResponseConfig, error) {
	var c ResponseConfig
	err := s.db.QueryRowContext(ctx, `
		SELECT token, status_code, body_json, content_type, updated_at
		FROM response_configs
		WHERE token = ?
	`, token).Scan(&c.Token, &c.StatusCode, &c.BodyJSON, &c.ContentType, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) UpsertResponseConfig(ctx context.Context, cfg *ResponseConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO response_configs
			(token, status_code, body_json, content_type, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, cfg.Token, cfg.StatusCode, cfg.BodyJSON, cfg.ContentType, cfg.UpdatedAt)
	return err
}

func (s *SQLiteStore) DeleteResponseConfig(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM response_configs WHERE token = ?", token)
	return err
}
