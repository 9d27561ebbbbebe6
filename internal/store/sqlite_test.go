package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateEndpoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e, err := s.CreateEndpoint(ctx)
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}
	if e.ID == 0 {
		t.Error("expected assigned ID")
	}
	// 32 random bytes encode to 43 URL-safe characters.
	if len(e.Token) != 43 {
		t.Errorf("token length = %d, want 43", len(e.Token))
	}
	if e.LastSeenAt != nil {
		t.Error("fresh endpoint must have no last-seen timestamp")
	}

	other, err := s.CreateEndpoint(ctx)
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}
	if other.Token == e.Token {
		t.Error("tokens must be unique")
	}
}

func TestGetEndpointByToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateEndpoint(ctx)
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}

	got, err := s.GetEndpointByToken(ctx, created.Token)
	if err != nil {
		t.Fatalf("GetEndpointByToken: %v", err)
	}
	if got.ID != created.ID || got.Token != created.Token {
		t.Errorf("got %+v, want %+v", got, created)
	}

	_, err = s.GetEndpointByToken(ctx, "no-such-token")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTouchLastSeen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e, err := s.CreateEndpoint(ctx)
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}

	seenAt := time.Now().UTC().Truncate(time.Second)
	if err := s.TouchLastSeen(ctx, e.ID, seenAt); err != nil {
		t.Fatalf("TouchLastSeen: %v", err)
	}

	got, err := s.GetEndpointByToken(ctx, e.Token)
	if err != nil {
		t.Fatalf("GetEndpointByToken: %v", err)
	}
	if got.LastSeenAt == nil {
		t.Fatal("expected last-seen set")
	}
	if !got.LastSeenAt.Equal(seenAt) {
		t.Errorf("last seen = %v, want %v", got.LastSeenAt, seenAt)
	}
}

func saveTestRequest(t *testing.T, s *SQLiteStore, endpointID int64, method string) *Request {
	t.Helper()

	bodyText := "hello"
	contentType := "text/plain"
	req := &Request{
		EndpointID:  endpointID,
		ReceivedAt:  time.Now().UTC(),
		Method:      method,
		Path:        "/wh/tok/hooks",
		Query:       "a=1&b=2",
		HeadersJSON: `[{"name":"Content-Type","values":["text/plain"]}]`,
		Body:        []byte("hello"),
		BodyText:    &bodyText,
		ContentType: &contentType,
		RemoteIP:    "203.0.113.9",
		Truncated:   false,
		BodySize:    5,
	}
	if err := s.SaveRequest(context.Background(), req); err != nil {
		t.Fatalf("SaveRequest: %v", err)
	}
	return req
}

func TestSaveRequest_UpdatesLastSeen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e, err := s.CreateEndpoint(ctx)
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}

	receivedAt := time.Now().UTC().Truncate(time.Second)
	req := &Request{
		EndpointID:  e.ID,
		ReceivedAt:  receivedAt,
		Method:      "POST",
		Path:        "/wh/tok",
		HeadersJSON: `[]`,
		RemoteIP:    "203.0.113.9",
	}
	if err := s.SaveRequest(ctx, req); err != nil {
		t.Fatalf("SaveRequest: %v", err)
	}

	// The save carries the endpoint's last-seen update in the same
	// transaction.
	got, err := s.GetEndpointByToken(ctx, e.Token)
	if err != nil {
		t.Fatalf("GetEndpointByToken: %v", err)
	}
	if got.LastSeenAt == nil {
		t.Fatal("expected last-seen set by the save")
	}
	if !got.LastSeenAt.Equal(receivedAt) {
		t.Errorf("last seen = %v, want %v", got.LastSeenAt, receivedAt)
	}
}

func TestSaveAndGetRequest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e, err := s.CreateEndpoint(ctx)
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}

	saved := saveTestRequest(t, s, e.ID, "POST")
	if saved.ID == 0 {
		t.Fatal("expected assigned request ID")
	}

	got, err := s.GetRequest(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.Method != "POST" || got.Path != "/wh/tok/hooks" || got.Query != "a=1&b=2" {
		t.Errorf("got %+v", got)
	}
	if string(got.Body) != "hello" {
		t.Errorf("body = %q", got.Body)
	}
	if got.BodyText == nil || *got.BodyText != "hello" {
		t.Errorf("body text = %v", got.BodyText)
	}
	if got.UserAgent != nil {
		t.Errorf("user agent should be NULL, got %v", got.UserAgent)
	}

	_, err = s.GetRequest(ctx, 99999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListRequests(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e, err := s.CreateEndpoint(ctx)
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}

	first := saveTestRequest(t, s, e.ID, "POST")
	second := saveTestRequest(t, s, e.ID, "PUT")
	third := saveTestRequest(t, s, e.ID, "DELETE")

	items, err := s.ListRequests(ctx, e.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	// Newest first.
	if items[0].ID != third.ID || items[1].ID != second.ID || items[2].ID != first.ID {
		t.Errorf("wrong order: %d %d %d", items[0].ID, items[1].ID, items[2].ID)
	}

	page, err := s.ListRequests(ctx, e.ID, 1, 1)
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if len(page) != 1 || page[0].ID != second.ID {
		t.Errorf("offset paging wrong: %+v", page)
	}
}

func TestExportRequests(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e, err := s.CreateEndpoint(ctx)
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}
	saveTestRequest(t, s, e.ID, "POST")
	saveTestRequest(t, s, e.ID, "PUT")

	reqs, err := s.ExportRequests(ctx, e.ID)
	if err != nil {
		t.Fatalf("ExportRequests: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}
	if len(reqs[0].Body) == 0 || reqs[0].HeadersJSON == "" {
		t.Error("export must carry full rows including body and headers")
	}
}

func TestDeleteRequests(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e, err := s.CreateEndpoint(ctx)
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}
	other, err := s.CreateEndpoint(ctx)
	if err != nil {
		t.Fatalf("CreateEndpoint: %v", err)
	}
	saveTestRequest(t, s, e.ID, "POST")
	saveTestRequest(t, s, other.ID, "POST")

	if err := s.DeleteRequests(ctx, e.ID); err != nil {
		t.Fatalf("DeleteRequests: %v", err)
	}

	mine, err := s.ListRequests(ctx, e.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if len(mine) != 0 {
		t.Errorf("expected all captures cleared, got %d", len(mine))
	}

	theirs, err := s.ListRequests(ctx, other.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if len(theirs) != 1 {
		t.Errorf("other endpoint's captures must survive, got %d", len(theirs))
	}
}

func TestResponseConfigCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetResponseConfig(ctx, "tok")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	cfg := &ResponseConfig{
		Token:       "tok",
		StatusCode:  201,
		BodyJSON:    `{"a":1}`,
		ContentType: "application/json",
		UpdatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	if err := s.UpsertResponseConfig(ctx, cfg); err != nil {
		t.Fatalf("UpsertResponseConfig: %v", err)
	}

	got, err := s.GetResponseConfig(ctx, "tok")
	if err != nil {
		t.Fatalf("GetResponseConfig: %v", err)
	}
	if got.StatusCode != 201 || got.BodyJSON != `{"a":1}` {
		t.Errorf("got %+v", got)
	}

	// Overwrite, not append.
	cfg.StatusCode = 404
	cfg.BodyJSON = `{"error":"nope"}`
	if err := s.UpsertResponseConfig(ctx, cfg); err != nil {
		t.Fatalf("UpsertResponseConfig: %v", err)
	}
	got, err = s.GetResponseConfig(ctx, "tok")
	if err != nil {
		t.Fatalf("GetResponseConfig: %v", err)
	}
	if got.StatusCode != 404 || got.BodyJSON != `{"error":"nope"}` {
		t.Errorf("overwrite failed: %+v", got)
	}

	if err := s.DeleteResponseConfig(ctx, "tok"); err != nil {
		t.Fatalf("DeleteResponseConfig: %v", err)
	}
	_, err = s.GetResponseConfig(ctx, "tok")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
