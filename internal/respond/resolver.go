// Package respond resolves the synthetic response an endpoint returns
// to captured requests.
package respond

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"

	"github.com/echoendpoint/echoendpoint/internal/store"
)

const (
	DefaultStatus = 200
	defaultBody   = `{"message":"ok"}`
)

// MinStatus and MaxStatus bound acceptable configured status codes.
const (
	MinStatus = 100
	MaxStatus = 599
)

// ValidStatus reports whether code is an acceptable HTTP status.
func ValidStatus(code int) bool {
	return code >= MinStatus && code <= MaxStatus
}

type Resolver struct {
	configs store.ResponseConfigStore
}

func NewResolver(configs store.ResponseConfigStore) *Resolver {
	return &Resolver{configs: configs}
}

// Resolve returns the status and JSON body to serve for token. Fallback
// is all-or-nothing: a missing config, an out-of-range status, or a
// stored body that no longer parses as JSON all revert the entire
// response to the defaults, never just the bad field. Partially corrupt
// configuration must not leak into a live response.
func (r *Resolver) Resolve(ctx context.Context, token string) (int, json.RawMessage, error) {
	cfg, err := r.configs.GetResponseConfig(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return DefaultStatus, json.RawMessage(defaultBody), nil
	}
	if err != nil {
		return 0, nil, err
	}

	if !ValidStatus(cfg.StatusCode) {
		return DefaultStatus, json.RawMessage(defaultBody), nil
	}
	if !gjson.Valid(cfg.BodyJSON) {
		return DefaultStatus, json.RawMessage(defaultBody), nil
	}
	return cfg.StatusCode, json.RawMessage(cfg.BodyJSON), nil
}
