// Package clientid checks client ids against a remote allow-list.
package clientid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	log "github.com/sirupsen/logrus"

	"assetstore/internal/models"
)

var (
	ErrRequired      = errors.New("client id is required")
	ErrNotRegistered = errors.New("client id is not registered")
)

const listKey = "client_ids"

type allowList map[string]struct{}

// Validator fetches the allow-list lazily and keeps it for the configured TTL.
// Failed fetches are never cached.
type Validator struct {
	url    string
	client *http.Client
	cache  *ttlcache.Cache[string, allowList]
}

func NewValidator(cfg models.ClientValidationConfig) *Validator {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Validator{
		url:    strings.TrimSpace(cfg.URL),
		client: &http.Client{Timeout: timeout},
		cache: ttlcache.New(
			ttlcache.WithTTL[string, allowList](ttl),
			ttlcache.WithDisableTouchOnHit[string, allowList](),
		),
	}
}

func (v *Validator) Enabled() bool {
	return v != nil && v.url != ""
}

// Validate returns nil when id is on the allow-list, or when the list is
// unavailable or empty.
func (v *Validator) Validate(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrRequired
	}
	if !v.Enabled() {
		return nil
	}

	ids, err := v.list(ctx)
	if err != nil {
		log.WithError(err).Warn("could not fetch client id allow-list, accepting client id")
		return nil
	}
	if len(ids) == 0 {
		log.Warn("client id allow-list is empty, accepting client id")
		return nil
	}
	if _, ok := ids[strings.ToUpper(id)]; !ok {
		return fmt.Errorf("%w: %q", ErrNotRegistered, id)
	}
	return nil
}

// Clear drops the cached allow-list so the next Validate refetches it.
func (v *Validator) Clear() {
	if v == nil {
		return
	}
	v.cache.DeleteAll()
}

func (v *Validator) list(ctx context.Context) (allowList, error) {
	if item := v.cache.Get(listKey); item != nil {
		return item.Value(), nil
	}
	ids, err := v.fetch(ctx)
	if err != nil {
		return nil, err
	}
	v.cache.Set(listKey, ids, ttlcache.DefaultTTL)
	return ids, nil
}

func (v *Validator) fetch(ctx context.Context) (allowList, error) {
	const op = "clientid.fetch"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var body struct {
		ClientIDs []string `json:"client_ids"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}

	ids := make(allowList, len(body.ClientIDs))
	for _, id := range body.ClientIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids[strings.ToUpper(id)] = struct{}{}
		}
	}
	log.Infof("fetched %d client ids from allow-list", len(ids))
	return ids, nil
}
