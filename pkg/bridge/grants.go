// Copyright 2025-2026 LittleRpg Community

package bridge

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/util/jsontime"
)

// TemporaryGrant is one purchased role with an expiry. A grant is removed
// exactly once, by the reconciliation tick that observes its expiry.
type TemporaryGrant struct {
	RoleID string        `json:"role_id"`
	Expiry jsontime.Unix `json:"expiry_timestamp"`
}

// GrantStore is the single writer of temporary grants, keyed by chat
// account id. A user may hold several concurrent grants. Mutations happen
// in memory under the lock; persistence is an atomic whole-file rewrite,
// either immediately (Append) or once per reconciliation pass (Persist).
type GrantStore struct {
	mu     sync.Mutex
	path   string
	grants map[string][]TemporaryGrant
	log    zerolog.Logger
}

// NewGrantStore creates a grant store persisted at path. Call Load before use.
func NewGrantStore(path string, log zerolog.Logger) *GrantStore {
	return &GrantStore{
		path:   path,
		grants: make(map[string][]TemporaryGrant),
		log:    log.With().Str("component", "grants").Logger(),
	}
}

// Load reads the stored grants. A missing datafile means no grants and
// initializes the file; malformed JSON is a fatal error.
func (s *GrantStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found, err := loadJSON(s.path, &s.grants)
	if err != nil {
		return err
	}
	if !found {
		if err := saveJSON(s.path, s.grants); err != nil {
			return err
		}
	}
	s.log.Info().Int("count", len(s.grants)).Msg("Loaded temporary grants")
	return nil
}

// Append records new grants for chatID and persists immediately.
func (s *GrantStore) Append(chatID string, grants []TemporaryGrant) error {
	if len(grants) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[chatID] = append(s.grants[chatID], grants...)
	return saveJSON(s.path, s.grants)
}

// Prune removes and returns the grants for chatID whose expiry is at or
// before now. Only in-memory state changes; the caller persists once after
// its full pass with Persist.
func (s *GrantStore) Prune(chatID string, now time.Time) []TemporaryGrant {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired, active []TemporaryGrant
	for _, g := range s.grants[chatID] {
		if g.Expiry.After(now) {
			active = append(active, g)
		} else {
			expired = append(expired, g)
		}
	}
	if len(expired) == 0 {
		return nil
	}
	if len(active) == 0 {
		delete(s.grants, chatID)
	} else {
		s.grants[chatID] = active
	}
	return expired
}

// ChatIDs returns the chat accounts that currently hold at least one grant.
func (s *GrantStore) ChatIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.grants))
	for id := range s.grants {
		ids = append(ids, id)
	}
	return ids
}

// Get returns the grants currently held by chatID.
func (s *GrantStore) Get(chatID string) []TemporaryGrant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TemporaryGrant, len(s.grants[chatID]))
	copy(out, s.grants[chatID])
	return out
}

// Persist rewrites the datafile from the current in-memory state.
func (s *GrantStore) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveJSON(s.path, s.grants)
}
