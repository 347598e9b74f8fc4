// Copyright 2025-2026 LittleRpg Community

package bridge

import (
	"sync"

	"github.com/rs/zerolog"
)

// IdentityLink ties a chat account to a game account. Links are replaced
// wholesale on re-link and never deleted by the engine.
type IdentityLink struct {
	GameID     string `json:"minecraft_uuid"`
	GameHandle string `json:"minecraft_name"`
	// ChatHandle is a human-readable snapshot taken at link time; it is not
	// kept up to date.
	ChatHandle string `json:"discord_name"`
}

// LinkStore is the single writer of identity links. It owns the in-memory
// map and its JSON datafile; all mutations are a locked read-modify-write
// followed by an atomic whole-file rewrite.
type LinkStore struct {
	mu    sync.Mutex
	path  string
	links map[string]IdentityLink
	log   zerolog.Logger
}

// NewLinkStore creates a registry persisted at path. Call Load before use.
func NewLinkStore(path string, log zerolog.Logger) *LinkStore {
	return &LinkStore{
		path:  path,
		links: make(map[string]IdentityLink),
		log:   log.With().Str("component", "links").Logger(),
	}
}

// Load reads the registry from disk. A missing datafile means an empty
// registry and initializes the file; malformed JSON is a fatal error.
func (s *LinkStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found, err := loadJSON(s.path, &s.links)
	if err != nil {
		return err
	}
	if !found {
		if err := saveJSON(s.path, s.links); err != nil {
			return err
		}
	}
	s.log.Info().Int("count", len(s.links)).Msg("Loaded identity links")
	return nil
}

// Upsert replaces the link for chatID and persists the registry before
// returning. The previous link is returned when one existed.
func (s *LinkStore) Upsert(chatID string, link IdentityLink) (*IdentityLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var prev *IdentityLink
	if old, ok := s.links[chatID]; ok {
		prev = &old
	}
	s.links[chatID] = link
	if err := saveJSON(s.path, s.links); err != nil {
		return prev, err
	}
	return prev, nil
}

// Get returns the link for chatID.
func (s *LinkStore) Get(chatID string) (IdentityLink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[chatID]
	return link, ok
}

// ByGameID returns the chat account linked to the given game account id.
func (s *LinkStore) ByGameID(gameID string) (chatID string, link IdentityLink, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, l := range s.links {
		if l.GameID == gameID {
			return id, l, true
		}
	}
	return "", IdentityLink{}, false
}

// ByGameHandle resolves a purchase's human-readable game name back to a chat
// account by exact match. Handle uniqueness is not enforced across links;
// when two accounts link colliding handles the result is whichever the scan
// finds first.
func (s *LinkStore) ByGameHandle(handle string) (chatID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, l := range s.links {
		if l.GameHandle == handle {
			return id, true
		}
	}
	return "", false
}

// All returns a read-only snapshot of the registry.
func (s *LinkStore) All() map[string]IdentityLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]IdentityLink, len(s.links))
	for id, l := range s.links {
		out[id] = l
	}
	return out
}

// Len returns the number of stored links.
func (s *LinkStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.links)
}
