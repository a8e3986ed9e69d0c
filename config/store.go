// package config is the per-guild settings layer shared by every cog. Each
// cog registers a default document; reads deep-merge stored values over those
// defaults, and writes go through an explicit Session so the write-back is
// never forgotten on an early return.
package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/database"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
)

// Store reads and writes cog settings documents.
type Store struct {
	db       database.SettingsStore
	logger   *logging.Logger
	mu       sync.RWMutex
	defaults map[string]Document
}

// NewStore creates a Store backed by the given settings storage.
func NewStore(db database.SettingsStore, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		db:       db,
		logger:   logger,
		defaults: make(map[string]Document),
	}
}

// RegisterDefaults records the default document for a cog. Registering twice
// is a programming error.
func (s *Store) RegisterDefaults(cog string, defaults Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.defaults[cog]; ok {
		panic(fmt.Sprintf("config: defaults for cog %q registered twice", cog))
	}
	s.defaults[cog] = defaults
}

func (s *Store) defaultsFor(cog string) Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults[cog]
}

// Guild returns the merged settings document for a guild and cog.
func (s *Store) Guild(ctx context.Context, guildID, cog string) (Document, error) {
	raw, err := s.db.GetGuildDocument(ctx, guildID, cog)
	if err != nil {
		return nil, fmt.Errorf("loading %s settings for guild %s: %w", cog, guildID, err)
	}
	doc, err := DecodeDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s settings for guild %s: %w", cog, guildID, err)
	}
	if defaults := s.defaultsFor(cog); defaults != nil {
		mergeDefaults(doc, defaults)
	}
	return doc, nil
}

// SetGuild overwrites the stored document for a guild and cog.
func (s *Store) SetGuild(ctx context.Context, guildID, cog string, doc Document) error {
	raw, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("encoding %s settings for guild %s: %w", cog, guildID, err)
	}
	return s.db.SetGuildDocument(ctx, guildID, cog, raw)
}

// User returns the merged settings document for a user and cog.
func (s *Store) User(ctx context.Context, userID, cog string) (Document, error) {
	raw, err := s.db.GetUserDocument(ctx, userID, cog)
	if err != nil {
		return nil, fmt.Errorf("loading %s settings for user %s: %w", cog, userID, err)
	}
	doc, err := DecodeDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s settings for user %s: %w", cog, userID, err)
	}
	return doc, nil
}

// SetUser overwrites the stored document for a user and cog.
func (s *Store) SetUser(ctx context.Context, userID, cog string, doc Document) error {
	raw, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("encoding %s settings for user %s: %w", cog, userID, err)
	}
	return s.db.SetUserDocument(ctx, userID, cog, raw)
}

// Session is a scoped read-modify-write over one guild document. Begin loads
// the document, mutations happen on Doc, and Commit writes it back. Exactly
// one Commit per Begin; a session abandoned without Commit changes nothing.
type Session struct {
	store   *Store
	guildID string
	cog     string

	// Doc is the live document for the session.
	Doc Document

	committed bool
}

// Begin opens a session for the guild and cog.
func (s *Store) Begin(ctx context.Context, guildID, cog string) (*Session, error) {
	doc, err := s.Guild(ctx, guildID, cog)
	if err != nil {
		return nil, err
	}
	return &Session{store: s, guildID: guildID, cog: cog, Doc: doc}, nil
}

// Commit writes the session's document back to storage.
func (sess *Session) Commit(ctx context.Context) error {
	if sess.committed {
		return fmt.Errorf("config: session for guild %s cog %s committed twice", sess.guildID, sess.cog)
	}
	sess.committed = true
	return sess.store.SetGuild(ctx, sess.guildID, sess.cog, sess.Doc)
}

// Update wraps load, mutate, and commit. The mutation returning an error
// aborts the write.
func (s *Store) Update(ctx context.Context, guildID, cog string, fn func(Document) error) error {
	sess, err := s.Begin(ctx, guildID, cog)
	if err != nil {
		return err
	}
	if err := fn(sess.Doc); err != nil {
		return err
	}
	return sess.Commit(ctx)
}

// UpdateUser wraps load, mutate, and commit for a user document.
func (s *Store) UpdateUser(ctx context.Context, userID, cog string, fn func(Document) error) error {
	doc, err := s.User(ctx, userID, cog)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.SetUser(ctx, userID, cog, doc)
}
