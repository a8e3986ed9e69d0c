package database

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
)

// SettingsStore persists one JSON document per (scope ID, cog). Guild scoped
// documents hold per-server configuration; user scoped documents hold
// per-member state such as social link scores.
type SettingsStore interface {
	GetGuildDocument(ctx context.Context, guildID, cog string) (json.RawMessage, error)
	SetGuildDocument(ctx context.Context, guildID, cog string, doc json.RawMessage) error
	GetUserDocument(ctx context.Context, userID, cog string) (json.RawMessage, error)
	SetUserDocument(ctx context.Context, userID, cog string, doc json.RawMessage) error
}

// GetGuildDocument returns the stored document for the guild and cog, or an
// empty object when no row exists yet.
func (p *Postgres) GetGuildDocument(ctx context.Context, guildID, cog string) (json.RawMessage, error) {
	var raw []byte
	query := "SELECT document FROM guild_settings WHERE guild_id = $1 AND cog = $2"
	err := p.connections.GetContext(ctx, &raw, query, guildID, cog)
	if err == sql.ErrNoRows {
		return json.RawMessage("{}"), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "getting guild document")
	}
	return json.RawMessage(raw), nil
}

// SetGuildDocument upserts the document for the guild and cog.
func (p *Postgres) SetGuildDocument(ctx context.Context, guildID, cog string, doc json.RawMessage) error {
	query := `INSERT INTO guild_settings (guild_id, cog, document, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (guild_id, cog) DO UPDATE SET document = EXCLUDED.document, updated_at = now()`
	_, err := p.connections.ExecContext(ctx, query, guildID, cog, []byte(doc))
	if err != nil {
		return errors.Wrap(err, "setting guild document")
	}
	return nil
}

// GetUserDocument returns the stored document for the user and cog, or an
// empty object when no row exists yet.
func (p *Postgres) GetUserDocument(ctx context.Context, userID, cog string) (json.RawMessage, error) {
	var raw []byte
	query := "SELECT document FROM user_settings WHERE user_id = $1 AND cog = $2"
	err := p.connections.GetContext(ctx, &raw, query, userID, cog)
	if err == sql.ErrNoRows {
		return json.RawMessage("{}"), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "getting user document")
	}
	return json.RawMessage(raw), nil
}

// SetUserDocument upserts the document for the user and cog.
func (p *Postgres) SetUserDocument(ctx context.Context, userID, cog string, doc json.RawMessage) error {
	query := `INSERT INTO user_settings (user_id, cog, document, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, cog) DO UPDATE SET document = EXCLUDED.document, updated_at = now()`
	_, err := p.connections.ExecContext(ctx, query, userID, cog, []byte(doc))
	if err != nil {
		return errors.Wrap(err, "setting user document")
	}
	return nil
}
