package config

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-memory SettingsStore for tests.
type memoryStore struct {
	guild map[string]json.RawMessage
	user  map[string]json.RawMessage
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		guild: make(map[string]json.RawMessage),
		user:  make(map[string]json.RawMessage),
	}
}

func (m *memoryStore) GetGuildDocument(_ context.Context, guildID, cog string) (json.RawMessage, error) {
	if raw, ok := m.guild[guildID+"/"+cog]; ok {
		return raw, nil
	}
	return json.RawMessage("{}"), nil
}

func (m *memoryStore) SetGuildDocument(_ context.Context, guildID, cog string, doc json.RawMessage) error {
	m.guild[guildID+"/"+cog] = doc
	return nil
}

func (m *memoryStore) GetUserDocument(_ context.Context, userID, cog string) (json.RawMessage, error) {
	if raw, ok := m.user[userID+"/"+cog]; ok {
		return raw, nil
	}
	return json.RawMessage("{}"), nil
}

func (m *memoryStore) SetUserDocument(_ context.Context, userID, cog string, doc json.RawMessage) error {
	m.user[userID+"/"+cog] = doc
	return nil
}

func TestGuildMergesDefaults(t *testing.T) {
	store := NewStore(newMemoryStore(), nil)
	store.RegisterDefaults("seasonalroles", Document{
		"dry_run_mode": true,
		"announcement_config": map[string]any{
			"enabled": false,
		},
	})

	ctx := context.Background()
	require.NoError(t, store.Update(ctx, "g1", "seasonalroles", func(doc Document) error {
		doc["dry_run_mode"] = false
		return nil
	}))

	doc, err := store.Guild(ctx, "g1", "seasonalroles")
	require.NoError(t, err)

	assert.False(t, doc.Bool("dry_run_mode", true), "stored value wins over default")
	assert.False(t, doc.Sub("announcement_config").Bool("enabled", true), "default fills missing nested key")
}

func TestSessionCommitPersists(t *testing.T) {
	mem := newMemoryStore()
	store := NewStore(mem, nil)
	ctx := context.Background()

	sess, err := store.Begin(ctx, "g1", "announce")
	require.NoError(t, err)
	sess.Doc["default_channel"] = "1234"
	require.NoError(t, sess.Commit(ctx))

	doc, err := store.Guild(ctx, "g1", "announce")
	require.NoError(t, err)
	assert.Equal(t, "1234", doc.String("default_channel", ""))
}

func TestSessionDoubleCommitFails(t *testing.T) {
	store := NewStore(newMemoryStore(), nil)
	ctx := context.Background()

	sess, err := store.Begin(ctx, "g1", "announce")
	require.NoError(t, err)
	require.NoError(t, sess.Commit(ctx))
	assert.Error(t, sess.Commit(ctx))
}

func TestUpdateAbortsOnMutationError(t *testing.T) {
	mem := newMemoryStore()
	store := NewStore(mem, nil)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.Update(ctx, "g1", "movieclub", func(doc Document) error {
		doc["polls"] = map[string]any{"p1": map[string]any{}}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, mem.guild, "failed mutation must not write")
}

func TestDocumentAccessors(t *testing.T) {
	raw := json.RawMessage(`{
		"name": "Star Festival",
		"count": 7,
		"enabled": true,
		"users": ["1", "2"],
		"nested": {"color": "#D4A13D"}
	}`)
	doc, err := DecodeDocument(raw)
	require.NoError(t, err)

	assert.Equal(t, "Star Festival", doc.String("name", ""))
	assert.Equal(t, int64(7), doc.Int64("count", 0))
	assert.True(t, doc.Bool("enabled", false))
	assert.Equal(t, []string{"1", "2"}, doc.StringSlice("users"))
	assert.Equal(t, "#D4A13D", doc.Sub("nested").String("color", ""))

	assert.Equal(t, "fallback", doc.String("missing", "fallback"))
	assert.Equal(t, int64(3), doc.Int64("missing", 3))
	assert.Nil(t, doc.StringSlice("missing"))
}
