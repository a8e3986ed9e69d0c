package database

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/logging"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return &Postgres{connections: sqlxDB, logger: logging.Default()}, mock
}

func TestGetGuildDocument(t *testing.T) {
	postgres, mock := newMockPostgres(t)

	doc := `{"dry_run_mode": true, "holidays": {}}`
	rows := sqlmock.NewRows([]string{"document"}).AddRow([]byte(doc))
	mock.ExpectQuery("SELECT document FROM guild_settings WHERE guild_id = \\$1 AND cog = \\$2").
		WithArgs("guild-123", "seasonalroles").
		WillReturnRows(rows)

	got, err := postgres.GetGuildDocument(context.Background(), "guild-123", "seasonalroles")

	assert.NoError(t, err)
	assert.JSONEq(t, doc, string(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetGuildDocumentMissingRow(t *testing.T) {
	postgres, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT document FROM guild_settings").
		WithArgs("guild-123", "announce").
		WillReturnRows(sqlmock.NewRows([]string{"document"}))

	got, err := postgres.GetGuildDocument(context.Background(), "guild-123", "announce")

	assert.NoError(t, err)
	assert.JSONEq(t, "{}", string(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetGuildDocument(t *testing.T) {
	postgres, mock := newMockPostgres(t)

	doc := json.RawMessage(`{"channel_id":"42"}`)
	mock.ExpectExec("INSERT INTO guild_settings").
		WithArgs("guild-123", "weatherchannel", []byte(doc)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := postgres.SetGuildDocument(context.Background(), "guild-123", "weatherchannel", doc)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetUserDocument(t *testing.T) {
	postgres, mock := newMockPostgres(t)

	doc := json.RawMessage(`{"scores":{"99":12}}`)
	mock.ExpectExec("INSERT INTO user_settings").
		WithArgs("user-7", "sociallink", []byte(doc)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := postgres.SetUserDocument(context.Background(), "user-7", "sociallink", doc)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
