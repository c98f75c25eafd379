package database

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	cases := []struct {
		raw     string
		dialect Dialect
		driver  string
		dsn     string
	}{
		{"postgres://u:p@db:5432/warp?sslmode=disable", Postgres, "pgx", "postgres://u:p@db:5432/warp?sslmode=disable"},
		{"postgresql://db/warp", Postgres, "pgx", "postgresql://db/warp"},
		{"sqlite:///warp.db", SQLite, "sqlite3", "file:warp.db?" + "_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL&_txlock=immediate"},
		{"sqlite:////var/lib/warp.db", SQLite, "sqlite3", "file:/var/lib/warp.db?" + "_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL&_txlock=immediate"},
		{"sqlite:warp.db", SQLite, "sqlite3", "file:warp.db?" + "_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL&_txlock=immediate"},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseURL(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.dialect, got.Dialect)
			assert.Equal(t, tc.driver, got.Driver)
			assert.Equal(t, tc.dsn, got.DSN)
		})
	}
}

func TestParseURL_MySQL(t *testing.T) {
	got, err := ParseURL("mysql://warp:pw@db/warpdb")
	require.NoError(t, err)
	assert.Equal(t, MySQL, got.Dialect)
	assert.Contains(t, got.DSN, "warp:pw@tcp(db:3306)/warpdb")
	assert.Contains(t, got.DSN, "parseTime=true")
	assert.Contains(t, got.DSN, "charset=utf8mb4")
}

func TestParseURL_Unsupported(t *testing.T) {
	for _, raw := range []string{"", "oracle://x", "sqlite:"} {
		_, err := ParseURL(raw)
		assert.Error(t, err, raw)
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM book WHERE sid = ? AND fromts < ? AND tots > ?"
	assert.Equal(t, q, New(nil, MySQL).Rebind(q))
	assert.Equal(t, q, New(nil, SQLite).Rebind(q))
	assert.Equal(t, "SELECT * FROM book WHERE sid = $1 AND fromts < $2 AND tots > $3", New(nil, Postgres).Rebind(q))
}

func TestForUpdate(t *testing.T) {
	assert.Equal(t, " FOR UPDATE", New(nil, MySQL).ForUpdate())
	assert.Equal(t, " FOR UPDATE", New(nil, Postgres).ForUpdate())
	assert.Equal(t, "", New(nil, SQLite).ForUpdate())
}

func TestTxOptions(t *testing.T) {
	opts := New(nil, MySQL).TxOptions()
	require.NotNil(t, opts)
	assert.Equal(t, sql.LevelReadCommitted, opts.Isolation)
	assert.Nil(t, New(nil, Postgres).TxOptions())
	assert.Nil(t, New(nil, SQLite).TxOptions())
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM book").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	db := New(sqlDB, MySQL)
	err = db.WithTx(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("DELETE FROM book WHERE id = ?", 1)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = New(sqlDB, MySQL).WithTx(context.Background(), func(*sql.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "crash", func() {
		_ = New(sqlDB, MySQL).WithTx(context.Background(), func(*sql.Tx) error { panic("crash") })
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertID(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec("INSERT INTO blobs").WillReturnResult(sqlmock.NewResult(42, 1))
	id, err := New(sqlDB, MySQL).InsertID(context.Background(), sqlDB, "INSERT INTO blobs (mimetype) VALUES (?)", "image/png")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	mock.ExpectQuery(`INSERT INTO blobs \(mimetype\) VALUES \(\$1\) RETURNING id`).
		WithArgs("image/png").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	id, err = New(sqlDB, Postgres).InsertID(context.Background(), sqlDB, "INSERT INTO blobs (mimetype) VALUES (?)", "image/png")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnect_GivesUpAfterAttempts(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	start := time.Now()
	_, err := Connect(context.Background(), "oracle://nowhere", 3, 10*time.Millisecond, log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempt(s)")
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestOpenTestSQLite_Migrates(t *testing.T) {
	db := OpenTestSQLite(t)

	_, err := db.Exec("INSERT INTO users (login, name, account_type) VALUES (?, ?, ?)", "alice", "Alice", 20)
	require.NoError(t, err)

	_, err = db.Exec("INSERT INTO users (login, name, account_type) VALUES (?, ?, ?)", "alice", "Again", 20)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	_, err = db.Exec("INSERT INTO group_members (group_login, login) VALUES (?, ?)", "nobody", "alice")
	require.Error(t, err)
	assert.True(t, IsForeignKeyViolation(err))

	// second run is a no-op
	require.NoError(t, db.Migrate())
}
