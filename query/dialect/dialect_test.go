package dialect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/commerce-client/runtime/types"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		provider string
		driver   string
		goose    string
	}{
		{"postgresql", "postgres", "postgres"},
		{"postgres", "postgres", "postgres"},
		{"pgx", "pgx", "postgres"},
		{"mysql", "mysql", "mysql"},
		{"sqlite", "sqlite3", "sqlite3"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			d, err := Lookup(tt.provider)
			require.NoError(t, err)
			assert.Equal(t, tt.driver, d.DriverName())
			assert.Equal(t, tt.goose, d.GooseDialect())
		})
	}

	_, err := Lookup("mongodb")
	assert.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestQuoteAndPlaceholder(t *testing.T) {
	assert.Equal(t, `"User"`, Postgres{}.Quote("User"))
	assert.Equal(t, `"a""b"`, SQLite{}.Quote(`a"b`))
	assert.Equal(t, "`Order`", MySQL{}.Quote("Order"))
	assert.Equal(t, "$3", Postgres{}.Placeholder(3))
	assert.Equal(t, "$3", PGX{}.Placeholder(3))
	assert.Equal(t, "?", MySQL{}.Placeholder(3))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		d    Dialect
		err  error
		want error
	}{
		{"pq unique", Postgres{}, &pq.Error{Code: "23505", Constraint: "User_email_key"}, types.ErrUniqueConstraint},
		{"pq fk", Postgres{}, &pq.Error{Code: "23503"}, types.ErrForeignKeyConstraint},
		{"pq serialization", Postgres{}, &pq.Error{Code: "40001"}, types.ErrTransactionConflict},
		{"pgx unique", PGX{}, &pgconn.PgError{Code: "23505"}, types.ErrUniqueConstraint},
		{"pgx deadlock", PGX{}, fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40P01"}), types.ErrTransactionConflict},
		{"mysql duplicate", MySQL{}, &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, types.ErrUniqueConstraint},
		{"mysql parent row", MySQL{}, &mysql.MySQLError{Number: 1451}, types.ErrForeignKeyConstraint},
		{"mysql child row", MySQL{}, &mysql.MySQLError{Number: 1452}, types.ErrForeignKeyConstraint},
		{"mysql deadlock", MySQL{}, &mysql.MySQLError{Number: 1213}, types.ErrTransactionConflict},
		{"sqlite unique", SQLite{}, sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, types.ErrUniqueConstraint},
		{"sqlite fk", SQLite{}, sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, types.ErrForeignKeyConstraint},
		{"sqlite busy", SQLite{}, sqlite3.Error{Code: sqlite3.ErrBusy}, types.ErrTransactionConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.d.Classify(tt.err)
			require.NotNil(t, got)
			assert.True(t, errors.Is(got, tt.want))
			assert.True(t, errors.Is(got, tt.err))
		})
	}

	assert.Nil(t, Postgres{}.Classify(errors.New("boom")))
	assert.Nil(t, MySQL{}.Classify(&pq.Error{Code: "23505"}))
	assert.Nil(t, SQLite{}.Classify(sql.ErrNoRows))
	assert.Nil(t, SQLite{}.Classify(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintTrigger}))
}

func TestSQLiteClassify_RestrictDelete(t *testing.T) {
	ctx := context.Background()
	dsn, err := SQLite{}.PrepareDSN("file:" + t.TempDir() + "/restrict.db")
	require.NoError(t, err)
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE parent (id INTEGER PRIMARY KEY)`,
		`CREATE TABLE child (id INTEGER PRIMARY KEY, parentId INTEGER NOT NULL REFERENCES parent(id) ON DELETE RESTRICT)`,
		`INSERT INTO parent (id) VALUES (1)`,
		`INSERT INTO child (id, parentId) VALUES (1, 1)`,
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	_, err = db.ExecContext(ctx, `DELETE FROM parent WHERE id = 1`)
	require.Error(t, err)
	got := SQLite{}.Classify(err)
	require.NotNil(t, got)
	assert.ErrorIs(t, got, types.ErrForeignKeyConstraint)

	_, err = db.ExecContext(ctx, `INSERT INTO child (id, parentId) VALUES (2, 99)`)
	require.Error(t, err)
	assert.ErrorIs(t, SQLite{}.Classify(err), types.ErrForeignKeyConstraint)
}

func TestMySQLPrepareDSN(t *testing.T) {
	dsn, err := MySQL{}.PrepareDSN("root:secret@tcp(localhost:3306)/shop")
	require.NoError(t, err)
	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, cfg.ParseTime)
	assert.True(t, cfg.ClientFoundRows)
	assert.Equal(t, "shop", cfg.DBName)

	dsn, err = MySQL{}.PrepareDSN("mysql://app:pw@db.internal/shop")
	require.NoError(t, err)
	cfg, err = mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "app", cfg.User)
	assert.Equal(t, "pw", cfg.Passwd)
	assert.Equal(t, "db.internal:3306", cfg.Addr)
	assert.Equal(t, "shop", cfg.DBName)
}

func TestSQLitePrepareDSN(t *testing.T) {
	dsn, err := SQLite{}.PrepareDSN("file:dev.db")
	require.NoError(t, err)
	assert.Equal(t, "file:dev.db?_foreign_keys=1&_busy_timeout=5000", dsn)

	dsn, err = SQLite{}.PrepareDSN("file:mem?mode=memory&cache=shared&_foreign_keys=0")
	require.NoError(t, err)
	assert.Equal(t, "file:mem?mode=memory&cache=shared&_foreign_keys=0&_busy_timeout=5000", dsn)

	_, err = SQLite{}.PrepareDSN("")
	assert.Error(t, err)
}

func TestParseServerVersion(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"16.2 (Debian 16.2-1.pgdg120+2)", "16.2.0"},
		{"8.0.36", "8.0.36"},
		{"10.11.6-MariaDB-0+deb12u1", "10.11.6"},
		{"3.45.1", "3.45.1"},
	}
	for _, tt := range tests {
		v, err := ParseServerVersion(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, v.String())
	}

	_, err := ParseServerVersion("unknown")
	assert.Error(t, err)
}

func TestCheckServerVersion_SQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	v, err := CheckServerVersion(context.Background(), db, SQLite{})
	require.NoError(t, err)
	assert.NotNil(t, v)
}
