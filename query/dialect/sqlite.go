package dialect

import (
	"errors"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/satishbabariya/commerce-client/runtime/types"
)

// SQLite is SQLite through mattn/go-sqlite3.
type SQLite struct{}

func (SQLite) Name() string               { return "sqlite" }
func (SQLite) DriverName() string         { return "sqlite3" }
func (SQLite) GooseDialect() string       { return "sqlite3" }
func (SQLite) Quote(ident string) string  { return quoteWith(ident, `"`) }
func (SQLite) Placeholder(n int) string   { return question(n) }
func (SQLite) SupportsReturning() bool    { return false }
func (SQLite) DefaultValues() string      { return "DEFAULT VALUES" }
func (SQLite) NoLimit() string            { return "-1" }
func (SQLite) ServerVersionQuery() string { return "SELECT sqlite_version()" }
func (SQLite) MinServerVersion() string   { return ">= 3.24" }

// MaxOpenConns is one: SQLite allows a single writer, and a shared-cache
// in-memory database must not be opened by competing connections.
func (SQLite) MaxOpenConns() int { return 1 }

func (SQLite) InsertIgnore() (string, string) {
	return "INSERT OR IGNORE INTO", ""
}

// PrepareDSN strips a Prisma-style "file:" path prefix where needed and
// turns on foreign key enforcement, which SQLite leaves off by default.
func (SQLite) PrepareDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", types.NewError(types.ErrInvalidArgument, "empty sqlite dsn")
	}
	params := []string{"_foreign_keys=1", "_busy_timeout=5000"}
	for _, p := range params {
		key := p[:strings.Index(p, "=")]
		if strings.Contains(dsn, key+"=") {
			continue
		}
		if strings.Contains(dsn, "?") {
			dsn += "&" + p
		} else {
			dsn += "?" + p
		}
	}
	return dsn, nil
}

func (SQLite) Classify(err error) error {
	var liteErr sqlite3.Error
	if !errors.As(err, &liteErr) {
		return nil
	}
	var kind error
	switch liteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		kind = types.ErrUniqueConstraint
	case sqlite3.ErrConstraintForeignKey:
		kind = types.ErrForeignKeyConstraint
	case sqlite3.ErrConstraintTrigger:
		// ON DELETE RESTRICT is enforced by a trigger.
		if !strings.Contains(liteErr.Error(), "FOREIGN KEY constraint failed") {
			return nil
		}
		kind = types.ErrForeignKeyConstraint
	case sqlite3.ErrConstraintNotNull, sqlite3.ErrConstraintCheck:
		kind = types.ErrInvalidArgument
	default:
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			kind = types.ErrTransactionConflict
		default:
			return nil
		}
	}
	return types.NewError(kind, "%s", liteErr.Error()).WithCause(err)
}

// sqliteTimeFormat is fixed width so stored timestamps compare correctly as text.
const sqliteTimeFormat = "2006-01-02 15:04:05.000000000"

func (SQLite) BindArg(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(sqliteTimeFormat)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(sqliteTimeFormat)
	case decimal.Decimal:
		// Decimal columns have NUMERIC affinity. A text argument would
		// compare as text against aggregate results, which have none.
		return t.InexactFloat64()
	}
	return v
}
