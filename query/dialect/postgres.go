package dialect

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/satishbabariya/commerce-client/runtime/types"
)

// Postgres is PostgreSQL through lib/pq.
type Postgres struct{}

func (Postgres) Name() string                          { return "postgresql" }
func (Postgres) DriverName() string                    { return "postgres" }
func (Postgres) GooseDialect() string                  { return "postgres" }
func (Postgres) Quote(ident string) string             { return quoteWith(ident, `"`) }
func (Postgres) Placeholder(n int) string              { return dollar(n) }
func (Postgres) SupportsReturning() bool               { return true }
func (Postgres) DefaultValues() string                 { return "DEFAULT VALUES" }
func (Postgres) NoLimit() string                       { return "ALL" }
func (Postgres) PrepareDSN(dsn string) (string, error) { return dsn, nil }
func (Postgres) MaxOpenConns() int                     { return 0 }
func (Postgres) ServerVersionQuery() string            { return "SHOW server_version" }
func (Postgres) MinServerVersion() string              { return ">= 12" }

func (Postgres) InsertIgnore() (string, string) {
	return "INSERT INTO", " ON CONFLICT DO NOTHING"
}

func (Postgres) Classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifyState(string(pqErr.Code), pqErr.Constraint, pqErr.Message, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyState(pgErr.Code, pgErr.ConstraintName, pgErr.Message, err)
	}
	return nil
}

// PGX is PostgreSQL through the pgx stdlib driver.
type PGX struct {
	Postgres
}

func (PGX) Name() string       { return "pgx" }
func (PGX) DriverName() string { return "pgx" }

// classifyState maps a SQLSTATE code shared by both Postgres drivers.
func classifyState(code, constraint, message string, cause error) error {
	var kind error
	switch code {
	case "23505":
		kind = types.ErrUniqueConstraint
	case "23503":
		kind = types.ErrForeignKeyConstraint
	case "23502", "22P02", "22003", "22001", "22012":
		kind = types.ErrInvalidArgument
	case "40001", "40P01":
		kind = types.ErrTransactionConflict
	case "57014":
		kind = types.ErrTransactionTimeout
	default:
		return nil
	}
	e := types.NewError(kind, "%s", message).WithCause(cause)
	if constraint != "" {
		e.WithMeta("constraint", constraint)
	}
	return e
}

func (Postgres) BindArg(v any) any { return bindUTC(v) }
