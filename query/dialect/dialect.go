// Package dialect isolates the differences between the supported SQL
// databases: driver registration, identifier quoting, placeholders, DSN
// normalization, minimum server versions and driver error classification.
package dialect

import (
	"strconv"
	"strings"
	"time"

	"github.com/satishbabariya/commerce-client/runtime/types"
)

// Dialect describes one SQL database flavour.
type Dialect interface {
	// Name is the provider name as written in config files.
	Name() string
	// DriverName is the database/sql driver to open.
	DriverName() string
	// GooseDialect is the dialect name understood by goose.
	GooseDialect() string
	// Quote quotes an identifier.
	Quote(ident string) string
	// Placeholder returns the bind parameter for the n-th argument (1-based).
	Placeholder(n int) string
	// SupportsReturning reports whether INSERT ... RETURNING is available.
	SupportsReturning() bool
	// InsertIgnore returns the INSERT verb and suffix that skip rows
	// violating a unique constraint.
	InsertIgnore() (verb, suffix string)
	// DefaultValues renders the tail of an INSERT without columns.
	DefaultValues() string
	// NoLimit is the LIMIT value meaning "all rows", needed when only an
	// OFFSET is given.
	NoLimit() string
	// PrepareDSN normalizes a connection string for the driver.
	PrepareDSN(dsn string) (string, error)
	// MaxOpenConns is the pool size used when none is configured. Zero
	// means unlimited.
	MaxOpenConns() int
	// ServerVersionQuery returns a single-row, single-column version query.
	ServerVersionQuery() string
	// MinServerVersion is a go-version constraint the server must satisfy.
	MinServerVersion() string
	// BindArg converts a bound argument to the form the driver stores best.
	BindArg(v any) any
	// Classify maps a driver error to one of the types error kinds. It
	// returns nil when the error is not recognized.
	Classify(err error) error
}

// Lookup returns the dialect for a provider name.
func Lookup(provider string) (Dialect, error) {
	switch strings.ToLower(provider) {
	case "postgresql", "postgres":
		return Postgres{}, nil
	case "pgx":
		return PGX{}, nil
	case "mysql":
		return MySQL{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	}
	return nil, types.NewError(types.ErrInvalidArgument, "unsupported provider %q", provider)
}

// Providers lists the accepted provider names.
func Providers() []string {
	return []string{"postgresql", "pgx", "mysql", "sqlite"}
}

func quoteWith(ident string, q string) string {
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

func dollar(n int) string {
	return "$" + strconv.Itoa(n)
}

func question(int) string {
	return "?"
}

func bindUTC(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return v
}
