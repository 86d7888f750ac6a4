package dialect

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/satishbabariya/commerce-client/runtime/types"
)

// MySQL is MySQL 8 through go-sql-driver/mysql.
type MySQL struct{}

func (MySQL) Name() string               { return "mysql" }
func (MySQL) DriverName() string         { return "mysql" }
func (MySQL) GooseDialect() string       { return "mysql" }
func (MySQL) Quote(ident string) string  { return quoteWith(ident, "`") }
func (MySQL) Placeholder(n int) string   { return question(n) }
func (MySQL) SupportsReturning() bool    { return false }
func (MySQL) DefaultValues() string      { return "() VALUES ()" }
func (MySQL) NoLimit() string            { return "18446744073709551615" }
func (MySQL) MaxOpenConns() int          { return 0 }
func (MySQL) ServerVersionQuery() string { return "SELECT VERSION()" }
func (MySQL) MinServerVersion() string   { return ">= 8.0" }

// InsertIgnore uses INSERT IGNORE. Besides duplicate keys it also
// downgrades some other errors to warnings, which is the documented
// deviation for skipDuplicates on MySQL.
func (MySQL) InsertIgnore() (string, string) {
	return "INSERT IGNORE INTO", ""
}

// PrepareDSN accepts either a driver DSN or a mysql:// URL and forces the
// options the engine relies on: parseTime for DATETIME columns, UTC, and
// clientFoundRows so UPDATE reports matched rather than changed rows.
func (MySQL) PrepareDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "mysql://") {
		converted, err := mysqlURLToDSN(dsn)
		if err != nil {
			return "", err
		}
		dsn = converted
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", types.NewError(types.ErrInvalidArgument, "invalid mysql dsn").WithCause(err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

func mysqlURLToDSN(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", types.NewError(types.ErrInvalidArgument, "invalid mysql url").WithCause(err)
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = u.Host + ":3306"
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if len(u.Query()) > 0 {
		cfg.Params = make(map[string]string)
		for k, v := range u.Query() {
			cfg.Params[k] = v[0]
		}
	}
	return cfg.FormatDSN(), nil
}

func (MySQL) Classify(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return nil
	}
	var kind error
	switch myErr.Number {
	case 1062, 1586:
		kind = types.ErrUniqueConstraint
	case 1451, 1452, 1216, 1217:
		kind = types.ErrForeignKeyConstraint
	case 1048, 1364, 1365, 1366, 1406, 1264:
		kind = types.ErrInvalidArgument
	case 1213, 1205:
		kind = types.ErrTransactionConflict
	case 3024:
		kind = types.ErrTransactionTimeout
	default:
		return nil
	}
	return types.NewError(kind, "%s", myErr.Message).
		WithCause(err).
		WithMeta("number", fmt.Sprint(myErr.Number))
}

func (MySQL) BindArg(v any) any { return bindUTC(v) }
