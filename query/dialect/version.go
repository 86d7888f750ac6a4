package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/hashicorp/go-version"

	"github.com/satishbabariya/commerce-client/runtime/types"
)

var leadingVersion = regexp.MustCompile(`^\d+(\.\d+)*`)

// ParseServerVersion extracts the numeric part of a server version string
// such as "16.2 (Debian 16.2-1)" or "10.11.6-MariaDB".
func ParseServerVersion(raw string) (*version.Version, error) {
	numeric := leadingVersion.FindString(raw)
	if numeric == "" {
		return nil, fmt.Errorf("unrecognized server version %q", raw)
	}
	return version.NewVersion(numeric)
}

// CheckServerVersion queries the server version and verifies it satisfies
// the dialect's minimum. It returns the parsed version.
func CheckServerVersion(ctx context.Context, db *sql.DB, d Dialect) (*version.Version, error) {
	var raw string
	if err := db.QueryRowContext(ctx, d.ServerVersionQuery()).Scan(&raw); err != nil {
		return nil, fmt.Errorf("failed to query server version: %w", err)
	}
	v, err := ParseServerVersion(raw)
	if err != nil {
		return nil, err
	}
	constraint, err := version.NewConstraint(d.MinServerVersion())
	if err != nil {
		return nil, err
	}
	if !constraint.Check(v) {
		return v, types.NewError(types.ErrEngine, "%s server %s does not satisfy %s", d.Name(), v, constraint)
	}
	return v, nil
}
