// Package version reports build and schema information.
package version

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"

	"github.com/satishbabariya/commerce-client/query/dialect"
	"github.com/satishbabariya/commerce-client/schema"
)

var (
	// Version is the version of the CLI
	Version = "0.1.0"
	// BuildDate is the build date
	BuildDate = "unknown"
	// GitCommit is the git commit hash
	GitCommit = "unknown"
)

// Info holds version information
type Info struct {
	Version   string
	BuildDate string
	GitCommit string
	GoVersion string
	Platform  string
	// SchemaDigest identifies the embedded schema.
	SchemaDigest string
	Providers    []string
}

// Get returns version information
func Get() Info {
	sum := sha256.Sum256([]byte(schema.Source()))
	return Info{
		Version:      Version,
		BuildDate:    BuildDate,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		Platform:     fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		SchemaDigest: hex.EncodeToString(sum[:6]),
		Providers:    dialect.Providers(),
	}
}

// String returns a formatted version string
func (i Info) String() string {
	return fmt.Sprintf("commerce-client version %s (%s %s)", i.Version, i.Platform, i.GoVersion)
}

// FullString returns a detailed version string
func (i Info) FullString() string {
	return fmt.Sprintf(`commerce-client version %s
Build Date: %s
Git Commit: %s
Platform: %s
Go Version: %s
Schema: %s
Providers: %s`, i.Version, i.BuildDate, i.GitCommit, i.Platform, i.GoVersion, i.SchemaDigest, strings.Join(i.Providers, ", "))
}
