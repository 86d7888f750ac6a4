// Package commands implements the commerce-client CLI.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/commerce-client/cli/internal/ui"
	"github.com/satishbabariya/commerce-client/cli/internal/version"
	"github.com/satishbabariya/commerce-client/internal/config"
	"github.com/satishbabariya/commerce-client/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "commerce-client",
	Short:         "Manage and query the commerce database",
	Long:          "commerce-client migrates the commerce schema, inspects its models and runs operations against it.",
	Version:       version.Get().Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err := loadConfig(cmd); err != nil {
			return err
		}
		if !flags.verbose {
			logger.Set(nil)
			return nil
		}
		l, err := logger.Config(cfg.LogEnv).Build()
		if err != nil {
			return err
		}
		logger.Set(l)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// flags holds the persistent flags.
var flags struct {
	configDir   string
	provider    string
	databaseURL string
	schemaPath  string
	verbose     bool
}

// cfg is the configuration resolved for the running command.
var cfg *config.Config

// fs is the filesystem configuration and schema files are read from.
var fs = afero.NewOsFs()

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configDir, "config-dir", ".", "Directory holding .commerce-client.yaml and .env files")
	pf.StringVar(&flags.provider, "provider", "", "Database provider (postgresql, pgx, mysql, sqlite)")
	pf.StringVar(&flags.databaseURL, "database-url", "", "Database connection string")
	pf.StringVar(&flags.schemaPath, "schema", "", "Schema file to use instead of the embedded one")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Log queries and transactions")
}

func loadConfig(cmd *cobra.Command) error {
	loaded, err := config.Load(fs, flags.configDir)
	if err != nil {
		return err
	}
	pf := cmd.Flags()
	if pf.Changed("provider") {
		loaded.Provider = flags.provider
	}
	if pf.Changed("database-url") {
		loaded.DatabaseURL = flags.databaseURL
	}
	if pf.Changed("schema") {
		loaded.SchemaPath = flags.schemaPath
	}
	if flags.verbose {
		loaded.LogQueries = true
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded
	return nil
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError("%v", err)
		return err
	}
	return nil
}

// NewRootCommand returns the root command, for embedding and tests.
func NewRootCommand() *cobra.Command {
	return rootCmd
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := marshalIndent(v)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}
