package commands

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/commerce-client/cli/internal/ui"
	"github.com/satishbabariya/commerce-client/migrate"
	"github.com/satishbabariya/commerce-client/migrate/introspect"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
	Long: `Apply, roll back and inspect the embedded schema migrations.

Migrations are tracked by goose in the goose_db_version table.`,
}

var migrateForce bool

func init() {
	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE:  runMigrateUp,
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE:  runMigrateDown,
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the state of every migration",
			Args:  cobra.NoArgs,
			RunE:  runMigrateStatus,
		},
		&cobra.Command{
			Use:   "verify",
			Short: "Check that the database matches the schema",
			Long: `Introspect the database and report every model whose table, columns,
unique indexes or foreign keys differ from the schema.`,
			Args: cobra.NoArgs,
			RunE: runMigrateVerify,
		},
	)

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Roll back every migration, dropping all data",
		Args:  cobra.NoArgs,
		RunE:  runMigrateReset,
	}
	resetCmd.Flags().BoolVarP(&migrateForce, "force", "f", false, "Skip the confirmation prompt")
	migrateCmd.AddCommand(resetCmd)

	rootCmd.AddCommand(migrateCmd)
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	return withEngine(cmd.Context(), func(e *migrate.Engine) error {
		applied, err := e.Up(cmd.Context())
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			ui.PrintInfo("Database is up to date")
			return nil
		}
		for _, m := range applied {
			ui.PrintSuccess("Applied %s (%v)", m.Name, m.Duration)
		}
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	return withEngine(cmd.Context(), func(e *migrate.Engine) error {
		m, err := e.Down(cmd.Context())
		if err != nil {
			return err
		}
		if m == nil {
			ui.PrintInfo("No migration to roll back")
			return nil
		}
		ui.PrintSuccess("Rolled back %s", m.Name)
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	return withEngine(cmd.Context(), func(e *migrate.Engine) error {
		statuses, err := e.Status(cmd.Context())
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(statuses))
		for _, s := range statuses {
			appliedAt := ""
			if s.Applied {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			rows = append(rows, []string{fmt.Sprint(s.Version), s.Name, ui.Status(s.Applied), appliedAt})
		}
		return ui.PrintTable([]string{"Version", "Name", "State", "Applied at"}, rows)
	})
}

func runMigrateReset(cmd *cobra.Command, args []string) error {
	if !migrateForce {
		confirmed := false
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("Reset the %s database? All data will be lost.", cfg.Provider),
		}
		if err := survey.AskOne(prompt, &confirmed); err != nil {
			return err
		}
		if !confirmed {
			ui.PrintWarning("Reset cancelled")
			return nil
		}
	}
	return withEngine(cmd.Context(), func(e *migrate.Engine) error {
		rolledBack, err := e.Reset(cmd.Context())
		if err != nil {
			return err
		}
		ui.PrintSuccess("Rolled back %d migration(s)", len(rolledBack))
		return nil
	})
}

func runMigrateVerify(cmd *cobra.Command, args []string) error {
	cl, err := openClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cl.Disconnect(cmd.Context())

	in, err := introspect.NewIntrospector(cl.DB(), cl.Dialect())
	if err != nil {
		return err
	}
	db, err := in.Introspect(cmd.Context())
	if err != nil {
		return err
	}

	problems := introspect.Compare(cl.Registry(), db)
	if len(problems) == 0 {
		ui.PrintSuccess("Database matches the schema")
		return nil
	}
	rows := make([][]string, 0, len(problems))
	for _, p := range problems {
		rows = append(rows, []string{p.Model, p.Field, string(p.Kind), p.Detail})
	}
	if err := ui.PrintTable([]string{"Model", "Field", "Problem", "Detail"}, rows); err != nil {
		return err
	}
	return fmt.Errorf("database differs from the schema in %d place(s)", len(problems))
}
