package commands

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/commerce-client/cli/internal/ui"
	"github.com/satishbabariya/commerce-client/cli/internal/watch"
	"github.com/satishbabariya/commerce-client/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate [schema-path]",
	Short: "Validate a schema file",
	Long: `Parse a schema file and check its models and relations.

Without a path the configured schema, or the embedded one, is validated.
With --watch the file is validated again whenever it changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

var validateWatch bool

func init() {
	validateCmd.Flags().BoolVarP(&validateWatch, "watch", "w", false, "Validate again on every change")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := cfg.SchemaPath
	if len(args) > 0 {
		path = args[0]
	}

	if !validateWatch {
		_, err := validateSchema(path)
		return err
	}
	if path == "" {
		return fmt.Errorf("--watch needs a schema file")
	}

	w, err := watch.NewWatcher(path, func() error {
		_, err := validateSchema(path)
		return err
	}, func(err error) {
		ui.PrintError("%v", err)
	})
	if err != nil {
		return err
	}
	w.Start()
	ui.PrintInfo("Watching %s for changes (Ctrl+C to stop)", path)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	<-ctx.Done()
	return w.Stop()
}

// validateSchema parses the schema at path, or the embedded schema when
// path is empty, and prints a summary.
func validateSchema(path string) (*schema.Registry, error) {
	var (
		reg *schema.Registry
		err error
	)
	name := "embedded schema"
	if path == "" {
		reg = schema.Embedded()
	} else {
		name, _ = filepath.Abs(path)
		if reg, err = schema.Load(fs, path); err != nil {
			return nil, err
		}
	}

	ui.PrintSuccess("Schema is valid: %s", name)
	models := reg.Models()
	relations := 0
	for _, m := range models {
		relations += len(m.Relations)
	}
	ui.PrintList([]string{
		fmt.Sprintf("datasource %s (%s)", reg.Datasource.Name, reg.Datasource.Provider),
		fmt.Sprintf("%d model(s)", len(models)),
		fmt.Sprintf("%d relation field(s)", relations),
	})
	return reg, nil
}
