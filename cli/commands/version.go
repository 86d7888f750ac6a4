package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/commerce-client/cli/internal/version"
)

var versionFull bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if versionFull {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), info.FullString())
			return err
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), info.String())
		return err
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionFull, "full", false, "Include build and schema details")
	rootCmd.AddCommand(versionCmd)
}
