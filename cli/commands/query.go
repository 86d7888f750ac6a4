package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/commerce-client/runtime/client"
	"github.com/satishbabariya/commerce-client/runtime/types"
)

var queryCmd = &cobra.Command{
	Use:   "query <model> <action>",
	Short: "Run one model operation and print its result as JSON",
	Long: `Run one model operation. Arguments are given as JSON, the same shape
the Go API takes:

  commerce-client query User findMany --args '{"where": {"premiumStatus": true}, "take": 10}'
  commerce-client query Order create --args-file order.json`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

var (
	queryArgs     string
	queryArgsFile string
)

func init() {
	queryCmd.Flags().StringVarP(&queryArgs, "args", "a", "", "Operation arguments as JSON")
	queryCmd.Flags().StringVar(&queryArgsFile, "args-file", "", "Read the arguments from a file, - for stdin")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	op := client.Operation{Model: args[0], Action: types.Action(args[1])}
	if !op.Action.Valid() {
		return fmt.Errorf("unknown action %q", args[1])
	}

	raw, err := operationArgs(cmd)
	if err != nil {
		return err
	}
	if len(raw) > 0 {
		op.Args = raw
	}

	cl, err := openClient(cmd.Context())
	if err != nil {
		return err
	}
	defer cl.Disconnect(cmd.Context())

	result, err := cl.Execute(cmd.Context(), op)
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}

func operationArgs(cmd *cobra.Command) ([]byte, error) {
	switch {
	case queryArgs != "" && queryArgsFile != "":
		return nil, fmt.Errorf("--args and --args-file are mutually exclusive")
	case queryArgs != "":
		return []byte(queryArgs), nil
	case queryArgsFile == "-":
		return io.ReadAll(cmd.InOrStdin())
	case queryArgsFile != "":
		b, err := os.ReadFile(queryArgsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read arguments: %w", err)
		}
		return b, nil
	}
	return nil, nil
}
