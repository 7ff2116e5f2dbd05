package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove an imported dataset from the library",
		Long: `Remove a dataset previously stored with 'co2twin import'. Preset files in the
data directory are never touched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			if err := ws.Library.DeleteDataset(context.Background(), args[0]); err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, map[string]string{"status": "deleted", "name": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted dataset %q\n", args[0])
			return nil
		},
	}
}
