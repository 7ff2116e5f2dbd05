package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newCitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cities",
		Short: "List preset and imported city datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := context.Background()
			presets, _, err := ws.Cities(ctx)
			if err != nil {
				return err
			}
			stored, err := ws.Library.ListDatasets(ctx)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				if presets == nil {
					presets = []string{}
				}
				return writeJSON(cmd, map[string]interface{}{
					"presets": presets,
					"stored":  stored,
					"count":   len(presets) + len(stored),
				})
			}

			out := cmd.OutOrStdout()
			if len(presets)+len(stored) == 0 {
				fmt.Fprintf(out, "No datasets found. Add *.json presets to %s or run 'co2twin import'.\n", ws.Presets.Dir())
				return nil
			}
			if len(presets) > 0 {
				fmt.Fprintf(out, "Presets (%s):\n", ws.Presets.Dir())
				for _, name := range presets {
					fmt.Fprintf(out, "  %s\n", name)
				}
			}
			if len(stored) > 0 {
				fmt.Fprintln(out, "Library:")
				for _, info := range stored {
					fmt.Fprintf(out, "  %-20s %-20s %d sectors, imported %s\n",
						info.Name, info.City, info.Sectors, info.ImportedAt.Format("2006-01-02"))
				}
			}
			return nil
		},
	}
}
