package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nvandessel/co2twin/internal/dataset"
	"github.com/nvandessel/co2twin/internal/sanitize"
	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Store a city dataset in the local library",
		Long: `Read a city dataset JSON file and store it in the SQLite library so it can
be simulated by name.

The library name defaults to the file name without its extension.

Examples:
  co2twin import ./mumbai.json
  co2twin import ./survey-2024.json --name mumbai-2024`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nameFlag, _ := cmd.Flags().GetString("name")

			ds, err := dataset.LoadFile(args[0])
			if err != nil {
				return err
			}

			raw := nameFlag
			if raw == "" {
				raw = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			name := sanitize.Name(raw)
			if name == "" {
				return fmt.Errorf("invalid dataset name %q", raw)
			}

			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			if err := ws.Library.PutDataset(context.Background(), name, ds); err != nil {
				return err
			}
			ws.Logger.Debug("dataset imported", "name", name, "city", ds.City, "sectors", len(ds.Sectors))

			if jsonOutput(cmd) {
				return writeJSON(cmd, map[string]interface{}{
					"status":  "imported",
					"name":    name,
					"city":    ds.City,
					"sectors": len(ds.Sectors),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as %q (%d sectors)\n", ds.City, name, len(ds.Sectors))
			return nil
		},
	}

	cmd.Flags().String("name", "", "Library name (default: file name without extension)")

	return cmd
}
