package main

import (
	"fmt"

	"github.com/nvandessel/co2twin/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the config file and CO2TWIN_*
environment overrides have been applied.

Configuration is read from ~/.co2twin/config.yaml unless --config is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dbPath, err := cfg.DatabasePath()
			if err != nil {
				return err
			}
			source, _ := cmd.Flags().GetString("config")
			if source == "" {
				if p, err := config.Path(); err == nil {
					source = p
				}
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, map[string]interface{}{
					"source":   source,
					"database": dbPath,
					"config":   cfg,
				})
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# source: %s\n# database: %s\n", source, dbPath)
			_, err = out.Write(data)
			return err
		},
	}
}
