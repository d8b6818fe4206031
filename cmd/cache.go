package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/skill-translator/internal/config"
)

func newCacheCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the translation cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print cache statistics as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags, func(c *config.Config) { c.Cache.BackupOnStart = false })
			if err != nil {
				return err
			}
			app, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer app.Close()

			stats, err := app.orchestrator.Stats(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	})

	var all bool
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Remove expired cache entries, or all with --all",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			app, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.orchestrator.Purge(cmd.Context(), !all)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entries\n", n)
			return nil
		},
	}
	purge.Flags().BoolVar(&all, "all", false, "remove every entry, not only expired ones")
	cmd.AddCommand(purge)

	return cmd
}
