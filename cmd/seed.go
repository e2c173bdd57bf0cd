package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/sorteando-crawler/internal/observability"
	"github.com/xkilldash9x/sorteando-crawler/internal/store"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the default venues into an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("seed needs database.url (SORTEANDO_DATABASE_URL); the in-memory store is not persisted")
			}

			logger := observability.Component("seed")
			repo, pool, err := openRepository(ctx, cfg.Database, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := store.SeedVenues(ctx, repo, logger)
			if err != nil {
				return err
			}
			if n == 0 {
				cmd.Println("Venues already present; nothing to do.")
				return nil
			}
			cmd.Printf("Seeded %d venues.\n", n)
			return nil
		},
	}
	cmd.Flags().String("database-url", "", "override database.url")
	return cmd
}
