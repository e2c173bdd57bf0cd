package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/sorteando-crawler/internal/auth"
	"github.com/xkilldash9x/sorteando-crawler/internal/observability"
)

// newCreateAdminCmd creates an admin account directly in the database. The
// HTTP API only lets an existing admin grant the role.
func newCreateAdminCmd() *cobra.Command {
	var in auth.RegisterInput
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("create-admin needs database.url (SORTEANDO_DATABASE_URL); the in-memory store is not persisted")
			}

			logger := observability.Component("admin")
			repo, pool, err := openRepository(ctx, cfg.Database, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			// Only the user store is touched, so the token secrets are irrelevant.
			ensureSecrets(&cfg.Auth, logger)
			tokens, err := auth.NewTokens(cfg.Auth.SecretKey, cfg.Auth.RefreshSecretKey, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
			if err != nil {
				return err
			}

			in.Role = auth.RoleAdmin
			u, err := auth.NewService(repo, tokens, cfg.Auth.BcryptCost, logger).Register(ctx, in)
			if err != nil {
				return err
			}
			cmd.Printf("Created admin %s (%s).\n", u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "account password")
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.CPF, "cpf", "", "CPF, 11 digits")
	cmd.Flags().StringVar(&in.Registration, "matricula", "", "registration number")
	cmd.Flags().String("database-url", "", "override database.url")
	for _, f := range []string{"email", "password", "name", "cpf"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
