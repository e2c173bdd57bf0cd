package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sorteando-crawler/internal/api"
	"github.com/xkilldash9x/sorteando-crawler/internal/auth"
	"github.com/xkilldash9x/sorteando-crawler/internal/automation"
	"github.com/xkilldash9x/sorteando-crawler/internal/config"
	"github.com/xkilldash9x/sorteando-crawler/internal/observability"
	"github.com/xkilldash9x/sorteando-crawler/internal/store"
)

const dbInitTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runServe(ctx, cfg, observability.GetLogger())
		},
	}
	cmd.Flags().String("listen", "", "override server.listen_addr")
	cmd.Flags().String("database-url", "", "override database.url")
	cmd.Flags().Bool("headless", true, "override browser.headless")
	return cmd
}

// components holds everything serve starts, so it can be torn down in order.
type components struct {
	pool   *pgxpool.Pool
	repo   store.Repository
	server *api.Server
}

// Shutdown releases the database pool.
func (c *components) Shutdown() {
	if c.pool != nil {
		c.pool.Close()
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	c, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	logger.Info("Starting Sorteando API",
		zap.String("version", Version),
		zap.String("listen", cfg.Server.ListenAddr),
		zap.String("target", cfg.Target.BaseURL),
		zap.Int64("max_sessions", cfg.Browser.MaxSessions))
	return c.server.ListenAndServe(ctx)
}

func buildComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	ensureSecrets(&cfg.Auth, logger)

	c := &components{}
	repo, pool, err := openRepository(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	c.repo, c.pool = repo, pool

	tokens, err := auth.NewTokens(cfg.Auth.SecretKey, cfg.Auth.RefreshSecretKey, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	if err != nil {
		c.Shutdown()
		return nil, err
	}
	authSvc := auth.NewService(repo, tokens, cfg.Auth.BcryptCost, logger)

	server, err := api.NewServer(cfg.Server, api.Dependencies{
		Automation: automation.NewService(cfg, logger),
		Venues:     repo,
		Locations:  repo,
		Auth:       authSvc,
	}, logger)
	if err != nil {
		c.Shutdown()
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}
	c.server = server
	return c, nil
}

// openRepository connects to PostgreSQL when a URL is configured and falls
// back to the in-memory repository otherwise.
func openRepository(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (store.Repository, *pgxpool.Pool, error) {
	if cfg.URL == "" {
		logger.Warn("Database URL (SORTEANDO_DATABASE_URL) is not set. Using in-memory storage; data is lost on restart.")
		return store.NewMemory(), nil, nil
	}

	initCtx, cancel := context.WithTimeout(ctx, dbInitTimeout)
	defer cancel()

	pool, err := pgxpool.New(initCtx, cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}
	s, err := store.New(initCtx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := s.EnsureSchema(initCtx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("Database connection established successfully.")
	return s, pool, nil
}

// ensureSecrets fills missing signing secrets with random ones. Tokens then
// do not survive a restart.
func ensureSecrets(cfg *config.AuthConfig, logger *zap.Logger) {
	if cfg.SecretKey == "" {
		cfg.SecretKey = randomSecret()
		logger.Warn("auth.secret_key is not set; generated an ephemeral secret.")
	}
	if cfg.RefreshSecretKey == "" {
		cfg.RefreshSecretKey = randomSecret()
		logger.Warn("auth.refresh_secret_key is not set; generated an ephemeral secret.")
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}
