// Command server runs the CRM chat webhook service and its admin tasks.
//
//	server serve                                  # HTTP server
//	server migrate                                # create/update tables
//	server orgs create --name Acme                # prints the organization id
//	server sources create --org <id> --name wa    # prints the secret token
//	server sources deactivate <token>
//	server sources list --org <id>
//
// Configuration comes from the environment, optionally seeded from a .env
// file in the working directory.
package main

import (
	"context"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-webhooks/internal/config"
	"github.com/tbourn/go-crm-webhooks/internal/logging"
	"github.com/tbourn/go-crm-webhooks/internal/repo"
	"github.com/tbourn/go-crm-webhooks/internal/tenantcache"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand needs after configuration is loaded.
type app struct {
	cfg config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "server",
		Short:        "CRM chat-provider webhook ingestion service",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			logging.Setup(cfg.LogLevel, cfg.LogPretty)
			return nil
		},
	}
	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newOrgsCmd(a),
		newSourcesCmd(a),
	)
	return root
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, closeDB, err := a.openDB()
			if err != nil {
				return err
			}
			defer closeDB()
			if err := repo.AutoMigrate(db); err != nil {
				return err
			}
			log.Info().Str("driver", a.cfg.DB.Driver).Msg("schema migrated")
			return nil
		},
	}
}

// openDB opens the configured database and returns a closer for it.
func (a *app) openDB() (*gorm.DB, func(), error) {
	db, err := repo.Open(a.cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, closeDB, nil
}

// openCache builds the token cache; Redis-backed caches are closed by the
// returned func.
func (a *app) openCache(ctx context.Context) (tenantcache.Cache, func(), error) {
	c, err := tenantcache.New(ctx, a.cfg.TokenCache)
	if err != nil {
		return nil, nil, err
	}
	return c, func() {
		if cl, ok := c.(io.Closer); ok {
			_ = cl.Close()
		}
	}, nil
}
