package root

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zainarain279/Dropee/internal/config"
	"github.com/zainarain279/Dropee/internal/credential"
	"github.com/zainarain279/Dropee/internal/credential/repo"
	"github.com/zainarain279/Dropee/pkg/database"
	"github.com/zainarain279/Dropee/pkg/utilities"
)

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return lg, nil
}

// openStore opens the configured credential backend.
func openStore(ctx context.Context, cfg config.Config) (*credential.Store, func(), error) {
	if cfg.TokenStore != config.StoreSQL {
		store, err := credential.Open(ctx, repo.NewFileRepo(cfg.TokenFile))
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}

	dbc := database.ConfigFromEnv()
	dbc.Driver = cfg.DatabaseDriver
	if cfg.DatabaseURL != "" {
		dbc.DSN = cfg.DatabaseURL
	}
	db, err := database.Connect(dbc)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = db.Close()
	}
	r := repo.NewSQLRepo(db)
	if err := r.EnsureTable(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	store, err := credential.Open(ctx, r)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return store, cleanup, nil
}
