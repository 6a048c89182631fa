package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/wirepass/wirepass/internal/api"
	"github.com/wirepass/wirepass/internal/challenge"
	"github.com/wirepass/wirepass/internal/config"
	"github.com/wirepass/wirepass/internal/devicenames"
	"github.com/wirepass/wirepass/internal/devices"
	"github.com/wirepass/wirepass/internal/pending"
	"github.com/wirepass/wirepass/internal/poller"
	"github.com/wirepass/wirepass/internal/prefs"
	"github.com/wirepass/wirepass/internal/purchase"
	"github.com/wirepass/wirepass/internal/storage"
	"github.com/wirepass/wirepass/internal/subscription"
	"github.com/wirepass/wirepass/internal/wallet"
)

// loadConfig reads the config file and applies command-line overrides.
// The default config file is optional; an explicit --config is not.
func loadConfig() (*config.Config, error) {
	path, required := cfgFile, true
	if path == "" {
		path, required = config.DefaultPath(), false
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return nil, err
	}

	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
		cfg.Storage.DataDir = ""
		cfg.Storage.SQLitePath = ""
		cfg.Wallet.KeyFile = ""
	}
	if driver != "" {
		cfg.Storage.Driver = driver
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// env holds the components shared by the client commands.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend storage.Backend
	client  *api.Client
	names   *devicenames.Store
	ledger  *pending.Ledger
	prefs   *prefs.Prefs
}

// newEnv loads the configuration and opens storage and the API client.
func newEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg.LogLevel)

	backend, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, err
	}
	client, err := api.NewClient(cfg.API, buildVersion, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return &env{
		cfg:     cfg,
		logger:  logger,
		backend: backend,
		client:  client,
		names:   devicenames.NewStore(backend, logger),
		ledger:  pending.NewLedger(backend, logger),
		prefs:   prefs.New(backend, logger),
	}, nil
}

func (e *env) Close() error {
	return e.backend.Close()
}

// wallet loads the local wallet key.
func (e *env) wallet() (*wallet.Local, error) {
	w, err := wallet.LoadLocal(e.cfg.Wallet.KeyFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no wallet at %s (run \"wirepass wallet init\")", e.cfg.Wallet.KeyFile)
	}
	return w, err
}

func (e *env) challengeClient(w wallet.Wallet) *challenge.Client {
	return challenge.NewClient(e.client, w, nil, e.logger)
}

func (e *env) devices(w wallet.Wallet) *devices.Manager {
	return devices.NewManager(e.client, e.challengeClient(w), e.names, nil, e.logger)
}

// cache returns the client-list cache for the wallet's address.
func (e *env) cache(ctx context.Context, w wallet.Wallet) (*subscription.Cache, error) {
	owner, err := w.Address(ctx)
	if err != nil {
		return nil, err
	}
	return subscription.NewCache(e.client, owner, e.logger), nil
}

func (e *env) poller(cache poller.ClientCache) *poller.Poller {
	return poller.New(e.cfg.Poller, e.client, e.ledger, cache, e.logger)
}

func (e *env) purchaser(w wallet.Wallet, tracker purchase.Tracker) *purchase.Service {
	return purchase.NewService(e.client, w, e.ledger, tracker, e.logger)
}
