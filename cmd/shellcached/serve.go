package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/phyarch/shellcache"
	"github.com/phyarch/shellcache/fetch"
	"github.com/phyarch/shellcache/genreg"
	asynchook "github.com/phyarch/shellcache/hooks/async"
	"github.com/phyarch/shellcache/internal/config"
	"github.com/phyarch/shellcache/internal/logging"
	"github.com/phyarch/shellcache/internal/server"
	logrusadapter "github.com/phyarch/shellcache/log/logrus"
	"github.com/phyarch/shellcache/manifest"
	"github.com/phyarch/shellcache/sloghooks"
	"github.com/phyarch/shellcache/store"
	memorystore "github.com/phyarch/shellcache/store/memory"
	redisstore "github.com/phyarch/shellcache/store/redis"
	sqlitestore "github.com/phyarch/shellcache/store/sqlite"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Install the manifest's generation and serve the shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "shellcached.yaml", "path to the config file")
	return cmd
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.Init(cfg)
	if err != nil {
		return err
	}

	man, err := manifest.Load(cfg.ManifestPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cacheStore, registry, err := buildStore(cfg)
	if err != nil {
		return err
	}

	fetcher, err := fetch.NewClient(fetch.Config{
		Origin:  cfg.Origin,
		Timeout: cfg.UpstreamTimeout.DurationValue(),
	})
	if err != nil {
		return err
	}

	hooks := asynchook.New(
		sloghooks.New(slog.New(slog.NewJSONHandler(logger.Writer(), nil)),
			sloghooks.Options{CacheHitEvery: 100, CacheMissEvery: 100}),
		1, 1024)
	defer hooks.Close()

	mgr, err := shellcache.New(shellcache.Options{
		Generation:     man.Generation,
		Store:          cacheStore,
		Fetcher:        fetcher,
		Assets:         man.AssetSet(),
		OfflinePage:    man.OfflinePage,
		Registry:       registry,
		Logger:         logrusadapter.Logger{E: logrus.NewEntry(logger)},
		Hooks:          hooks,
		DisableRefresh: cfg.DisableRefresh,
	})
	if err != nil {
		return err
	}

	// A failed install keeps the previously activated generation
	// authoritative; the daemon degrades to network-first serving
	// instead of refusing to start.
	if err := mgr.Install(ctx, man.AssetSet()); err != nil {
		logger.WithFields(logrus.Fields{
			"action":     "install",
			"generation": man.Generation,
		}).Error(err.Error())
	} else if err := mgr.Activate(ctx); err != nil {
		logger.WithFields(logrus.Fields{
			"action":     "activate",
			"generation": man.Generation,
		}).Error(err.Error())
	}

	app, err := server.New(server.Options{
		Logger:     logger,
		Manager:    mgr,
		Store:      cacheStore,
		ListenPort: cfg.ListenPort,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(fmt.Sprintf(":%d", cfg.ListenPort))
	}()

	logger.WithFields(logrus.Fields{
		"action":     "serve",
		"port":       cfg.ListenPort,
		"generation": man.Generation,
		"backend":    cfg.Store.Backend,
	}).Info("shellcached started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.WithField("action", "shutdown").Warn(err.Error())
	}
	return mgr.Close(shutdownCtx)
}

// buildStore constructs the configured backend. The redis backend shares
// its client with a redis-backed generation registry so replicas agree on
// the current generation; the local backends use an in-process registry.
func buildStore(cfg *config.Config) (store.Store, genreg.Registry, error) {
	switch cfg.Store.Backend {
	case "memory":
		return memorystore.New(), genreg.NewLocal(), nil
	case "sqlite":
		s, err := sqlitestore.New(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, genreg.NewLocal(), nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Store.RedisAddr})
		s, err := redisstore.New(redisstore.Config{Client: client, CloseClient: true})
		if err != nil {
			return nil, nil, err
		}
		return s, genreg.NewRedis(client, "shellcached"), nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
