package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/modkit-go/modkit/internal/app"
	"github.com/modkit-go/modkit/internal/cli/config"
	"github.com/modkit-go/modkit/internal/handler"
	"github.com/modkit-go/modkit/internal/watch"
	"github.com/modkit-go/modkit/internal/web/cache"
	"github.com/modkit-go/modkit/internal/web/middleware"
	"github.com/modkit-go/modkit/internal/web/router"
	"github.com/modkit-go/modkit/internal/web/server"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	var (
		port      int
		watchMode bool
		roots     []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Scan modules and serve their routes",
		Long: `Scan the configured roots for controller and service modules,
register every route, and serve them over HTTP. All modules are loaded
before the server starts listening.

With --watch, module files are reloaded as they change on disk.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			// Flags override config file values
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("watch") {
				cfg.Watch.Enabled = watchMode
			}
			if cmd.Flags().Changed("root") {
				cfg.Roots = roots
			}

			return runServe(cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on")
	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "reload modules on file changes")
	cmd.Flags().StringSliceVar(&roots, "root", nil, "scan root (repeatable)")

	return cmd
}

func runServe(cfg *config.Config) error {
	log, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	catalog := handler.NewCatalog()
	handler.RegisterBuiltins(catalog)

	table := middleware.NewTable()
	table.Register("request_id", middleware.RequestID()) //nolint:errcheck
	table.Register("logging", middleware.Logging(log))   //nolint:errcheck
	table.Register("recovery", middleware.Recovery(log)) //nolint:errcheck
	if cfg.Auth.Secret != "" {
		table.Register("auth", middleware.BearerAuth(cfg.Auth.Secret)) //nolint:errcheck
	}

	store, err := newCache(cfg)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}

	rtr := router.New(log, table, store)

	application, err := app.New(app.Options{
		Roots:   cfg.Roots,
		Workdir: cfg.Workdir,
		Logger:  log,
		Catalog: catalog,
		Router:  rtr,
	})
	if err != nil {
		return err
	}

	// Every discovered module settles before the listener opens.
	report, err := application.Start(context.Background())
	if err != nil {
		return err
	}
	color.Green("✓ Loaded %d module(s) (%d skipped, %d failed)",
		report.Loaded, report.Skipped, report.Failed)

	mux := http.NewServeMux()
	mux.Handle("/", rtr)

	var watcher *watch.Watcher
	var notifier *watch.Notifier
	if cfg.Watch.Enabled {
		notifier = watch.NewNotifier(log)
		mux.HandleFunc("/__modkit/reload", notifier.HandleWebSocket)

		watcher, err = watch.New(watch.Config{
			Roots:    application.Roots(),
			Debounce: cfg.Watch.Debounce,
			Logger:   log,
			OnChange: func(path string) {
				result, err := application.Reload(path)
				switch {
				case err != nil:
					log.Error("reload failed", zap.String("path", path), zap.Error(err))
					notifier.NotifyError(path, err)
				case result.Loaded:
					notifier.NotifyReload(path)
				default:
					log.Debug("change produced no routes",
						zap.String("path", path),
						zap.String("reason", result.Reason))
				}
			},
			OnRemove: func(path string) {
				if application.UnloadFile(path) {
					notifier.NotifyUnload(path)
				}
			},
		})
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return err
		}
		color.Yellow("👀 Watching for module changes")
	}

	serverConfig := server.DefaultConfig(mux)
	serverConfig.Address = cfg.Server.Addr()

	srv, err := server.New(serverConfig)
	if err != nil {
		return err
	}

	shutdown := server.NewGracefulShutdown(srv, log, server.DefaultShutdownConfig())
	if watcher != nil {
		shutdown.RegisterHook(func(ctx context.Context) error {
			return watcher.Stop()
		})
	}
	if notifier != nil {
		shutdown.RegisterHook(func(ctx context.Context) error {
			notifier.Close()
			return nil
		})
	}
	shutdown.RegisterHook(func(ctx context.Context) error {
		return store.Close()
	})

	color.Cyan("🚀 Serving on %s", cfg.Server.Addr())
	return shutdown.Start()
}

// newLogger builds a console zap logger at the configured level.
func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.Kitchen)

	return zcfg.Build()
}

// newCache builds the response cache backend from config.
func newCache(cfg *config.Config) (cache.Cache, error) {
	common := cache.DefaultConfig()
	if cfg.Cache.TTL > 0 {
		common.DefaultTTL = cfg.Cache.TTL
	}

	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Config:   common,
		})
	default:
		return cache.NewMemoryCache(common), nil
	}
}
