package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/jackc/pgx/v5/pgxpool"

	embedded "github.com/NahuelRC/CallCenter/db"
	"github.com/NahuelRC/CallCenter/internal/catalog"
	"github.com/NahuelRC/CallCenter/internal/config"
	"github.com/NahuelRC/CallCenter/internal/contacts"
	"github.com/NahuelRC/CallCenter/internal/conversation"
	"github.com/NahuelRC/CallCenter/internal/db"
	"github.com/NahuelRC/CallCenter/internal/dispatch"
	"github.com/NahuelRC/CallCenter/internal/handlers"
	"github.com/NahuelRC/CallCenter/internal/intent"
	"github.com/NahuelRC/CallCenter/internal/logger"
	"github.com/NahuelRC/CallCenter/internal/media"
	"github.com/NahuelRC/CallCenter/internal/planner"
	"github.com/NahuelRC/CallCenter/internal/prompt"
	"github.com/NahuelRC/CallCenter/internal/server"
	"github.com/NahuelRC/CallCenter/internal/twilio"
	"github.com/NahuelRC/CallCenter/internal/version"
)

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrate(os.Args[2:])
		return
	}

	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,

			provideIntentDetector,
			provideMediaPipeline,

			contacts.NewService,
			conversation.NewService,
			provideCatalogStore,
			provideCatalogResolver,

			providePromptStore,
			providePromptCache,
			provideCompleter,
			providePlanner,
			provideTwilioSender,

			providePipeline,
			provideDispatcher,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewWebhookHandler),
			provideServerHandler(handlers.NewSendHandler),

			provideServer,
		),
		fx.Invoke(
			startPromptCache,
			startDispatcher,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func runMigrate(args []string) {
	cfg, err := provideConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	command := "up"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	migrationsFS, err := fs.Sub(embedded.MigrationsFS, "migrations")
	if err != nil {
		logger.L.Error("migrations fs", slog.Any("error", err))
		os.Exit(1)
	}
	if err := db.RunMigrate(logger.L, cfg.Postgres, migrationsFS, command, args); err != nil {
		logger.L.Error("migrate failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideIntentDetector(cfg config.Config) *intent.Detector {
	return intent.NewDetector(cfg.Intent)
}

func provideMediaPipeline(cfg config.Config) *media.Pipeline {
	return media.NewPipeline(cfg.Media)
}

func provideCatalogStore(conn *pgxpool.Pool, cfg config.Config, logger *slog.Logger) *catalog.Store {
	return catalog.NewStore(conn, cfg.Catalog.MaxScan, logger)
}

func provideCatalogResolver(store *catalog.Store, detector *intent.Detector, pipeline *media.Pipeline, cfg config.Config, logger *slog.Logger) *catalog.Resolver {
	return catalog.NewResolver(store, detector, pipeline, cfg.Catalog, logger)
}

func providePromptStore(conn *pgxpool.Pool, logger *slog.Logger) *prompt.Store {
	return prompt.NewStore(conn, logger)
}

func providePromptCache(store *prompt.Store, cfg config.Config, logger *slog.Logger) *prompt.Cache {
	return prompt.NewCache(store, cfg.Prompt, logger)
}

func provideCompleter(logger *slog.Logger, cfg config.Config) planner.Completer {
	return planner.NewOpenAIClient(logger, cfg.OpenAI)
}

func providePlanner(completer planner.Completer, cache *prompt.Cache, cfg config.Config, logger *slog.Logger) *planner.Planner {
	return planner.New(completer, cache, cfg.Bot, cfg.OpenAI, logger)
}

func provideTwilioSender(logger *slog.Logger, cfg config.Config) twilio.Sender {
	return twilio.NewClient(logger, cfg.Twilio)
}

func providePipeline(
	contactsService *contacts.Service,
	conversationService *conversation.Service,
	replyPlanner *planner.Planner,
	resolver *catalog.Resolver,
	mediaPipeline *media.Pipeline,
	detector *intent.Detector,
	sender twilio.Sender,
	conn *pgxpool.Pool,
	cfg config.Config,
	logger *slog.Logger,
) *dispatch.Pipeline {
	return dispatch.NewPipeline(
		contactsService,
		conversationService,
		replyPlanner,
		resolver,
		mediaPipeline,
		detector,
		sender,
		conn,
		cfg.Bot,
		cfg.Dispatch,
		logger,
	)
}

func provideDispatcher(pipeline *dispatch.Pipeline, cfg config.Config, logger *slog.Logger) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(pipeline, cfg.Dispatch, logger)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func startPromptCache(lc fx.Lifecycle, cache *prompt.Cache, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := cache.Bootstrap(ctx); err != nil {
				logger.Warn("prompt cache bootstrap failed", slog.Any("error", err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cache.Stop()
			return nil
		},
	})
}

func startDispatcher(lc fx.Lifecycle, dispatcher *dispatch.Dispatcher, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			dispatcher.Start(ctx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			dispatcher.Stop()
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting CallCenter %s\n", version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil { // block until server is stopped
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
