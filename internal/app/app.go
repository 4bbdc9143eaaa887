package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/chatlens/chatlens-backend/internal/ai"
	rediscache "github.com/chatlens/chatlens-backend/internal/clients/redis"
	"github.com/chatlens/chatlens-backend/internal/data/repos"
	"github.com/chatlens/chatlens-backend/internal/db"
	"github.com/chatlens/chatlens-backend/internal/handlers"
	chatmod "github.com/chatlens/chatlens-backend/internal/modules/chat"
	"github.com/chatlens/chatlens-backend/internal/modules/chat/steps"
	"github.com/chatlens/chatlens-backend/internal/observability"
	"github.com/chatlens/chatlens-backend/internal/platform/logger"
	"github.com/chatlens/chatlens-backend/internal/server"
)

type App struct {
	Log    *logger.Logger
	DB     *gorm.DB
	Router *gin.Engine
	Cfg    Config
	Repos  repos.All
	Engine *chatmod.Engine

	embedCache   rediscache.EmbedCache
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig(log)

	observability.Init(log)
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	reposet := repos.New(theDB, log)

	providers, err := wireProviders(cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	embedCache := wireEmbedCache(cfg, log)

	embedder, err := ai.NewEmbedder(log, providers, embedCache)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	completer, err := ai.NewCompleter(log, providers)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init completer: %w", err)
	}

	engine := chatmod.NewEngine(chatmod.EngineDeps{
		DB:        theDB,
		Log:       log,
		Embedder:  embedder,
		Completer: completer,
		Chats:     reposet.Chat,
		Messages:  reposet.ChatMessage,
		Embedded:  reposet.EmbeddedMessage,
		Contexts:  reposet.ConversationContext,
	})

	router := server.NewRouter(server.RouterConfig{
		SearchHandler:  handlers.NewSearchHandler(log, engine),
		AdminHandler:   handlers.NewAdminHandler(log, engine),
		MessageHandler: handlers.NewMessageHandler(log, engine, reposet.Chat, reposet.ChatMessage),
		AllowOrigins:   cfg.AllowOrigins,
		ServiceName:    cfg.ServiceName,
	})

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Engine:       engine,
		embedCache:   embedCache,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background pieces: metrics collectors, the optional
// standalone metrics listener, and the startup rebuild when configured.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if m := observability.Current(); m != nil {
		m.StartPostgresCollector(ctx, a.Log, a.DB)
		m.StartRedisCollector(ctx, a.Log, a.Cfg.RedisAddr)
		m.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	}

	if a.Cfg.RebuildOnStart {
		go func() {
			rebuildCtx, rcancel := context.WithTimeout(ctx, 2*time.Hour)
			defer rcancel()
			out, err := a.Engine.RebuildAll(rebuildCtx)
			if err != nil {
				if !errors.Is(err, steps.ErrRebuildInProgress) {
					a.Log.Error("startup rebuild failed", "error", err)
				}
				return
			}
			a.Log.Info("startup rebuild finished",
				"chats", out.Chats,
				"indexed", out.Indexed,
				"skipped", out.Skipped,
			)
		}()
	}
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(":" + a.Cfg.Port)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.embedCache != nil {
		_ = a.embedCache.Close()
	}
	if a.otelShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(shutdownCtx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
