package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gitscout/gitscout-backend/internal/data/db"
	apphttp "github.com/gitscout/gitscout-backend/internal/http"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
	"github.com/gitscout/gitscout-backend/internal/realtime"
	"github.com/gitscout/gitscout-backend/internal/services"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
	Clients  Clients
	Hub      *realtime.Hub
}

type Option func(*options)

type options struct {
	runner services.SearchRunner
}

// WithSearchRunner plugs in the discovery pipeline implementation.
// Without one the search endpoint reports the feature unavailable.
func WithSearchRunner(r services.SearchRunner) Option {
	return func(o *options) { o.runner = r }
}

func New(opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

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

	hub := realtime.NewHub(log)
	clients := wireClients(context.Background(), log, cfg)

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, reposet, hub, clients, o.runner)
	handlerset := wireHandlers(log, serviceset, hub)
	middleware := wireMiddleware(log, cfg)
	router := wireRouter(log, cfg, handlerset, middleware)

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   router,
		Cfg:      cfg,
		Repos:    reposet,
		Services: serviceset,
		Clients:  clients,
		Hub:      hub,
	}, nil
}

// Run serves HTTP and the background loops until ctx is cancelled or
// one of them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}

	a.Services.Sessions.StartTTLSweeper(ctx)

	if a.Clients.Bus != nil {
		if err := a.Clients.Bus.StartForwarder(ctx, a.Hub.Broadcast); err != nil {
			return fmt.Errorf("start progress forwarder: %w", err)
		}
	}

	a.Log.Info("Server listening", "port", a.Cfg.Port)
	return apphttp.NewServer(":"+a.Cfg.Port, a.Router).Run(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Clients.Bus != nil {
		_ = a.Clients.Bus.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
