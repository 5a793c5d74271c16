package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"eastask-go/internal/config"
	"eastask-go/internal/db"
	activitydomain "eastask-go/internal/domain/activity"
	invitationdomain "eastask-go/internal/domain/invitation"
	presencedomain "eastask-go/internal/domain/presence"
	statedomain "eastask-go/internal/domain/state"
	tasksdomain "eastask-go/internal/domain/tasks"
	userdomain "eastask-go/internal/domain/user"
	workspacedomain "eastask-go/internal/domain/workspace"
	"eastask-go/internal/metrics"
	"eastask-go/internal/repository/inmemory"
	activityrepo "eastask-go/internal/repository/postgres/activity"
	invitationrepo "eastask-go/internal/repository/postgres/invitation"
	tasksrepo "eastask-go/internal/repository/postgres/tasks"
	userrepo "eastask-go/internal/repository/postgres/user"
	workspacerepo "eastask-go/internal/repository/postgres/workspace"
	"eastask-go/internal/repository/redisstore"
	"eastask-go/internal/transport/httpserver"
	"eastask-go/internal/transport/httpserver/handler"
	"eastask-go/pkg/logger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type App struct {
	cfg        config.Config
	httpServer *http.Server
	db         *gorm.DB
	redis      *redis.Client
	log        logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(log logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}

	log.Info("app: loading config")
	cfg, err := config.Load(log)
	if err != nil {
		return nil, err
	}

	log.Info("app: initializing database")
	dbConn, err := db.NewPostgres(cfg.DB, log)
	if err != nil {
		return nil, err
	}
	if cfg.DB.AutoMigrate {
		if err := db.Migrate(dbConn, log); err != nil {
			closeDB(dbConn)
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	log.Info("app: initializing redis")
	redisClient, err := db.NewRedis(ctx, cfg.Redis, log)
	if err != nil {
		cancel()
		closeDB(dbConn)
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	users := userdomain.NewService(userrepo.NewPostgres(dbConn))

	var publisher activitydomain.Publisher
	if redisClient != nil {
		publisher = redisstore.NewActivityPublisher(redisClient, cfg.Redis.ActivityMaxLen, log)
	}
	activity := activitydomain.NewService(activityrepo.NewPostgres(dbConn), publisher, log)
	if redisClient != nil {
		activity.UseSubscriber(redisstore.NewActivitySubscriber(redisClient, cfg.Redis.StreamBlockTime, log))
	}

	workspaceOpts := workspacedomain.Options{
		Cache:    inmemory.NewWorkspaceCache(),
		CacheTTL: cfg.Workspaces.CacheTTL,
		Activity: activity,
	}
	if m != nil {
		workspaceOpts.Observer = m
	}
	workspaces := workspacedomain.NewService(workspacerepo.NewPostgres(dbConn), log, workspaceOpts)

	invitationOpts := invitationdomain.Options{
		TTL:      cfg.Invitations.TTL,
		Activity: activity,
	}
	if m != nil {
		invitationOpts.Observer = m
	}
	invitations := invitationdomain.NewService(invitationrepo.NewPostgres(dbConn), workspaces, log, invitationOpts)

	var presenceStore presencedomain.Store = inmemory.NewPresenceStore()
	if redisClient != nil {
		presenceStore = redisstore.NewPresenceStore(redisClient, log)
	}
	presenceOpts := presencedomain.Options{
		Window:     cfg.Presence.Throttle,
		StaleAfter: cfg.Presence.StaleAfter,
	}
	if m != nil {
		presenceOpts.Observer = m
	}
	presence := presencedomain.NewService(presenceStore, workspaces, log, presenceOpts)
	workspaces.UsePresence(presence)

	tasks := tasksdomain.NewService(tasksrepo.NewPostgres(dbConn), workspaces, activity, log)
	state := statedomain.NewService(workspaces, invitations, presence, users, log)

	log.Info("app: initializing router")
	handlers := handler.New(handler.Services{
		Workspaces:  workspaces,
		Invitations: invitations,
		Presence:    presence,
		Activity:    activity,
		Tasks:       tasks,
		State:       state,
	}, log)
	router := httpserver.NewRouter(cfg, handlers, users, m, log)

	log.Info("app: initializing http server")
	srv := httpserver.New(cfg, router)
	srv.RegisterOnShutdown(handlers.CloseStreams)

	application := &App{
		cfg:        cfg,
		httpServer: srv,
		db:         dbConn,
		redis:      redisClient,
		log:        log,
		cancel:     cancel,
	}

	application.wg.Add(1)
	go func() {
		defer application.wg.Done()
		invitations.RunSweeper(ctx, cfg.Invitations.SweepInterval)
	}()

	return application, nil
}

func (a *App) HTTPServer() *http.Server {
	return a.httpServer
}

// Shutdown drains HTTP traffic within the configured timeout. Open activity
// streams are closed as soon as it starts.
func (a *App) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.ShutdownTimeout)
	defer cancel()

	a.log.Info("http: shutting down", "timeout", a.cfg.ShutdownTimeout)
	if err := a.httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close stops background workers before releasing connections.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.db != nil {
		sqlDB, err := a.db.DB()
		if err != nil {
			errs = append(errs, err)
		} else if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	return errors.Join(errs...)
}

func closeDB(conn *gorm.DB) {
	if sqlDB, err := conn.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
