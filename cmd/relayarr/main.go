package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/relayarr/relayarr/internal/api"
	"github.com/relayarr/relayarr/internal/arr"
	"github.com/relayarr/relayarr/internal/auth"
	"github.com/relayarr/relayarr/internal/config"
	"github.com/relayarr/relayarr/internal/database"
	"github.com/relayarr/relayarr/internal/dispatch"
	"github.com/relayarr/relayarr/internal/logger"
	"github.com/relayarr/relayarr/internal/notification"
	"github.com/relayarr/relayarr/internal/plexserver"
	"github.com/relayarr/relayarr/internal/progress"
	"github.com/relayarr/relayarr/internal/routing"
	"github.com/relayarr/relayarr/internal/scheduler"
	"github.com/relayarr/relayarr/internal/scheduler/tasks"
	"github.com/relayarr/relayarr/internal/startup"
	"github.com/relayarr/relayarr/internal/status"
	"github.com/relayarr/relayarr/internal/statussync"
	"github.com/relayarr/relayarr/internal/websocket"
)

func main() {
	// .env is optional; real deployments use environment or config file.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logBroadcaster := logger.NewLogBroadcaster(1000)
	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Path:   cfg.Logging.Path,
		Stream: logBroadcaster,
	})
	defer log.Close()

	log.Info().Str("version", api.Version).Str("logLevel", cfg.Logging.Level).
		Msg("starting relayarr")

	if dir := filepath.Dir(cfg.Database.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to create data directory")
		}
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	store := database.NewStore(db.Conn(), log.Logger)

	hub := websocket.NewHub()
	go hub.Run()
	logBroadcaster.SetHub(hub)

	progressManager := progress.NewManager(hub, log.Logger)

	radarr := arr.NewRadarrManager(store, cfg.Arr.Timeout, log.Logger)
	sonarr := arr.NewSonarrManager(store, cfg.Arr.Timeout, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	retryCfg := startup.DefaultRetryConfig()
	if err := startup.WithRetry(ctx, "radarr-init", retryCfg, func() error {
		return radarr.Initialize(ctx)
	}, &log.Logger); err != nil {
		log.Error().Err(err).Msg("radarr manager initialization failed, continuing degraded")
	}
	if err := startup.WithRetry(ctx, "sonarr-init", retryCfg, func() error {
		return sonarr.Initialize(ctx)
	}, &log.Logger); err != nil {
		log.Error().Err(err).Msg("sonarr manager initialization failed, continuing degraded")
	}

	router := routing.NewRouter(store, store, log.Logger)

	var plexChecker dispatch.PlexChecker
	if cfg.Plex.CheckExistence && cfg.Plex.Token != "" && len(cfg.Plex.Servers) > 0 {
		servers := make([]plexserver.Server, 0, len(cfg.Plex.Servers))
		for _, s := range cfg.Plex.Servers {
			servers = append(servers, plexserver.Server{
				Name:    s.Name,
				BaseURL: s.BaseURL,
				Shared:  s.Shared,
			})
		}
		plexChecker = plexserver.NewService(cfg.Plex.Token, servers, 15*time.Second, log.Logger)
	}

	var sender notification.Sender = notification.NopSender{}
	if cfg.Webhook.URL != "" {
		sender = notification.NewWebhook(notification.WebhookSettings{
			URL:      cfg.Webhook.URL,
			Method:   cfg.Webhook.Method,
			Username: cfg.Webhook.Username,
			Password: cfg.Webhook.Password,
		}, nil, log.Logger)
	}
	queue := notification.NewQueue(sender, store, log.Logger)
	queue.Start()
	defer queue.Stop()

	dispatcher := dispatch.NewService(router, radarr, sonarr, store, plexChecker, queue, log.Logger)

	engine := statussync.NewEngine(store, radarr, sonarr, log.Logger)
	statusService := status.NewService(engine, store, store, radarr, sonarr, progressManager, log.Logger)
	statusService.SetBatchSize(cfg.Sync.InstanceBatchSize)

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	if err := sched.RegisterTask(tasks.StatusSync(statusService, cfg.Sync.StatusInterval)); err != nil {
		log.Fatal().Err(err).Msg("failed to register status sync task")
	}
	if err := sched.RegisterTask(tasks.InstanceSync(statusService, cfg.Sync.InstanceInterval)); err != nil {
		log.Fatal().Err(err).Msg("failed to register instance sync task")
	}
	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Warn().Err(err).Msg("scheduler stop failed")
		}
	}()

	hub.SetSyncRequestHandler(func() {
		if err := sched.RunNow("status-sync"); err != nil {
			log.Warn().Err(err).Msg("websocket sync request failed")
		}
	})

	authService, err := auth.NewService(store, cfg.Auth.JWTSecret, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create auth service")
	}

	server := api.NewServer(cfg, api.Deps{
		Store:      store,
		Auth:       authService,
		Radarr:     radarr,
		Sonarr:     sonarr,
		Dispatcher: dispatcher,
		Status:     statusService,
		Scheduler:  sched,
		Hub:        hub,
		Logs:       logBroadcaster,
		LogFile:    filepath.Join(cfg.Logging.Path, "relayarr.log"),
	}, log.Logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	log.Info().Msg("relayarr stopped")
}
