package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"aq-panel/internal/api/middleware"
	"aq-panel/internal/api/routes"
	"aq-panel/internal/config"
	"aq-panel/internal/ingest"
	"aq-panel/internal/logger"
	"aq-panel/internal/metrics"
	"aq-panel/internal/queue"
	"aq-panel/internal/services"
	"aq-panel/internal/store"
)

func main() {
	configPath := pflag.StringP("config", "c", "configs/config.yaml", "path to the config file")
	pflag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.SetupDefault(os.Stdout, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize store
	st, err := store.Open(ctx, cfg.Store, cfg.Log.Level == "debug")
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	log.Info("store opened", "type", cfg.Store.Type)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	authService := services.NewAuthService(cfg)
	users := services.NewUserService(st, authService)
	roles := services.NewRoleService(st)
	measurements := services.NewMeasurementService(st, cfg.Monitoring)
	measurements.SetRecorder(collector)

	seeded, err := roles.SeedDefaultRoles(ctx)
	if err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	log.Info("default roles ready", "created", seeded)

	// Create default user if the directory is empty
	created, err := users.EnsureDefaultUser(ctx, cfg.DefaultUser)
	if err != nil {
		log.Warn("failed to create default user", "error", err)
	} else if created {
		log.Info("default user created", "email", cfg.DefaultUser.Email)
	}

	if cfg.AMQP.Enabled {
		measurements.SetNotifier(queue.NewPublisher(cfg.AMQP))
		log.Info("measurement events enabled", "queue", cfg.AMQP.Queue)
	}

	if cfg.MQTT.Enabled {
		sub := ingest.NewSubscriber(cfg.MQTT, measurements, log)
		sub.SetRejectRecorder(collector)
		if err := sub.Start(ctx); err != nil {
			return fmt.Errorf("start mqtt subscriber: %w", err)
		}
		defer sub.Stop()
	}

	var limiter *middleware.RateLimiter
	if cfg.Security.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.Security.RateLimit.RequestsPerMinute, 5*time.Minute)
		defer limiter.Stop()
	}

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	err = routes.SetupRoutes(r, routes.Deps{
		Config:       cfg,
		Logger:       log,
		Auth:         authService,
		Users:        users,
		Roles:        roles,
		Sessions:     services.NewSessionService(st),
		Logs:         services.NewActivityLogService(st),
		Measurements: measurements,
		Export:       services.NewExportService(cfg.Monitoring.Timezone),
		Metrics:      collector,
		Gatherer:     reg,
		RateLimiter:  limiter,
	})
	if err != nil {
		return fmt.Errorf("setup routes: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting aq-panel server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
