package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/planwise/planwise/pkg/audit"
	"github.com/planwise/planwise/pkg/auth"
	"github.com/planwise/planwise/pkg/config"
	"github.com/planwise/planwise/pkg/httputil"
	"github.com/planwise/planwise/pkg/observability"
	"github.com/planwise/planwise/pkg/rbac"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(observability.ParseLogLevel(cfg.LogLevel), os.Stdout)
	metrics := observability.NewMetrics(nil)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logrus.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.PingContext(ctx); err != nil {
		logrus.Fatalf("Failed to ping database: %v", err)
	}

	var auditor audit.Logger = audit.NopLogger{}
	if cfg.Audit.Enabled {
		fileLogger, err := audit.NewFileLogger(cfg.Audit.Path)
		if err != nil {
			logrus.Fatalf("Failed to open audit log: %v", err)
		}
		defer fileLogger.Close()
		auditor = fileLogger
	}

	manager, err := rbac.NewManager(ctx, db, rbac.Config{
		CacheTTL:      cfg.Cache.TTL,
		CacheBackend:  rbac.CacheBackend(cfg.Cache.Backend),
		MemorySize:    cfg.Cache.MemorySize,
		RedisAddr:     cfg.Cache.RedisAddr,
		RedisPassword: cfg.Cache.RedisPassword,
	}, logger, metrics, auditor)
	if err != nil {
		logrus.Fatalf("Failed to initialize permission engine: %v", err)
	}

	if err := manager.Initialize(ctx); err != nil {
		logrus.Fatalf("Failed to migrate and seed: %v", err)
	}

	// The janitor only applies to the SQL snapshot backend; memory and
	// redis backends expire entries on their own.
	if sqlSnapshots := manager.SQLSnapshots(); sqlSnapshots != nil {
		janitor := rbac.NewJanitor(sqlSnapshots, cfg.Cache.TTL, cfg.Cache.SweepInterval, logger, metrics)
		if err := janitor.Start(); err != nil {
			logrus.Fatalf("Failed to start snapshot janitor: %v", err)
		}
		defer janitor.Stop()
	}

	router := mux.NewRouter()
	router.Use(auth.TrustedHeaderMiddleware)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
		httputil.WriteSuccess(w, map[string]string{"status": "ok"})
	})
	rbac.NewHandlers(manager, logger).Register(router)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.MetricsPort,
		Handler: metricsMux,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logrus.Infof("Permission API listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logrus.Infof("Metrics listening on %s", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		apiServer.Shutdown(shutdownCtx)
		metricsServer.Shutdown(shutdownCtx)
		return nil
	})

	if err := group.Wait(); err != nil {
		logrus.Fatalf("Server error: %v", err)
	}
	logrus.Info("Shutdown complete")
}
