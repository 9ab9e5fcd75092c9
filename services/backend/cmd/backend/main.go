package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/storefront/internal/asset"
	"github.com/Skotchmaster/storefront/internal/metrics"
	pkgcfg "github.com/Skotchmaster/storefront/pkg/config"
	pkgdb "github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/logging"
	loggingmw "github.com/Skotchmaster/storefront/pkg/middleware/logging"

	backendcfg "github.com/Skotchmaster/storefront/services/backend/internal/config"
	"github.com/Skotchmaster/storefront/services/backend/internal/events"
	"github.com/Skotchmaster/storefront/services/backend/internal/httpserver"
	"github.com/Skotchmaster/storefront/services/backend/internal/repo"
	"github.com/Skotchmaster/storefront/services/backend/internal/search"
	"github.com/Skotchmaster/storefront/services/backend/internal/service"
)

func main() {
	pkgcfg.LoadDotEnv("services/backend/.env")

	cfg, err := backendcfg.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		cancel()
		log.Fatalf("db open: %v", err)
	}
	store := &repo.GormRepo{DB: db}
	if err := store.Migrate(ctx); err != nil {
		cancel()
		log.Fatalf("db migrate: %v", err)
	}

	disk, err := asset.OpenDisk(ctx, asset.DiskConfig{
		Driver:     cfg.StorageDisk,
		LocalRoot:  cfg.StorageLocalRoot,
		BaseURL:    cfg.StorageURL,
		S3Bucket:   cfg.S3Bucket,
		S3Region:   cfg.S3Region,
		S3Key:      cfg.S3Key,
		S3Secret:   cfg.S3Secret,
		S3Endpoint: cfg.S3Endpoint,
	})
	if err != nil {
		cancel()
		log.Fatalf("storage: %v", err)
	}

	var index search.Index = search.SQL{Store: store}
	if cfg.ESURL != "" {
		es, err := search.NewElastic(search.ElasticConfig{
			URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword, Index: cfg.ESIndex,
		}, store, logger)
		if err != nil {
			log.Fatalf("elasticsearch: %v", err)
		}
		if err := es.Ping(ctx); err != nil {
			logger.Warn("elasticsearch_unavailable", "url", cfg.ESURL, "error", err)
		}
		index = es
	}
	cancel()

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers)
	}

	reg := metrics.NewRegistry()
	e := newEcho(logger)
	httpserver.Register(e, &httpserver.Deps{
		Catalog:   &service.CatalogService{Repo: store, Events: publisher, Search: index},
		Cart:      &service.CartService{Repo: store, Events: publisher},
		Orders:    &service.OrderService{Repo: store, Events: publisher},
		Identity:  &service.IdentityService{Repo: store, Events: publisher, JWTSecret: cfg.JWTSecret, AccessTTL: cfg.AccessTTL},
		Disk:      disk,
		JWTSecret: cfg.JWTSecret,
		Metrics:   metrics.NewHTTP(reg),
		Ready: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		logger.Info("backend_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	if err := publisher.Close(); err != nil {
		logger.Warn("publisher_close_error", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("backend_stopped")
}

func newEcho(logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	for _, m := range httpserver.Common() {
		e.Use(m)
	}
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORS())
	return e
}
