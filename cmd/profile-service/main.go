package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/regdocs/regdocs-backend/internal/docprocessing/consumers"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/handler"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/metrics"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/processor"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/repository"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/service"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/storage"
	"github.com/regdocs/regdocs-backend/pkg/config"
	"github.com/regdocs/regdocs-backend/pkg/database"
	"github.com/regdocs/regdocs-backend/pkg/httputil"
	"github.com/regdocs/regdocs-backend/pkg/i18n"
	"github.com/regdocs/regdocs-backend/pkg/logger"
	"github.com/regdocs/regdocs-backend/pkg/messaging"
)

const serviceName = "profile-service"

func main() {
	// Load configuration
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Profile Service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []service.Option{
		service.WithInterCallDelay(cfg.Extraction.InterCallDelay),
		service.WithQueueSize(cfg.Extraction.QueueSize),
		service.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
	}

	// Database is optional: without it results live only in memory
	var db *database.DB
	var audit handler.AuditLister
	if cfg.Database.Enabled {
		db, err = database.New(&cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		if cfg.Database.AutoMigrate {
			if err := db.Migrate(ctx, repository.Migrations()); err != nil {
				log.Fatal().Err(err).Msg("failed to run migrations")
			}
		}

		auditRepo := repository.NewAuditRepository(db)
		audit = auditRepo
		opts = append(opts,
			service.WithResultStore(repository.NewResultRepository(db)),
			service.WithAuditLog(auditRepo),
		)
	}

	// RabbitMQ is optional: without it no events are published or consumed
	var rmq *messaging.RabbitMQ
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		if err := rmq.DeclareDeadLetterQueue(serviceName); err != nil {
			log.Fatal().Err(err).Msg("failed to declare dead letter queue")
		}

		publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeProfileEvents, serviceName, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		opts = append(opts, service.WithPublisher(publisher))
	}

	// Initialize processors, most specific first
	registry := processor.NewRegistry(
		processor.NewVLMProcessor(cfg.Vision.URL, cfg.Vision.Timeout),
		processor.NewRawProcessor(),
	)

	store := storage.NewPackageStore(cfg.Extraction.PackageTTL)
	defer store.Close()

	svc := service.NewService(registry, store, log, opts...)
	h := handler.NewHandler(svc, audit, cfg.Server.MaxUploadSize, log)

	// Create router
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Accept-Language"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(i18n.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":  "healthy",
			"service": serviceName,
		}
		if db != nil {
			status["database"] = db.Health(r.Context())
		}
		if rmq != nil {
			status["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, status)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httputil.Authenticator(cfg.JWT.Secret, cfg.JWT.Issuer, log))
		h.Routes(r)
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return svc.Run(gctx)
	})

	if rmq != nil {
		consumer, err := consumers.NewExtractionConsumer(rmq, cfg.RabbitMQ.Queue, svc, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create extraction consumer")
		}
		g.Go(func() error {
			for {
				err := consumer.Start(gctx)
				if err == nil || gctx.Err() != nil {
					return nil
				}
				log.Warn().Err(err).Msg("extraction consumer stopped, reconnecting")
				if err := rmq.Reconnect(gctx); err != nil {
					return fmt.Errorf("rabbitmq reconnect: %w", err)
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("service stopped with error")
	}

	log.Info().Msg("server stopped")
}
