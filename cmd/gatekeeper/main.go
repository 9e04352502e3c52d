package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/auth"
	"gatekeeper/internal/auth/auth_api"
	"gatekeeper/internal/config"
	"gatekeeper/internal/database"
	"gatekeeper/internal/database/migrations"
	"gatekeeper/internal/events"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/orders"
	"gatekeeper/internal/render"
	"gatekeeper/internal/stats"
	"gatekeeper/internal/stats/stats_api"
	ticket_db "gatekeeper/internal/tickets/db"
	tickets "gatekeeper/internal/tickets/service"
	"gatekeeper/internal/tickets/ticket_api"
	"gatekeeper/internal/users"
	"gatekeeper/internal/users/user_api"
)

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Gatekeeper initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB, err := database.Open(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("PostgreSQL connection failed: %v", err))
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, log, migrations.Options{
			MigrationsDir: "migrations",
			AutoMigrate:   true,
		})
		if err := runner.Run(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("REDIS", fmt.Sprintf("Redis unavailable, token verify cache disabled: %v", err))
			redisClient = nil
		} else {
			log.Info("REDIS", fmt.Sprintf("Connected to %s", cfg.Redis.Addr))
			defer redisClient.Close()
		}
	}

	var producer *events.Producer
	if cfg.Kafka.Enabled {
		producer = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.TicketIssued, cfg.Kafka.Topics.TicketScanned)
		defer producer.Close()
		log.Info("KAFKA", fmt.Sprintf("Producer initialized for brokers %v", cfg.Kafka.Brokers))
	}

	recorder := audit.NewRecorder(bunDB, log)
	renderer := render.NewRenderer(cfg.Renderer.Secret, cfg.Renderer.OutDir)

	authService := auth.NewAuthService(
		&auth.DB{Bun: bunDB, Log: log},
		auth.NewTokenCache(redisClient, log),
		recorder, log, cfg.JWT,
	)
	userService := users.NewUserService(&users.DB{Bun: bunDB, Log: log}, authService, recorder, log)

	ticketDB := &ticket_db.DB{Bun: bunDB, Log: log}
	ticketService := tickets.NewTicketService(ticketDB, recorder, producerOrNil(producer), log, cfg.Event)
	orderService := orders.NewOrderService(ticketDB, renderer, issuedPublisherOrNil(producer), recorder, log, cfg.Categories)
	statsService := stats.NewStatsService(stats.NewDB(bunDB, log), log, cfg.Categories)

	authHandler := auth_api.NewHandler(authService)
	userHandler := user_api.NewHandler(userService)
	ticketHandler := ticket_api.NewHandler(ticketService, orderService)
	statsHandler := stats_api.NewHandler(statsService)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		authHandler.RegisterPublic(r)

		r.Group(func(r chi.Router) {
			r.Use(authService.Middleware)

			authHandler.RegisterRoutes(r)
			r.Route("/users", userHandler.RegisterRoutes)
			r.Route("/tickets", ticketHandler.RegisterRoutes)
			r.Route("/stats", statsHandler.RegisterRoutes)
		})
	})
	log.Info("ROUTER", "API routes registered under /api")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepExpiredTokens(sweepCtx, authService, cfg.JWT.SweepInterval)
	go rerenderMissingArtifacts(sweepCtx, orderService, log)

	go func() {
		log.Info("HTTP", fmt.Sprintf("Gatekeeper listening on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Gatekeeper shutdown complete")
	}
}

// sweepExpiredTokens periodically drops expired and revoked refresh
// tokens so the table does not grow without bound.
func sweepExpiredTokens(ctx context.Context, svc *auth.AuthService, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = svc.CleanExpired(ctx)
		}
	}
}

// rerenderMissingArtifacts retries artifact rendering for tickets whose
// rendering failed at issuance time.
func rerenderMissingArtifacts(ctx context.Context, svc *orders.OrderService, log *logger.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := svc.RerenderMissing(ctx, 50); err != nil {
				log.Error("RENDER", fmt.Sprintf("artifact retry pass failed: %v", err))
			} else if n > 0 {
				log.Info("RENDER", fmt.Sprintf("rendered %d missing artifacts", n))
			}
		}
	}
}

// producerOrNil keeps the services' optional publisher fields truly nil
// when kafka is disabled, instead of a non-nil interface holding a nil
// pointer.
func producerOrNil(p *events.Producer) tickets.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}

func issuedPublisherOrNil(p *events.Producer) orders.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}
