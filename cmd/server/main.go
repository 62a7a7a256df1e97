package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lekbanken/playserver/internal/billing"
	"github.com/lekbanken/playserver/internal/broadcast"
	"github.com/lekbanken/playserver/internal/config"
	"github.com/lekbanken/playserver/internal/dbconfig"
	"github.com/lekbanken/playserver/internal/decision"
	"github.com/lekbanken/playserver/internal/gateway"
	"github.com/lekbanken/playserver/internal/outbox"
	"github.com/lekbanken/playserver/internal/participant"
	"github.com/lekbanken/playserver/internal/presence"
	"github.com/lekbanken/playserver/internal/session"
	playsignal "github.com/lekbanken/playserver/internal/signal"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Database
	dbCfg := dbconfig.NewConfigFromEnv()
	db, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}

	log.Info().
		Str("database", dbCfg.Database).
		Str("nats_url", cfg.NATSURL).
		Str("port", cfg.Port).
		Msg("starting play server")

	// NATS connection shared by the outbox publisher and the fast path
	nc, err := nats.Connect(cfg.NATSURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer nc.Close()

	// Feature apps
	sessionApp := session.NewApp(db)
	participantApp := participant.NewApp(db, sessionApp)
	fastPath := broadcast.NewPublisher(nc, cfg.SubjectPrefix)
	decisionApp := decision.NewApp(decision.NewRepository(db), fastPath)
	signalApp := playsignal.NewApp(playsignal.NewRepository(db), fastPath)
	billingApp := billing.NewApp(billing.NewRepository(db))

	// HTTP services
	sessionService := session.NewService(sessionApp, participantApp)
	participantService := participant.NewService(participantApp, sessionApp)
	decisionService := decision.NewService(decisionApp, sessionApp, participantApp)
	signalService := playsignal.NewService(signalApp, participantApp, sessionApp)
	billingService := billing.NewService(billingApp, cfg.Billing.StripeWebhookSecret)

	// Websocket gateway bridging NATS subjects to connected clients
	connManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	wsHandler := gateway.NewWebSocketHandler(connManager)

	consumerCfg := gateway.DefaultConsumerConfig()
	consumerCfg.URL = cfg.NATSURL
	consumerCfg.SubjectPrefix = cfg.SubjectPrefix
	eventConsumer, err := gateway.NewEventConsumer(connManager, consumerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start event consumer")
	}
	defer eventConsumer.Close()

	// Outbox worker draining durable events into NATS
	outboxWorker := outbox.NewWorker(db,
		outbox.NewNATSPublisher(nc, cfg.SubjectPrefix),
		outbox.DefaultConfig())

	// Presence sweeper demoting silent participants
	sweeper := presence.NewSweeper(participant.NewRepository(db), db, clockwork.NewRealClock(), presence.Config{
		SweepInterval:   cfg.SweepInterval(),
		IdleAfter:       cfg.IdleAfter(),
		DisconnectAfter: cfg.DisconnectAfter(),
	})

	// Router
	r := chi.NewRouter()
	sessionService.RegisterRoutes(r)
	participantService.RegisterRoutes(r)
	decisionService.RegisterRoutes(r)
	signalService.RegisterRoutes(r)
	billingService.RegisterRoutes(r)

	r.Get("/ws/session", wsHandler.HandleSessionConnection)
	r.Get("/ws/stats", wsHandler.HandleConnectionStats)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "x-participant-token", "x-host-key"},
		AllowCredentials: true,
	}).Handler(r)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      corsHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go connManager.Start(ctx)
	go sweeper.Run(ctx)

	if err := outboxWorker.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start outbox worker")
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	if err := outboxWorker.Stop(); err != nil {
		log.Error().Err(err).Msg("outbox worker shutdown failed")
	}
	cancel()

	// Give services time to clean up
	time.Sleep(1 * time.Second)

	log.Info().Msg("play server shutdown complete")
}
