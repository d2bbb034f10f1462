package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hazolab/sms-gateway-go/internal/config"
	"github.com/hazolab/sms-gateway-go/internal/database"
	"github.com/hazolab/sms-gateway-go/internal/device"
	"github.com/hazolab/sms-gateway-go/internal/handler"
	"github.com/hazolab/sms-gateway-go/internal/jobs"
	"github.com/hazolab/sms-gateway-go/internal/middleware"
	"github.com/hazolab/sms-gateway-go/internal/modem"
	"github.com/hazolab/sms-gateway-go/internal/notify"
	"github.com/hazolab/sms-gateway-go/internal/otp"
	redisclient "github.com/hazolab/sms-gateway-go/internal/redis"
	"github.com/hazolab/sms-gateway-go/internal/repository"
	"github.com/hazolab/sms-gateway-go/internal/ussd"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("ENVIRONMENT") == "production"
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	var txRepo repository.TransactionRepository
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		if err := db.Ping(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("Failed to ping database")
		}
		log.Info().Msg("Database connected")

		txRepo = repository.NewTransactionRepository(db.DB)
	} else {
		log.Warn().Msg("No DATABASE_URL set, transactions will only be logged")
		txRepo = repository.NewLogOnlyTransactionRepository()
	}

	var redisClient *redisclient.Client
	if cfg.RedisURL != "" {
		redisClient, err = redisclient.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("Redis connected")
	}

	hub := notify.NewHub(redisClient)
	defer hub.Close()

	dev := device.NewSerialModem(cfg.ModemDevice, cfg.ModemBaud, config.InboundQueueSize)
	mgr := modem.NewManager(dev, modem.Options{
		DevicePath:      cfg.ModemDevice,
		PIN:             cfg.ModemPIN,
		NetworkWait:     cfg.NetworkWait(),
		NetworkPoll:     config.NetworkPollInterval,
		ConnectAttempts: config.ConnectAttempts,
		ConnectPause:    config.ConnectRetryPause,
		SendAttempts:    cfg.SMSRetryAttempts,
		SendPause:       cfg.SMSRetryPause(),
	})
	defer mgr.Disconnect()

	if err := mgr.ConnectWithRetry(context.Background()); err != nil {
		// Keep-alive keeps retrying; the HTTP surface stays up so
		// status and auth endpoints remain reachable.
		log.Error().Err(err).Msg("Initial modem connection failed")
	}

	engine := ussd.NewEngine(mgr, cfg.UssdIdleWindow())
	engine.OnUpdate(func(s ussd.Session) {
		hub.Publish(context.Background(), notify.NewEvent(notify.EventSessionUpdate, s))
	})

	signer := otp.NewTokenSigner(cfg.TokenSecret, cfg.TokenValidity())
	codeStore := otp.NewStore(mgr, signer, cfg.OTPTTL())

	authMiddleware := middleware.NewAuthMiddleware(signer)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	modemHandler := handler.NewModemHandler(mgr, hub, cfg.DefaultUssdCode)
	ussdHandler := handler.NewUssdHandler(engine)
	authHandler := handler.NewAuthHandler(codeStore)
	txHandler := handler.NewTransactionHandler(txRepo)
	wsHandler := handler.NewWSHandler(hub)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"modem":     mgr.State(),
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Get("/modem/status", modemHandler.Status)
	r.Post("/send-sms", modemHandler.SendSMS)
	r.Post("/check-balance", modemHandler.CheckBalance)

	r.Route("/ussd", func(r chi.Router) {
		r.Mount("/", ussdHandler.Routes())
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(rateLimitMiddleware.Handler)
		r.Post("/send-code", authHandler.SendCode)
		r.Post("/verify-code", authHandler.VerifyCode)
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Get("/protected-resource", authHandler.ProtectedResource)
		r.Get("/transactions", txHandler.List)
		r.Get("/ws", wsHandler.ServeHTTP)
	})

	keepAliveJob := jobs.NewKeepAliveJob(mgr, txRepo, hub, cfg.KeepAliveInterval())
	keepAliveJob.Start()
	defer keepAliveJob.Stop()

	cleanupJob := jobs.NewCleanupJob(codeStore, engine, txRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
