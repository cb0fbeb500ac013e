package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ledgerly/backend/docs"
	"github.com/ledgerly/backend/internal/audit"
	"github.com/ledgerly/backend/internal/config"
	"github.com/ledgerly/backend/internal/database"
	"github.com/ledgerly/backend/internal/gateway"
	"github.com/ledgerly/backend/internal/handlers"
	"github.com/ledgerly/backend/internal/logger"
	"github.com/ledgerly/backend/internal/mailbox"
	mW "github.com/ledgerly/backend/internal/middleware"
	"github.com/ledgerly/backend/internal/services"
	"github.com/ledgerly/backend/internal/vault"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Ledgerly Backend API
// @version 1.0
// @description Mailbox transaction ingestion and subscription checkout
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	log := logger.New()

	if err := config.BindEnv(); err != nil {
		log.Warn().Err(err).Msg("Config file not found, using environment and defaults")
	}
	cfg := config.Load()
	syncCfg := config.LoadSyncConfig()

	docs.SwaggerInfo.Host = "localhost:" + cfg.Port

	ctx := context.Background()

	db, err := database.Open(ctx, database.GetConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	plans, err := config.LoadPlanCatalog(cfg.PlansURI)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.PlansURI).Msg("Failed to load plan catalog")
	}
	if err := database.SeedPlans(ctx, db, plans); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed plans")
	}
	log.Info().Int("plans", len(plans)).Msg("Plan catalog seeded")

	redisClient := database.InitRedis(ctx, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	secrets, err := vault.New(vault.Config{
		MasterKey: cfg.Vault.MasterKey,
		Salt:      []byte(cfg.Vault.Salt),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize vault")
	}

	auditLog := audit.NewLogger(log)
	locker := services.NewLocker(redisClient)
	mailClient := mailbox.NewGmailClient(cfg.Mailbox, log)
	payments := services.NewPaymentStore(db)
	snap := gateway.NewSnapClient(cfg.Gateway)

	ledger := services.NewLedgerService(db, log)
	credentialStore := services.NewCredentialStore(db, secrets)
	credentialService := services.NewCredentialService(credentialStore, mailClient, log)
	syncService := services.NewSyncService(
		credentialStore,
		mailClient,
		ledger,
		services.NewSyncLogStore(db),
		locker,
		auditLog,
		syncCfg,
		log,
	)
	checkoutService := services.NewCheckoutService(payments, snap, auditLog, cfg.Gateway, log)
	qrService := services.NewQRService(payments, redisClient, log)
	webhookService, err := services.NewWebhookService(payments, snap, locker, auditLog, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compile notification schema")
	}

	mailboxHandler := handlers.NewMailboxHandler(credentialService, syncService)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, qrService)
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	transactionHandler := handlers.NewTransactionHandler(ledger)
	auth := mW.NewAuth(cfg.JWT.SecretKey, redisClient)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mW.RequestLogger(log))
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if err := db.PingContext(r.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		// Authenticated by the notification signature
		r.Post("/webhook", webhookHandler.PaymentNotification)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Post("/mailbox/credentials", mailboxHandler.ConnectMailbox)
			r.Delete("/mailbox/credentials", mailboxHandler.DisconnectMailbox)

			r.Post("/sync", mailboxHandler.RunSync)
			r.Get("/sync/logs", mailboxHandler.SyncLogs)
			r.Get("/transactions/recent", transactionHandler.GetRecentTransactions)

			r.Post("/checkout", checkoutHandler.CreateCheckout)
			r.Get("/checkout/pending", checkoutHandler.PendingCheckout)
			r.Get("/checkout/{orderId}/qr", checkoutHandler.CheckoutQR)
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
