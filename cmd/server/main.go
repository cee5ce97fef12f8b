package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	accounthandler "trading-advisory/backend/internal/account/handler"
	accountrepo "trading-advisory/backend/internal/account/repository"
	accountservice "trading-advisory/backend/internal/account/service"
	"trading-advisory/backend/internal/agreement/esign"
	agreementhandler "trading-advisory/backend/internal/agreement/handler"
	agreementrepo "trading-advisory/backend/internal/agreement/repository"
	agreementservice "trading-advisory/backend/internal/agreement/service"
	"trading-advisory/backend/internal/audit"
	auditrepo "trading-advisory/backend/internal/audit/repository"
	"trading-advisory/backend/internal/authz"
	"trading-advisory/backend/internal/config"
	"trading-advisory/backend/internal/db"
	"trading-advisory/backend/internal/devotp"
	devotphandler "trading-advisory/backend/internal/devotp/handler"
	"trading-advisory/backend/internal/health"
	otprepo "trading-advisory/backend/internal/otp/repository"
	"trading-advisory/backend/internal/otp/sms"
	"trading-advisory/backend/internal/security"
	"trading-advisory/backend/internal/server"
	sessionrepo "trading-advisory/backend/internal/session/repository"
	"trading-advisory/backend/internal/storage"
	studyhandler "trading-advisory/backend/internal/study/handler"
	studyrepo "trading-advisory/backend/internal/study/repository"
	studyservice "trading-advisory/backend/internal/study/service"
	"trading-advisory/backend/internal/telemetry"
	"trading-advisory/backend/internal/telemetry/otel"
	"trading-advisory/backend/internal/telemetry/producer"
)

const serviceName = "advisory-server"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if cfg.JWTPrivateKey == "" || cfg.JWTPublicKey == "" {
		log.Fatal("JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required")
	}

	ctx := context.Background()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	// Workflow events go to Kafka when brokers are configured, otherwise to the
	// OTel log pipeline (a no-op without an OTLP endpoint).
	var emitter telemetry.EventEmitter
	if brokers := cfg.TelemetryKafkaBrokersList(); len(brokers) > 0 {
		kp, err := producer.NewKafkaProducer(brokers, cfg.TelemetryKafkaTopic)
		if err != nil {
			log.Fatalf("kafka producer: %v", err)
		}
		defer kp.Close()
		emitter = kp
		log.Printf("telemetry: emitting to kafka topic %s", cfg.TelemetryKafkaTopic)
	} else {
		emitter = otel.NewEventEmitter(providers.LoggerProvider)
	}

	var certs storage.CertificateStore
	if cfg.MinioEndpoint != "" {
		store, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("minio: %v", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			log.Fatalf("minio bucket: %v", err)
		}
		certs = store
	} else {
		log.Print("MINIO_ENDPOINT not set; certificate uploads disabled")
	}

	signer, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	hasher := security.NewHasher(cfg.BcryptCost)

	evaluator, err := authz.NewEvaluator()
	if err != nil {
		log.Fatalf("authz: %v", err)
	}

	accounts := accountrepo.NewPostgresRepository(database)
	otps := otprepo.NewPostgresRepository(database)
	sessions := sessionrepo.NewPostgresRepository(database)
	agreements := agreementrepo.NewPostgresRepository(database)
	studies := studyrepo.NewPostgresRepository(database)
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(database))

	var (
		smsSender accountservice.SMSSender
		devStore  devotp.Store
		devOTP    *devotphandler.Handler
	)
	if cfg.OTPReturnToClient {
		memStore := devotp.NewMemoryStore()
		devStore = memStore
		devOTP = devotphandler.NewHandler(memStore)
		log.Print("dev OTP mode: codes served from GET /dev/otp/:userId, no SMS sent")
	} else {
		smsSender = sms.NewSMSLocalClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender)
	}

	var provider esign.Provider = esign.DevProvider{}
	if cfg.ESignBaseURL != "" {
		provider = esign.NewHTTPProvider(cfg.ESignBaseURL, cfg.ESignAPIKey)
	} else {
		log.Print("ESIGN_BASE_URL not set; dev e-sign provider in use")
	}

	regSvc := accountservice.NewRegistrationService(accounts, otps, smsSender, devStore, hasher, emitter, cfg.OTPWindow())
	authSvc := accountservice.NewAuthService(accounts, sessions, hasher, tokens, emitter, cfg.AccessTTL())
	adminSvc := accountservice.NewAdminService(accounts, sessions, emitter)
	agreementSvc := agreementservice.NewService(accounts, agreements, provider, cfg.ESignCallbackURL, emitter)
	studySvc := studyservice.NewService(accounts, studies)

	router := server.NewRouter(server.Deps{
		Registration: accounthandler.NewRegistrationHandler(regSvc, certs),
		Auth:         accounthandler.NewAuthHandler(authSvc, accounts),
		Admin:        accounthandler.NewAdminHandler(adminSvc, certs),
		Agreements:   agreementhandler.NewHandler(agreementSvc),
		Studies:      studyhandler.NewHandler(studySvc),
		DevOTP:       devOTP,
		Health:       health.NewHandler(database, evaluator),
		Tokens:       tokens,
		Sessions:     sessions,
		Accounts:     accounts,
		Authz:        evaluator,
		Audit:        auditLogger,
		ServiceName:  serviceName,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	// Let in-flight async telemetry emits finish before the emitter closes.
	time.Sleep(telemetry.ShutdownDrainDuration)
	log.Println("HTTP server stopped")
}
