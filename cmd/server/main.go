package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tuitionpay/internal/audit"
	auditrepo "tuitionpay/internal/audit/repository"
	"tuitionpay/internal/auth"
	"tuitionpay/internal/config"
	"tuitionpay/internal/db"
	"tuitionpay/internal/lock"
	"tuitionpay/internal/notify"
	"tuitionpay/internal/otp"
	otprepo "tuitionpay/internal/otp/repository"
	payerrepo "tuitionpay/internal/payer/repository"
	"tuitionpay/internal/security"
	"tuitionpay/internal/server"
	"tuitionpay/internal/settlement"
	settlementhandler "tuitionpay/internal/settlement/handler"
	studenthandler "tuitionpay/internal/student/handler"
	studentrepo "tuitionpay/internal/student/repository"
	txrepo "tuitionpay/internal/transaction/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	var producer notify.Producer
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kp, err := notify.NewKafkaProducer(brokers, cfg.NotifyKafkaTopic)
		if err != nil {
			log.Fatalf("notify: %v", err)
		}
		producer = kp
		defer kp.Close()
		log.Printf("notifications enabled: topic %s", cfg.NotifyKafkaTopic)
	} else {
		log.Print("KAFKA_BROKERS not set; notifications disabled")
	}

	payers := payerrepo.NewPostgresRepository(conn)
	students := studentrepo.NewPostgresRepository(conn)
	transactions := txrepo.NewPostgresRepository(conn)
	challenges := otprepo.NewPostgresRepository(conn)
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn))

	hasher := security.NewHasher(cfg.BcryptCost)
	tokens := security.NewTokenProvider([]byte(cfg.JWTSecret), "tuitionpay", cfg.TokenTTL())
	authSvc := auth.NewService(payers, hasher, tokens)

	engine := settlement.NewService(
		transactions, payers, students,
		otp.NewLedger(challenges),
		lock.NewPostgresManager(conn), cfg.LockLease(),
		producer, auditLogger,
	)

	router := server.New(server.Deps{
		DB:         conn,
		Auth:       authSvc,
		Settlement: settlementhandler.New(engine, transactions),
		Students:   studenthandler.New(students),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
	// Give in-flight async notification dispatches time to reach Kafka.
	time.Sleep(notify.ShutdownDrainDuration)
	log.Println("HTTP server stopped")
}
