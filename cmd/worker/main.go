// Worker consumes notification messages from Kafka and delivers them as email
// over SMTP. Set KAFKA_BROKERS, NOTIFY_KAFKA_TOPIC, KAFKA_GROUP_ID, and the
// EMAIL_* settings.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"tuitionpay/internal/config"
	"tuitionpay/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}

	topic := cfg.NotifyKafkaTopic
	if topic == "" {
		topic = "tuition-notifications"
	}
	groupID := cfg.KafkaGroupID
	if groupID == "" {
		groupID = "tuition-notify-worker"
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	mailer := notify.NewMailer(cfg.EmailHost, cfg.EmailPort, cfg.EmailUser, cfg.EmailPassword,
		cfg.EmailUseTLS, cfg.EmailEnabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	log.Printf("worker: consuming from %s (group %s)", topic, groupID)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("worker: stopped")
				return
			}
			log.Printf("worker: kafka read error: %v", err)
			continue
		}

		var m notify.Message
		if err := json.Unmarshal(msg.Value, &m); err != nil {
			log.Printf("worker: dropping malformed message: %v", err)
			continue
		}
		if err := mailer.Deliver(&m); err != nil {
			// Delivery is best-effort; the settlement's outcome is already final.
			log.Printf("worker: %v", err)
		}
	}
}
