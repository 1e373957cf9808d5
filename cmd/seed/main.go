// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev payer (username "nva") already exists.
package main

import (
	"context"
	"log"
	"time"

	"tuitionpay/internal/config"
	"tuitionpay/internal/db"
	payerdomain "tuitionpay/internal/payer/domain"
	payerrepo "tuitionpay/internal/payer/repository"
	"tuitionpay/internal/security"
	studentdomain "tuitionpay/internal/student/domain"
	studentrepo "tuitionpay/internal/student/repository"

	"github.com/google/uuid"
)

const (
	devPayerUsername = "nva"
	devPayerPassword = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	payers := payerrepo.NewPostgresRepository(conn)
	students := studentrepo.NewPostgresRepository(conn)

	existing, err := payers.GetByUsername(ctx, devPayerUsername)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if existing != nil {
		log.Println("seed: dev payer already exists, nothing to do")
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash([]byte(devPayerPassword))
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	now := time.Now().UTC()
	devPayers := []payerdomain.Payer{
		{
			ID: uuid.New().String(), Username: devPayerUsername, Email: "nva@example.com",
			FullName: "Nguyen Van A", Phone: "0901234567", PasswordHash: hash,
			Balance: 50_000_000, CreatedAt: now,
		},
		{
			ID: uuid.New().String(), Username: "ttb", Email: "ttb@example.com",
			FullName: "Tran Thi B", Phone: "0907654321", PasswordHash: hash,
			Balance: 10_000_000, CreatedAt: now,
		},
	}
	for i := range devPayers {
		if err := payers.Create(ctx, &devPayers[i]); err != nil {
			log.Fatalf("seed payer %s: %v", devPayers[i].Username, err)
		}
	}

	devStudents := []studentdomain.Student{
		{StudentID: "52300001", FullName: "Le Van C", TuitionAmount: 15_000_000, CreatedAt: now},
		{StudentID: "52300002", FullName: "Pham Thi D", TuitionAmount: 18_500_000, CreatedAt: now},
		{StudentID: "52300003", FullName: "Hoang Van E", TuitionAmount: 12_000_000, CreatedAt: now},
	}
	for i := range devStudents {
		if err := students.Create(ctx, &devStudents[i]); err != nil {
			log.Fatalf("seed student %s: %v", devStudents[i].StudentID, err)
		}
	}

	log.Printf("seed: created %d payers and %d students (password %q)",
		len(devPayers), len(devStudents), devPayerPassword)
}
