package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/consulardesk/scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	orgIDs, err := seedOrganizations(context.Background(), pool, 40)
	if err != nil {
		log.Fatalf("seed organizations: %v", err)
	}
	if err := seedRequests(context.Background(), pool, orgIDs, 5000); err != nil {
		log.Fatalf("seed requests: %v", err)
	}

	log.Println("seed complete")
}

func seedOrganizations(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d organizations", count)

	timezones := []string{
		"Europe/Lisbon",
		"Europe/Paris",
		"Europe/Berlin",
		"Europe/London",
		"America/New_York",
		"America/Sao_Paulo",
		"Africa/Luanda",
		"Asia/Macau",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Consulate General in " + gofakeit.City()
		tz := timezones[gofakeit.Number(0, len(timezones)-1)]
		slot := []int{15, 20, 30}[gofakeit.Number(0, 2)]

		_, err := tx.Exec(ctx, `
			INSERT INTO organizations (id, name, timezone, open_minute, close_minute, slot_minutes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		`, id, name, tz, 9*60, 17*60, slot)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("organizations seeded")
	return ids, nil
}

func seedRequests(ctx context.Context, pool *pgxpool.Pool, orgIDs []uuid.UUID, count int) error {
	log.Printf("seeding %d service requests", count)

	requestTypes := []string{
		"passport_renewal",
		"passport_first_issue",
		"citizen_card",
		"visa_application",
		"birth_registration",
		"marriage_registration",
		"document_legalization",
		"power_of_attorney",
	}
	statuses := []string{"draft", "submitted", "under_review", "appointment_scheduled"}

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			reqType := requestTypes[gofakeit.Number(0, len(requestTypes)-1)]
			status := statuses[gofakeit.Number(0, len(statuses)-1)]
			created := gofakeit.DateRange(time.Now().AddDate(0, -3, 0), time.Now())

			_, err := tx.Exec(ctx, `
				INSERT INTO service_requests (id, request_type, status, profile_id, service_id, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $6)
			`, id, reqType, status, uuid.New(), orgIDs[gofakeit.Number(0, len(orgIDs)-1)], created)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("requests seeded: %d/%d", end, count)
	}

	log.Println("service requests seeded")
	return nil
}
