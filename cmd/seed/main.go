package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"trainer-billing/internal/config"
	"trainer-billing/internal/domain/model"
	"trainer-billing/internal/domain/ports/repository"
	pg "trainer-billing/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	planRepo := pg.NewPlanRepo(pool)

	// If plans already exist, do nothing
	plans, err := planRepo.List(ctx, repository.NoTX)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	if len(plans) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(plans))
		for _, p := range plans {
			fmt.Printf("  - %s (days=%d, price=%d %s)\n", p.Name, p.IntervalDays, p.Price, p.Currency)
		}
		return
	}

	// Seed a few sample plans for testing the payment flow
	seed := []struct {
		Name  string
		Days  int
		Price int64
	}{
		{"Monthly", 30, 49_900},
		{"Quarterly", 90, 129_900},
		{"Annual", 365, 449_900},
	}

	for _, s := range seed {
		p, err := model.NewPlan(uuid.NewString(), s.Name, s.Days, s.Price, "BRL")
		if err != nil {
			log.Fatalf("new plan %q: %v", s.Name, err)
		}
		if err := planRepo.Save(ctx, repository.NoTX, p); err != nil {
			log.Fatalf("save plan %q: %v", s.Name, err)
		}
		fmt.Printf("seeded: %s (id=%s, days=%d, price=%d BRL cents)\n", p.Name, p.ID, p.IntervalDays, p.Price)
	}

	// Optional sandbox credential so the link flow works out of the box
	if token := os.Getenv("MP_SANDBOX_TOKEN"); token != "" {
		cred, err := model.NewGatewayCredential("mercadopago", token, os.Getenv("MP_SANDBOX_PUBLIC_KEY"), true)
		if err != nil {
			log.Fatalf("new credential: %v", err)
		}
		credRepo := pg.NewCredentialRepo(pool)
		if err := credRepo.Save(ctx, repository.NoTX, cred); err != nil {
			log.Fatalf("save credential: %v", err)
		}
		fmt.Println("seeded: sandbox mercadopago credential")
	}

	fmt.Println("Seeding complete.")
}
