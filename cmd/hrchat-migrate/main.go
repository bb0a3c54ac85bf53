package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/hrchat/hrchat/internal/config"
	"github.com/hrchat/hrchat/internal/migrations"
	"github.com/hrchat/hrchat/internal/store/postgres"
	"github.com/hrchat/hrchat/internal/store/sqlstore"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up|down|status")
	steps := flag.Int("steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	seed := flag.Bool("seed", false, "insert the demo HR dataset into an empty store after migrating up")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.LoadFromEnv("hrchat-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Store.Driver != config.StoreDriverPostgres {
		fmt.Fprintf(os.Stderr, "migrations only apply to the postgres driver, HRCHAT_STORE_DRIVER=%s\n", cfg.Store.Driver)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := postgres.Open(ctx, postgres.ConfigFrom(cfg.Store))
	if err != nil {
		fmt.Fprintf(os.Stderr, "database open error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	runner := migrations.NewRunner()
	switch *direction {
	case "up":
		applied, err := runner.Up(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration up failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("applied %d migration(s)\n", applied)
		if *seed {
			inserted, err := sqlstore.New(db).Seed(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
				os.Exit(1)
			}
			if inserted {
				fmt.Println("inserted demo dataset")
			} else {
				fmt.Println("store already has employees, seed skipped")
			}
		}
	case "down":
		rolledBack, err := runner.Down(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration down failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("rolled back %d migration(s)\n", rolledBack)
	case "status":
		statuses, err := runner.Status(ctx, db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration status failed: %v\n", err)
			os.Exit(1)
		}
		for _, status := range statuses {
			state := "pending"
			if status.Applied {
				state = "applied"
			}
			fmt.Printf("%06d %-24s %s\n", status.Version, status.Name, state)
		}
	default:
		fmt.Fprintf(os.Stderr, "invalid direction: %s\n", *direction)
		os.Exit(1)
	}
}
