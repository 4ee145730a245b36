package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"authgate.dev/internal/config"
	"authgate.dev/internal/migrate"
	"authgate.dev/internal/store/pg"
	"authgate.dev/internal/store/sqlite"
	"authgate.dev/internal/store/sqlstore"
)

func main() {
	log.SetFlags(0)
	var (
		dsn    = flag.String("dsn", os.Getenv("AUTHGATE_DB_DSN"), "Database DSN")
		driver = flag.String("driver", envOr("AUTHGATE_DB_DRIVER", config.DriverPostgres), "Database driver (postgres|sqlite)")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or AUTHGATE_DB_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [-driver postgres|sqlite] [up|down|seed|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		store *sqlstore.Store
		err   error
	)
	switch *driver {
	case config.DriverPostgres:
		store, err = pg.Open(*dsn)
	case config.DriverSQLite:
		store, err = sqlite.Open(*dsn)
	default:
		log.Fatalf("unsupported driver %q", *driver)
	}
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	mgr, err := migrate.NewManager(store.DB(), *driver)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
