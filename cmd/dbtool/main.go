package main

import (
	"database/sql"
	"delivery-tracker/internal/adapters/repositories"
	"delivery-tracker/internal/platform/db"
	"flag"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found (using environment variables)")
	}

	driver := flag.String("driver", "sqlite", "database driver: sqlite or postgres")
	seedPath := flag.String("seed", getEnv("SEED_PATH", "data/seeds/deliveries.json"), "seed JSON path")
	flag.Parse()

	var (
		conn    *sql.DB
		dialect repositories.Dialect
		err     error
	)
	switch *driver {
	case "sqlite":
		dialect = repositories.SQLite
		conn, err = db.OpenSQLite(getEnv("DB_PATH", "data/app.db"))
	case "postgres":
		databaseURL := os.Getenv("DATABASE_URL")
		if strings.TrimSpace(databaseURL) == "" {
			fatal("DATABASE_URL is required")
		}
		dialect = repositories.Postgres
		conn, err = db.Open(databaseURL)
	default:
		fatal("unknown driver", "driver", *driver)
	}
	if err != nil {
		fatal("open database", "err", err)
	}
	defer conn.Close()

	if err := initAndSeed(conn, dialect, *seedPath); err != nil {
		fatal("dbtool failed", "err", err)
	}
}

func initAndSeed(conn *sql.DB, dialect repositories.Dialect, seedPath string) error {
	slog.Info("initializing database schema...")
	if err := repositories.InitSchema(conn); err != nil {
		return err
	}
	slog.Info("schema ready")

	slog.Info("seeding database...", "path", seedPath)
	if err := repositories.SeedFromJSON(conn, dialect, seedPath); err != nil {
		return err
	}
	slog.Info("seeding complete")

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
