package main

import (
	"flag"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"github.com/marianozunino/ezyshare/internal/config"
	"github.com/marianozunino/ezyshare/internal/migration"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("CONFIG_PATH"), "Config file (defaults apply when empty)")
		action     = flag.String("action", "up", "Migration action: up, down, force, version")
		version    = flag.Int("version", 0, "Version to force to")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	conn, err := sqlx.Connect(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer conn.Close()

	m, err := migration.NewManagerWithDB(conn.DB, cfg.Database.Driver)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}

	switch *action {
	case "up":
		if err := m.Up(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")

	case "down":
		if err := m.Down(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migration rolled back successfully")

	case "force":
		if *version == 0 {
			log.Fatal("Version must be specified for force action")
		}
		if err := m.Force(*version); err != nil {
			log.Fatalf("Force migration failed: %v", err)
		}
		log.Printf("Database version forced to %d", *version)

	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("Failed to read version: %v", err)
		}
		log.Printf("Database version %d (dirty: %t)", v, dirty)

	default:
		log.Fatalf("Unknown action: %s", *action)
	}
}
