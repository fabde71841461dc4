package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	"github.com/orgball2608/xhs-likes-manager/internal/migrations"
	"github.com/orgball2608/xhs-likes-manager/pkg/config"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

const usage = "Usage: migrate [-c config.yaml] [up|down|status|reset|create <name>]"

func main() {
	configPath := flag.String("c", "", "config file")
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		log.Fatal(usage)
	}

	command := args[0]

	// The create command writes a new file into the source tree
	if command == "create" {
		if len(args) < 2 {
			log.Fatal("Usage: migrate create <name>")
		}
		createMigration(args[1])
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, dialect, err := open(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migrations.Setup(dialect); err != nil {
		log.Fatalf("Failed to set dialect: %v", err)
	}
	fmt.Printf("Running embedded migrations against %s\n", cfg.Storage.Driver)

	switch command {
	case "up":
		if err := goose.Up(db, migrations.Dir); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		fmt.Println("Migrations applied successfully")
	case "down":
		if err := goose.Down(db, migrations.Dir); err != nil {
			log.Fatalf("Failed to rollback migration: %v", err)
		}
		fmt.Println("Migration rollback successful")
	case "status":
		if err := goose.Status(db, migrations.Dir); err != nil {
			log.Fatalf("Failed to get migration status: %v", err)
		}
	case "reset":
		if err := goose.Reset(db, migrations.Dir); err != nil {
			log.Fatalf("Failed to reset migrations: %v", err)
		}
		fmt.Println("All migrations have been rolled back")
	default:
		log.Fatalf("Unknown command: %s\n%s", command, usage)
	}
}

// open connects with database/sql drivers; goose cannot drive a pgx pool.
func open(cfg *config.Config) (*sql.DB, string, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := sql.Open("postgres", cfg.Storage.DSN)
		return db, migrations.DialectPostgres, err
	case config.DriverSQLite:
		db, err := sql.Open("sqlite", cfg.StoragePath())
		return db, migrations.DialectSQLite, err
	}
	return nil, "", fmt.Errorf("storage driver %q has no migrations", cfg.Storage.Driver)
}

func createMigration(name string) {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("Failed to get working directory: %v", err)
	}

	migrationsDir := filepath.Join(wd, "internal", "migrations", migrations.Dir)
	fmt.Printf("Creating migration in: %s\n", migrationsDir)

	if err := goose.Create(nil, migrationsDir, name, "sql"); err != nil {
		log.Fatalf("Failed to create migration: %v", err)
	}
}
