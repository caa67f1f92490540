package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/example/spendwise/internal/config"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, version, force")
		steps   = flag.Int("steps", 0, "Number of migration steps (for up/down)")
		version = flag.Uint("version", 0, "Target version (for force command)")
		dir     = flag.String("dir", "./migrations", "Migrations directory")
	)
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	if cfg.DBAdapter != "postgres" {
		log.Fatalf("Migrations only work with PostgreSQL. Current adapter: %s", cfg.DBAdapter)
	}

	dsn, err := cfg.BuildPostgresDSN()
	if err != nil {
		log.Fatalf("PostgreSQL config error: %v", err)
	}

	switch *command {
	case "up", "down":
		up := *command == "up"
		err := withMigrator(*dir, dsn, func(m *migrate.Migrate) error {
			if *steps > 0 {
				n := *steps
				if !up {
					n = -n
				}
				if err := m.Steps(n); err != nil && err != migrate.ErrNoChange {
					return err
				}
				return nil
			}
			if up {
				if err := m.Up(); err != nil && err != migrate.ErrNoChange {
					return err
				}
				return nil
			}
			return m.Down()
		})
		if err != nil {
			log.Fatalf("Migration %s failed: %v", *command, err)
		}
		fmt.Printf("Migration %s complete\n", *command)
	case "version":
		err := withMigrator(*dir, dsn, func(m *migrate.Migrate) error {
			v, dirty, err := m.Version()
			if err == migrate.ErrNilVersion {
				fmt.Println("No migrations applied yet")
				return nil
			}
			if err != nil {
				return err
			}
			if dirty {
				fmt.Printf("Database is in a dirty state (version %d)\n", v)
				os.Exit(1)
			}
			fmt.Printf("Current migration version: %d\n", v)
			return nil
		})
		if err != nil {
			log.Fatalf("Failed to get version: %v", err)
		}
	case "force":
		if *version == 0 {
			log.Fatal("Version required for force command (use -version flag)")
		}
		err := withMigrator(*dir, dsn, func(m *migrate.Migrate) error {
			return m.Force(int(*version))
		})
		if err != nil {
			log.Fatalf("Force migration failed: %v", err)
		}
		fmt.Printf("Forced database to version %d\n", *version)
	default:
		log.Fatalf("Unknown command: %s (supported: up, down, version, force)", *command)
	}
}

func withMigrator(migrationsDir, dsn string, fn func(*migrate.Migrate) error) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("opening database connection: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("creating migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsDir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	return fn(m)
}
