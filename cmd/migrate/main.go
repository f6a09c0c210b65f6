package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"planning-poker/internal/config"
	"planning-poker/internal/logging"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const migrationsDir = "db/migrations"

func main() {
	name := flag.String("name", "", "migration name for the create command")
	steps := flag.Int("steps", 1, "migrations to roll back for the down command")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [flags] up|down|create\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("failed to load .env", "error", err)
	}
	logging.Setup(os.Getenv("LOG_LEVEL"))

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}
	var err error
	switch command {
	case "up":
		err = runUp()
	case "down":
		err = runDown(*steps)
	case "create":
		err = runCreate(*name)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("migrate failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func newMigrator() (*migrate.Migrate, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	m, err := migrate.New("file://"+migrationsDir, dsn)
	if err != nil {
		return nil, fmt.Errorf("migration setup failed: %w", err)
	}
	return m, nil
}

func runUp() error {
	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("database migration failed: %w", err)
	}
	version, dirty, _ := m.Version()
	slog.Info("database migrations applied", "version", version, "dirty", dirty)
	return nil
}

func runDown(steps int) error {
	if steps <= 0 {
		return errors.New("steps must be positive")
	}
	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("database rollback failed: %w", err)
	}
	slog.Info("database migrations rolled back", "steps", steps)
	return nil
}

func runCreate(name string) error {
	if name == "" {
		return errors.New("migration name is required")
	}
	if strings.ContainsAny(name, " /") {
		return errors.New("migration name must not contain spaces or slashes")
	}
	version := time.Now().UTC().Format("20060102150405")
	base := fmt.Sprintf("%s_%s", version, name)
	upPath := filepath.Join(migrationsDir, base+".up.sql")
	downPath := filepath.Join(migrationsDir, base+".down.sql")

	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		return fmt.Errorf("create migrations dir: %w", err)
	}
	if err := writeNewFile(upPath, "-- up migration\n"); err != nil {
		return fmt.Errorf("create up migration: %w", err)
	}
	if err := writeNewFile(downPath, "-- down migration\n"); err != nil {
		return fmt.Errorf("create down migration: %w", err)
	}
	slog.Info("created migration", "up", upPath, "down", downPath)
	return nil
}

func writeNewFile(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
