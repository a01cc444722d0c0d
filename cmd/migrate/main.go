package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"civicbudget/internal/database"
	"civicbudget/internal/logger"
)

const usage = "usage: migrate <up|down [N]|goto V|force V|version>"

type command func(m *migrate.Migrate, args []string, log *zap.SugaredLogger) error

var commands = map[string]command{
	"up": func(m *migrate.Migrate, _ []string, log *zap.SugaredLogger) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration up failed: %w", err)
		}
		log.Info("schema is up to date")
		return nil
	},
	"down": func(m *migrate.Migrate, args []string, log *zap.SugaredLogger) error {
		steps := 1
		if len(args) > 0 {
			n, err := positiveArg(args[0])
			if err != nil {
				return err
			}
			steps = n
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration down failed: %w", err)
		}
		log.Infow("rolled back", "steps", steps)
		return nil
	},
	"goto": func(m *migrate.Migrate, args []string, log *zap.SugaredLogger) error {
		if len(args) == 0 {
			return errors.New(usage)
		}
		version, err := positiveArg(args[0])
		if err != nil {
			return err
		}
		if err := m.Migrate(uint(version)); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate to %d failed: %w", version, err)
		}
		log.Infow("migrated", "version", version)
		return nil
	},
	"force": func(m *migrate.Migrate, args []string, log *zap.SugaredLogger) error {
		if len(args) == 0 {
			return errors.New(usage)
		}
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("force failed: %w", err)
		}
		log.Warnw("forced schema version; dirty flag cleared", "version", version)
		return nil
	},
	"version": func(m *migrate.Migrate, _ []string, log *zap.SugaredLogger) error {
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("no migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read version: %w", err)
		}
		log.Infow("schema version", "version", version, "dirty", dirty)
		return nil
	},
}

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(os.Args[1:]); err != nil {
		logger.Get().Fatalf("Migration error: %v", err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q; %s", args[0], usage)
	}

	cfg, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database config: %w", err)
	}
	if cfg.Driver != database.DriverPostgres {
		return fmt.Errorf("SQL migrations target postgres; %s databases are migrated from the models at startup", cfg.Driver)
	}

	m, err := migrate.New("file://migrations", cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	log := logger.Named("migrate")
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Warnw("source close error", "error", srcErr)
		}
		if dbErr != nil {
			log.Warnw("database close error", "error", dbErr)
		}
	}()

	return cmd(m, args[1:], log)
}

func positiveArg(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("expected a positive number, got %q", s)
	}
	return n, nil
}
