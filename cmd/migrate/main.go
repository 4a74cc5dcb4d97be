package main

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/shared/config"
	"github.com/MuhamadAgungGumelar/kit-credits-be/internal/shared/utils"
)

// Applies the Postgres schema. The sqlite store migrates itself on open.
//
//	migrate -cmd up           apply everything pending
//	migrate -cmd up 1         apply one step
//	migrate -cmd down 1       roll back one step
//	migrate -cmd version
//	migrate -cmd force 1      mark version 1 clean after a failed run
func main() {
	var module, dir, name string
	flag.StringVar(&module, "module", "credits", "Migration set under migrations/")
	flag.StringVar(&dir, "path", "", "Migration directory, overrides -module")
	flag.StringVar(&name, "cmd", "up", "up [n], down [n], version or force <version>")
	flag.Parse()

	cfg := config.LoadConfig()
	utils.InitLogger(cfg.Env)

	if dir == "" {
		dir = filepath.Join("migrations", module)
	}
	cmd, err := parseCommand(name, flag.Args())
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Invalid migration command")
	}
	if err := run(cfg.DatabaseURL, dir, cmd); err != nil {
		log.Fatal().Err(err).Str("cmd", cmd.String()).Msg("❌ Migration failed")
	}
}

func run(databaseURL, dir string, cmd command) error {
	if databaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	log.Info().Str("path", dir).Str("database", maskDatabaseURL(databaseURL)).Str("cmd", cmd.String()).
		Msg("🔄 Running migrations")

	m, err := migrate.New("file://"+filepath.ToSlash(dir), databaseURL)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("⚠️ Failed to close migrator")
		}
	}()
	return apply(m, cmd)
}

// migrator is the part of *migrate.Migrate the commands drive
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Version() (version uint, dirty bool, err error)
}

type command struct {
	name string
	n    int
}

func (c command) String() string {
	if c.n == 0 {
		return c.name
	}
	return c.name + " " + strconv.Itoa(c.n)
}

func parseCommand(name string, args []string) (command, error) {
	cmd := command{name: name}
	switch name {
	case "up", "down":
		if len(args) == 0 {
			return cmd, nil
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return cmd, fmt.Errorf("%s: step count must be a positive integer, got %q", name, args[0])
		}
		cmd.n = n
	case "force":
		if len(args) == 0 {
			return cmd, errors.New("force: version is required")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < -1 {
			return cmd, fmt.Errorf("force: invalid version %q", args[0])
		}
		cmd.n = n
	case "version":
	default:
		return cmd, fmt.Errorf("unknown command %q (use up, down, version or force)", name)
	}
	return cmd, nil
}

func apply(m migrator, cmd command) error {
	var err error
	switch cmd.name {
	case "up":
		if cmd.n > 0 {
			err = m.Steps(cmd.n)
		} else {
			err = m.Up()
		}
	case "down":
		if cmd.n > 0 {
			err = m.Steps(-cmd.n)
		} else {
			err = m.Down()
		}
	case "force":
		err = m.Force(cmd.n)
	case "version":
	default:
		return fmt.Errorf("unknown command %q", cmd.name)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Str("cmd", cmd.String()).Msg("✅ Nothing to migrate")
		err = nil
	}
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Info().Msg("📌 No migrations applied")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("📌 Schema version")
	return nil
}

func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
