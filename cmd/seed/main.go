package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/okian/spms/internal/adapters/http/auth"
	"github.com/okian/spms/internal/adapters/repository"
	"github.com/okian/spms/internal/config"
	"github.com/okian/spms/internal/domain/model"
	"github.com/okian/spms/internal/seed"
	"github.com/okian/spms/pkg/logger"
)

const (
	defaultSeedTimeout = 5 * time.Minute
	defaultTokenTTL    = 24 * time.Hour
)

func main() {
	defaults := seed.DefaultConfig()
	var (
		driver   = flag.String("driver", "", "Database driver: sqlite or pgx (default from config)")
		dbURL    = flag.String("db", "", "Database DSN or sqlite path (default from config)")
		students = flag.Int("students", defaults.Students, "Number of students, spread over grades 9-12")
		sessions = flag.Int("sessions", defaults.SessionsPerQ, "Event sessions per quarter")
		year     = flag.Int("year", defaults.Year, "Calendar year to split into quarters")
		seedVal  = flag.Int64("seed", 0, "Random seed (0 uses the clock)")
		tokenTTL = flag.Duration("token-ttl", defaultTokenTTL, "Lifetime of the printed bearer tokens")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultSeedTimeout)
	defer cancel()

	if err := run(ctx, *driver, *dbURL, *tokenTTL, seed.Config{
		Year:          *year,
		Students:      *students,
		SessionsPerQ:  *sessions,
		RandomSeed:    *seedVal,
		IncludeAdmins: true,
	}); err != nil {
		os.Stderr.WriteString("seed failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

type account struct {
	label string
	id    int64
	role  model.Role
}

func run(ctx context.Context, driver, dbURL string, ttl time.Duration, sc seed.Config) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if driver != "" {
		cfg.DatabaseDriver = driver
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	store, err := repository.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	report, err := seed.Run(ctx, store, sc)
	if err != nil {
		return err
	}

	fmt.Printf("quarters: %v\n", report.Quarters)
	fmt.Printf("students: %d  event times: %d  points: %d  (%s)\n",
		len(report.StudentIDs), report.EventTimes, report.Points, report.Duration.Round(time.Millisecond))

	tokens := []account{
		{"admin", report.AdminID, model.RoleAdmin},
		{"staff", report.StaffID, model.RoleStaff},
	}
	if len(report.StudentIDs) > 0 {
		tokens = append(tokens, account{"student", report.StudentIDs[0], model.RoleStudent})
	}
	for _, tk := range tokens {
		if tk.id == 0 {
			continue
		}
		token, err := auth.Issue(tk.id, tk.role, cfg.JWTIssuer, cfg.JWTSigningKey, ttl)
		if err != nil {
			return fmt.Errorf("issue %s token: %w", tk.label, err)
		}
		fmt.Printf("%s token (user %d): %s\n", tk.label, tk.id, token)
	}
	return nil
}

func showHelp() {
	os.Stdout.WriteString(`SPMS Seeder
===========

Populates a database with four quarters, school events, students and
attendance points, then prints bearer tokens for trying the API.

Usage:
  go run ./cmd/seed [options]

Options:
  -driver string     sqlite or pgx (default from SPMS_DATABASE_DRIVER)
  -db string         DSN or sqlite file (default from SPMS_DATABASE_URL)
  -students int      number of students (default 40)
  -sessions int      sessions per quarter (default 30)
  -year int          calendar year (default current year)
  -seed int          random seed, 0 uses the clock
  -token-ttl dur     lifetime of printed tokens (default 24h)
  -help              show this help message

Examples:
  go run ./cmd/seed -students 200 -seed 7
  SPMS_DATABASE_DRIVER=pgx SPMS_DATABASE_URL=postgres://localhost/spms go run ./cmd/seed
`)
}
