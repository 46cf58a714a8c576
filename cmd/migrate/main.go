// Command migrate applies or rolls back the Postgres schema migrations.
//
//	migrate -up
//	migrate -down
//	migrate -to 1
//	migrate -version
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"campus-events/internal/config"
	"campus-events/internal/database"
	"campus-events/internal/database/migrations"
	"campus-events/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	up := flag.Bool("up", false, "apply all pending migrations")
	down := flag.Bool("down", false, "roll back every migration")
	to := flag.Int("to", -1, "migrate up or down to the given version")
	version := flag.Bool("version", false, "print the applied schema version")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.NewLogger("campus-events-migrate", cfg.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if cfg.Database.Driver != database.DriverPostgres {
		log.Fatal("MIGRATE", fmt.Sprintf("migrations require DB_DRIVER=postgres, got %q", cfg.Database.Driver))
	}

	db, err := database.Open(context.Background(), cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}

	runner := migrations.NewRunner(db, migrations.MigrateOptions{MigrationsDir: cfg.Database.MigrationsDir}, log)
	// Closing the runner also closes db.
	defer runner.Close()

	switch {
	case *down:
		err = runner.MigrateDown()
	case *to >= 0:
		err = runner.MigrateTo(uint(*to))
	case *up:
		err = runner.RunMigrations()
	case *version:
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("MIGRATE", err.Error())
		runner.Close()
		os.Exit(1)
	}

	v, dirty, err := runner.Version()
	if err != nil {
		log.Error("MIGRATE", err.Error())
		return
	}
	log.Info("MIGRATE", fmt.Sprintf("Schema version %d (dirty=%t)", v, dirty))
}
