// migrate applies the embedded database schema; run with
// DATABASE_URL set, e.g. go run ./cmd/migrate -direction up.
package main

import (
	"flag"
	"fmt"
	"os"

	"finlink/internal/config"
	"finlink/internal/repository"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.GetDatabaseURL() == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set")
		os.Exit(1)
	}

	if err := repository.RunMigrations(cfg.GetDatabaseURL(), *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
