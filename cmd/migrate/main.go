package main

import (
	"context"
	"fmt"
	"os"

	"github.com/calebmch/orderhub/internal/dbconfig"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// Applies migrations/schema.sql. All statements are idempotent
// (IF NOT EXISTS), so reruns are safe.
func main() {
	_ = godotenv.Load()

	path := "migrations/schema.sql"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read schema: %v\n", err)
		os.Exit(1)
	}

	cfg, err := dbconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load database config: %v\n", err)
		os.Exit(1)
	}
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Argument-free Exec goes over the simple protocol, which runs the
	// whole file as one multi-statement batch. Splitting on ";" would
	// break on function bodies and dollar-quoted strings.
	if _, err := pool.Exec(context.Background(), string(data)); err != nil {
		fmt.Fprintf(os.Stderr, "apply schema: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("applied %s\n", path)
}
