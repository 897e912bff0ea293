// cmd/migrate/main.go
//
// Applies the SQL files under migrations/ in lexical order. Files are
// written to be idempotent (CREATE TABLE IF NOT EXISTS) so re-running
// the tool against an up-to-date database is safe.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/lib/pq"

	"stockwatch/internal/common/config"
)

func main() {
	migrationsPath := flag.String("dir", "migrations", "path to migrations directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	absDir, err := filepath.Abs(*migrationsPath)
	if err != nil {
		log.Fatalf("resolve migrations path: %v", err)
	}
	if _, err := os.Stat(absDir); err != nil {
		log.Fatalf("migrations directory not found: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(absDir, "*.sql"))
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}
	if len(files) == 0 {
		log.Fatal("no .sql migration files found")
	}
	sort.Strings(files)

	db, err := sql.Open("postgres", cfg.Database.Postgres.GetDSN())
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", filepath.Base(f), err)
		}
		log.Printf("applying migration: %s", filepath.Base(f))
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			log.Fatalf("apply %s: %v", filepath.Base(f), err)
		}
	}

	fmt.Println("migrations applied")
}
