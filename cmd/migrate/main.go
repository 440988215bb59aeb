// Command migrate applies the SQL files in a migrations directory to the
// churn database, one transaction per file, in lexical order.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

func main() {
	var (
		dir      = flag.String("dir", "migrations", "directory holding *.sql files")
		listOnly = flag.Bool("list", false, "list churn tables and exit")
		keepOn   = flag.Bool("continue", false, "keep applying files after a failure")
	)
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("ping: %v", err)
	}
	log.Println("Connected to database")

	if *listOnly {
		if err := listTables(ctx, db); err != nil {
			log.Fatalf("list tables: %v", err)
		}
		return
	}

	files, err := sqlFiles(*dir)
	if err != nil {
		log.Fatalf("read migrations dir %s: %v", *dir, err)
	}

	var applied, failed int
	for _, path := range files {
		fmt.Printf("  %s ... ", filepath.Base(path))
		skipped, err := applyFile(ctx, db, path)
		switch {
		case err != nil:
			fmt.Printf("ERROR: %v\n", err)
			failed++
			if !*keepOn {
				log.Fatalf("stopped after %d applied, 1 failed", applied)
			}
		case skipped:
			fmt.Println("empty, skipped")
		default:
			fmt.Println("OK")
			applied++
		}
	}
	log.Printf("Done: %d applied, %d failed", applied, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// sqlFiles returns the *.sql files in dir sorted by name.
func sqlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// applyFile runs one file inside a transaction. Blank files are skipped.
func applyFile(ctx context.Context, db *sql.DB, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	body := strings.TrimSpace(string(data))
	if body == "" {
		return true, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, body); err != nil {
		_ = tx.Rollback()
		return false, err
	}
	return false, tx.Commit()
}

func listTables(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public' AND (tablename LIKE 'churn_%' OR tablename = 'profiles')
		ORDER BY tablename`)
	if err != nil {
		return err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return err
		}
		fmt.Println(" ", t)
		n++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	fmt.Printf("Total: %d tables\n", n)
	return nil
}
