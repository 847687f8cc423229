// Command migrate applies the SQL files of a migrations directory in name
// order, each in its own transaction.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ignite/newsletter/internal/app"
	"github.com/ignite/newsletter/internal/config"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

func main() {
	dir := flag.String("dir", "migrations", "directory of .sql files")
	listOnly := flag.Bool("list", false, "print the files that would run")
	flag.Parse()

	files, err := migrationFiles(*dir)
	if err != nil {
		logger.Error("read migrations", "dir", *dir, "error", err)
		os.Exit(1)
	}
	if *listOnly {
		for _, f := range files {
			fmt.Println(" ", f)
		}
		return
	}

	cfg, err := config.LoadFromEnv("")
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	ctx := context.Background()
	db, err := app.OpenDB(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var failed int
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(*dir, f))
		if err != nil {
			logger.Error("read migration", "file", f, "error", err)
			os.Exit(1)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			logger.Error("begin", "file", f, "error", err)
			os.Exit(1)
		}
		if _, err := tx.ExecContext(ctx, string(data)); err != nil {
			_ = tx.Rollback()
			logger.Error("migration failed", "file", f, "error", err)
			failed++
			continue
		}
		if err := tx.Commit(); err != nil {
			logger.Error("commit", "file", f, "error", err)
			failed++
			continue
		}
		logger.Info("migration applied", "file", f)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
