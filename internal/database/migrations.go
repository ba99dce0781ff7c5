package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed migrations
var migrationsFS embed.FS

// RunMigrations executes the embedded SQL migrations for the active dialect
// and returns the filenames that were applied by this call
func (db *DB) RunMigrations(ctx context.Context) ([]string, error) {
	if err := db.createMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	dir := path.Join("migrations", db.Dialect.MigrationsSubdir())
	files, err := fs.Glob(migrationsFS, path.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to read migration files: %w", err)
	}

	// Sort files to ensure they run in order
	sort.Strings(files)

	var applied []string
	for _, file := range files {
		filename := path.Base(file)

		hasRun, err := db.hasMigrationRun(ctx, filename)
		if err != nil {
			return applied, fmt.Errorf("failed to check migration status: %w", err)
		}
		if hasRun {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, file)
		if err != nil {
			return applied, fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		if err := db.executeMigration(ctx, string(content)); err != nil {
			return applied, fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}

		if err := db.recordMigration(ctx, filename); err != nil {
			return applied, fmt.Errorf("failed to record migration %s: %w", filename, err)
		}

		applied = append(applied, filename)
	}

	return applied, nil
}

// createMigrationsTable creates the table to track completed migrations
func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.DB.ExecContext(ctx, db.Dialect.CreateMigrationsTableQuery())
	return err
}

// hasMigrationRun checks if a migration has already been executed
func (db *DB) hasMigrationRun(ctx context.Context, filename string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations WHERE filename = ?", filename).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// executeMigration runs the statements of one migration file in a transaction.
// Not every driver accepts several statements per Exec, so they are split on ';'.
func (db *DB) executeMigration(ctx context.Context, content string) error {
	return db.WithTx(ctx, func(tx *Tx) error {
		for _, stmt := range splitStatements(content) {
			if _, err := tx.Tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%w\nstatement: %s", err, stmt)
			}
		}
		return nil
	})
}

// recordMigration marks a migration as completed
func (db *DB) recordMigration(ctx context.Context, filename string) error {
	_, err := db.ExecContext(ctx, "INSERT INTO migrations (filename) VALUES (?)", filename)
	return err
}

func splitStatements(content string) []string {
	var stmts []string
	for _, part := range strings.Split(content, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			stmts = append(stmts, strings.TrimSpace(strings.Join(lines, "\n")))
		}
	}
	return stmts
}
