package db

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	embeddedmigrations "github.com/solatis/cepgate/migrations"
)

// MigrationStatus represents the state of a single migration.
type MigrationStatus struct {
	ID          string
	Checksum    string
	Applied     bool
	AppliedAt   *time.Time
	ExecutionMs int64
}

// migration represents a parsed migration file.
type migration struct {
	ID       string
	Checksum string
	SQL      string
}

// migrationSet selects the embedded migrations matching the connection's driver.
func migrationSet(db *sqlx.DB) (fs.FS, string, error) {
	switch driver := db.DriverName(); driver {
	case "sqlite3":
		return embeddedmigrations.SqliteMigrations, "sqlite", nil
	case "postgres":
		return embeddedmigrations.PostgresMigrations, "postgres", nil
	default:
		return nil, "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// loadMigrations prepares the tracking table and returns the embedded
// migrations for db in apply order.
func loadMigrations(ctx context.Context, db *sqlx.DB) ([]migration, error) {
	fsys, dir, err := migrationSet(db)
	if err != nil {
		return nil, err
	}
	if err := createMigrationsTable(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	migrations, err := parseMigrationFiles(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to parse migrations: %w", err)
	}
	return migrations, nil
}

// MigrateUp applies every pending migration in filename order and returns the
// IDs it applied. Checksums of already-applied migrations are verified first
// so an edited migration file stops the run before anything changes.
func MigrateUp(ctx context.Context, db *sqlx.DB) ([]string, error) {
	migrations, err := loadMigrations(ctx, db)
	if err != nil {
		return nil, err
	}

	applied, err := appliedChecksums(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	if err := validateChecksums(applied, migrations); err != nil {
		return nil, fmt.Errorf("migration checksum validation failed: %w", err)
	}

	var ran []string
	for _, m := range migrations {
		if _, ok := applied[m.ID]; ok {
			continue
		}
		if err := runMigration(ctx, db, m); err != nil {
			return ran, err
		}
		ran = append(ran, m.ID)
	}
	return ran, nil
}

// runMigration applies m and records it in one transaction, so a failed
// record never leaves a half-applied schema behind.
func runMigration(ctx context.Context, db *sqlx.DB, m migration) error {
	start := time.Now()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %s: %w", m.ID, err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(m.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %s: statement failed: %w", m.ID, err)
		}
	}

	if err := recordMigration(ctx, tx, m, time.Since(start)); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", m.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", m.ID, err)
	}
	return nil
}

// MigrateStatus returns the status of all migrations (applied and pending).
func MigrateStatus(ctx context.Context, db *sqlx.DB) ([]MigrationStatus, error) {
	migrations, err := loadMigrations(ctx, db)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID          string `db:"migration_id"`
		Checksum    string `db:"checksum"`
		AppliedAt   string `db:"applied_at"`
		ExecutionMs int64  `db:"execution_ms"`
	}
	if err := db.SelectContext(ctx, &rows, "SELECT migration_id, checksum, applied_at, execution_ms FROM migrations"); err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[string]MigrationStatus, len(rows))
	for _, r := range rows {
		// sqlite stores RFC3339 text; postgres timestamps scan as RFC3339Nano
		appliedAt, err := time.Parse(time.RFC3339Nano, r.AppliedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid applied_at for migration %s: %w", r.ID, err)
		}
		applied[r.ID] = MigrationStatus{
			ID:          r.ID,
			Checksum:    r.Checksum,
			Applied:     true,
			AppliedAt:   &appliedAt,
			ExecutionMs: r.ExecutionMs,
		}
	}

	statuses := make([]MigrationStatus, 0, len(migrations))
	for _, m := range migrations {
		if s, ok := applied[m.ID]; ok {
			statuses = append(statuses, s)
			continue
		}
		statuses = append(statuses, MigrationStatus{ID: m.ID, Checksum: m.Checksum})
	}
	return statuses, nil
}

// parseMigrationFiles reads every .sql file under dir, sorted by filename.
func parseMigrationFiles(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var migrations []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		// SHA256 checksum for tamper detection
		migrations = append(migrations, migration{
			ID:       e.Name(),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
			SQL:      string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].ID < migrations[j].ID
	})
	return migrations, nil
}

// splitStatements breaks a migration into single statements.
// lib/pq doesn't support multiple statements in a single Exec. Comment lines
// are dropped first so a leading comment does not swallow its statement.
func splitStatements(sql string) []string {
	var b strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var stmts []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// createMigrationsTable ensures the tracking table exists.
// Schema must match the migrations table in 001_initial_schema.sql.
func createMigrationsTable(ctx context.Context, db *sqlx.DB) error {
	createSQL := `
		CREATE TABLE IF NOT EXISTS migrations (
			migration_id TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMP WITHOUT TIME ZONE NOT NULL,
			execution_ms INTEGER NOT NULL
		)
	`
	if db.DriverName() == "sqlite3" {
		createSQL = `
			CREATE TABLE IF NOT EXISTS migrations (
				migration_id TEXT PRIMARY KEY,
				checksum TEXT NOT NULL,
				applied_at TEXT NOT NULL,
				execution_ms INTEGER NOT NULL,
				CHECK (applied_at LIKE '____-__-__T__:__:__Z')
			)
		`
	}
	_, err := db.ExecContext(ctx, createSQL)
	return err
}

// appliedChecksums returns migration_id -> checksum for applied migrations.
func appliedChecksums(ctx context.Context, db *sqlx.DB) (map[string]string, error) {
	var rows []struct {
		ID       string `db:"migration_id"`
		Checksum string `db:"checksum"`
	}
	if err := db.SelectContext(ctx, &rows, "SELECT migration_id, checksum FROM migrations"); err != nil {
		return nil, err
	}
	applied := make(map[string]string, len(rows))
	for _, r := range rows {
		applied[r.ID] = r.Checksum
	}
	return applied, nil
}

// validateChecksums verifies applied migrations still match the embedded files.
func validateChecksums(applied map[string]string, migrations []migration) error {
	embedded := make(map[string]string, len(migrations))
	for _, m := range migrations {
		embedded[m.ID] = m.Checksum
	}
	for id, got := range applied {
		want, ok := embedded[id]
		if !ok {
			return fmt.Errorf("migration %s exists in database but not in embedded files", id)
		}
		if got != want {
			return fmt.Errorf("checksum mismatch for migration %s: expected %s, got %s", id, want, got)
		}
	}
	return nil
}

// recordMigration stores migration metadata within the migration's transaction.
func recordMigration(ctx context.Context, tx *sqlx.Tx, m migration, duration time.Duration) error {
	now := time.Now().UTC()
	var appliedAt any = now
	if tx.DriverName() == "sqlite3" {
		appliedAt = now.Format(time.RFC3339)
	}
	_, err := tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)"),
		m.ID, m.Checksum, appliedAt, duration.Milliseconds(),
	)
	return err
}
