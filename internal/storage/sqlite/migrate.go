package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Migration is one numbered schema change. Statements run in order
// inside a single transaction.
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Migrations is the ordered schema history. Append only; released
// versions never change.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "initial schema",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				telegram_id INTEGER NOT NULL UNIQUE,
				username TEXT NOT NULL DEFAULT '',
				min_tvl_filter REAL NOT NULL DEFAULT 0,
				min_apr_filter REAL NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS pools (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				pool_address TEXT NOT NULL UNIQUE,
				protocol TEXT NOT NULL,
				chain TEXT NOT NULL DEFAULT '',
				token_x_symbol TEXT NOT NULL DEFAULT '',
				token_y_symbol TEXT NOT NULL DEFAULT '',
				tvl_usd REAL NOT NULL DEFAULT 0,
				volume_24h REAL NOT NULL DEFAULT 0,
				apr_fees REAL NOT NULL DEFAULT 0,
				apr_farming REAL NOT NULL DEFAULT 0,
				total_apr REAL NOT NULL DEFAULT 0,
				last_updated TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_pools_tvl ON pools (tvl_usd)`,
			`CREATE INDEX IF NOT EXISTS idx_pools_total_apr ON pools (total_apr)`,
			`CREATE TABLE IF NOT EXISTS watched_pools (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
				pool_id INTEGER NOT NULL REFERENCES pools (id) ON DELETE CASCADE,
				alert_threshold REAL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (user_id, pool_id)
			)`,
		},
	},
	{
		Version: 2,
		Name:    "pool fee columns",
		Statements: []string{
			`ALTER TABLE pools ADD COLUMN fees_24h REAL NOT NULL DEFAULT 0`,
			`ALTER TABLE pools ADD COLUMN fee_rate INTEGER NOT NULL DEFAULT 0`,
		},
	},
}

// Validate checks that the migration list is dense and ordered,
// starting from version 1.
func Validate() error {
	for i, m := range Migrations {
		if m.Version != i+1 {
			return fmt.Errorf("migration %d has version %d, want %d", i, m.Version, i+1)
		}
		if m.Name == "" {
			return fmt.Errorf("migration %d has no name", m.Version)
		}
		if len(m.Statements) == 0 {
			return fmt.Errorf("migration %d (%s) has no statements", m.Version, m.Name)
		}
	}
	return nil
}

// Migrate brings the database up to the latest schema version and
// returns the versions before and after. Each pending migration runs
// in its own transaction, so a failure leaves the database at the
// last fully applied version.
func Migrate(db *sql.DB, logger *zap.Logger) (from, to int, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := Validate(); err != nil {
		return 0, 0, fmt.Errorf("validate migrations: %w", err)
	}
	if _, err := db.Exec(createMigrationsTable); err != nil {
		return 0, 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := recordedVersion(db)
	if err != nil {
		return 0, 0, err
	}
	if current == 0 {
		// Databases created before versioning have tables but no
		// schema_migrations rows. Infer the version from the shape
		// of the pools table and record it so later runs are cheap.
		inferred, err := inferLegacyVersion(db)
		if err != nil {
			return 0, 0, err
		}
		if inferred > 0 {
			if err := recordVersions(db, inferred); err != nil {
				return 0, 0, err
			}
			logger.Info("inferred schema version from existing tables", zap.Int("version", inferred))
			current = inferred
		}
	}
	from = current

	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return from, current, err
		}
		logger.Info("applied migration", zap.Int("version", m.Version), zap.String("name", m.Name))
		current = m.Version
	}
	return from, current, nil
}

// SchemaVersion reports the highest applied migration version, or 0
// for an empty database.
func SchemaVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(createMigrationsTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	v, err := recordedVersion(db)
	if err != nil {
		return 0, err
	}
	if v > 0 {
		return v, nil
	}
	return inferLegacyVersion(db)
}

func recordedVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func applyMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d (%s): %w", m.Version, m.Name, err)
	}
	for _, stmt := range m.Statements {
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Name, time.Now().UTC()); err != nil {
		tx.Rollback()
		return fmt.Errorf("record migration %d (%s): %w", m.Version, m.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d (%s): %w", m.Version, m.Name, err)
	}
	return nil
}

func recordVersions(db *sql.DB, upTo int) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("record inferred version: %w", err)
	}
	for _, m := range Migrations {
		if m.Version > upTo {
			break
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			m.Version, m.Name, time.Now().UTC()); err != nil {
			tx.Rollback()
			return fmt.Errorf("record inferred version %d: %w", m.Version, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record inferred version: %w", err)
	}
	return nil
}

func inferLegacyVersion(db *sql.DB) (int, error) {
	hasPools, err := tableExists(db, "pools")
	if err != nil {
		return 0, err
	}
	if !hasPools {
		return 0, nil
	}
	hasFees, err := columnExists(db, "pools", "fees_24h")
	if err != nil {
		return 0, err
	}
	hasRate, err := columnExists(db, "pools", "fee_rate")
	if err != nil {
		return 0, err
	}
	if hasFees && hasRate {
		return 2, nil
	}
	return 1, nil
}

func tableExists(db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return n > 0, nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("inspect table %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return false, fmt.Errorf("inspect table %s: %w", table, err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
