package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	version int
	name    string
	up      string
	down    string
}

// RunMigrations applies all pending migrations to the database at dbPath.
func RunMigrations(dbPath string) error {
	return migrateAt(dbPath, false)
}

// RollbackMigrations rolls back all migrations of the database at dbPath.
func RollbackMigrations(dbPath string) error {
	return migrateAt(dbPath, true)
}

func migrateAt(dbPath string, down bool) error {
	ctx := context.Background()
	d, err := Connect(ctx, dbPath)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Migrate(ctx, down)
}

// Migrate brings the schema up to date, or rolls everything back when down
// is set. A migration that failed half-way leaves the version marked dirty
// and blocks further runs.
func (d *DB) Migrate(ctx context.Context, down bool) error {
	_, err := d.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			dirty INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var current, dirty int
	err = d.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0), COALESCE(MAX(dirty), 0) FROM schema_migrations`).Scan(&current, &dirty)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}
	if dirty != 0 {
		return fmt.Errorf("database is in dirty state at version %d, manual intervention required", current)
	}

	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		return err
	}

	if down {
		for i := len(migrations) - 1; i >= 0; i-- {
			m := migrations[i]
			if m.version > current {
				continue
			}
			if m.down == "" {
				return fmt.Errorf("no down migration for version %d", m.version)
			}
			if err := d.step(ctx, m.version, m.down, `DELETE FROM schema_migrations WHERE version = ?`); err != nil {
				return fmt.Errorf("roll back %s: %w", m.name, err)
			}
		}
		return nil
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if m.up == "" {
			return fmt.Errorf("no up migration for version %d", m.version)
		}
		if err := d.step(ctx, m.version, m.up, `UPDATE schema_migrations SET dirty = 0 WHERE version = ?`); err != nil {
			return fmt.Errorf("apply %s: %w", m.name, err)
		}
	}
	return nil
}

// step marks version dirty, runs script and then finishes the bookkeeping
// with done.
func (d *DB) step(ctx context.Context, version int, script, done string) error {
	if _, err := d.db.ExecContext(ctx, `INSERT OR REPLACE INTO schema_migrations (version, dirty) VALUES (?, 1)`, version); err != nil {
		return fmt.Errorf("mark version %d as dirty: %w", version, err)
	}
	if _, err := d.db.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := d.db.ExecContext(ctx, done, version); err != nil {
		return fmt.Errorf("record version %d: %w", version, err)
	}
	return nil
}

// loadMigrations reads NNN_name.up.sql / NNN_name.down.sql pairs sorted by
// version.
func loadMigrations(fsys fs.FS) ([]*migration, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	byVersion := make(map[int]*migration)
	for _, entry := range entries {
		name := entry.Name()
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		content, err := fs.ReadFile(fsys, "migrations/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}

		m := byVersion[version]
		if m == nil {
			m = &migration{version: version}
			byVersion[version] = m
		}
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			m.up = string(content)
			m.name = strings.TrimSuffix(name, ".up.sql")
		case strings.HasSuffix(name, ".down.sql"):
			m.down = string(content)
		}
	}

	migrations := make([]*migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })
	return migrations, nil
}
