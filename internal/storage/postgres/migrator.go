package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	migrationsDir     = "sql/migrations"
	migrationLockKey  = int64(20260301)
	migrationTimeout  = 5 * time.Second
	migrationTableDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    BIGINT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

var (
	//go:embed sql/migrations/*.sql
	migrationsFS embed.FS

	migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)
)

type migrationDirection string

const (
	migrationUp   migrationDirection = "up"
	migrationDown migrationDirection = "down"
)

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// Label возвращает имя миграции в виде 0001_init.
func (m migration) Label() string {
	return fmt.Sprintf("%04d_%s", m.Version, m.Name)
}

// MigrationState описывает состояние схемы.
type MigrationState struct {
	// Version последняя применённая версия (0, если схема пуста).
	Version int64
	// Applied число применённых миграций.
	Applied int
	// Pending ещё не применённые миграции в порядке применения.
	Pending []string
}

// MigrateUp применяет up-миграции. steps=0 применяет все доступные.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.migrate(ctx, migrationUp, steps)
}

// MigrateDown откатывает миграции. steps<=0 откатывает одну.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.migrate(ctx, migrationDown, steps)
}

// MigrationStatus возвращает текущую версию схемы и список неприменённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (MigrationState, error) {
	if s == nil || s.db == nil {
		return MigrationState{}, errStoreNotInitialized
	}

	migrations, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		return MigrationState{}, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(queryCtx, migrationTableDDL); err != nil {
		return MigrationState{}, fmt.Errorf("ensure migration table: %w", err)
	}

	applied, err := appliedVersions(queryCtx, s.db)
	if err != nil {
		return MigrationState{}, err
	}

	state := MigrationState{Applied: len(applied)}
	for version := range applied {
		if version > state.Version {
			state.Version = version
		}
	}
	for _, m := range migrations {
		if !applied[m.Version] {
			state.Pending = append(state.Pending, m.Label())
		}
	}
	return state, nil
}

func (s *Store) migrate(ctx context.Context, direction migrationDirection, steps int) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	if direction != migrationUp && direction != migrationDown {
		return fmt.Errorf("unsupported migration direction: %s", direction)
	}

	migrations, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockKey)
	}()

	if _, err := conn.ExecContext(ctx, migrationTableDDL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return err
	}

	plan := planMigrations(migrations, applied, direction, steps)
	for _, m := range plan {
		if err := runMigration(ctx, conn, m, direction); err != nil {
			return err
		}
	}
	return nil
}

// planMigrations выбирает миграции для выполнения: для up — неприменённые по
// возрастанию версии, для down — применённые по убыванию. steps<=0 снимает лимит.
func planMigrations(all []migration, applied map[int64]bool, direction migrationDirection, steps int) []migration {
	plan := make([]migration, 0, len(all))
	if direction == migrationUp {
		for _, m := range all {
			if !applied[m.Version] {
				plan = append(plan, m)
			}
		}
	} else {
		for i := len(all) - 1; i >= 0; i-- {
			if applied[all[i].Version] {
				plan = append(plan, all[i])
			}
		}
	}

	if steps > 0 && len(plan) > steps {
		plan = plan[:steps]
	}
	return plan
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func runMigration(ctx context.Context, conn *sql.Conn, m migration, direction migrationDirection) error {
	body, record := m.UpSQL, `INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, NOW())`
	args := []any{m.Version, m.Name}
	if direction == migrationDown {
		body, record = m.DownSQL, `DELETE FROM schema_migrations WHERE version = $1`
		args = args[:1]
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx (%s %s): %w", direction, m.Label(), err)
	}
	if _, err := tx.ExecContext(ctx, body); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute %s migration %s: %w", direction, m.Label(), err)
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record %s migration %s: %w", direction, m.Label(), err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %s: %w", direction, m.Label(), err)
	}
	return nil
}

func appliedVersions(ctx context.Context, db execQuerier) (map[int64]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration version: %w", err)
		}
		result[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return result, nil
}

// loadMigrationsFromFS собирает пары up/down из каталога sql/migrations.
func loadMigrationsFromFS(fsys fs.FS) ([]migration, error) {
	files, err := fs.Glob(fsys, path.Join(migrationsDir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no migration files found")
	}

	byVersion := make(map[int64]*migration)
	for _, file := range files {
		base := path.Base(file)
		matches := migrationFilePattern.FindStringSubmatch(base)
		if len(matches) != 4 {
			return nil, fmt.Errorf("invalid migration file name: %s", base)
		}

		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version from %s: %w", base, err)
		}
		name, direction := matches[2], migrationDirection(matches[3])

		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", file, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", base)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &migration{Version: version, Name: name}
			byVersion[version] = m
		} else if m.Name != name {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, m.Name, name)
		}

		target := &m.UpSQL
		if direction == migrationDown {
			target = &m.DownSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", direction, version)
		}
		*target = body
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" || m.DownSQL == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", m.Label())
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })

	return migrations, nil
}
