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
)

const (
	schemaFilesGlob = "sql/migrations/*.sql"
	// Ключ advisory lock, общий для всех экземпляров dailygoods.
	schemaLockKey     = int64(0x6461696c79)
	schemaVersionsDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

var (
	//go:embed sql/migrations/*.sql
	schemaFS embed.FS

	schemaFileName = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)
)

type schemaDirection string

const (
	schemaUp   schemaDirection = "up"
	schemaDown schemaDirection = "down"
)

// schemaChange - пара up/down скриптов одной версии схемы магазина.
type schemaChange struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

func (c schemaChange) label() string {
	return fmt.Sprintf("%04d_%s", c.Version, c.Name)
}

func (c schemaChange) script(direction schemaDirection) string {
	if direction == schemaDown {
		return c.Down
	}
	return c.Up
}

// schemaPlan упорядочен по возрастанию версии.
type schemaPlan []schemaChange

func (p schemaPlan) latest() int64 {
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1].Version
}

func (p schemaPlan) find(version int64) (schemaChange, bool) {
	i := sort.Search(len(p), func(i int) bool { return p[i].Version >= version })
	if i < len(p) && p[i].Version == version {
		return p[i], true
	}
	return schemaChange{}, false
}

// pending возвращает ещё не применённые изменения в порядке применения.
func (p schemaPlan) pending(applied []int64) []schemaChange {
	done := make(map[int64]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}
	var out []schemaChange
	for _, change := range p {
		if _, ok := done[change.Version]; !ok {
			out = append(out, change)
		}
	}
	return out
}

// SchemaStatus описывает состояние схемы относительно встроенных миграций.
type SchemaStatus struct {
	Version int64
	Applied int
	Latest  int64
	Pending int
}

// UpToDate сообщает, что все встроенные миграции применены.
func (s SchemaStatus) UpToDate() bool {
	return s.Pending == 0
}

// MigrateUp применяет up-миграции. steps=0 применяет все.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.migrate(ctx, schemaUp, steps)
}

// MigrateDown откатывает последние steps миграций. steps<=0 означает один шаг.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.migrate(ctx, schemaDown, steps)
}

// SchemaStatus сравнивает применённые версии со встроенными.
func (s *Store) SchemaStatus(ctx context.Context) (SchemaStatus, error) {
	if s == nil || s.db == nil {
		return SchemaStatus{}, errStoreNotInitialized
	}
	plan, err := loadSchemaPlan(schemaFS)
	if err != nil {
		return SchemaStatus{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, schemaVersionsDDL); err != nil {
		return SchemaStatus{}, fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied, err := appliedVersions(ctx, s.db)
	if err != nil {
		return SchemaStatus{}, err
	}

	status := SchemaStatus{
		Applied: len(applied),
		Latest:  plan.latest(),
		Pending: len(plan.pending(applied)),
	}
	if len(applied) > 0 {
		status.Version = applied[len(applied)-1]
	}
	return status, nil
}

// LatestMigrationVersion возвращает версию последней встроенной миграции.
func LatestMigrationVersion() (int64, error) {
	plan, err := loadSchemaPlan(schemaFS)
	if err != nil {
		return 0, err
	}
	return plan.latest(), nil
}

func (s *Store) migrate(ctx context.Context, direction schemaDirection, steps int) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	if direction != schemaUp && direction != schemaDown {
		return fmt.Errorf("unsupported migration direction: %s", direction)
	}

	plan, err := loadSchemaPlan(schemaFS)
	if err != nil {
		return err
	}

	return s.withSchemaLock(ctx, func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, schemaVersionsDDL); err != nil {
			return fmt.Errorf("ensure schema_migrations: %w", err)
		}
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}

		changes, err := selectChanges(plan, applied, direction, steps)
		if err != nil {
			return err
		}
		for _, change := range changes {
			if err := runSchemaChange(ctx, conn, change, direction); err != nil {
				return err
			}
		}
		return nil
	})
}

// selectChanges выбирает изменения для прогона: up идёт от старых к новым,
// down снимает применённые версии с конца.
func selectChanges(plan schemaPlan, applied []int64, direction schemaDirection, steps int) ([]schemaChange, error) {
	if direction == schemaUp {
		pending := plan.pending(applied)
		if steps > 0 && steps < len(pending) {
			pending = pending[:steps]
		}
		return pending, nil
	}

	var out []schemaChange
	for i := len(applied) - 1; i >= 0 && len(out) < steps; i-- {
		change, ok := plan.find(applied[i])
		if !ok {
			return nil, fmt.Errorf("cannot rollback unknown migration version %d", applied[i])
		}
		out = append(out, change)
	}
	return out, nil
}

func (s *Store) withSchemaLock(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", schemaLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", schemaLockKey)
	}()

	return fn(conn)
}

func runSchemaChange(ctx context.Context, conn *sql.Conn, change schemaChange, direction schemaDirection) (err error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s %s: %w", direction, change.label(), err)
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()

	if _, err = tx.ExecContext(ctx, change.script(direction)); err != nil {
		return fmt.Errorf("run %s %s: %w", direction, change.label(), err)
	}

	if direction == schemaUp {
		_, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, change.Version, change.Name)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, change.Version)
	}
	if err != nil {
		return fmt.Errorf("record %s %s: %w", direction, change.label(), err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s %s: %w", direction, change.label(), err)
	}
	return nil
}

type versionQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// appliedVersions возвращает применённые версии по возрастанию.
func appliedVersions(ctx context.Context, q versionQuerier) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return versions, nil
}

func loadSchemaPlan(fsys fs.FS) (schemaPlan, error) {
	files, err := fs.Glob(fsys, schemaFilesGlob)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no migration files found")
	}

	byVersion := make(map[int64]*schemaChange)
	for _, file := range files {
		base := path.Base(file)
		m := schemaFileName.FindStringSubmatch(base)
		if m == nil {
			return nil, fmt.Errorf("invalid migration file name: %s", base)
		}
		version, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("invalid migration version in %s", base)
		}

		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", base, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", base)
		}

		change, ok := byVersion[version]
		if !ok {
			change = &schemaChange{Version: version, Name: m[2]}
			byVersion[version] = change
		} else if change.Name != m[2] {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, change.Name, m[2])
		}

		target := &change.Up
		if schemaDirection(m[3]) == schemaDown {
			target = &change.Down
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", m[3], version)
		}
		*target = body
	}

	plan := make(schemaPlan, 0, len(byVersion))
	for _, change := range byVersion {
		if change.Up == "" || change.Down == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", change.label())
		}
		plan = append(plan, *change)
	}
	sort.Slice(plan, func(i, j int) bool { return plan[i].Version < plan[j].Version })
	return plan, nil
}
