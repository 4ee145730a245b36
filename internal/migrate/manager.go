package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"

	"authgate.dev/internal/store/sqlstore"
)

const defaultSeedsTable = "schema_seeds"

//go:embed sql/postgres/*.sql sql/sqlite/*.sql
var migrationsFS embed.FS

//go:embed seeds/*.sql
var seedsFS embed.FS

// goose keeps its dialect and filesystem in package globals.
var gooseMu sync.Mutex

// Manager applies the embedded schema migrations and seed files.
type Manager struct {
	db          *sql.DB
	dialect     string
	gooseDriver string
	seedsTable  string
	seeds       fs.FS
}

// Option configures Manager.
type Option func(*Manager)

// WithSeedsTable overrides the default seeds bookkeeping table.
func WithSeedsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.seedsTable = name
		}
	}
}

// WithSeeds replaces the embedded seed files.
func WithSeeds(fsys fs.FS) Option {
	return func(m *Manager) {
		if fsys != nil {
			m.seeds = fsys
		}
	}
}

// NewManager constructs a Manager for dialect "postgres" or "sqlite".
func NewManager(db *sql.DB, dialect string, opts ...Option) (*Manager, error) {
	if db == nil {
		return nil, errors.New("database connection unavailable")
	}
	m := &Manager{db: db, dialect: dialect, seedsTable: defaultSeedsTable}
	switch dialect {
	case "postgres":
		m.gooseDriver = "postgres"
	case "sqlite":
		m.gooseDriver = "sqlite3"
	default:
		return nil, fmt.Errorf("unsupported migration dialect %q", dialect)
	}
	seeds, err := fs.Sub(seedsFS, "seeds")
	if err != nil {
		return nil, err
	}
	m.seeds = seeds
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) dir() string { return path.Join("sql", m.dialect) }

func (m *Manager) withGoose(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect(m.gooseDriver); err != nil {
		return err
	}
	return fn()
}

// Up applies all pending migrations.
func (m *Manager) Up(ctx context.Context) error {
	return m.withGoose(func() error {
		return goose.UpContext(ctx, m.db, m.dir())
	})
}

// Down rolls back the most recent applied migration.
func (m *Manager) Down(ctx context.Context) error {
	return m.withGoose(func() error {
		return goose.DownContext(ctx, m.db, m.dir())
	})
}

// Status lists every known migration with its state, oldest first.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	var out []string
	err := m.withGoose(func() error {
		migrations, err := goose.CollectMigrations(m.dir(), 0, goose.MaxVersion)
		if err != nil {
			return err
		}
		current, err := goose.GetDBVersionContext(ctx, m.db)
		if err != nil {
			return err
		}
		for _, mig := range migrations {
			state := "pending"
			if mig.Version <= current {
				state = "applied"
			}
			out = append(out, fmt.Sprintf("%s %s", path.Base(mig.Source), state))
		}
		return nil
	})
	return out, err
}

// Seed applies seed files idempotently.
func (m *Manager) Seed(ctx context.Context) error {
	if err := m.ensureSeedsTable(ctx); err != nil {
		return err
	}
	executed, err := m.listExecuted(ctx)
	if err != nil {
		return err
	}
	files, err := collectSQL(m.seeds)
	if err != nil {
		return err
	}
	for _, name := range files {
		if executed[name] {
			continue
		}
		if err := m.exec(ctx, name); err != nil {
			return fmt.Errorf("apply seed %s: %w", name, err)
		}
		if err := m.insertRecord(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) rebind(query string) string {
	if m.dialect == "sqlite" {
		return sqlstore.RebindQuestion(query)
	}
	return query
}

func (m *Manager) ensureSeedsTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		create table if not exists %s (
			name text primary key,
			applied_at timestamp not null
		)`, m.seedsTable)
	_, err := m.db.ExecContext(ctx, ddl)
	return err
}

func (m *Manager) exec(ctx context.Context, name string) error {
	sqlBytes, err := fs.ReadFile(m.seeds, name)
	if err != nil {
		return err
	}
	statements := splitStatements(string(sqlBytes))
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range statements {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (m *Manager) insertRecord(ctx context.Context, name string) error {
	_, err := m.db.ExecContext(ctx,
		m.rebind(fmt.Sprintf(`insert into %s (name, applied_at) values ($1, $2)`, m.seedsTable)),
		name, time.Now().UTC())
	return err
}

func (m *Manager) listExecuted(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`select name from %s`, m.seedsTable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		result[name] = true
	}
	return result, rows.Err()
}

func collectSQL(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

// splitStatements naively splits SQL by semicolon while preserving simple cases.
func splitStatements(sql string) []string {
	var stmts []string
	var current strings.Builder
	var inString bool
	for _, r := range sql {
		switch r {
		case '\'':
			current.WriteRune(r)
			inString = !inString
		case ';':
			current.WriteRune(r)
			if !inString {
				stmts = append(stmts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		stmts = append(stmts, current.String())
	}
	return stmts
}
