package persistence

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"mapsmith/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore keeps configs and maps in a single SQLite file
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the database at path and applies
// pending migrations
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	store := &SQLiteStore{db: db, logger: logger}
	if err := store.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (ss *SQLiteStore) migrateUp() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(ss.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{logger: ss.logger}

	// m is not closed: closing it would close ss.db
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SaveConfig upserts a config
func (ss *SQLiteStore) SaveConfig(name string, cfg *models.MapConfig) error {
	body, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	now := formatTime(time.Now())

	query := `
	INSERT INTO map_configs (name, body, created_at, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT (name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
	`
	if _, err := ss.db.Exec(query, name, string(body), now, now); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// LoadConfig loads a config by name
func (ss *SQLiteStore) LoadConfig(name string) (*models.MapConfig, error) {
	var body string
	err := ss.db.QueryRow(`SELECT body FROM map_configs WHERE name = ?`, name).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("config %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cfg models.MapConfig
	if err := json.Unmarshal([]byte(body), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ListConfigs returns the stored config names in order
func (ss *SQLiteStore) ListConfigs() ([]string, error) {
	return queryNames(ss.db, `SELECT name FROM map_configs ORDER BY name`)
}

// DeleteConfig removes a config
func (ss *SQLiteStore) DeleteConfig(name string) error {
	res, err := ss.db.Exec(`DELETE FROM map_configs WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("config %q: %w", name, ErrNotFound)
	}
	return nil
}

// SaveMap upserts a map by name
func (ss *SQLiteStore) SaveMap(m *models.StoredMap) error {
	rows, err := json.Marshal(m.Rows)
	if err != nil {
		return fmt.Errorf("failed to marshal map rows: %w", err)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := formatTime(time.Now())

	query := `
	INSERT INTO maps (id, name, width, height, rows, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (name) DO UPDATE SET
		width = excluded.width,
		height = excluded.height,
		rows = excluded.rows,
		updated_at = excluded.updated_at
	RETURNING id, created_at, updated_at
	`
	var created, updated string
	err = ss.db.QueryRow(query, m.ID, m.Name, m.Width, m.Height, string(rows), now, now).
		Scan(&m.ID, &created, &updated)
	if err != nil {
		return fmt.Errorf("failed to save map: %w", err)
	}
	m.CreatedAt = parseTime(created)
	m.UpdatedAt = parseTime(updated)
	return nil
}

// LoadMap loads a map by name
func (ss *SQLiteStore) LoadMap(name string) (*models.StoredMap, error) {
	query := `SELECT id, name, width, height, rows, created_at, updated_at FROM maps WHERE name = ?`

	var m models.StoredMap
	var rowsJSON, created, updated string
	err := ss.db.QueryRow(query, name).Scan(
		&m.ID, &m.Name, &m.Width, &m.Height, &rowsJSON, &created, &updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("map %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load map: %w", err)
	}
	if err := json.Unmarshal([]byte(rowsJSON), &m.Rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal map rows: %w", err)
	}
	m.CreatedAt = parseTime(created)
	m.UpdatedAt = parseTime(updated)
	return &m, nil
}

// ListMaps returns the stored map names in order
func (ss *SQLiteStore) ListMaps() ([]string, error) {
	return queryNames(ss.db, `SELECT name FROM maps ORDER BY name`)
}

// Close closes the database connection
func (ss *SQLiteStore) Close() error {
	ss.logger.Info("closing database connection")
	return ss.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// migrateLogger routes migrate output through zap
type migrateLogger struct {
	logger *zap.Logger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Sugar().Debugf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
