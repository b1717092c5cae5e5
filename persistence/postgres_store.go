package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"mapsmith/models"
)

// PostgresStore handles database operations using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore creates a new PostgreSQL storage manager
func NewPostgresStore(connectionString string, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	store := &PostgresStore{db: db, logger: logger}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema initializes the database schema
func (ps *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS map_configs (
		name TEXT PRIMARY KEY,
		body JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS maps (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		rows JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	`

	_, err := ps.db.Exec(schema)
	return err
}

// SaveConfig upserts a config
func (ps *PostgresStore) SaveConfig(name string, cfg *models.MapConfig) error {
	body, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	query := `
	INSERT INTO map_configs (name, body) VALUES ($1, $2)
	ON CONFLICT (name)
	DO UPDATE SET body = $2, updated_at = NOW()
	`
	if _, err := ps.db.Exec(query, name, string(body)); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// LoadConfig loads a config by name
func (ps *PostgresStore) LoadConfig(name string) (*models.MapConfig, error) {
	var body string
	err := ps.db.QueryRow(`SELECT body FROM map_configs WHERE name = $1`, name).Scan(&body)
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
func (ps *PostgresStore) ListConfigs() ([]string, error) {
	return queryNames(ps.db, `SELECT name FROM map_configs ORDER BY name`)
}

// DeleteConfig removes a config
func (ps *PostgresStore) DeleteConfig(name string) error {
	res, err := ps.db.Exec(`DELETE FROM map_configs WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("config %q: %w", name, ErrNotFound)
	}
	return nil
}

// SaveMap upserts a map by name
func (ps *PostgresStore) SaveMap(m *models.StoredMap) error {
	rows, err := json.Marshal(m.Rows)
	if err != nil {
		return fmt.Errorf("failed to marshal map rows: %w", err)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	query := `
	INSERT INTO maps (id, name, width, height, rows) VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (name)
	DO UPDATE SET width = $3, height = $4, rows = $5, updated_at = NOW()
	RETURNING id, created_at, updated_at
	`
	err = ps.db.QueryRow(query, m.ID, m.Name, m.Width, m.Height, string(rows)).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save map: %w", err)
	}
	return nil
}

// LoadMap loads a map by name
func (ps *PostgresStore) LoadMap(name string) (*models.StoredMap, error) {
	query := `SELECT id, name, width, height, rows, created_at, updated_at FROM maps WHERE name = $1`

	var m models.StoredMap
	var rowsJSON string
	err := ps.db.QueryRow(query, name).Scan(
		&m.ID, &m.Name, &m.Width, &m.Height, &rowsJSON, &m.CreatedAt, &m.UpdatedAt,
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
	return &m, nil
}

// ListMaps returns the stored map names in order
func (ps *PostgresStore) ListMaps() ([]string, error) {
	return queryNames(ps.db, `SELECT name FROM maps ORDER BY name`)
}

// Close closes the database connection
func (ps *PostgresStore) Close() error {
	ps.logger.Info("closing database connection")
	return ps.db.Close()
}

func queryNames(db *sql.DB, query string) ([]string, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
