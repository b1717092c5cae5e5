package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mapsmith/models"
)

// JSONStore handles data persistence using a local JSON file
type JSONStore struct {
	filePath string
	mutex    sync.RWMutex
	writeMu  sync.Mutex
	data     *JSONData
}

// JSONData represents the structure of the JSON database
type JSONData struct {
	Configs map[string]*models.MapConfig `json:"configs"`
	Maps    map[string]*models.StoredMap `json:"maps"`
}

// NewJSONStore creates a new JSON storage manager
func NewJSONStore(filePath string) (*JSONStore, error) {
	store := &JSONStore{
		filePath: filePath,
		data: &JSONData{
			Configs: make(map[string]*models.MapConfig),
			Maps:    make(map[string]*models.StoredMap),
		},
	}

	// Load existing data if file exists
	if _, err := os.Stat(filePath); err == nil {
		if err := store.loadFromFile(); err != nil {
			return nil, fmt.Errorf("failed to load JSON store: %w", err)
		}
	} else {
		if err := store.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to create JSON store file: %w", err)
		}
	}

	return store, nil
}

// loadFromFile loads data from the JSON file
func (js *JSONStore) loadFromFile() error {
	js.mutex.Lock()
	defer js.mutex.Unlock()

	file, err := os.ReadFile(js.filePath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(file, js.data); err != nil {
		return err
	}
	if js.data.Configs == nil {
		js.data.Configs = make(map[string]*models.MapConfig)
	}
	if js.data.Maps == nil {
		js.data.Maps = make(map[string]*models.StoredMap)
	}
	return nil
}

// saveToFile writes the whole store through a temp file and rename
func (js *JSONStore) saveToFile() error {
	js.writeMu.Lock()
	defer js.writeMu.Unlock()

	js.mutex.RLock()
	data, err := json.MarshalIndent(js.data, "", "  ")
	js.mutex.RUnlock()
	if err != nil {
		return err
	}

	tmp := js.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, js.filePath)
}

// SaveConfig saves a config under a name
func (js *JSONStore) SaveConfig(name string, cfg *models.MapConfig) error {
	js.mutex.Lock()
	js.data.Configs[name] = cfg.Clone()
	js.mutex.Unlock()

	return js.saveToFile()
}

// LoadConfig loads a config by name
func (js *JSONStore) LoadConfig(name string) (*models.MapConfig, error) {
	js.mutex.RLock()
	defer js.mutex.RUnlock()

	cfg, exists := js.data.Configs[name]
	if !exists {
		return nil, fmt.Errorf("config %q: %w", name, ErrNotFound)
	}
	return cfg.Clone(), nil
}

// ListConfigs returns the stored config names in order
func (js *JSONStore) ListConfigs() ([]string, error) {
	js.mutex.RLock()
	defer js.mutex.RUnlock()
	return sortedKeys(js.data.Configs), nil
}

// DeleteConfig removes a config
func (js *JSONStore) DeleteConfig(name string) error {
	js.mutex.Lock()
	_, exists := js.data.Configs[name]
	delete(js.data.Configs, name)
	js.mutex.Unlock()

	if !exists {
		return fmt.Errorf("config %q: %w", name, ErrNotFound)
	}
	return js.saveToFile()
}

// SaveMap saves a map, keeping the id and creation time of an existing entry
func (js *JSONStore) SaveMap(m *models.StoredMap) error {
	now := time.Now().UTC()

	js.mutex.Lock()
	stored := *m
	stored.Rows = append([]string{}, m.Rows...)
	if prev, exists := js.data.Maps[m.Name]; exists {
		stored.ID = prev.ID
		stored.CreatedAt = prev.CreatedAt
	} else {
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	js.data.Maps[m.Name] = &stored
	m.ID, m.CreatedAt, m.UpdatedAt = stored.ID, stored.CreatedAt, stored.UpdatedAt
	js.mutex.Unlock()

	return js.saveToFile()
}

// LoadMap loads a map by name
func (js *JSONStore) LoadMap(name string) (*models.StoredMap, error) {
	js.mutex.RLock()
	defer js.mutex.RUnlock()

	m, exists := js.data.Maps[name]
	if !exists {
		return nil, fmt.Errorf("map %q: %w", name, ErrNotFound)
	}
	out := *m
	out.Rows = append([]string{}, m.Rows...)
	return &out, nil
}

// ListMaps returns the stored map names in order
func (js *JSONStore) ListMaps() ([]string, error) {
	js.mutex.RLock()
	defer js.mutex.RUnlock()
	return sortedKeys(js.data.Maps), nil
}

// Close closes the store (no-op for JSON store)
func (js *JSONStore) Close() error {
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
