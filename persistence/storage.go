package persistence

import (
	"errors"

	"mapsmith/models"
)

// ErrNotFound is returned when no config or map is stored under a name
var ErrNotFound = errors.New("not found")

// Storage defines the interface for config and map persistence
type Storage interface {
	SaveConfig(name string, cfg *models.MapConfig) error
	LoadConfig(name string) (*models.MapConfig, error)
	ListConfigs() ([]string, error)
	DeleteConfig(name string) error
	SaveMap(m *models.StoredMap) error
	LoadMap(name string) (*models.StoredMap, error)
	ListMaps() ([]string, error)
	Close() error
}
