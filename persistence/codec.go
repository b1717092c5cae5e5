package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"mapsmith/models"
)

// ImportConfig reads a JSON config. Unparseable input and configs that fail
// validation are rejected with models.ErrInvalidConfig.
func ImportConfig(r io.Reader) (*models.MapConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return decodeConfig(data, json.Unmarshal)
}

// ExportConfig writes the config as JSON indented by two spaces
func ExportConfig(w io.Writer, cfg *models.MapConfig) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

// LoadConfigFile reads a config from disk; .yaml and .yml are parsed as
// YAML, everything else as JSON
func LoadConfigFile(path string) (*models.MapConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeConfig(data, yaml.Unmarshal)
	default:
		return decodeConfig(data, json.Unmarshal)
	}
}

func decodeConfig(data []byte, unmarshal func([]byte, any) error) (*models.MapConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", models.ErrInvalidConfig)
	}

	cfg := &models.MapConfig{}
	if err := unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidConfig, err)
	}
	if cfg.Barriers == nil {
		cfg.Barriers = []models.BarrierConfig{}
	}
	if cfg.Elements == nil {
		cfg.Elements = []models.ElementConfig{}
	}
	if cfg.Restrictions == nil {
		cfg.Restrictions = []models.Restriction{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
