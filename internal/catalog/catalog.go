// Package catalog loads the curated factor catalog: the factors clients may
// add to a project, their display names and units, and the design defaults.
// The built-in catalog is compiled into the binary; deployments can replace
// it with a YAML file via SCOUTCORE_CATALOG_PATH.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"scoutcore/pkg/domain"
)

//go:embed factors.yaml
var embedded []byte

// EnvPath names the environment variable pointing at a replacement catalog.
const EnvPath = "SCOUTCORE_CATALOG_PATH"

// Entry describes one curated factor.
type Entry struct {
	Key           string            `json:"key" yaml:"key"`
	DisplayName   string            `json:"display_name" yaml:"display_name"`
	Kind          domain.FactorKind `json:"kind" yaml:"kind"`
	Unit          string            `json:"unit,omitempty" yaml:"unit,omitempty"`
	RequiresStock bool              `json:"requires_stock" yaml:"requires_stock"`
	Description   string            `json:"description,omitempty" yaml:"description,omitempty"`
}

// Catalog is the curated factor list plus design defaults.
type Catalog struct {
	DefaultFinalVolume float64 `json:"default_final_volume" yaml:"default_final_volume"`
	Factors            []Entry `json:"factors" yaml:"factors"`
}

// Lookup returns the entry for an exact factor key.
func (c Catalog) Lookup(key string) (Entry, bool) {
	for _, entry := range c.Factors {
		if entry.Key == key {
			return entry, true
		}
	}
	return Entry{}, false
}

// DisplayName returns the curated display name, falling back to the key for
// factors outside the catalog.
func (c Catalog) DisplayName(key string) string {
	if entry, ok := c.Lookup(key); ok && entry.DisplayName != "" {
		return entry.DisplayName
	}
	return key
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

func (c Catalog) validate() error {
	if c.DefaultFinalVolume <= 0 {
		return fmt.Errorf("catalog: default_final_volume must be positive, got %v", c.DefaultFinalVolume)
	}
	if len(c.Factors) == 0 {
		return fmt.Errorf("catalog: no factors defined")
	}
	seen := make(map[string]struct{}, len(c.Factors))
	for i, entry := range c.Factors {
		key := strings.TrimSpace(entry.Key)
		if key == "" {
			return fmt.Errorf("catalog: factor %d has an empty key", i)
		}
		if key != entry.Key {
			return fmt.Errorf("catalog: factor key %q has surrounding whitespace", entry.Key)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("catalog: duplicate factor key %q", key)
		}
		seen[key] = struct{}{}
		switch entry.Kind {
		case domain.KindConcentration, domain.KindPercentage, domain.KindPH, domain.KindCategorical:
		default:
			return fmt.Errorf("catalog: factor %q has unknown kind %q", key, entry.Kind)
		}
		if key == domain.BufferPHFactor && entry.RequiresStock {
			return fmt.Errorf("catalog: %q is dimensionless and cannot require a stock", key)
		}
	}
	return nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog Catalog
	defaultErr     error
)

// Default returns the compiled-in catalog.
func Default() (Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(embedded)
	})
	return defaultCatalog, defaultErr
}

// Load reads and validates a catalog file.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// FromEnv resolves the active catalog: the file named by SCOUTCORE_CATALOG_PATH
// when set, otherwise the compiled-in default.
func FromEnv() (Catalog, error) {
	if path := strings.TrimSpace(os.Getenv(EnvPath)); path != "" {
		return Load(path)
	}
	return Default()
}
