// Package catalog holds the static practice catalog. It is loaded once at
// startup, validated, and then shared read-only.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mkrupp/practice-tracker/internal/domain"
)

var (
	// ErrEmptyCatalog is returned when the catalog has no practices.
	ErrEmptyCatalog = errors.New("catalog has no practices")
	// ErrDuplicateKey is returned when two practices share a key.
	ErrDuplicateKey = errors.New("duplicate practice key")
	// ErrInvalidPractice is returned for practices with missing or out-of-range fields.
	ErrInvalidPractice = errors.New("invalid practice")
)

//go:embed practices.yaml
var defaultCatalog []byte

// Config selects the catalog source.
type Config struct {
	// Path to a YAML catalog file; the embedded default is used when empty
	Path string `env:"PATH" default:""`
}

// Catalog is an ordered, immutable set of practices.
type Catalog struct {
	practices []domain.Practice
	byKey     map[string]domain.Practice
}

// Load reads the catalog configured by cfg.
func Load(cfg Config) (*Catalog, error) {
	data := defaultCatalog

	if cfg.Path != "" {
		var err error

		data, err = os.ReadFile(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
	}

	return Parse(data)
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Errorf("embedded catalog: %w", err))
	}

	return c
}

// Parse decodes a YAML list of practices and validates it.
func Parse(data []byte) (*Catalog, error) {
	var practices []domain.Practice

	if err := yaml.Unmarshal(data, &practices); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	return New(practices)
}

// New validates practices and builds a Catalog preserving their order.
func New(practices []domain.Practice) (*Catalog, error) {
	if len(practices) == 0 {
		return nil, ErrEmptyCatalog
	}

	byKey := make(map[string]domain.Practice, len(practices))

	for i, p := range practices {
		switch {
		case p.Key == "":
			return nil, fmt.Errorf("%w: entry %d has no key", ErrInvalidPractice, i)
		case p.Points < 0:
			return nil, fmt.Errorf("%w: %s has negative points", ErrInvalidPractice, p.Key)
		case p.MaxPerDay < 1:
			return nil, fmt.Errorf("%w: %s must allow at least one completion per day", ErrInvalidPractice, p.Key)
		}

		if _, exists := byKey[p.Key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, p.Key)
		}

		if p.Label == "" {
			p.Label = p.Key
		}

		practices[i] = p
		byKey[p.Key] = p
	}

	return &Catalog{
		practices: append([]domain.Practice(nil), practices...),
		byKey:     byKey,
	}, nil
}

// All returns the practices in declared order.
func (c *Catalog) All() []domain.Practice {
	return append([]domain.Practice(nil), c.practices...)
}

// Lookup returns the practice with the given key.
func (c *Catalog) Lookup(key string) (domain.Practice, bool) {
	p, ok := c.byKey[key]

	return p, ok
}

// Len returns the number of practices.
func (c *Catalog) Len() int {
	return len(c.practices)
}
