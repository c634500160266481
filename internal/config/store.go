package config

import (
	"sync/atomic"
)

// Store holds the active config generation. Readers call Load once per file
// and keep that snapshot for the whole operation, so a reload never mixes
// settings of two generations.
type Store struct {
	current    atomic.Pointer[Config]
	generation atomic.Uint64
	overrides  []Override
}

// Override adjusts every generation before it is published. Command line
// flags use it so they survive reloads.
type Override func(*Config)

// DryRun forces dry-run mode on
func DryRun() Override {
	return func(c *Config) { c.DryRun = true }
}

// ScanExisting forces the startup scan on
func ScanExisting() Override {
	return func(c *Config) { c.ScanExisting = true }
}

// NewStore publishes initial as generation 1
func NewStore(initial *Config, overrides ...Override) *Store {
	s := &Store{overrides: overrides}
	s.Swap(initial)
	return s
}

// Load returns the current generation
func (s *Store) Load() *Config {
	return s.current.Load()
}

// Swap publishes next as a new generation and returns the published copy
func (s *Store) Swap(next *Config) *Config {
	c := *next
	for _, o := range s.overrides {
		o(&c)
	}
	c.Generation = s.generation.Add(1)
	s.current.Store(&c)
	return &c
}

// Reload loads path and publishes the result. prepare runs between a
// successful load and the swap with the old and candidate generations; if it
// fails the candidate is discarded. On any error the current generation stays
// in place.
func (s *Store) Reload(path string, prepare func(old, next *Config) error) (*Config, error) {
	next, err := LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	if prepare != nil {
		if err := prepare(s.Load(), next); err != nil {
			return nil, err
		}
	}
	return s.Swap(next), nil
}
