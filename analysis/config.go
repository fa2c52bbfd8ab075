// Copyright 2026 The Cacheaudit Authors

// This file is part of Cacheaudit.
//
// Cacheaudit is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Cacheaudit is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Cacheaudit.  If not, see <https://www.gnu.org/licenses/>.

package analysis

import (
	"os"

	"github.com/go-errors/errors"
	"gopkg.in/yaml.v3"

	"github.com/Ezekiel-1998/cacheaudit/vm"
)

// CacheParams configures the reference abstract cache.
type CacheParams struct {
	vm.CacheConfig `yaml:",inline"`
	// InitiallyEmpty starts the analysis from an empty cache; otherwise the
	// initial content is unknown.
	InitiallyEmpty bool `yaml:"initially_empty"`
}

// Config holds every tunable of an analysis run.
type Config struct {
	vm.Durations `yaml:",inline"`

	// MaxTimes bounds the cardinality of time sets before they become unknown.
	MaxTimes int         `yaml:"max_times"`
	Cache    CacheParams `yaml:"cache"`
	// TrackTraces selects the trace domain; when false the cache is analyzed alone.
	TrackTraces bool `yaml:"track_traces"`
	// MaxUnroll is the number of backward jumps after which loop heads are widened.
	MaxUnroll int `yaml:"max_unroll"`
	// MaxIterations bounds the widening rounds per location.
	MaxIterations int `yaml:"max_iterations"`
}

// The Magic helpers mark tuning constants so they are easy to find.

func MagicInt(n int) int {
	return n
}

func MagicBool(b bool) bool {
	return b
}

func MagicUInt64(n uint64) uint64 {
	return n
}

func DefaultConfig() Config {
	return Config{
		Durations: vm.Durations{
			Hit:      MagicUInt64(3),
			Miss:     MagicUInt64(20),
			NoAccess: MagicUInt64(1),
		},
		MaxTimes: MagicInt(10000000),
		Cache: CacheParams{
			CacheConfig: vm.CacheConfig{
				LineSize: MagicUInt64(64),
				Sets:     MagicUInt64(64),
				Ways:     MagicUInt64(8),
			},
			InitiallyEmpty: MagicBool(true),
		},
		TrackTraces:   MagicBool(true),
		MaxUnroll:     MagicInt(16),
		MaxIterations: MagicInt(64),
	}
}

func (c Config) Validate() error {
	switch {
	case c.Cache.LineSize == 0 || c.Cache.Sets == 0 || c.Cache.Ways == 0:
		return errors.Errorf("cache geometry must be positive, got %+v", c.Cache.CacheConfig)
	case maxWays < c.Cache.Ways:
		return errors.Errorf("at most %d ways are supported, got %d", maxWays, c.Cache.Ways)
	case c.MaxTimes < 1:
		return errors.Errorf("max_times must be positive, got %d", c.MaxTimes)
	case c.MaxUnroll < 0:
		return errors.Errorf("max_unroll must not be negative, got %d", c.MaxUnroll)
	case c.MaxIterations < 1:
		return errors.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	return nil
}

// LoadConfig reads a YAML configuration. Keys missing from the file keep
// their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, 0)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.WrapPrefix(err, path, 0)
	}
	return cfg, cfg.Validate()
}
