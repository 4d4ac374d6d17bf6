// Package config loads the engine's tuning knobs from a layered set of
// sources (built-in defaults, optionally overridden by a YAML file), mirroring
// the priority-ordered ConfigSource pattern the rest of the codebase uses for
// its own configuration, scaled down to the handful of knobs the index needs.
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// EngineConfig holds the index's tunable knobs. None of these affect
// correctness, only capacity planning and scan parallelism.
type EngineConfig struct {
	// MinCapacity is the smallest flight-array allocation the Device Store
	// will make on first population, even if the initial batch is empty.
	MinCapacity int `yaml:"min_capacity"`
	// SweepWorkerCount bounds how many shards the Sweep Query fans its
	// per-slot classification across. Zero means GOMAXPROCS.
	SweepWorkerCount int `yaml:"sweep_worker_count"`
	// SentinelValue is the integer that terminates a flight's flat airport
	// list in the Boundary Shim's encoding. Historically -1337.
	SentinelValue int64 `yaml:"sentinel_value"`
}

// DefaultEngineConfig returns the built-in defaults, used when no file
// source overrides them.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MinCapacity:      16,
		SweepWorkerCount: 0,
		SentinelValue:    -1337,
	}
}

// Source produces a partial EngineConfig overlay and reports the priority at
// which it should be applied; higher priority wins when sources conflict.
type Source interface {
	Name() string
	Priority() int
	Load() (EngineConfig, error)
}

// DefaultSource is the lowest-priority source, always present.
type DefaultSource struct{}

func (DefaultSource) Name() string             { return "default" }
func (DefaultSource) Priority() int             { return 0 }
func (DefaultSource) Load() (EngineConfig, error) { return DefaultEngineConfig(), nil }

// FileSource loads overrides from a YAML file. Missing fields in the file
// are left at whatever a lower-priority source already produced.
type FileSource struct {
	Path string
}

func (f FileSource) Name() string { return "file:" + f.Path }
func (f FileSource) Priority() int { return 10 }

func (f FileSource) Load() (EngineConfig, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("config: reading %s: %w", f.Path, err)
	}
	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("config: parsing %s: %w", f.Path, err)
	}
	return cfg, nil
}

// Loader merges a set of Sources in priority order, lowest first, so each
// successive source's non-zero fields overlay the previous result.
type Loader struct {
	sources []Source
}

// NewLoader creates a Loader seeded with DefaultSource.
func NewLoader() *Loader {
	return &Loader{sources: []Source{DefaultSource{}}}
}

// AddSource registers an additional config source.
func (l *Loader) AddSource(s Source) {
	l.sources = append(l.sources, s)
}

// Load runs every registered source in ascending priority order and merges
// the results, later (higher-priority) non-zero fields overriding earlier
// ones.
func (l *Loader) Load() (EngineConfig, error) {
	ordered := make([]Source, len(l.sources))
	copy(ordered, l.sources)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Priority() < ordered[j].Priority() })

	var merged EngineConfig
	for _, s := range ordered {
		cfg, err := s.Load()
		if err != nil {
			return EngineConfig{}, fmt.Errorf("config: source %s: %w", s.Name(), err)
		}
		merged = mergeNonZero(merged, cfg)
	}
	return merged, nil
}

func mergeNonZero(base, overlay EngineConfig) EngineConfig {
	if overlay.MinCapacity != 0 {
		base.MinCapacity = overlay.MinCapacity
	}
	if overlay.SweepWorkerCount != 0 {
		base.SweepWorkerCount = overlay.SweepWorkerCount
	}
	if overlay.SentinelValue != 0 {
		base.SentinelValue = overlay.SentinelValue
	}
	return base
}
