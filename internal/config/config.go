package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the rspd daemon.
type ServerConfig struct {
	Addr        string // Listen address (default ":8080")
	LogLevel    string // Log level: debug, info, warn, error
	LogFormat   string // Log format: text, json
	DBPath      string // SQLite journal path (":memory:" for testing)
	StationFile string // Station YAML; empty uses DefaultStation
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Board describes one board of the station and how its simulator behaves.
type Board struct {
	Name      string        `yaml:"name"`
	Registers int           `yaml:"registers"`
	Latency   time.Duration `yaml:"latency"`
	// Stall makes the board never answer, for exercising forced rounds.
	Stall bool `yaml:"stall"`
	// StatusRegisters are read back on every round.
	StatusRegisters []int `yaml:"status_registers"`
	// Expr computes status register values from reg, tick and value.
	Expr string `yaml:"expr"`
}

// Station is the timing and board layout of one station.
type Station struct {
	SyncInterval    int64         `yaml:"sync_interval"`
	SchedulingDelay int64         `yaml:"scheduling_delay"`
	JitterTolerance time.Duration `yaml:"jitter_tolerance"`
	Boards          []Board       `yaml:"boards"`
}

// DefaultStation returns a single simulated board with one status register.
func DefaultStation() Station {
	return Station{
		SyncInterval:    1,
		SchedulingDelay: 2,
		JitterTolerance: 10 * time.Millisecond,
		Boards: []Board{{
			Name:            "rsp0",
			Registers:       64,
			Latency:         50 * time.Millisecond,
			StatusRegisters: []int{0},
			Expr:            "tick % 4294967296",
		}},
	}
}

// LoadStation reads and validates a station file.
func LoadStation(path string) (Station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Station{}, fmt.Errorf("read station file: %w", err)
	}
	st, err := ParseStation(data)
	if err != nil {
		return Station{}, fmt.Errorf("%s: %w", path, err)
	}
	return st, nil
}

// ParseStation decodes a station document. Timing fields that are left
// out keep their defaults; unknown keys are rejected.
func ParseStation(data []byte) (Station, error) {
	st := DefaultStation()
	st.Boards = nil

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&st); err != nil {
		return Station{}, fmt.Errorf("parse station: %w", err)
	}
	if err := st.Validate(); err != nil {
		return Station{}, err
	}
	return st, nil
}

// Validate checks timing parameters and board layout.
func (s Station) Validate() error {
	var errs []error
	if s.SyncInterval <= 0 {
		errs = append(errs, fmt.Errorf("sync_interval must be positive, got %d", s.SyncInterval))
	}
	if s.SchedulingDelay < 0 {
		errs = append(errs, fmt.Errorf("scheduling_delay must not be negative, got %d", s.SchedulingDelay))
	}
	if s.JitterTolerance < 0 {
		errs = append(errs, fmt.Errorf("jitter_tolerance must not be negative, got %s", s.JitterTolerance))
	}
	if len(s.Boards) == 0 {
		errs = append(errs, errors.New("at least one board is required"))
	}

	seen := make(map[string]bool, len(s.Boards))
	for i, b := range s.Boards {
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("boards[%d]: name is required", i))
		} else if seen[b.Name] {
			errs = append(errs, fmt.Errorf("boards[%d]: duplicate board %q", i, b.Name))
		}
		seen[b.Name] = true
		if b.Registers <= 0 {
			errs = append(errs, fmt.Errorf("boards[%d]: registers must be positive", i))
		}
		if b.Latency < 0 {
			errs = append(errs, fmt.Errorf("boards[%d]: latency must not be negative", i))
		}
		for _, r := range b.StatusRegisters {
			if r < 0 || r >= b.Registers {
				errs = append(errs, fmt.Errorf("boards[%d]: status register %d out of range [0,%d)", i, r, b.Registers))
			}
		}
	}
	return errors.Join(errs...)
}

// BoardSizes maps board names to register counts, for sizing the cache.
func (s Station) BoardSizes() map[string]int {
	out := make(map[string]int, len(s.Boards))
	for _, b := range s.Boards {
		out[b.Name] = b.Registers
	}
	return out
}
