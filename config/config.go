// Package config holds the simulator configuration and its JSON form.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/r32sim/emu"
	"github.com/sarchlab/r32sim/timing/cache"
)

// SimConfig holds the parameters of one simulation run.
type SimConfig struct {
	// DataSize is the size of the data store in bytes. Default: 256.
	DataSize uint32 `json:"data_size"`

	// ProgramSize is the size of the program store in bytes. Zero sizes
	// the store to fit the loaded image.
	ProgramSize uint32 `json:"program_size"`

	// Entry is the address of the first fetch. Default: 0.
	Entry uint32 `json:"entry"`

	// RegisterProfile selects the reserved-register rules.
	// Default: "baseline" (only $z is protected).
	RegisterProfile emu.RegisterProfile `json:"register_profile"`

	// MaxCycles bounds run and continue. Zero means unlimited.
	MaxCycles uint64 `json:"max_cycles"`

	// DCache enables data cache profiling when set.
	DCache *cache.Config `json:"dcache,omitempty"`
}

// DefaultSimConfig returns a SimConfig with the default values.
func DefaultSimConfig() *SimConfig {
	return &SimConfig{
		DataSize:        256,
		RegisterProfile: emu.ProfileBaseline,
	}
}

// LoadConfig loads a SimConfig from a JSON file. Fields absent from the
// file keep their default values.
func LoadConfig(path string) (*SimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultSimConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a SimConfig to a JSON file.
func (c *SimConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration describes a runnable machine.
// The entry point is checked against the program store when the image is
// loaded.
func (c *SimConfig) Validate() error {
	if c.DataSize == 0 {
		return fmt.Errorf("data_size must be > 0")
	}
	if c.ProgramSize != 0 && c.ProgramSize%4 != 0 {
		return fmt.Errorf("program_size must be a multiple of 4, got %d", c.ProgramSize)
	}
	if c.ProgramSize != 0 && c.Entry >= c.ProgramSize {
		return fmt.Errorf("entry 0x%X must be < program_size 0x%X", c.Entry, c.ProgramSize)
	}
	if _, err := c.RegisterProfile.Options(c.DataSize); err != nil {
		return err
	}
	if c.DCache != nil {
		if err := c.DCache.Validate(); err != nil {
			return fmt.Errorf("dcache: %w", err)
		}
	}
	return nil
}

// Clone returns a deep copy of the SimConfig.
func (c *SimConfig) Clone() *SimConfig {
	clone := *c
	if c.DCache != nil {
		dcache := *c.DCache
		clone.DCache = &dcache
	}
	return &clone
}

// RegFileOptions returns the register file options for the configured
// profile.
func (c *SimConfig) RegFileOptions() ([]emu.RegFileOption, error) {
	return c.RegisterProfile.Options(c.DataSize)
}
