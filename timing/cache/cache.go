// Package cache provides a data-cache profiler using Akita cache components.
//
// The profiler tracks tags only. The data store stays authoritative for every
// value, so attaching a cache never changes program results; it only records
// which accesses would hit and what they would cost.
package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int `json:"size"`
	// Associativity (number of ways)
	Associativity int `json:"associativity"`
	// BlockSize in bytes (cache line size)
	BlockSize int `json:"block_size"`
	// HitLatency in cycles
	HitLatency uint64 `json:"hit_latency"`
	// MissLatency in cycles
	MissLatency uint64 `json:"miss_latency"`
}

// DefaultConfig returns a small direct-to-store L1 data cache suited to the
// few-kilobyte data stores the simulator is normally run with.
func DefaultConfig() Config {
	return Config{
		Size:          4 * 1024, // 4KB
		Associativity: 4,        // 4-way
		BlockSize:     32,       // 32B line
		HitLatency:    1,
		MissLatency:   10,
	}
}

// Validate checks that the geometry describes at least one full set.
func (c Config) Validate() error {
	if c.BlockSize <= 0 || c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("cache block_size must be a power of two, got %d", c.BlockSize)
	}
	if c.Associativity <= 0 {
		return fmt.Errorf("cache associativity must be > 0, got %d", c.Associativity)
	}
	if c.Size < c.BlockSize*c.Associativity || c.Size%(c.BlockSize*c.Associativity) != 0 {
		return fmt.Errorf("cache size %d is not a multiple of associativity*block_size", c.Size)
	}
	return nil
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether every block touched was resident.
	Hit bool
	// Latency is the number of cycles this access would take.
	Latency uint64
	// Evicted is true if a valid block was replaced.
	Evicted bool
	// EvictedAddr is the address of the evicted block (if Evicted is true).
	EvictedAddr uint64
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// HitRate returns hits / (hits + misses), or 0 before any access.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is a tag-only cache model backed by an Akita directory.
type Cache struct {
	// Configuration
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Statistics
	stats Statistics
}

// New creates a new cache with the given configuration.
func New(config Config) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

// Read records a load of size bytes at addr.
func (c *Cache) Read(addr uint32, size int) AccessResult {
	c.stats.Reads++
	return c.access(addr, size, false)
}

// Write records a store of size bytes at addr.
// Uses write-allocate policy: a missing block is brought in and marked dirty.
func (c *Cache) Write(addr uint32, size int) AccessResult {
	c.stats.Writes++
	return c.access(addr, size, true)
}

// access visits every block the access touches. An unaligned access that
// spans two lines hits only if both are resident.
func (c *Cache) access(addr uint32, size int, isWrite bool) AccessResult {
	if size < 1 {
		size = 1
	}

	blockSize := uint64(c.config.BlockSize)
	first := c.blockAddr(uint64(addr))
	last := c.blockAddr(uint64(addr) + uint64(size) - 1)

	result := AccessResult{Hit: true, Latency: c.config.HitLatency}
	for blockAddr := first; blockAddr <= last; blockAddr += blockSize {
		if c.lookup(blockAddr, isWrite) {
			continue
		}

		result.Hit = false
		result.Latency = c.config.MissLatency
		if evicted, victimAddr := c.fill(blockAddr, isWrite); evicted {
			result.Evicted = true
			result.EvictedAddr = victimAddr
		}
	}

	if result.Hit {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}

	return result
}

func (c *Cache) blockAddr(addr uint64) uint64 {
	return (addr / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)
}

// lookup returns true on a hit and updates LRU state.
func (c *Cache) lookup(blockAddr uint64, isWrite bool) bool {
	block := c.directory.Lookup(0, blockAddr) // PID=0, single address space
	if block == nil || !block.IsValid {
		return false
	}

	c.directory.Visit(block) // Update LRU
	if isWrite {
		block.IsDirty = true
	}
	return true
}

// fill installs blockAddr, evicting the LRU victim of its set.
func (c *Cache) fill(blockAddr uint64, isWrite bool) (bool, uint64) {
	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		// This shouldn't happen with proper directory setup
		return false, 0
	}

	evicted := false
	var victimAddr uint64
	if victim.IsValid {
		evicted = true
		victimAddr = victim.Tag // Tag stores block-aligned address
		c.stats.Evictions++
		if victim.IsDirty {
			c.stats.Writebacks++
		}
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = isWrite
	c.directory.Visit(victim) // Update LRU

	return evicted, victimAddr
}

// Invalidate marks a cache line as invalid.
func (c *Cache) Invalidate(addr uint32) {
	block := c.directory.Lookup(0, c.blockAddr(uint64(addr)))
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Flush counts a writeback for every dirty line and invalidates all lines.
func (c *Cache) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty {
				c.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Reset invalidates all cache lines and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}
