package cache

import "time"

// Stats represents cache statistics
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	ItemCount int64   `json:"item_count"`
}

// Config holds cache configuration
type Config struct {
	L1Size int           // max entries held in memory
	L1TTL  time.Duration // TTL of in-memory entries
	L2TTL  time.Duration // TTL of remote entries, zero uses the remote default
}

// DefaultConfig returns default cache configuration
func DefaultConfig() *Config {
	return &Config{
		L1Size: 512,
		L1TTL:  30 * time.Minute,
		L2TTL:  24 * time.Hour,
	}
}
