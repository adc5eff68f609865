// Package config defines service configuration structures and loading hooks.
package config

import "runtime"

// ColumnConfig declares one leaderboard column and the race log ids whose
// fleet it scores.
type ColumnConfig struct {
	Name  string   `koanf:"name"`
	Races []string `koanf:"races"`
}

// LeaderboardConfig declares one leaderboard assembled at startup.
type LeaderboardConfig struct {
	Name string `koanf:"name"`

	// Scheme is "low_point" or "high_point".
	Scheme string `koanf:"scheme"`

	// Discards holds the completed-race thresholds of the discard rule,
	// strictly increasing. Empty means no discards.
	Discards []int `koanf:"discards"`

	Columns []ColumnConfig `koanf:"columns"`
}

// GroupConfig declares one meta-leaderboard over existing leaderboards.
type GroupConfig struct {
	Name string `koanf:"name"`

	// Scheme is "low_point" or "high_point".
	Scheme string `koanf:"scheme"`

	// Members names the leaderboards aggregated into the group.
	Members []string `koanf:"members"`
}

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// FixQueueSize bounds the in-memory tracking fix queue.
	FixQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of fix ingestion workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the fix deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// ShardCount configures the number of shards in the rank store.
	ShardCount int `koanf:"shard_count"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ArchivePath points at the SQLite archive file. Empty disables
	// persistence.
	ArchivePath string `koanf:"archive_path"`

	// Leaderboards and Groups are assembled at startup.
	Leaderboards []LeaderboardConfig `koanf:"leaderboards"`
	Groups       []GroupConfig       `koanf:"groups"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		FixQueueSize:        100_000,
		WorkerCount:         runtime.NumCPU() * 2,
		DedupeSize:          500_000,
		ShardCount:          16,
		MaxLeaderboardLimit: 100,
	}
}
