package cache

import "time"

// CacheConfig holds configuration for the caching layer.
type CacheConfig struct {
	// Enabled controls whether caching is active.
	Enabled bool `mapstructure:"enabled"`

	// ProjectsTTL bounds how long a project list or detail response is served
	// from cache. age_days in a cached body may lag by up to this long.
	ProjectsTTL time.Duration `mapstructure:"projects_ttl"`

	// AuditTTL is the TTL for audit trail responses.
	AuditTTL time.Duration `mapstructure:"audit_ttl"`

	// MaxSize is the maximum number of entries per cache instance.
	MaxSize int `mapstructure:"max_size"`
}

// DefaultCacheConfig returns a CacheConfig with sensible defaults.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Enabled:     true,
		ProjectsTTL: 30 * time.Second,
		AuditTTL:    30 * time.Second,
		MaxSize:     500,
	}
}
