package config

import (
	"time"

	"github.com/rs/zerolog/log"
)

// CacheConfig holds all cache-related configuration
type CacheConfig struct {
	// LRU Cache settings
	TideYearLRUSize       int
	TideYearLRUTTLMinutes int

	// DynamoDB Cache settings
	TideYearTTLDays int

	// Bridge registry settings
	BridgeRegistryTTLDays int

	// General settings
	EnableLRUCache    bool
	EnableDynamoCache bool
}

const (
	// Default values
	defaultTideYearLRUSize       = 64
	defaultTideYearLRUTTLMinutes = 60
	defaultTideYearTTLDays       = 30
	defaultBridgeRegistryTTLDays = 7
)

// GetCacheConfig returns the cache configuration from environment variables or defaults
func GetCacheConfig() *CacheConfig {
	config := &CacheConfig{
		// Set defaults
		TideYearLRUSize:       getEnvInt("CACHE_TIDE_LRU_SIZE", defaultTideYearLRUSize),
		TideYearLRUTTLMinutes: getEnvInt("CACHE_TIDE_LRU_TTL_MINUTES", defaultTideYearLRUTTLMinutes),
		TideYearTTLDays:       getEnvInt("CACHE_TIDE_YEAR_TTL_DAYS", defaultTideYearTTLDays),
		BridgeRegistryTTLDays: getEnvInt("CACHE_BRIDGE_REGISTRY_TTL_DAYS", defaultBridgeRegistryTTLDays),
		EnableLRUCache:        getEnvBool("CACHE_ENABLE_LRU", true),
		EnableDynamoCache:     getEnvBool("CACHE_ENABLE_DYNAMO", true),
	}

	log.Debug().
		Int("TideYearLRUSize", config.TideYearLRUSize).
		Int("TideYearLRUTTLMinutes", config.TideYearLRUTTLMinutes).
		Int("TideYearTTLDays", config.TideYearTTLDays).
		Int("BridgeRegistryTTLDays", config.BridgeRegistryTTLDays).
		Bool("EnableLRUCache", config.EnableLRUCache).
		Bool("EnableDynamoCache", config.EnableDynamoCache).
		Msg("Cache configuration loaded")

	return config
}

// Helper methods for the CacheConfig struct
func (c *CacheConfig) GetLRUTTL() time.Duration {
	return time.Duration(c.TideYearLRUTTLMinutes) * time.Minute
}

func (c *CacheConfig) GetTideYearTTL() time.Duration {
	return time.Duration(c.TideYearTTLDays) * 24 * time.Hour
}

func (c *CacheConfig) GetBridgeRegistryTTL() time.Duration {
	return time.Duration(c.BridgeRegistryTTLDays) * 24 * time.Hour
}
