package cache

import (
	"github.com/prorata-io/prorata/internal/config"
	"github.com/prorata-io/prorata/internal/logger"
	redisClient "github.com/prorata-io/prorata/internal/redis"
)

// CacheType represents the type of cache to use
type CacheType string

const (
	// CacheTypeInMemory represents an in-memory cache
	CacheTypeInMemory CacheType = "inmemory"

	// CacheTypeRedis represents a Redis-backed cache
	CacheTypeRedis CacheType = "redis"
)

// Initialize initializes the cache system based on the specified type
func Initialize(cfg *config.Configuration, log *logger.Logger) Cache {
	log.Infow("initializing cache system", "type", cfg.Cache.Type)

	var cache Cache

	switch CacheType(cfg.Cache.Type) {
	case CacheTypeRedis:
		client, err := redisClient.NewClientFromConfig(cfg, log)
		if err != nil {
			log.Errorw("failed to connect to redis, falling back to in-memory cache", "error", err)
			InitializeInMemoryCache()
			cache = GetInMemoryCache()
			break
		}
		InitializeRedisCache(client, log, cfg)
		cache = GetRedisCache()
	case CacheTypeInMemory:
		fallthrough
	default:
		InitializeInMemoryCache()
		cache = GetInMemoryCache()
	}

	return cache
}
