// Package cache stores embedding vectors by content hash in memory and on disk.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ppiankov/thematic/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key hashes parts into a versioned cache key. Parts are separated by a NUL
// byte so ("ab","c") and ("a","bc") differ.
func Key(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return "thematic:v1:" + hex.EncodeToString(h.Sum(nil))
}

// New builds the cache described by cfg: nil when disabled, memory only when
// no directory is set, memory over disk otherwise.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	memoryTTL := time.Duration(cfg.MemoryTTLMinutes) * time.Minute
	if cfg.Dir == "" {
		return NewMemoryCache(memoryTTL, 10*time.Minute)
	}
	return NewLayeredCache(memoryTTL, cfg.Dir, time.Duration(cfg.DiskTTLHours)*time.Hour)
}
