// Package responsecache caches completed provider responses keyed by the
// exact request content. The cache is advisory: every failure path reads as
// a miss and the caller proceeds to the provider.
package responsecache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"ai-agent-gateway/pkg/llm"
)

// DefaultTTL mirrors the 5-minute response cache the platform has used for
// non-streaming replies.
const DefaultTTL = 5 * time.Minute

type Cache struct {
	cache      *gocache.Cache
	defaultTTL time.Duration
}

func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	// purge expired entries at twice the TTL cadence
	return &Cache{
		cache:      gocache.New(defaultTTL, 2*defaultTTL),
		defaultTTL: defaultTTL,
	}
}

// Key derives the cache key from provider, model and the canonical JSON of
// the full message list. Context differences (history) naturally produce
// different keys.
func Key(provider, model string, messages []llm.Message) string {
	payload, err := json.Marshal(messages)
	if err != nil {
		// unreachable for plain string fields; fall back to an empty key
		payload = nil
	}
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write(payload)
	return "ai_response:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached result for key, if present and unexpired.
func (c *Cache) Get(key string) (*llm.Result, bool) {
	if x, found := c.cache.Get(key); found {
		if result, ok := x.(*llm.Result); ok {
			return result, true
		}
	}
	return nil, false
}

// Put stores a result under key. ttl <= 0 uses the cache default.
func (c *Cache) Put(key string, result *llm.Result, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.cache.Set(key, result, ttl)
}
