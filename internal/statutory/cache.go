package statutory

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheVersionKey holds the shared report-cache generation counter. Every
// process reads it on each key build, so bumping it here invalidates cached
// reports everywhere at once.
const cacheVersionKey = "statutory:version"

// Cache wraps Redis caching of assembled reports behind a versioned keyspace.
// A nil Cache (or nil client) degrades to loader passthrough, so callers
// never special-case a disabled cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Version returns the current cache generation, initialising it to one when
// missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
		return 0, err
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err != nil {
		return 0, err
	}
	if ver < 1 {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// BuildKey composes a cache key suffixed with the current generation, so a
// Bump orphans every key built before it.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(parts, ":")
	if !c.enabled() {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return joined + ":" + strconv.FormatInt(ver, 10), nil
}

// FetchJSON fills dest from the cache, falling back to the loader and storing
// its result on a miss.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("statutory: cache loader required")
	}
	if c.enabled() {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c.enabled() {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dest)
}

// Bump advances the cache generation. Stale entries are left to expire via
// their TTL; nothing ever reads them again.
func (c *Cache) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func keyReport(companyID, reportID int64) string {
	return strings.Join([]string{"statutory", "report", formatInt(companyID), formatInt(reportID)}, ":")
}

func keyReportList(companyID int64, taxYear int) string {
	return strings.Join([]string{"statutory", "reports", formatInt(companyID), strconv.Itoa(taxYear)}, ":")
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
