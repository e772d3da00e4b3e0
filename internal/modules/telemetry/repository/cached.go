package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/types"
)

// LatestReadingKey is a hash: "reading" holds the JSON of the newest stored
// reading and "ts" its timestamp.
const LatestReadingKey = "readings:latest"

// ErrCacheMiss is returned by a LatestCache with nothing stored.
var ErrCacheMiss = errors.New("latest reading not cached")

// setLatestScript replaces the cached reading unless the cached one is newer.
// Timestamps are zero-padded UnixNano strings, so string order is time order.
var setLatestScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'ts')
if cur and cur > ARGV[2] then
  return 0
end
redis.call('HSET', KEYS[1], 'ts', ARGV[2], 'reading', ARGV[1])
if tonumber(ARGV[3]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// LatestCache keeps the newest reading close to the dashboard. SetLatest
// never replaces a reading with an older one.
type LatestCache interface {
	SetLatest(ctx context.Context, r types.Reading) error
	GetLatest(ctx context.Context) (types.Reading, error)
}

type redisLatestCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLatestCache stores the latest reading under LatestReadingKey with
// the given expiry (0 keeps it forever).
func NewRedisLatestCache(client *redis.Client, ttl time.Duration) LatestCache {
	return &redisLatestCache{client: client, ttl: ttl}
}

func (c *redisLatestCache) SetLatest(ctx context.Context, r types.Reading) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	ts := fmt.Sprintf("%020d", r.Timestamp.UnixNano())
	return setLatestScript.Run(ctx, c.client, []string{LatestReadingKey}, b, ts, c.ttl.Milliseconds()).Err()
}

func (c *redisLatestCache) GetLatest(ctx context.Context) (types.Reading, error) {
	b, err := c.client.HGet(ctx, LatestReadingKey, "reading").Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Reading{}, ErrCacheMiss
	}
	if err != nil {
		return types.Reading{}, err
	}
	var r types.Reading
	if err := json.Unmarshal(b, &r); err != nil {
		return types.Reading{}, err
	}
	return r, nil
}

type cachedRepository struct {
	ReadingRepository
	cache  LatestCache
	logger *slog.Logger

	// mu orders cache writes; newest is the timestamp last written.
	mu     sync.Mutex
	newest time.Time
}

// WithLatestCache wraps inner so that inserts refresh the cache and
// single-row "latest" queries are answered from it. Cache trouble is logged
// and otherwise ignored; the inner repository stays the source of truth.
// Inserts that finish out of order never move the cached reading backwards.
func WithLatestCache(inner ReadingRepository, cache LatestCache, logger *slog.Logger) ReadingRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &cachedRepository{ReadingRepository: inner, cache: cache, logger: logger}
}

func (r *cachedRepository) InsertReading(ctx context.Context, rec types.Reading) (types.Reading, error) {
	stored, err := r.ReadingRepository.InsertReading(ctx, rec)
	if err != nil {
		return stored, err
	}
	r.refresh(ctx, stored)
	return stored, nil
}

func (r *cachedRepository) refresh(ctx context.Context, stored types.Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored.Timestamp.Before(r.newest) {
		r.logger.Debug("latest cache kept newer reading", "id", stored.ID, "ts", stored.Timestamp)
		return
	}
	if err := r.cache.SetLatest(ctx, stored); err != nil {
		r.logger.Warn("latest cache update failed", "id", stored.ID, "error", err)
		return
	}
	r.newest = stored.Timestamp
}

func (r *cachedRepository) GetLatestReadings(ctx context.Context, limit int) ([]types.Reading, error) {
	if limit == 1 {
		latest, err := r.cache.GetLatest(ctx)
		if err == nil {
			return []types.Reading{latest}, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			r.logger.Warn("latest cache read failed", "error", err)
		}
	}
	return r.ReadingRepository.GetLatestReadings(ctx, limit)
}
