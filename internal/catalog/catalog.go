// Package catalog fetches the platform's flat game list once per process
// and exposes it pre-partitioned into the lobby's fixed buckets, so views
// consume their slice without re-filtering.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cursor2b-collab/vip-sub000/internal/cache"
	"github.com/cursor2b-collab/vip-sub000/internal/upstream"
)

type Bucket string

const (
	BucketLive    Bucket = "live"
	BucketSlots   Bucket = "slots"
	BucketCard    Bucket = "card"
	BucketSports  Bucket = "sports"
	BucketLottery Bucket = "lottery"
	BucketConcise Bucket = "concise"
)

// Buckets lists every lobby bucket in display order.
func Buckets() []Bucket {
	return []Bucket{BucketLive, BucketSlots, BucketCard, BucketSports, BucketLottery, BucketConcise}
}

// bucketByCategory maps the platform's category identifiers to lobby
// buckets. Categories missing from this table fall into the slots bucket so
// the lobby never silently loses a game.
var bucketByCategory = map[string]Bucket{
	"live":        BucketLive,
	"live_casino": BucketLive,
	"casino":      BucketLive,
	"slot":        BucketSlots,
	"slots":       BucketSlots,
	"fishing":     BucketSlots,
	"arcade":      BucketSlots,
	"card":        BucketCard,
	"board":       BucketCard,
	"poker":       BucketCard,
	"sports":      BucketSports,
	"sportsbook":  BucketSports,
	"esports":     BucketSports,
	"lottery":     BucketLottery,
	"lotto":       BucketLottery,
	"hot":         BucketConcise,
	"featured":    BucketConcise,
}

const defaultBucket = BucketSlots

// Partition splits a flat game list into buckets after applying the
// ingestion rewrite rules. Every input record lands in exactly one bucket.
func Partition(records []upstream.GameRecord) map[Bucket][]upstream.GameRecord {
	buckets := make(map[Bucket][]upstream.GameRecord, len(Buckets()))
	for _, record := range records {
		record = applyRewriteRules(record)
		bucket, ok := bucketByCategory[record.Category]
		if !ok {
			bucket = defaultBucket
		}
		buckets[bucket] = append(buckets[bucket], record)
	}
	return buckets
}

// Service owns the loaded catalog for the lifetime of the process.
type Service struct {
	api   *upstream.Client
	cache *cache.Cache
	log   *slog.Logger
	ttl   time.Duration

	mu      sync.RWMutex
	buckets map[Bucket][]upstream.GameRecord
	loaded  bool
}

func NewService(api *upstream.Client, c *cache.Cache, ttl time.Duration, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		api:   api,
		cache: c,
		log:   log,
		ttl:   ttl,
	}
}

// Load fetches and partitions the game list. The Redis copy is tried first;
// a platform fetch repopulates it. Calling Load on a loaded service is a
// no-op, so every lobby view can call it defensively.
func (s *Service) Load(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	records, err := s.fetch(ctx)
	if err != nil {
		return err
	}

	buckets := Partition(records)

	s.mu.Lock()
	s.buckets = buckets
	s.loaded = true
	s.mu.Unlock()

	s.log.Info("game catalog loaded", "games", len(records), "buckets", len(buckets))
	return nil
}

func (s *Service) fetch(ctx context.Context) ([]upstream.GameRecord, error) {
	if s.cache != nil {
		cached, err := s.cache.GetCatalog(ctx)
		if err != nil {
			s.log.Warn("failed to read cached catalog", "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	records, err := s.api.GameList(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("fetch game list: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetCatalog(ctx, records, s.ttl); err != nil {
			s.log.Warn("failed to cache catalog", "error", err)
		}
	}
	return records, nil
}

// Games returns the records of one bucket. The slice is shared; callers
// must not mutate it.
func (s *Service) Games(ctx context.Context, bucket Bucket) ([]upstream.GameRecord, error) {
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buckets[bucket], nil
}

// All returns every bucket.
func (s *Service) All(ctx context.Context) (map[Bucket][]upstream.GameRecord, error) {
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buckets, nil
}
