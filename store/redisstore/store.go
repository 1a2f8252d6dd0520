// Package redisstore provides a Redis-backed dlq.Store for deployments
// that want the dead-letter archive co-located with the broker.
//
// Entries are JSON values in a hash keyed by entry ID, with a sorted-set
// index scored by failure time for ordered listing and purge.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/courierhq/courier"
	"github.com/courierhq/courier/dlq"
	"github.com/courierhq/courier/id"
)

// Compile-time interface check.
var _ dlq.Store = (*Store)(nil)

const (
	entriesKey = "courier:dlq:entries"
	indexKey   = "courier:dlq:index"
)

// Store is a Redis implementation of dlq.Store. The caller owns the
// client lifecycle.
type Store struct {
	client redis.Cmdable
}

// New creates a Redis-backed dead-letter archive.
func New(client redis.Cmdable) *Store {
	return &Store{client: client}
}

// Push adds an entry to the archive.
func (s *Store) Push(ctx context.Context, entry *dlq.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("courier/redisstore: encode entry %s: %w", entry.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, entriesKey, entry.ID.String(), data)
	pipe.ZAdd(ctx, indexKey, redis.Z{
		Score:  float64(entry.FailedAt.UnixNano()),
		Member: entry.ID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("courier/redisstore: push: %w", err)
	}
	return nil
}

// List returns entries matching opts, oldest failure first. The queue
// filter is applied after the indexed range read, so a filtered page may
// return fewer than Limit entries.
func (s *Store) List(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	start := int64(opts.Offset)
	stop := int64(-1)
	if opts.Limit > 0 {
		stop = start + int64(opts.Limit) - 1
	}

	ids, err := s.client.ZRange(ctx, indexKey, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("courier/redisstore: list index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	values, err := s.client.HMGet(ctx, entriesKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("courier/redisstore: list entries: %w", err)
	}

	entries := make([]*dlq.Entry, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // index points at an entry purged concurrently
		}
		var e dlq.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("courier/redisstore: decode entry: %w", err)
		}
		if opts.Queue != "" && e.Queue != opts.Queue {
			continue
		}
		entries = append(entries, &e)
	}
	return entries, nil
}

// Get retrieves an entry by ID.
func (s *Store) Get(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	raw, err := s.client.HGet(ctx, entriesKey, entryID.String()).Result()
	if err == redis.Nil {
		return nil, courier.ErrDLQEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("courier/redisstore: get: %w", err)
	}

	var e dlq.Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("courier/redisstore: decode entry %s: %w", entryID, err)
	}
	return &e, nil
}

// MarkReplayed stamps ReplayedAt on an entry.
func (s *Store) MarkReplayed(ctx context.Context, entryID id.DLQID) error {
	entry, err := s.Get(ctx, entryID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	entry.ReplayedAt = &now

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("courier/redisstore: encode entry %s: %w", entryID, err)
	}
	if err := s.client.HSet(ctx, entriesKey, entryID.String(), data).Err(); err != nil {
		return fmt.Errorf("courier/redisstore: mark replayed: %w", err)
	}
	return nil
}

// Purge removes entries that failed before the given time.
func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	max := strconv.FormatInt(before.UnixNano()-1, 10)

	ids, err := s.client.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("courier/redisstore: purge index: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, entriesKey, ids...)
	pipe.ZRemRangeByScore(ctx, indexKey, "-inf", max)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("courier/redisstore: purge: %w", err)
	}
	return int64(len(ids)), nil
}

// Count returns the number of archived entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("courier/redisstore: count: %w", err)
	}
	return n, nil
}
