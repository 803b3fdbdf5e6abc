package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/i474232898/airquality/internal/airquality"
)

// RedisStore keeps snapshot history in one sorted set per location, scored by
// snapshot time in Unix milliseconds. Members are "<seq> <json>" where seq is
// a zero-padded per-location counter, so identical snapshots stay distinct and
// equal scores sort in insertion order.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	maxHistory int
	maxAge     time.Duration
	now        func() time.Time
}

// NewRedisStore creates a RedisStore with the same retention rules as MemoryStore.
func NewRedisStore(client *redis.Client, prefix string, maxHistory int, maxAge time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "airquality"
	}
	return &RedisStore{
		client:     client,
		prefix:     prefix,
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

func (s *RedisStore) key(loc airquality.Location) string {
	return s.prefix + ":snapshots:" + loc.Key()
}

func (s *RedisStore) seqKey(loc airquality.Location) string {
	return s.prefix + ":seq:" + loc.Key()
}

// SaveSnapshot adds the snapshot and trims history in a single transaction.
func (s *RedisStore) SaveSnapshot(ctx context.Context, loc airquality.Location, snapshot airquality.Snapshot) error {
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	key := s.key(loc)

	seq, err := s.client.Incr(ctx, s.seqKey(loc)).Result()
	if err != nil {
		return fmt.Errorf("next sequence %s: %w", loc.Key(), err)
	}
	member := fmt.Sprintf("%020d %s", seq, encoded)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(snapshot.Timestamp.UnixMilli()),
			Member: member,
		})
		if s.maxHistory > 0 {
			pipe.ZRemRangeByRank(ctx, key, 0, int64(-s.maxHistory-1))
		}
		if s.maxAge > 0 {
			cutoff := s.now().Add(-s.maxAge).UnixMilli()
			pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
			pipe.Expire(ctx, key, s.maxAge)
			pipe.Expire(ctx, s.seqKey(loc), s.maxAge)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", loc.Key(), err)
	}
	return nil
}

// GetLatest returns the most recent snapshot for a location.
func (s *RedisStore) GetLatest(ctx context.Context, loc airquality.Location) (airquality.Snapshot, error) {
	members, err := s.client.ZRevRange(ctx, s.key(loc), 0, 0).Result()
	if err != nil {
		return airquality.Snapshot{}, fmt.Errorf("read latest %s: %w", loc.Key(), err)
	}
	if len(members) == 0 {
		return airquality.Snapshot{}, ErrNotFound
	}
	return decodeSnapshot(members[0])
}

// GetRange returns all snapshots for a location between from and to (inclusive).
func (s *RedisStore) GetRange(ctx context.Context, loc airquality.Location, from, to time.Time) ([]airquality.Snapshot, error) {
	members, err := s.client.ZRangeByScore(ctx, s.key(loc), &redis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixMilli(), 10),
		Max: strconv.FormatInt(to.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", loc.Key(), err)
	}
	if len(members) == 0 {
		return nil, ErrNotFound
	}

	result := make([]airquality.Snapshot, 0, len(members))
	for _, m := range members {
		snap, err := decodeSnapshot(m)
		if err != nil {
			return nil, err
		}
		result = append(result, snap)
	}
	return result, nil
}

func decodeSnapshot(member string) (airquality.Snapshot, error) {
	_, payload, ok := strings.Cut(member, " ")
	if !ok {
		return airquality.Snapshot{}, fmt.Errorf("decode snapshot: malformed member")
	}
	var snap airquality.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return airquality.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
