package searchhistory

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRetain is how many patients a user's Redis history keeps.
const DefaultRetain = 50

type historyClient interface {
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	ZRevRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisRepository keeps one entry per patient for each user: a sorted set
// of patient ids scored by search time, and a hash holding the newest entry
// for each of them. Only the retain most recent patients are kept.
type RedisRepository struct {
	client historyClient
	retain int64
}

func NewRedisRepository(client *redis.Client, retain int) *RedisRepository {
	return newRedisRepository(client, retain)
}

func newRedisRepository(client historyClient, retain int) *RedisRepository {
	if retain < MaxRecent {
		retain = DefaultRetain
	}
	return &RedisRepository{client: client, retain: int64(retain)}
}

func historyKey(userID uuid.UUID) string {
	return "fichamed:search_history:" + userID.String()
}

func latestKey(userID uuid.UUID) string {
	return historyKey(userID) + ":latest"
}

func (r *RedisRepository) Append(ctx context.Context, e Entry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode search entry: %w", err)
	}
	member := e.PatientID.String()
	if err := r.client.HSet(ctx, latestKey(e.UserID), member, body).Err(); err != nil {
		return fmt.Errorf("store search entry: %w", err)
	}
	score := float64(e.SearchedAt.UnixMilli())
	if err := r.client.ZAdd(ctx, historyKey(e.UserID), redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("index search entry: %w", err)
	}
	return r.trim(ctx, e.UserID)
}

// trim drops the patients ranked below the retain window.
func (r *RedisRepository) trim(ctx context.Context, userID uuid.UUID) error {
	stale, err := r.client.ZRange(ctx, historyKey(userID), 0, -r.retain-1).Result()
	if err != nil {
		return fmt.Errorf("trim search history: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}
	members := make([]interface{}, len(stale))
	for i, m := range stale {
		members[i] = m
	}
	if err := r.client.ZRem(ctx, historyKey(userID), members...).Err(); err != nil {
		return fmt.Errorf("trim search history: %w", err)
	}
	if err := r.client.HDel(ctx, latestKey(userID), stale...).Err(); err != nil {
		return fmt.Errorf("trim search history: %w", err)
	}
	return nil
}

func (r *RedisRepository) Recent(ctx context.Context, userID uuid.UUID, n int) ([]Entry, error) {
	stop := int64(n) - 1
	if n <= 0 || int64(n) > r.retain {
		stop = r.retain - 1
	}
	ids, err := r.client.ZRevRange(ctx, historyKey(userID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read search history: %w", err)
	}
	if len(ids) == 0 {
		return []Entry{}, nil
	}
	raw, err := r.client.HMGet(ctx, latestKey(userID), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("read search history: %w", err)
	}
	out := make([]Entry, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			// Index and hash disagree after a partial trim; skip the patient.
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, fmt.Errorf("decode search entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
