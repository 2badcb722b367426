package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/matchrank/internal/domain/types"
	"github.com/okian/matchrank/pkg/metrics"
)

// RedisStore keeps reports in redis.
//
// Layout per report name:
//   - "{prefix}:report:{name}" report JSON
//   - "{prefix}:board:{name}" sorted set of rated competitor keys by rating
//   - "{prefix}:entry:{name}" hash of competitor key -> current row JSON
//   - "{prefix}:reports" set of report names
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: "matchrank"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr, password string, db int, opts ...RedisOption) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisStore(client, opts...), nil
}

// Close releases the client.
func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) reportKey(name string) string { return s.prefix + ":report:" + name }
func (s *RedisStore) boardKey(name string) string  { return s.prefix + ":board:" + name }
func (s *RedisStore) entryKey(name string) string  { return s.prefix + ":entry:" + name }
func (s *RedisStore) namesKey() string             { return s.prefix + ":reports" }

func (s *RedisStore) Save(ctx context.Context, r types.Report) error {
	if r.Name == "" {
		return ErrEmptyName
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report %s: %w", r.Name, err)
	}

	board, info := s.boardKey(r.Name), s.entryKey(r.Name)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.reportKey(r.Name), data, s.ttl)
	pipe.SAdd(ctx, s.namesKey(), r.Name)
	pipe.Del(ctx, board, info)

	if cur, ok := r.Current(); ok {
		members := make([]redis.Z, 0, len(cur.Entries))
		rows := make(map[string]interface{}, len(cur.Entries))
		for _, e := range cur.Entries {
			if e.Rating == nil {
				continue
			}
			row, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshal entry %s: %w", e.Key, err)
			}
			members = append(members, redis.Z{Score: *e.Rating, Member: e.Key})
			rows[e.Key] = row
		}
		if len(members) > 0 {
			pipe.ZAdd(ctx, board, members...)
			pipe.HSet(ctx, info, rows)
			if s.ttl > 0 {
				pipe.Expire(ctx, board, s.ttl)
				pipe.Expire(ctx, info, s.ttl)
			}
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save report %s: %w", r.Name, err)
	}
	if n, err := s.client.SCard(ctx, s.namesKey()).Result(); err == nil {
		metrics.UpdateStoredReports(int(n))
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, name string) (types.Report, error) {
	data, err := s.client.Get(ctx, s.reportKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Report{}, ErrNotFound
	}
	if err != nil {
		return types.Report{}, fmt.Errorf("get report %s: %w", name, err)
	}
	var r types.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return types.Report{}, fmt.Errorf("decode report %s: %w", name, err)
	}
	return r, nil
}

// List skips names whose report has expired.
func (s *RedisStore) List(ctx context.Context) ([]types.Summary, error) {
	names, err := s.client.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	sort.Strings(names)
	out := make([]types.Summary, 0, len(names))
	for _, name := range names {
		r, err := s.Get(ctx, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r.Summary())
	}
	return out, nil
}

// Top reads the sorted set, so rows tied on rating at the cut may differ
// from the report's own order.
func (s *RedisStore) Top(ctx context.Context, name string, n int) ([]types.Entry, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	exists, err := s.client.Exists(ctx, s.reportKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("top %s: %w", name, err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	keys, err := s.client.ZRevRange(ctx, s.boardKey(name), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("top %s: %w", name, err)
	}
	if len(keys) == 0 {
		return []types.Entry{}, nil
	}
	vals, err := s.client.HMGet(ctx, s.entryKey(name), keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("top %s: %w", name, err)
	}

	out := make([]types.Entry, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var e types.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}
