package session

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"example.com/gymbooking/internal/domain"
)

const (
	fieldToken  = "auth_token"
	fieldUserID = "user_id"
)

func sessionKey(profile string) string {
	return "gym:session:" + profile
}

// RedisStore keeps the session in a Redis hash, one key per profile.
type RedisStore struct {
	rdb *goredis.Client
	key string
}

// DialRedis connects to Redis and verifies the connection.
func DialRedis(ctx context.Context, addr, password string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, Password: password})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return rdb, nil
}

// NewRedisStore wraps an existing client. The store owns it and closes it on Close.
func NewRedisStore(rdb *goredis.Client, profile string) *RedisStore {
	return &RedisStore{rdb: rdb, key: sessionKey(profile)}
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context) (domain.Session, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{AuthToken: fields[fieldToken], UserID: fields[fieldUserID]}, nil
}

// Save implements Store. Both fields are always written, so HSET replaces the record.
func (r *RedisStore) Save(ctx context.Context, s domain.Session) error {
	return r.rdb.HSet(ctx, r.key, fieldToken, s.AuthToken, fieldUserID, s.UserID).Err()
}

// Clear implements Store.
func (r *RedisStore) Clear(ctx context.Context) error {
	return r.rdb.Del(ctx, r.key).Err()
}

// Close implements Store.
func (r *RedisStore) Close() error { return r.rdb.Close() }
