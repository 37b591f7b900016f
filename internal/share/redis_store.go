package share

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"resumark/api/internal/annotate"
)

// ErrNotFound means no snapshot exists for the key; the link was revoked or
// its TTL lapsed.
var ErrNotFound = errors.New("share not found")

// Snapshot is the frozen payload a share link serves: the resume document
// and its notes at creation time. Later edits do not leak into the link.
type Snapshot struct {
	Slug      string          `json:"slug"`
	Title     string          `json:"title"`
	Template  string          `json:"template,omitempty"`
	Data      json.RawMessage `json:"data"`
	Notes     []annotate.Note `json:"notes"`
	CreatedAt time.Time       `json:"created_at"`
}

// record is what actually sits in redis: the snapshot plus the optional
// password hash guarding it.
type record struct {
	Snapshot     Snapshot `json:"snapshot"`
	PasswordHash string   `json:"password_hash,omitempty"`
}

// RedisStore holds share snapshots in redis with a TTL matching the token
// expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "share:"}, nil
}

// NewRedisStoreWithClient creates a store from an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "share:"}
}

func (s *RedisStore) key(jti string) string {
	return s.prefix + HashToken(jti)
}

func (s *RedisStore) save(ctx context.Context, jti string, rec record, ttl time.Duration) error {
	jsonData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal share record: %w", err)
	}
	if ttl <= 0 {
		return fmt.Errorf("share ttl must be positive")
	}
	if err := s.client.Set(ctx, s.key(jti), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save share record: %w", err)
	}
	return nil
}

func (s *RedisStore) lookup(ctx context.Context, jti string) (record, error) {
	jsonData, err := s.client.Get(ctx, s.key(jti)).Result()
	if err == redis.Nil {
		return record{}, ErrNotFound
	}
	if err != nil {
		return record{}, fmt.Errorf("lookup share record: %w", err)
	}
	var rec record
	if err := json.Unmarshal([]byte(jsonData), &rec); err != nil {
		return record{}, fmt.Errorf("unmarshal share record: %w", err)
	}
	return rec, nil
}

// Revoke deletes a share snapshot; the signed token keeps verifying but no
// longer resolves to anything.
func (s *RedisStore) Revoke(ctx context.Context, jti string) error {
	if err := s.client.Del(ctx, s.key(jti)).Err(); err != nil {
		return fmt.Errorf("revoke share: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
