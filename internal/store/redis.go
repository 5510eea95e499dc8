package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis connection and key layout.
type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

// Redis stores conversations in Redis. Messages of a conversation live in a
// sorted set scored by creation time.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisClient builds a client with conservative timeouts.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

// NewRedis wraps an existing client. Keys are namespaced by cfg.Prefix and
// expire after cfg.TTL when it is positive.
func NewRedis(client *redis.Client, cfg RedisConfig) *Redis {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "hire-intake:"
	}
	return &Redis{client: client, prefix: prefix, ttl: cfg.TTL, now: time.Now}
}

// Ping tests the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Redis) convKey(entityID, platform, threadID string) string {
	return r.prefix + "conv:" + conversationKey(entityID, platform, threadID)
}

func (r *Redis) knownKey(cid string) string { return r.prefix + "cid:" + cid }

func (r *Redis) msgsKey(cid string) string { return r.prefix + "msgs:" + cid }

func (r *Redis) idemKey(cid, key string) string { return r.prefix + "idem:" + cid + ":" + key }

// ensureScript returns the conversation id of KEYS[1], creating it from
// ARGV[1] when absent, and registers the id under ARGV[3]..id in the same step.
// A missing registration from an earlier partial write is restored.
var ensureScript = redis.NewScript(`
local ttl = tonumber(ARGV[2])
local cid = redis.call('GET', KEYS[1])
if not cid then
  cid = ARGV[1]
  if ttl > 0 then
    redis.call('SET', KEYS[1], cid, 'PX', ARGV[2])
  else
    redis.call('SET', KEYS[1], cid)
  end
end
local known = ARGV[3] .. cid
if ttl > 0 then
  redis.call('SET', known, KEYS[1], 'PX', ARGV[2], 'NX')
else
  redis.call('SET', known, KEYS[1], 'NX')
end
return cid
`)

// ingestScript appends ARGV[3] to the sorted set KEYS[1] with score ARGV[2].
// With an idempotency key in KEYS[2] an already claimed key returns the stored
// id; the key is claimed only after the message is written.
var ingestScript = redis.NewScript(`
local ttl = tonumber(ARGV[4])
if KEYS[2] then
  local existing = redis.call('GET', KEYS[2])
  if existing then
    return existing
  end
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[3])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[4])
end
if KEYS[2] then
  if ttl > 0 then
    redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[4])
  else
    redis.call('SET', KEYS[2], ARGV[1])
  end
end
return ARGV[1]
`)

func (r *Redis) EnsureConversation(ctx context.Context, entityID, platform, threadID string) (string, error) {
	key := r.convKey(entityID, platform, threadID)

	cid, err := ensureScript.Run(ctx, r.client, []string{key},
		uuid.NewString(), r.ttl.Milliseconds(), r.knownKey(""),
	).Text()
	if err != nil {
		return "", fmt.Errorf("ensure conversation: %w", err)
	}
	return cid, nil
}

func (r *Redis) exists(ctx context.Context, cid string) error {
	n, err := r.client.Exists(ctx, r.knownKey(cid)).Result()
	if err != nil {
		return fmt.Errorf("check conversation: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Redis) IngestMessage(ctx context.Context, conversationID string, msg Message, idempotencyKey string) (string, error) {
	msg, err := validate(msg)
	if err != nil {
		return "", err
	}
	if err := r.exists(ctx, conversationID); err != nil {
		return "", err
	}

	msg.ID = uuid.NewString()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.now()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}

	keys := []string{r.msgsKey(conversationID)}
	if idempotencyKey != "" {
		keys = append(keys, r.idemKey(conversationID, idempotencyKey))
	}
	id, err := ingestScript.Run(ctx, r.client, keys,
		msg.ID, msg.CreatedAt.UnixNano(), payload, r.ttl.Milliseconds(),
	).Text()
	if err != nil {
		return "", fmt.Errorf("store message: %w", err)
	}
	return id, nil
}

func (r *Redis) ListRecent(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if err := r.exists(ctx, conversationID); err != nil {
		return nil, err
	}

	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := r.client.ZRange(ctx, r.msgsKey(conversationID), start, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}
