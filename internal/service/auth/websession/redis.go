package websession

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/clock"
	"github.com/nkiryanov/authcore/internal/models"
)

const defaultPrefix = "auth:ws:"

// Store session and index it in the user set.
// User set lives as long as the longest of its sessions.
var saveScript = redis.NewScript(`
local ttl = tonumber(ARGV[1])
redis.call('HSET', KEYS[1], 'uid', ARGV[3], 'did', ARGV[4], 'lm', ARGV[5], 'iat', ARGV[6], 'exp', ARGV[7])
redis.call('PEXPIRE', KEYS[1], ttl)
redis.call('SADD', KEYS[2], ARGV[2])
if redis.call('PTTL', KEYS[2]) < ttl then
	redis.call('PEXPIRE', KEYS[2], ttl)
end
return 1
`)

// Delete every session listed in the user set and the set itself
var deleteUserScript = redis.NewScript(`
local hashes = redis.call('SMEMBERS', KEYS[1])
local deleted = 0
for _, h in ipairs(hashes) do
	deleted = deleted + redis.call('DEL', ARGV[1] .. h)
end
redis.call('DEL', KEYS[1])
return deleted
`)

// RedisStore keeps session as a Redis hash with fields uid, did, lm, iat, exp (unix).
// Key expires together with the session.
// Each user has a set of session hashes to end all of them at once.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	clock  clock.Clock
}

// If prefix is empty "auth:ws:" is used
func NewRedisStore(rdb redis.UniversalClient, prefix string, clk clock.Clock) *RedisStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if clk == nil {
		clk = clock.Real
	}
	return &RedisStore{rdb: rdb, prefix: prefix, clock: clk}
}

func (s *RedisStore) sessionPrefix() string       { return s.prefix + "s:" }
func (s *RedisStore) key(hash string) string      { return s.sessionPrefix() + hash }
func (s *RedisStore) userKey(id uuid.UUID) string { return s.prefix + "u:" + id.String() }

func (s *RedisStore) Save(ctx context.Context, hash string, r Record) error {
	ttl := r.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	return saveScript.Run(ctx, s.rdb,
		[]string{s.key(hash), s.userKey(r.UserID)},
		ttl.Milliseconds(),
		hash,
		r.UserID.String(),
		r.DeviceID,
		string(r.LoginMethod),
		r.IssuedAt.Unix(),
		r.ExpiresAt.Unix(),
	).Err()
}

func (s *RedisStore) Get(ctx context.Context, hash string) (Record, error) {
	m, err := s.rdb.HGetAll(ctx, s.key(hash)).Result()
	if err != nil {
		return Record{}, err
	}
	return parseRecord(m)
}

func (s *RedisStore) Take(ctx context.Context, hash string) (Record, error) {
	pipe := s.rdb.TxPipeline()
	get := pipe.HGetAll(ctx, s.key(hash))
	pipe.Del(ctx, s.key(hash))
	if _, err := pipe.Exec(ctx); err != nil {
		return Record{}, err
	}

	r, err := parseRecord(get.Val())
	if err != nil {
		return r, err
	}

	// Stale member of the user set is harmless, so failure is ignored
	_ = s.rdb.SRem(ctx, s.userKey(r.UserID), hash).Err()

	return r, nil
}

func (s *RedisStore) DeleteUser(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := deleteUserScript.Run(ctx, s.rdb, []string{s.userKey(userID)}, s.sessionPrefix()).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func parseRecord(m map[string]string) (Record, error) {
	if len(m) == 0 {
		return Record{}, apperrors.ErrSessionNotFound
	}

	uid, err := uuid.Parse(m["uid"])
	if err != nil {
		return Record{}, fmt.Errorf("corrupted session: %w", err)
	}
	iat, err := strconv.ParseInt(m["iat"], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("corrupted session: %w", err)
	}
	exp, err := strconv.ParseInt(m["exp"], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("corrupted session: %w", err)
	}

	return Record{
		UserID:      uid,
		DeviceID:    m["did"],
		LoginMethod: models.LoginMethod(m["lm"]),
		IssuedAt:    time.Unix(iat, 0).UTC(),
		ExpiresAt:   time.Unix(exp, 0).UTC(),
	}, nil
}
