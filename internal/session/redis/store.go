// Package redis keeps chat sessions in Redis so credits and admission limits
// hold across API replicas.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hrchat/hrchat/internal/session"
)

const (
	keyPrefix   = "hrchat:session:"
	activeIndex = "hrchat:sessions:active"
)

// NewClient parses a redis:// URL and verifies the server is reachable.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.DialTimeout = 5 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// KEYS: session hash, active index. ARGV: now ms, max active, expires ms
// (0 = never), ttl ms, credits, created ms, employee id ("" = none), id.
var createScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
local max = tonumber(ARGV[2])
if max > 0 and redis.call('ZCARD', KEYS[2]) >= max then
	return 0
end
redis.call('HSET', KEYS[1], 'credits', ARGV[5], 'created_at', ARGV[6], 'expires_at', ARGV[3], 'employee_id', ARGV[7])
if tonumber(ARGV[4]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[4])
end
local score = ARGV[3]
if tonumber(score) == 0 then
	score = '+inf'
end
redis.call('ZADD', KEYS[2], score, ARGV[8])
return 1
`)

// Returns the remaining credits, -1 when exhausted, -2 when missing.
var consumeScript = redis.NewScript(`
local credits = redis.call('HGET', KEYS[1], 'credits')
if not credits then
	return -2
end
if tonumber(credits) <= 0 then
	return -1
end
return redis.call('HINCRBY', KEYS[1], 'credits', -1)
`)

type Store struct {
	rdb    redis.Cmdable
	policy session.Policy
	now    func() time.Time
}

func New(rdb redis.Cmdable, policy session.Policy) *Store {
	return &Store{rdb: rdb, policy: policy, now: time.Now}
}

func (s *Store) Create(ctx context.Context, employeeID *int64) (session.Session, error) {
	now := s.now().UTC()
	created := session.Session{
		ID:         session.NewID(),
		EmployeeID: employeeID,
		Credits:    s.policy.InitialCredits,
		CreatedAt:  now,
	}
	var expiresMs int64
	if s.policy.TTL > 0 {
		created.ExpiresAt = now.Add(s.policy.TTL)
		expiresMs = created.ExpiresAt.UnixMilli()
	}
	employee := ""
	if employeeID != nil {
		employee = strconv.FormatInt(*employeeID, 10)
	}

	ok, err := createScript.Run(ctx, s.rdb, []string{sessionKey(created.ID), activeIndex},
		now.UnixMilli(),
		s.policy.MaxActive,
		expiresMs,
		s.policy.TTL.Milliseconds(),
		created.Credits,
		now.UnixMilli(),
		employee,
		created.ID,
	).Int()
	if err != nil {
		return session.Session{}, fmt.Errorf("create session: %w", err)
	}
	if ok == 0 {
		return session.Session{}, session.ErrCapacity
	}
	return created, nil
}

func (s *Store) Get(ctx context.Context, id string) (session.Session, error) {
	fields, err := s.rdb.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, fmt.Errorf("get session: %w", err)
	}
	if len(fields) == 0 {
		return session.Session{}, session.ErrNotFound
	}
	return decodeSession(id, fields)
}

func (s *Store) Consume(ctx context.Context, id string) (session.Session, error) {
	remaining, err := consumeScript.Run(ctx, s.rdb, []string{sessionKey(id)}).Int()
	if err != nil {
		return session.Session{}, fmt.Errorf("consume session credit: %w", err)
	}
	switch remaining {
	case -2:
		return session.Session{}, session.ErrNotFound
	case -1:
		current, err := s.Get(ctx, id)
		if err != nil {
			return session.Session{}, err
		}
		return current, session.ErrNoCredits
	}
	return s.Get(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.ZRem(ctx, activeIndex, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return keyPrefix + id
}

func decodeSession(id string, fields map[string]string) (session.Session, error) {
	out := session.Session{ID: id}
	credits, err := strconv.Atoi(fields["credits"])
	if err != nil {
		return session.Session{}, fmt.Errorf("decode session credits: %w", err)
	}
	out.Credits = credits

	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return session.Session{}, fmt.Errorf("decode session created_at: %w", err)
	}
	out.CreatedAt = time.UnixMilli(created).UTC()

	if raw := fields["expires_at"]; raw != "" && raw != "0" {
		expires, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return session.Session{}, fmt.Errorf("decode session expires_at: %w", err)
		}
		out.ExpiresAt = time.UnixMilli(expires).UTC()
	}
	if raw := fields["employee_id"]; raw != "" {
		employeeID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return session.Session{}, fmt.Errorf("decode session employee_id: %w", err)
		}
		out.EmployeeID = &employeeID
	}
	return out, nil
}

var _ session.Store = (*Store)(nil)
