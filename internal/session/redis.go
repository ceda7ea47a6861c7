package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore keeps sessions in Redis so in-flight workflows survive restarts.
// Same contract as MemoryStore; expiry is handled by key TTL instead of a
// sweeper, so abandoned sessions vanish without a notification message.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{rdb: rdb, ttl: ttl, log: log}
}

func sessionKey(ownerID int64) string {
	return fmt.Sprintf("session:%d", ownerID)
}

func (s *RedisStore) Create(ownerID int64, state State) *Session {
	sess := &Session{OwnerID: ownerID, State: state, Step: 0, Touched: time.Now()}
	s.save(sess)
	return sess
}

func (s *RedisStore) Get(ownerID int64) (*Session, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	raw, err := s.rdb.Get(ctx, sessionKey(ownerID)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		s.log.Error().Err(err).Int64("owner_id", ownerID).Msg("session get failed")
		return nil, false
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		s.log.Error().Err(err).Int64("owner_id", ownerID).Msg("session decode failed")
		return nil, false
	}
	return &sess, true
}

func (s *RedisStore) MergeData(ownerID int64, partial Draft) {
	s.Mutate(ownerID, func(sess *Session) {
		sess.Data.merge(partial)
	})
}

func (s *RedisStore) SetStep(ownerID int64, step int) {
	s.Mutate(ownerID, func(sess *Session) {
		sess.Step = step
	})
}

func (s *RedisStore) AdvanceStep(ownerID int64) {
	s.Mutate(ownerID, func(sess *Session) {
		sess.Step++
	})
}

func (s *RedisStore) Mutate(ownerID int64, fn func(*Session)) bool {
	sess, ok := s.Get(ownerID)
	if !ok {
		return false
	}
	fn(sess)
	sess.Touched = time.Now()
	s.save(sess)
	return true
}

func (s *RedisStore) Clear(ownerID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.rdb.Del(ctx, sessionKey(ownerID)).Err(); err != nil {
		s.log.Error().Err(err).Int64("owner_id", ownerID).Msg("session clear failed")
	}
}

func (s *RedisStore) save(sess *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	raw, err := json.Marshal(sess)
	if err != nil {
		s.log.Error().Err(err).Int64("owner_id", sess.OwnerID).Msg("session encode failed")
		return
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.OwnerID), raw, s.ttl).Err(); err != nil {
		s.log.Error().Err(err).Int64("owner_id", sess.OwnerID).Msg("session save failed")
	}
}
