package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/invoicevault/invoicevault/internal/common"
	"github.com/invoicevault/invoicevault/internal/entity"
)

const redisKeyPrefix = "upload_session:"

// RedisStore is a durable keyed session store. Expiry is enforced by redis
// key TTLs, so no sweeper is needed.
type RedisStore struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewRedisStore(rdb *redis.Client, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{rdb: rdb, logger: logger}
}

func (r *RedisStore) Create(ctx context.Context, s *entity.UploadSession) error {
	b, err := json.Marshal(s)
	if err != nil {
		return common.WrapError(err, "marshal upload session")
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := r.rdb.Set(ctx, redisKeyPrefix+s.ID.String(), b, ttl).Err(); err != nil {
		r.logger.Error("session.redis.create_failed", "session_id", s.ID, "error", err)
		return common.WrapError(err, "store upload session")
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id uuid.UUID) (*entity.UploadSession, error) {
	b, err := r.rdb.Get(ctx, redisKeyPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errNotFound(id)
	}
	if err != nil {
		r.logger.Error("session.redis.get_failed", "session_id", id, "error", err)
		return nil, common.WrapError(err, "load upload session")
	}
	var s entity.UploadSession
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, common.WrapError(err, "unmarshal upload session")
	}
	return &s, nil
}

// Claim removes and returns the session via GETDEL, which is atomic on the
// redis side: one concurrent claimant wins, the rest see redis.Nil.
func (r *RedisStore) Claim(ctx context.Context, id uuid.UUID) (*entity.UploadSession, error) {
	b, err := r.rdb.GetDel(ctx, redisKeyPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errNotFound(id)
	}
	if err != nil {
		r.logger.Error("session.redis.claim_failed", "session_id", id, "error", err)
		return nil, common.WrapError(err, "claim upload session")
	}
	var s entity.UploadSession
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, common.WrapError(err, "unmarshal upload session")
	}
	return &s, nil
}

func (r *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.rdb.Del(ctx, redisKeyPrefix+id.String()).Err(); err != nil {
		r.logger.Error("session.redis.delete_failed", "session_id", id, "error", err)
		return common.WrapError(err, "delete upload session")
	}
	return nil
}
