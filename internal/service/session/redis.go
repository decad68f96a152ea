package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"TradeMynd/internal/domain/models"
	applogger "TradeMynd/pkg/logger"
)

const (
	keyPrefix  = "trademynd:session:"
	pendingKey = "trademynd:sessions:pending"

	// terminal sessions stay readable for a day so duplicate confirm or
	// reject messages can be answered idempotently
	terminalRetention = 24 * time.Hour
)

// casScript compares the stored status and swaps the whole session record in
// one atomic step. Returns "OK" on success, the actual status on mismatch.
var casScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'status')
if not cur then
  return false
end
if cur ~= ARGV[1] then
  return cur
end
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'data', ARGV[3])
return 'OK'
`)

// RedisStore persists confirmation sessions in Redis so any instance can
// serve the confirm that follows another instance's extraction.
type RedisStore struct {
	client *redis.Client
	logger *applogger.Logger
}

func NewRedisStore(client *redis.Client, logger *applogger.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func (s *RedisStore) Create(ctx context.Context, sess *models.ConfirmationSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	key := keyPrefix + sess.ID
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "status", string(sess.Status), "data", data)
	pipe.Expire(ctx, key, terminalRetention)
	pipe.ZAdd(ctx, pendingKey, redis.Z{Score: float64(sess.ExpiresAt.Unix()), Member: sess.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.ConfirmationSession, error) {
	data, err := s.client.HGet(ctx, keyPrefix+id, "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess models.ConfirmationSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, id string, from, to models.SessionStatus, candidate *models.TradeCandidate) (*models.ConfirmationSession, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	sess.Status = to
	if candidate != nil {
		sess.Candidate = candidate
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	res, err := casScript.Run(ctx, s.client, []string{keyPrefix + id},
		string(from), string(to), data).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrSessionNotFound
		}
		return nil, fmt.Errorf("session cas: %w", err)
	}

	actual, ok := res.(string)
	if !ok || actual != "OK" {
		return nil, &models.SessionStateError{SessionID: id, From: models.SessionStatus(actual), To: to}
	}

	// session left PENDING, the sweeper no longer needs to track it
	if from == models.SessionPending {
		if err := s.client.ZRem(ctx, pendingKey, id).Err(); err != nil {
			s.logger.Warn("pending index cleanup failed",
				applogger.String("session_id", id), applogger.Error(err))
		}
	}
	return sess, nil
}

func (s *RedisStore) PendingBefore(ctx context.Context, t time.Time) ([]*models.ConfirmationSession, error) {
	ids, err := s.client.ZRangeByScore(ctx, pendingKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(t.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("scan pending sessions: %w", err)
	}

	out := make([]*models.ConfirmationSession, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, models.ErrSessionNotFound) {
				// record already gone, drop the dangling index entry
				s.client.ZRem(ctx, pendingKey, id)
				continue
			}
			return nil, err
		}
		if sess.Status == models.SessionPending {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *RedisStore) Close() error { return nil }
