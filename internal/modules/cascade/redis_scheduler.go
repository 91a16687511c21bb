// README: Response-window timers kept in a Redis sorted set so they survive restarts.
package cascade

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lifelink/internal/types"
)

const (
	timeoutKey       = "cascade:timeouts"
	defaultPollEvery = 5 * time.Second
	dueBatchSize     = 100
)

// RedisScheduler stores deadlines as ZSET scores (unix millis). Any number
// of API instances may poll; ZREM decides which one owns a due entry.
type RedisScheduler struct {
	redis *redis.Client
	poll  time.Duration
	log   *zap.Logger
	now   func() time.Time
}

func NewRedisScheduler(redis *redis.Client, poll time.Duration, log *zap.Logger) *RedisScheduler {
	if poll <= 0 {
		poll = defaultPollEvery
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisScheduler{redis: redis, poll: poll, log: log, now: time.Now}
}

func (s *RedisScheduler) Schedule(ctx context.Context, candidateID types.ID, at time.Time) error {
	return s.redis.ZAdd(ctx, timeoutKey, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: string(candidateID),
	}).Err()
}

func (s *RedisScheduler) Cancel(ctx context.Context, candidateID types.ID) error {
	return s.redis.ZRem(ctx, timeoutKey, string(candidateID)).Err()
}

// Due claims and returns the candidates whose deadline has passed. A
// candidate is returned by at most one caller.
func (s *RedisScheduler) Due(ctx context.Context) ([]types.ID, error) {
	members, err := s.redis.ZRangeByScore(ctx, timeoutKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(s.now().UnixMilli(), 10),
		Count: dueBatchSize,
	}).Result()
	if err != nil {
		return nil, err
	}

	var claimed []types.ID
	for _, m := range members {
		n, err := s.redis.ZRem(ctx, timeoutKey, m).Result()
		if err != nil {
			return claimed, err
		}
		if n == 1 {
			claimed = append(claimed, types.ID(m))
		}
	}
	return claimed, nil
}

// Run polls for due timeouts until ctx is cancelled.
func (s *RedisScheduler) Run(ctx context.Context, h TimeoutHandler) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := s.Due(ctx)
			if err != nil {
				s.log.Error("poll cascade timeouts", zap.Error(err))
			}
			for _, id := range ids {
				h(ctx, id)
			}
		}
	}
}
