package core

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const checkInKeyPrefix = "gym:checkins:"

// Daily counters outlive the day they count so yesterday's total stays
// readable until the next rollover has long passed.
const checkInCounterTTL = 48 * time.Hour

// StatsService keeps lightweight dashboard counters in Redis. Counters are
// best-effort: the authoritative attendance log lives in Postgres.
type StatsService struct {
	redis RedisCmdable
	now   func() time.Time
}

func NewStatsService(redis RedisCmdable) *StatsService {
	return &StatsService{redis: redis, now: time.Now}
}

// RecordCheckIn bumps today's check-in counter and returns the new total.
func (s *StatsService) RecordCheckIn(ctx context.Context) (int64, error) {
	key := s.todayKey()
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		// Fresh counter; attach the TTL once.
		if err := s.redis.Expire(ctx, key, checkInCounterTTL).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// CheckInsToday returns today's check-in count; a missing key reads as zero.
func (s *StatsService) CheckInsToday(ctx context.Context) (int64, error) {
	count, err := s.redis.Get(ctx, s.todayKey()).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

func (s *StatsService) todayKey() string {
	return checkInKeyPrefix + s.now().UTC().Format("2006-01-02")
}
