package utils

import (
	"context"
	"time"
)

const dailyViewsKeyPrefix = "stats:views:"

// IncrDailyViews bumps today's view counter. Best-effort: a miss only skews
// the overview number, never the slot state.
func IncrDailyViews() {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := dailyViewsKeyPrefix + time.Now().In(time.Local).Format("2006-01-02")
	if err := rc.Incr(ctx, key).Err(); err != nil {
		if Sugar != nil {
			Sugar.Debugf("daily views incr failed: %v", err)
		}
		return
	}
	// Counters only matter for day-over-day trends; two days is enough
	_ = rc.Expire(ctx, key, 48*time.Hour).Err()
}

// GetDailyViews reads the view counter dayOffset days from today (0 = today,
// -1 = yesterday). Returns 0 when Redis is unreachable or the key is gone.
func GetDailyViews(dayOffset int) int64 {
	rc := GetRedis()
	if rc == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	day := time.Now().In(time.Local).AddDate(0, 0, dayOffset).Format("2006-01-02")
	n, err := rc.Get(ctx, dailyViewsKeyPrefix+day).Int64()
	if err != nil {
		return 0
	}
	return n
}
