package workers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ChallengePurger deletes challenges that expired at or before a cut-off.
type ChallengePurger interface {
	PurgeExpiredChallenges(ctx context.Context, before time.Time) (int64, error)
}

// ChallengeSweepJob removes challenges nobody redeemed. Storage backends with
// their own expiry (the Mongo TTL index) just find nothing to do.
func ChallengeSweepJob(store ChallengePurger, interval time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "challenge-sweep",
		Interval: interval,
		Run: func(ctx context.Context) error {
			purged, err := store.PurgeExpiredChallenges(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			if purged > 0 {
				logger.Info("🧹 [WORKER] expired challenges purged", zap.Int64("count", purged))
			}
			return nil
		},
	}
}
