package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"wallet-quest-ledger/services"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	defaultBoostPageSize    = 200
	defaultBoostConcurrency = 8
)

// WalletLister pages through known wallets in ascending order.
type WalletLister interface {
	ListWallets(ctx context.Context, after string, limit int) ([]string, error)
}

// BoostRefresher re-reads the reward asset oracle for one wallet.
type BoostRefresher interface {
	RefreshRewardBoost(ctx context.Context, wallet string) (bool, error)
}

// BoostRefreshWorker keeps the cached reward-boost flag of every identity close
// to what the oracle reports, so holders who never log in again still get the
// multiplier on check-ins.
type BoostRefreshWorker struct {
	Wallets     WalletLister
	Refresher   BoostRefresher
	Logger      *zap.Logger
	PageSize    int
	Concurrency int64
}

func NewBoostRefreshWorker(wallets WalletLister, refresher BoostRefresher, logger *zap.Logger) *BoostRefreshWorker {
	return &BoostRefreshWorker{
		Wallets:     wallets,
		Refresher:   refresher,
		Logger:      logger,
		PageSize:    defaultBoostPageSize,
		Concurrency: defaultBoostConcurrency,
	}
}

type BoostRefreshStats struct {
	Refreshed int64
	Failed    int64
}

// RefreshAll walks every wallet once. A failed oracle call for one wallet is
// counted and skipped; listing errors and cancellation abort the run.
func (w *BoostRefreshWorker) RefreshAll(ctx context.Context) (BoostRefreshStats, error) {
	var stats BoostRefreshStats
	sem := semaphore.NewWeighted(w.Concurrency)
	after := ""

	for {
		wallets, err := w.Wallets.ListWallets(ctx, after, w.PageSize)
		if err != nil {
			return stats, err
		}
		if len(wallets) == 0 {
			return stats, nil
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, wallet := range wallets {
			if err := sem.Acquire(gctx, 1); err != nil {
				break
			}
			g.Go(func() error {
				defer sem.Release(1)
				if _, err := w.Refresher.RefreshRewardBoost(gctx, wallet); err != nil {
					if errors.Is(err, context.Canceled) {
						return err
					}
					atomic.AddInt64(&stats.Failed, 1)
					w.Logger.Debug("[WORKER] boost refresh failed", zap.String("wallet", wallet), zap.Error(err))
					return nil
				}
				atomic.AddInt64(&stats.Refreshed, 1)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return stats, err
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if len(wallets) < w.PageSize {
			return stats, nil
		}
		after = wallets[len(wallets)-1]
	}
}

// PollBoosts runs RefreshAll every interval until ctx is done.
func PollBoosts(ctx context.Context, worker *BoostRefreshWorker, interval time.Duration) {
	worker.Logger.Info("[WORKER] starting reward boost polling", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			worker.Logger.Info("[WORKER] reward boost polling stopped")
			return
		case <-ticker.C:
			started := time.Now()
			stats, err := worker.RefreshAll(ctx)
			if err != nil && ctx.Err() == nil {
				worker.Logger.Error("❌ [WORKER] reward boost refresh aborted", zap.Error(err))
				continue
			}
			worker.Logger.Info("✅ [WORKER] reward boosts refreshed",
				zap.Int64("refreshed", stats.Refreshed),
				zap.Int64("failed", stats.Failed),
				zap.Duration("took", time.Since(started)))
		}
	}
}

var _ BoostRefresher = (*services.ProgressionService)(nil)
