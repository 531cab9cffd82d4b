package workers

import (
	"context"
	"time"

	"wallet-quest-ledger/models"

	"go.uber.org/zap"
)

// LeaderboardSnapshotKey is the object key of the published snapshot.
const LeaderboardSnapshotKey = "leaderboard/latest.json"

type LeaderboardSource interface {
	GetLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// JSONUploader stores a JSON document under key and returns its public URL.
type JSONUploader interface {
	PutJSON(ctx context.Context, key string, v any) (string, error)
}

type LeaderboardSnapshot struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	Entries     []models.LeaderboardEntry `json:"entries"`
}

// LeaderboardPublisher uploads the top of the leaderboard for CDN clients.
type LeaderboardPublisher struct {
	Source   LeaderboardSource
	Uploader JSONUploader
	Logger   *zap.Logger
	Limit    int
	Now      func() time.Time
}

func NewLeaderboardPublisher(source LeaderboardSource, uploader JSONUploader, logger *zap.Logger) *LeaderboardPublisher {
	return &LeaderboardPublisher{
		Source:   source,
		Uploader: uploader,
		Logger:   logger,
		Limit:    100,
		Now:      time.Now,
	}
}

func (p *LeaderboardPublisher) Publish(ctx context.Context) error {
	entries, err := p.Source.GetLeaderboard(ctx, p.Limit)
	if err != nil {
		return err
	}

	url, err := p.Uploader.PutJSON(ctx, LeaderboardSnapshotKey, LeaderboardSnapshot{
		GeneratedAt: p.Now().UTC(),
		Entries:     entries,
	})
	if err != nil {
		return err
	}
	p.Logger.Info("📤 [WORKER] leaderboard snapshot published", zap.String("url", url), zap.Int("entries", len(entries)))
	return nil
}

func (p *LeaderboardPublisher) Job(interval time.Duration) Job {
	return Job{Name: "leaderboard-snapshot", Interval: interval, Run: p.Publish}
}
