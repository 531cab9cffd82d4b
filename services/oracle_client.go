package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// BalanceOracle reports a wallet's native token balance.
type BalanceOracle interface {
	Balance(ctx context.Context, wallet string) (float64, error)
}

// RewardAssetOracle reports whether a wallet holds the reward boost asset.
type RewardAssetOracle interface {
	OwnsRewardAsset(ctx context.Context, wallet string) (bool, error)
}

const (
	assetCacheSize = 10000
	assetCacheTTL  = 5 * time.Minute
)

type cachedOwnership struct {
	owns      bool
	fetchedAt time.Time
}

// OracleClient talks to the chain oracle over HTTP:
//
//	GET {base}/wallets/{wallet}/balance      -> {"balance": 1.5}
//	GET {base}/wallets/{wallet}/reward-asset -> {"owns": true}
//
// Balances are always fetched live; ownership answers are cached for a few
// minutes and concurrent lookups for one wallet share a request.
type OracleClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
	Logger  *zap.Logger

	cache *lru.Cache
	group singleflight.Group
	ttl   time.Duration
}

func NewOracleClient(baseURL, token string, client *http.Client, logger *zap.Logger) *OracleClient {
	cache, _ := lru.New(assetCacheSize)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OracleClient{
		BaseURL: baseURL,
		Token:   token,
		Client:  client,
		Logger:  logger,
		cache:   cache,
		ttl:     assetCacheTTL,
	}
}

type balanceResponse struct {
	Balance *float64 `json:"balance"`
}

type rewardAssetResponse struct {
	Owns *bool `json:"owns"`
}

func (c *OracleClient) Balance(ctx context.Context, wallet string) (float64, error) {
	var out balanceResponse
	if err := c.get(ctx, wallet, "balance", &out); err != nil {
		return 0, err
	}
	if out.Balance == nil {
		return 0, fmt.Errorf("%w: balance missing from response", ErrOracleUnavailable)
	}
	return *out.Balance, nil
}

func (c *OracleClient) OwnsRewardAsset(ctx context.Context, wallet string) (bool, error) {
	if cached, ok := c.cache.Get(wallet); ok {
		if entry, ok := cached.(cachedOwnership); ok && time.Since(entry.fetchedAt) < c.ttl {
			return entry.owns, nil
		}
	}

	v, err, _ := c.group.Do(wallet, func() (interface{}, error) {
		var out rewardAssetResponse
		if err := c.get(ctx, wallet, "reward-asset", &out); err != nil {
			return false, err
		}
		if out.Owns == nil {
			return false, fmt.Errorf("%w: owns missing from response", ErrOracleUnavailable)
		}
		c.cache.Add(wallet, cachedOwnership{owns: *out.Owns, fetchedAt: time.Now()})
		return *out.Owns, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// get performs one oracle call. Every failure is reported as ErrOracleUnavailable
// so callers treat it as retryable.
func (c *OracleClient) get(ctx context.Context, wallet, resource string, out interface{}) error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: oracle not configured", ErrOracleUnavailable)
	}
	endpoint := fmt.Sprintf("%s/wallets/%s/%s", c.BaseURL, url.PathEscape(wallet), resource)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.Logger.Warn("[ORACLE] unexpected status",
			zap.String("resource", resource),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return fmt.Errorf("%w: %s returned %d", ErrOracleUnavailable, resource, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	return nil
}
