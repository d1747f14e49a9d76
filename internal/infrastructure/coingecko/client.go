// Package coingecko implements the ranking source against the CoinGecko
// markets endpoint.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/HrushiSanap/crypto-top100-automation/internal/domain"
	"github.com/HrushiSanap/crypto-top100-automation/internal/infrastructure/fetch"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.coingecko.com/api/v3"

type Client struct {
	http        *resty.Client
	limiter     *fetch.Limiter
	maxAttempts int
	baseDelay   time.Duration
	log         *zap.Logger
}

type Option func(*Client)

// WithBackoff overrides the retry schedule; tests shrink it.
func WithBackoff(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = maxAttempts
		c.baseDelay = baseDelay
	}
}

func NewClient(baseURL string, minInterval time.Duration, log *zap.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := resty.New()
	httpClient.SetBaseURL(baseURL)
	httpClient.SetTimeout(30 * time.Second)

	c := &Client{
		http:        httpClient,
		limiter:     fetch.NewLimiter(minInterval),
		maxAttempts: 4,
		baseDelay:   2 * time.Second,
		log:         log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type marketEntry struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	MarketCapRank int    `json:"market_cap_rank"`
}

// TopAssets returns the top n assets by market capitalization, ordered
// by rank. Each call is independent; no state survives between calls.
func (c *Client) TopAssets(ctx context.Context, n int) ([]domain.Asset, error) {
	var assets []domain.Asset

	err := fetch.Retry(ctx, c.maxAttempts, c.baseDelay, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"vs_currency": "usd",
				"order":       "market_cap_desc",
				"per_page":    fmt.Sprintf("%d", n),
				"page":        "1",
			}).
			Get("/coins/markets")
		if err != nil {
			return &domain.TransientError{Op: "coingecko.TopAssets", Err: err}
		}
		if err := fetch.ClassifyStatus("coingecko.TopAssets", resp.StatusCode()); err != nil {
			return err
		}

		var entries []marketEntry
		if err := json.Unmarshal(resp.Body(), &entries); err != nil {
			return &domain.PermanentError{Op: "coingecko.TopAssets", Reason: "malformed response: " + err.Error()}
		}

		assets = assets[:0]
		for i, e := range entries {
			if e.ID == "" {
				continue
			}
			rank := e.MarketCapRank
			if rank == 0 {
				// The list is already ordered by market cap; fall back
				// to the position when the rank field is absent.
				rank = i + 1
			}
			assets = append(assets, domain.Asset{
				CanonicalID: e.ID,
				Symbol:      strings.ToUpper(e.Symbol),
				Name:        e.Name,
				Rank:        rank,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Debug("Fetched ranking snapshot", zap.Int("assets", len(assets)))
	return assets, nil
}
