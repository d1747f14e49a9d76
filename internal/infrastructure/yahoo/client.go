// Package yahoo implements the price source against the Yahoo Finance
// chart endpoint. Crypto tickers are addressed as "{SYMBOL}-USD".
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/HrushiSanap/crypto-top100-automation/internal/domain"
	"github.com/HrushiSanap/crypto-top100-automation/internal/infrastructure/fetch"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://query1.finance.yahoo.com"

type Client struct {
	http        *resty.Client
	limiter     *fetch.Limiter
	maxAttempts int
	baseDelay   time.Duration
	log         *zap.Logger
}

type Option func(*Client)

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
	// Yahoo rejects requests without a browser-ish user agent.
	httpClient.SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

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

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DailyHistory fetches daily bars for asset. since is an exclusive lower
// bound on the bar date; nil means maximum available history. An empty
// slice with a nil error means the source has no new data.
func (c *Client) DailyHistory(ctx context.Context, asset domain.Asset, since *time.Time) ([]domain.PriceBar, error) {
	ticker := asset.Symbol + "-USD"
	op := "yahoo.DailyHistory(" + ticker + ")"

	params := map[string]string{"interval": "1d"}
	if since == nil {
		params["range"] = "max"
	} else {
		// period1 is inclusive at the source; the exclusive bound is
		// enforced by the date filter below.
		params["period1"] = fmt.Sprintf("%d", domain.Day(*since).Unix())
		params["period2"] = fmt.Sprintf("%d", time.Now().UTC().Unix())
	}

	var bars []domain.PriceBar
	err := fetch.Retry(ctx, c.maxAttempts, c.baseDelay, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get("/v8/finance/chart/" + ticker)
		if err != nil {
			return &domain.TransientError{Op: op, Err: err}
		}
		if err := fetch.ClassifyStatus(op, resp.StatusCode()); err != nil {
			return err
		}

		parsed, err := parseChart(op, resp.Body())
		if err != nil {
			return err
		}
		bars = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if since != nil {
		cutoff := domain.Day(*since)
		filtered := bars[:0]
		for _, b := range bars {
			if b.Date.After(cutoff) {
				filtered = append(filtered, b)
			}
		}
		bars = filtered
	}

	c.log.Debug("Fetched history", zap.String("ticker", ticker), zap.Int("bars", len(bars)))
	return bars, nil
}

func parseChart(op string, body []byte) ([]domain.PriceBar, error) {
	var cr chartResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, &domain.PermanentError{Op: op, Reason: "malformed response: " + err.Error()}
	}
	if cr.Chart.Error != nil {
		return nil, &domain.PermanentError{Op: op, Reason: cr.Chart.Error.Code + ": " + cr.Chart.Error.Description}
	}
	if len(cr.Chart.Result) == 0 {
		return nil, nil
	}

	result := cr.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	quote := result.Indicators.Quote[0]

	var bars []domain.PriceBar
	var lastDate time.Time
	for i, ts := range result.Timestamp {
		// Yahoo pads series with nulls for days without trades; those
		// days are skipped, never fabricated.
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) ||
			i >= len(quote.Close) || i >= len(quote.Volume) {
			break
		}
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}

		date := domain.Day(time.Unix(ts, 0))
		// The last entry can repeat the current day's partial bar; keep
		// the first observation per calendar day.
		if len(bars) > 0 && !date.After(lastDate) {
			continue
		}

		bar := domain.PriceBar{
			Date:  date,
			Open:  *quote.Open[i],
			High:  *quote.High[i],
			Low:   *quote.Low[i],
			Close: *quote.Close[i],
		}
		if quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		bars = append(bars, bar)
		lastDate = date
	}
	return bars, nil
}
