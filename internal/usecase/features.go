package usecase

import (
	"fmt"

	"github.com/HrushiSanap/crypto-top100-automation/internal/domain"
	"github.com/markcheno/go-talib"
)

const (
	SMAShortWindow = 7
	SMALongWindow  = 30
)

// ValidateBars rejects series that would corrupt the stored history:
// out-of-order or duplicate dates, negative prices or volume, or a high
// below the low. The caller keeps the prior file when this fails.
func ValidateBars(canonicalID string, bars []domain.PriceBar) error {
	integrity := func(format string, args ...interface{}) error {
		return &domain.DataIntegrityError{
			CanonicalID: canonicalID,
			Reason:      fmt.Sprintf(format, args...),
		}
	}

	for i, b := range bars {
		if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 {
			return integrity("negative price on %s", b.Date.Format(domain.DateLayout))
		}
		if b.Volume < 0 {
			return integrity("negative volume on %s", b.Date.Format(domain.DateLayout))
		}
		if b.High < b.Low {
			return integrity("high %v below low %v on %s", b.High, b.Low, b.Date.Format(domain.DateLayout))
		}
		if i > 0 && !bars[i-1].Date.Before(b.Date) {
			return integrity("non-monotonic dates: %s then %s",
				bars[i-1].Date.Format(domain.DateLayout), b.Date.Format(domain.DateLayout))
		}
	}
	return nil
}

// Derive computes the derived columns for a date-sorted bar series,
// one output row per input bar. The result depends only on the input;
// recomputing over the same series reproduces identical values.
//
// When a refresh appends bars to stored history, callers must pass the
// full merged series so the trailing SMA windows span old and new bars.
func Derive(bars []domain.PriceBar) []domain.DerivedRow {
	if len(bars) == 0 {
		return nil
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	var sma7, sma30 []float64
	if len(closes) >= SMAShortWindow {
		sma7 = talib.Sma(closes, SMAShortWindow)
	}
	if len(closes) >= SMALongWindow {
		sma30 = talib.Sma(closes, SMALongWindow)
	}

	rows := make([]domain.DerivedRow, len(bars))
	for i, b := range bars {
		row := domain.DerivedRow{
			PriceBar:      b,
			HighLowSpread: b.High - b.Low,
		}

		// No prior day, or a zero prior close, leaves the return
		// undefined rather than zero.
		if i > 0 && closes[i-1] != 0 {
			r := (closes[i] - closes[i-1]) / closes[i-1]
			row.DailyReturn = &r
		}

		if sma7 != nil && i >= SMAShortWindow-1 {
			v := sma7[i]
			row.SMA7 = &v
		}
		if sma30 != nil && i >= SMALongWindow-1 {
			v := sma30[i]
			row.SMA30 = &v
		}

		rows[i] = row
	}
	return rows
}

// MergeBars appends the strictly-newer fetched bars to the stored prior
// series. Fetched bars dated at or before the last stored date are
// discarded, so a refresh can never duplicate or reorder existing rows.
func MergeBars(prior, fetched []domain.PriceBar) []domain.PriceBar {
	if len(prior) == 0 {
		return fetched
	}
	last := prior[len(prior)-1].Date

	merged := make([]domain.PriceBar, len(prior), len(prior)+len(fetched))
	copy(merged, prior)
	for _, b := range fetched {
		if b.Date.After(last) {
			merged = append(merged, b)
			last = b.Date
		}
	}
	return merged
}
