package domain

import "time"

// DateLayout is the day-granularity format used in output files.
const DateLayout = "2006-01-02"

// PriceBar is one calendar day of trading data. Date is truncated to a
// UTC day and is unique per asset.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// DerivedRow is a PriceBar extended with the computed columns. A nil
// pointer is the explicit "no value" marker for rows where the window or
// the previous close is unavailable; it is never written as 0.
type DerivedRow struct {
	PriceBar
	DailyReturn   *float64
	HighLowSpread float64
	SMA7          *float64
	SMA30         *float64
}

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
