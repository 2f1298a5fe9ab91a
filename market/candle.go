package market

import "time"

// Candle represents one daily OHLCV bar.
type Candle struct {
	Time   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Date returns the calendar date of the candle at midnight UTC.
func (c Candle) Date() time.Time {
	y, m, d := c.Time.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
