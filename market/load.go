package market

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// RequiredColumns are the columns every price table must carry.
var RequiredColumns = []string{"date", "open", "high", "low", "close", "volume"}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// ParseDate accepts the date formats produced by common daily-bar exports.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, fmt.Errorf("bad date %q: %w", s, firstErr)
}

// LoadFile reads a series from a .csv or .json file. When symbol is empty
// the file name without extension is used.
func LoadFile(path, symbol string) (Series, error) {
	if symbol == "" {
		symbol = SymbolFromPath(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return Series{}, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ReadJSON(f, symbol)
	default:
		return ReadCSV(f, symbol)
	}
}

// SymbolFromPath derives a ticker from a data file name, e.g.
// "data/AAPL.csv" -> "AAPL".
func SymbolFromPath(path string) string {
	base := filepath.Base(path)
	return strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
}

// ReadCSV parses rows of
//
//	Date,Open,High,Low,Close,Volume[,...]
//
// The header is required; column names are matched case-insensitively and
// extra columns are ignored. Empty price cells load as NaN so the simulator
// can reject them if it has to trade on them.
func ReadCSV(r io.Reader, symbol string) (Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return Series{}, fmt.Errorf("%w: empty csv", ErrInvalidSeries)
	}
	if err != nil {
		return Series{}, err
	}

	cols, err := columnIndex(header)
	if err != nil {
		return Series{}, err
	}

	var candles []Candle
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Series{}, err
		}
		line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		c, err := parseRow(row, cols)
		if err != nil {
			return Series{}, fmt.Errorf("line %d: %w", line, err)
		}
		candles = append(candles, c)
	}

	return NewSeries(symbol, candles)
}

func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		// A UTF-8 BOM shows up on spreadsheet exports.
		name = strings.TrimPrefix(name, "\ufeff")
		if name == "datetime" || name == "time" {
			name = "date"
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}

	var missing []string
	for _, want := range RequiredColumns {
		if _, ok := cols[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns %v", ErrInvalidSeries, missing)
	}
	return cols, nil
}

func parseRow(row []string, cols map[string]int) (Candle, error) {
	cell := func(name string) string {
		i := cols[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	t, err := ParseDate(cell("date"))
	if err != nil {
		return Candle{}, err
	}

	c := Candle{Time: t}
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"open", &c.Open},
		{"high", &c.High},
		{"low", &c.Low},
		{"close", &c.Close},
	} {
		if *f.dst, err = parsePrice(cell(f.name)); err != nil {
			return Candle{}, fmt.Errorf("bad %s: %w", f.name, err)
		}
	}

	if c.Volume, err = parseVolume(cell("volume")); err != nil {
		return Candle{}, fmt.Errorf("bad volume: %w", err)
	}
	return c, nil
}

func parsePrice(s string) (float64, error) {
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseVolume(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

type jsonRecord struct {
	Date   string   `json:"date"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  *float64 `json:"close"`
	Volume float64  `json:"volume"`
}

// ReadJSON parses an array of {date, open, high, low, close, volume}
// records. Key matching is case-insensitive, so "Date"/"Close" exports load
// as well.
func ReadJSON(r io.Reader, symbol string) (Series, error) {
	var recs []jsonRecord
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return Series{}, fmt.Errorf("%w: %v", ErrInvalidSeries, err)
	}

	candles := make([]Candle, 0, len(recs))
	for i, rec := range recs {
		t, err := ParseDate(rec.Date)
		if err != nil {
			return Series{}, fmt.Errorf("record %d: %w", i, err)
		}
		candles = append(candles, Candle{
			Time:   t,
			Open:   orNaN(rec.Open),
			High:   orNaN(rec.High),
			Low:    orNaN(rec.Low),
			Close:  orNaN(rec.Close),
			Volume: int64(rec.Volume),
		})
	}
	return NewSeries(symbol, candles)
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
