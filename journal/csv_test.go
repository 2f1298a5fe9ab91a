package journal

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestNewCSVWritesHeaders(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "journal")
	j, err := NewCSV(dir)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	assert.Equal(t, [][]string{runsHeader}, readCSV(t, filepath.Join(dir, RunsFile)))
	assert.Equal(t, [][]string{tradesHeader}, readCSV(t, filepath.Join(dir, TradesFile)))
	assert.Equal(t, [][]string{equityHeader}, readCSV(t, filepath.Join(dir, EquityFile)))
}

func TestCSVJournalSave(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(dir)
	require.NoError(t, err)

	require.NoError(t, Save(j, sampleEntry(t, "RUN1")))
	require.NoError(t, j.Close())

	runs := readCSV(t, filepath.Join(dir, RunsFile))
	require.Len(t, runs, 2)
	assert.Equal(t, "RUN1", runs[1][0])
	assert.Equal(t, "TEST", runs[1][3])
	assert.Equal(t, "2024-01-01", runs[1][6])
	assert.Equal(t, "2024-01-05", runs[1][7])
	assert.Equal(t, "662.000000", runs[1][13])

	trades := readCSV(t, filepath.Join(dir, TradesFile))
	require.Len(t, trades, 5)
	assert.Equal(t, []string{"RUN1", "1", "2024-01-01", "TEST", "BUY", "10.000000", "100",
		"-1000.000000", "", "0.000000", "Signal"}, trades[1])
	assert.Equal(t, "-438.000000", trades[4][8])
	assert.Equal(t, "EndOfData", trades[4][10])

	equity := readCSV(t, filepath.Join(dir, EquityFile))
	assert.Len(t, equity, 6)
}

func TestWriteLedgerCSV(t *testing.T) {
	t.Parallel()

	res := sampleResult(t)

	var buf bytes.Buffer
	require.NoError(t, WriteLedgerCSV(&buf, res.Ledger, res.Stats.FinalBalance))

	want := strings.Join([]string{
		"date,symbol,action,price,shares,transaction_amount,gain/loss,balance",
		"01/01/2024,TEST,BUY,10,100,-1000,,0",
		"01/03/2024,TEST,SELL,11,100,1100,100,1100",
		"01/04/2024,TEST,BUY,15,73,-1095,,5",
		"01/05/2024,TEST,SELL,9,73,657,-438,662",
		"Total Gain/Loss: -338.00 | Final Balance: 662.00",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestWriteLedgerCSVEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteLedgerCSV(&buf, nil, decimal.NewFromInt(100000)))
	assert.Equal(t,
		"date,symbol,action,price,shares,transaction_amount,gain/loss,balance\n"+
			"Total Gain/Loss: 0.00 | Final Balance: 100000.00\n",
		buf.String())
}
