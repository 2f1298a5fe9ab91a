package strategies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMACrossSignals(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   []Signal
	}{
		{
			// SMA2 = _, 100, 100.5, 104; SMA3 = _, _, 101, 102
			name:   "buy after gate",
			closes: []float64{102, 98, 103, 105},
			want:   []Signal{Hold, Hold, Hold, Buy},
		},
		{
			// previous period equal counts as "not above"
			name:   "buy from equality",
			closes: []float64{100, 90, 80, 100, 110},
			want:   []Signal{Hold, Hold, Hold, Hold, Buy},
		},
		{
			name:   "sell from equality",
			closes: []float64{100, 110, 120, 100, 90},
			want:   []Signal{Hold, Hold, Hold, Hold, Sell},
		},
		{
			name:   "monotonic never crosses",
			closes: []float64{1, 2, 3, 4, 5, 6, 7},
			want:   []Signal{Hold, Hold, Hold, Hold, Hold, Hold, Hold},
		},
		{
			name:   "shorter than gate",
			closes: []float64{5, 1},
			want:   []Signal{Hold, Hold},
		},
	}

	s, err := NewSMACross(SMAParams{Short: 2, Long: 3})
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Signals(seriesOf(tt.closes...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBollingerSignals(t *testing.T) {
	b, err := NewBollinger(BollingerParams{Window: 3, NumStdDev: 1})
	require.NoError(t, err)

	tests := []struct {
		name   string
		closes []float64
		want   []Signal
	}{
		{"below lower band", []float64{20, 20, 20, 20, 10}, []Signal{Hold, Hold, Hold, Hold, Buy}},
		{"above upper band", []float64{20, 20, 20, 20, 30}, []Signal{Hold, Hold, Hold, Hold, Sell}},
		{"flat stays inside", []float64{20, 20, 20, 20}, []Signal{Hold, Hold, Hold, Hold}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Signals(seriesOf(tt.closes...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMACDSignalsEveryPeriod(t *testing.T) {
	m, err := NewMACD(MACDParams{Fast: 1, Slow: 3, Signal: 3})
	require.NoError(t, err)

	// line = 0, -2, 1.5, 1.75; signal = 0, -1, 0.25, 1
	got, err := m.Signals(seriesOf(102, 98, 103, 105))
	require.NoError(t, err)
	assert.Equal(t, []Signal{Sell, Sell, Buy, Buy}, got)
}

func TestSignalsDoNotMutateSeries(t *testing.T) {
	s := seriesOf(102, 98, 103, 105, 101, 99)
	orig := s.Clone()

	for _, id := range Names() {
		st, err := New(id, Params{SMA: SMAParams{Short: 2, Long: 3}, Bollinger: BollingerParams{Window: 3}})
		require.NoError(t, err)
		_, err = st.Signals(s)
		require.NoError(t, err)
	}
	assert.Equal(t, orig, s)
}
