package strategies

import "github.com/rustyeddy/stocksim/indicators"

// Params carries the settings for every strategy variant; New reads only
// the section for the selected one.
type Params struct {
	SMA       SMAParams       `yaml:"sma" json:"sma"`
	Bollinger BollingerParams `yaml:"bollinger" json:"bollinger"`
	MACD      MACDParams      `yaml:"macd" json:"macd"`
}

type SMAParams struct {
	Short int `yaml:"short" json:"short"`
	Long  int `yaml:"long" json:"long"`
}

type BollingerParams struct {
	Window    int     `yaml:"window" json:"window"`
	NumStdDev float64 `yaml:"num_std" json:"num_std"`
}

type MACDParams struct {
	Fast   int `yaml:"fast" json:"fast"`
	Slow   int `yaml:"slow" json:"slow"`
	Signal int `yaml:"signal" json:"signal"`
}

// DefaultParams returns the conventional settings: SMA 50/200,
// Bollinger 20/2 and MACD 12/26/9.
func DefaultParams() Params {
	return Params{
		SMA:       SMAParams{Short: 50, Long: 200},
		Bollinger: BollingerParams{Window: 20, NumStdDev: indicators.DefaultNumStdDev},
		MACD: MACDParams{
			Fast:   indicators.DefaultMACDFast,
			Slow:   indicators.DefaultMACDSlow,
			Signal: indicators.DefaultMACDSignal,
		},
	}
}

// WithDefaults fills zero fields from DefaultParams.
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	if p.SMA.Short == 0 {
		p.SMA.Short = d.SMA.Short
	}
	if p.SMA.Long == 0 {
		p.SMA.Long = d.SMA.Long
	}
	if p.Bollinger.Window == 0 {
		p.Bollinger.Window = d.Bollinger.Window
	}
	if p.Bollinger.NumStdDev == 0 {
		p.Bollinger.NumStdDev = d.Bollinger.NumStdDev
	}
	if p.MACD.Fast == 0 {
		p.MACD.Fast = d.MACD.Fast
	}
	if p.MACD.Slow == 0 {
		p.MACD.Slow = d.MACD.Slow
	}
	if p.MACD.Signal == 0 {
		p.MACD.Signal = d.MACD.Signal
	}
	return p
}
