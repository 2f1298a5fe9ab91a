package risk

import (
	"errors"
	"fmt"
	"math"
)

// Exit reasons recorded on SELL trades.
const (
	ReasonSignal     = "Signal"
	ReasonStopLoss   = "StopLoss"
	ReasonTakeProfit = "TakeProfit"
	ReasonEndOfData  = "EndOfData"
)

// ExitPolicy is an optional overlay on top of strategy signals. The zero
// value is disabled and leaves the plain signal-driven behavior intact.
//
// Checks are close-based: a daily series has no intrabar path, so the
// close is the only price the simulator trades at.
type ExitPolicy struct {
	// StopLossPct exits when close <= entry * (1 - StopLossPct), e.g. 0.05.
	StopLossPct float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`

	// TakeProfitPct exits when close >= entry * (1 + TakeProfitPct).
	TakeProfitPct float64 `yaml:"take_profit_pct" json:"take_profit_pct"`

	// MinHoldBars suppresses signal exits until the position has been held
	// this many periods. Stop-loss and take-profit are not suppressed.
	MinHoldBars int `yaml:"min_hold_bars" json:"min_hold_bars"`
}

// Enabled reports whether any rule is set.
func (p ExitPolicy) Enabled() bool {
	return p.StopLossPct > 0 || p.TakeProfitPct > 0 || p.MinHoldBars > 0
}

// Validate returns every out-of-range field joined into one error.
func (p ExitPolicy) Validate() error {
	var errs []error
	if p.StopLossPct < 0 || p.StopLossPct >= 1 || math.IsNaN(p.StopLossPct) {
		errs = append(errs, fmt.Errorf("stop_loss_pct must be in [0, 1), got %g", p.StopLossPct))
	}
	if p.TakeProfitPct < 0 || math.IsNaN(p.TakeProfitPct) || math.IsInf(p.TakeProfitPct, 0) {
		errs = append(errs, fmt.Errorf("take_profit_pct must be >= 0, got %g", p.TakeProfitPct))
	}
	if p.MinHoldBars < 0 {
		errs = append(errs, fmt.Errorf("min_hold_bars must be >= 0, got %d", p.MinHoldBars))
	}
	return errors.Join(errs...)
}

// CheckExit reports whether an open long entered at entry must be closed
// at close. Stop-loss wins if both thresholds are somehow met.
func (p ExitPolicy) CheckExit(entry, close float64) (reason string, hit bool) {
	if entry <= 0 {
		return "", false
	}
	if p.StopLossPct > 0 && close <= entry*(1-p.StopLossPct) {
		return ReasonStopLoss, true
	}
	if p.TakeProfitPct > 0 && close >= entry*(1+p.TakeProfitPct) {
		return ReasonTakeProfit, true
	}
	return "", false
}

// AllowSignalExit reports whether a Sell signal may close a position held
// for barsHeld periods.
func (p ExitPolicy) AllowSignalExit(barsHeld int) bool {
	return barsHeld >= p.MinHoldBars
}

func (p ExitPolicy) String() string {
	if !p.Enabled() {
		return "none"
	}
	return fmt.Sprintf("stop=%g take=%g min_hold=%d", p.StopLossPct, p.TakeProfitPct, p.MinHoldBars)
}
