// Package indicator computes technical indicators over a daily price series,
// oldest price first.
//
// Every indicator returns (value, ok). ok is false when the series is too
// short for the requested period, callers report that as null.
package indicator

import "math"

// SMA returns the mean of the last period prices.
func SMA(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	return mean(prices[len(prices)-period:]), true
}

// EMA returns the exponential moving average, seeded with the simple average
// of the first period prices.
func EMA(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	k := 2 / float64(period+1)
	ema := mean(prices[:period])
	for _, p := range prices[period:] {
		ema = (p-ema)*k + ema
	}
	return ema, true
}

// RSI returns the relative strength index with Wilder smoothing.
//
// It is 100 when the series has no loss over the smoothing horizon.
func RSI(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period+1 {
		return 0, false
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		gain, loss := change(prices[i-1], prices[i])
		avgGain += gain
		avgLoss += loss
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(prices); i++ {
		gain, loss := change(prices[i-1], prices[i])
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// change splits the move from a to b in a gain and a loss, both positive.
func change(a, b float64) (gain, loss float64) {
	d := b - a
	if d > 0 {
		return d, 0
	}
	return 0, -d
}

// MACD is the moving average convergence divergence of a series.
type MACD struct {
	Line, Signal, Histogram float64
}

// NewMACD returns ema12 - ema26.
//
// The signal line is approximated as 90% of the line since only the latest
// value of the line is computed.
func NewMACD(prices []float64) (MACD, bool) {
	ema12, ok12 := EMA(prices, 12)
	ema26, ok26 := EMA(prices, 26)
	if !ok12 || !ok26 {
		return MACD{}, false
	}
	line := ema12 - ema26
	signal := line * 0.9
	return MACD{Line: line, Signal: signal, Histogram: line - signal}, true
}

// Bands are Bollinger bands.
type Bands struct {
	Upper, Middle, Lower float64
}

// Bollinger returns the SMA of the last period prices, plus and minus k
// population standard deviations.
func Bollinger(prices []float64, period int, k float64) (Bands, bool) {
	middle, ok := SMA(prices, period)
	if !ok {
		return Bands{}, false
	}
	var variance float64
	for _, p := range prices[len(prices)-period:] {
		variance += (p - middle) * (p - middle)
	}
	std := math.Sqrt(variance / float64(period))
	return Bands{Upper: middle + k*std, Middle: middle, Lower: middle - k*std}, true
}

func mean(s []float64) float64 {
	var sum float64
	for _, v := range s {
		sum += v
	}
	return sum / float64(len(s))
}
