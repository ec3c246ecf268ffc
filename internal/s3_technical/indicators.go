package s3_technical

import (
	"math"
)

// Indicator windows
const (
	SMAShort  = 10
	SMALong   = 20
	EMAShort  = 10
	EMALong   = 20
	RSIPeriod = 14
	VolumeSMA = 10
)

// sma returns the trailing simple moving average; NaN for the first n-1 values
func sma(values []float64, n int) []float64 {
	out := nanSeries(len(values))
	if n <= 0 {
		return out
	}
	for i := n - 1; i < len(values); i++ {
		var sum float64
		for _, v := range values[i-n+1 : i+1] {
			sum += v
		}
		out[i] = sum / float64(n)
	}
	return out
}

// ema returns the adjusted exponentially weighted mean with alpha = 2/(span+1).
// Defined from the first value.
func ema(values []float64, span int) []float64 {
	return ewmAdjusted(values, 2/(float64(span)+1), 1)
}

// ewmAdjusted computes sum((1-a)^i x[t-i]) / sum((1-a)^i) and reports NaN
// until minPeriods values were seen. Only leading NaN inputs occur here
// (the first diff); they are skipped.
func ewmAdjusted(values []float64, alpha float64, minPeriods int) []float64 {
	out := nanSeries(len(values))
	decay := 1 - alpha

	var num, den float64
	seen := 0
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		num = v + decay*num
		den = 1 + decay*den
		seen++
		if seen >= minPeriods {
			out[i] = num / den
		}
	}
	return out
}

// rsi returns the Wilder relative strength index: RMA of gains over RMA of
// gains plus absolute losses. Undefined for the first n values and wherever
// both averages are zero.
func rsi(closes []float64, n int) []float64 {
	gains := nanSeries(len(closes))
	losses := nanSeries(len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		gains[i] = math.Max(d, 0)
		losses[i] = math.Min(d, 0)
	}

	alpha := 1 / float64(n)
	up := ewmAdjusted(gains, alpha, n)
	down := ewmAdjusted(losses, alpha, n)

	out := nanSeries(len(closes))
	for i := range closes {
		denom := up[i] + math.Abs(down[i])
		if math.IsNaN(denom) || denom == 0 {
			continue
		}
		out[i] = 100 * up[i] / denom
	}
	return out
}

// pctChange returns (x[t]-x[t-1])/x[t-1]; NaN at t=0 and after a zero
func pctChange(values []float64) []float64 {
	out := nanSeries(len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out[i] = (values[i] - values[i-1]) / values[i-1]
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
