package domain

import "math"

type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// TrendResult describes a least-squares fit over an ordered series.
// MagnitudePercent is the raw slope scaled by 100, not relative to a baseline.
type TrendResult struct {
	Slope            float64
	Direction        TrendDirection
	MagnitudePercent float64
}

// ComputeTrend fits value against index 1..n. Series shorter than two points
// are Stable with a zero slope.
func ComputeTrend(series []float64) TrendResult {
	slope := olsSlope(series)
	dir := TrendStable
	switch {
	case slope > 0:
		dir = TrendIncreasing
	case slope < 0:
		dir = TrendDecreasing
	}
	return TrendResult{Slope: slope, Direction: dir, MagnitudePercent: math.Abs(slope) * 100}
}

func olsSlope(ys []float64) float64 {
	if len(ys) < 2 {
		return 0
	}
	n := float64(len(ys))
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range ys {
		x := float64(i + 1)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// EmissionTotals extracts the ordered totals from monthly samples.
func EmissionTotals(samples []EmissionSample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.TotalEmissions
	}
	return out
}
