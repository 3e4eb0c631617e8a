package curation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Market questions are sampled by composite bin: (market-value bin ×
// time-horizon bin). Weights are exact decimals and each axis must sum to
// exactly 1; float drift here would silently skew every shipped set.

// valueBin is one interval of the market-value axis.
type valueBin struct {
	Lo, Hi decimal.Decimal
	// HiClosed marks the final bin, which includes its upper bound
	HiClosed bool
	Weight   decimal.Decimal
}

// horizonBin is one interval of the days-to-close axis. Hi < 0 means
// unbounded above.
type horizonBin struct {
	Lo, Hi int
	Weight decimal.Decimal
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// valueBins are the 12 market-value intervals. Mass concentrates in the
// middle of the probability range; near-certain markets carry little
// signal and get the tails' small weights.
var valueBins = []valueBin{
	{Lo: d("0"), Hi: d("0.01"), Weight: d("0.02")},
	{Lo: d("0.01"), Hi: d("0.10"), Weight: d("0.08")},
	{Lo: d("0.10"), Hi: d("0.20"), Weight: d("0.10")},
	{Lo: d("0.20"), Hi: d("0.30"), Weight: d("0.10")},
	{Lo: d("0.30"), Hi: d("0.40"), Weight: d("0.10")},
	{Lo: d("0.40"), Hi: d("0.50"), Weight: d("0.10")},
	{Lo: d("0.50"), Hi: d("0.60"), Weight: d("0.10")},
	{Lo: d("0.60"), Hi: d("0.70"), Weight: d("0.10")},
	{Lo: d("0.70"), Hi: d("0.80"), Weight: d("0.10")},
	{Lo: d("0.80"), Hi: d("0.90"), Weight: d("0.10")},
	{Lo: d("0.90"), Hi: d("0.99"), Weight: d("0.08")},
	{Lo: d("0.99"), Hi: d("1"), HiClosed: true, Weight: d("0.02")},
}

// horizonBins are the 7 days-to-close intervals.
var horizonBins = []horizonBin{
	{Lo: 0, Hi: 7, Weight: d("0.05")},
	{Lo: 8, Hi: 30, Weight: d("0.15")},
	{Lo: 31, Hi: 50, Weight: d("0.15")},
	{Lo: 51, Hi: 90, Weight: d("0.20")},
	{Lo: 91, Hi: 180, Weight: d("0.20")},
	{Lo: 181, Hi: 365, Weight: d("0.15")},
	{Lo: 366, Hi: -1, Weight: d("0.10")},
}

// VerifyBinWeights checks that each axis's weights sum to exactly 1.
func VerifyBinWeights() error {
	sum := decimal.Zero
	for _, b := range valueBins {
		sum = sum.Add(b.Weight)
	}
	if !sum.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("market-value bin weights sum to %s, want 1", sum)
	}

	sum = decimal.Zero
	for _, b := range horizonBins {
		sum = sum.Add(b.Weight)
	}
	if !sum.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("horizon bin weights sum to %s, want 1", sum)
	}
	return nil
}

// compositeBin indexes one (value bin, horizon bin) cell.
type compositeBin struct {
	Value   int
	Horizon int
}

// compositeWeight is the product of the axis weights. The products of two
// unit-sum axes already sum to 1.
func compositeWeight(bin compositeBin) decimal.Decimal {
	return valueBins[bin.Value].Weight.Mul(horizonBins[bin.Horizon].Weight)
}

// allCompositeBins enumerates cells in (value, horizon) order.
func allCompositeBins() []compositeBin {
	bins := make([]compositeBin, 0, len(valueBins)*len(horizonBins))
	for v := range valueBins {
		for h := range horizonBins {
			bins = append(bins, compositeBin{Value: v, Horizon: h})
		}
	}
	return bins
}

// valueBinOf places a market probability on the value axis; ok is false
// outside [0,1].
func valueBinOf(p float64) (int, bool) {
	dp := decimal.NewFromFloat(p)
	for i, b := range valueBins {
		if dp.LessThan(b.Lo) {
			return 0, false
		}
		if dp.LessThan(b.Hi) || (b.HiClosed && dp.LessThanOrEqual(b.Hi)) {
			return i, true
		}
	}
	return 0, false
}

// horizonBinOf places a days-to-close count on the horizon axis; ok is
// false for negative horizons.
func horizonBinOf(days int) (int, bool) {
	if days < 0 {
		return 0, false
	}
	for i, b := range horizonBins {
		if days >= b.Lo && (b.Hi < 0 || days <= b.Hi) {
			return i, true
		}
	}
	return 0, false
}
