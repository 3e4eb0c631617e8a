package curation

import (
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// binCandidate is a market question placed on the composite grid.
type binCandidate struct {
	question *domain.Question
	bin      compositeBin
}

// BinTelemetry is one row of the per-source sampling table: how many
// questions a composite bin wanted, had available, and actually got.
// Logged after every sampling pass; a persistent got < want on a heavy
// bin means the source is starving.
type BinTelemetry struct {
	ValueBin   int
	HorizonBin int
	Want       int
	Available  int
	Got        int
}

// SampleMarket draws exactly n questions (or all candidates if fewer)
// from one market source by stratified composite-bin sampling. Target per
// bin is round(n × weight) capped by availability; rounding residuals go
// to the highest-weight bins to fill and lowest-weight bins to trim.
// Deterministic given rng state.
func SampleMarket(candidates []*domain.Question, n int, freeze time.Time, rng *rand.Rand) ([]*domain.Question, []BinTelemetry) {
	placed := make(map[compositeBin][]*domain.Question)
	for _, c := range binCandidates(candidates, freeze) {
		placed[c.bin] = append(placed[c.bin], c.question)
	}

	bins := allCompositeBins()
	targets := binTargets(bins, n, placed)

	var sampled []*domain.Question
	telemetry := make([]BinTelemetry, 0, len(bins))
	for _, bin := range bins {
		pool := placed[bin]
		want := targets[bin]
		got := want
		if got > len(pool) {
			got = len(pool)
		}
		// Stable pool order before shuffling keeps the draw a pure
		// function of (inputs, seed)
		sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
		rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		sampled = append(sampled, pool[:got]...)

		telemetry = append(telemetry, BinTelemetry{
			ValueBin:   bin.Value,
			HorizonBin: bin.Horizon,
			Want:       want,
			Available:  len(pool),
			Got:        got,
		})
	}
	return sampled, telemetry
}

// binCandidates places candidates on the grid, silently dropping any with
// an unparseable freeze value or an out-of-range horizon (already
// filtered, but placement is the authority).
func binCandidates(candidates []*domain.Question, freeze time.Time) []binCandidate {
	out := make([]binCandidate, 0, len(candidates))
	for _, q := range candidates {
		p, err := strconv.ParseFloat(q.FreezeDatetimeValue, 64)
		if err != nil {
			continue
		}
		v, ok := valueBinOf(p)
		if !ok {
			continue
		}
		if q.MarketInfoCloseDatetime == nil {
			// No close time means an effectively unbounded horizon
			out = append(out, binCandidate{question: q, bin: compositeBin{Value: v, Horizon: len(horizonBins) - 1}})
			continue
		}
		days := int(q.MarketInfoCloseDatetime.Sub(freeze).Hours() / 24)
		h, ok := horizonBinOf(days)
		if !ok {
			continue
		}
		out = append(out, binCandidate{question: q, bin: compositeBin{Value: v, Horizon: h}})
	}
	return out
}

// binTargets computes the per-bin draw counts: round(n × weight), then
// residual distribution so the counts sum to min(n, available).
func binTargets(bins []compositeBin, n int, placed map[compositeBin][]*domain.Question) map[compositeBin]int {
	dn := decimal.NewFromInt(int64(n))
	targets := make(map[compositeBin]int, len(bins))
	total := 0
	availableTotal := 0
	for _, bin := range bins {
		t := int(dn.Mul(compositeWeight(bin)).Round(0).IntPart())
		if avail := len(placed[bin]); t > avail {
			t = avail
		}
		targets[bin] = t
		total += t
		availableTotal += len(placed[bin])
	}

	want := n
	if want > availableTotal {
		want = availableTotal
	}

	// Fill: add to the highest-weight bins with spare availability
	if total < want {
		order := binsByWeight(bins, true)
		for total < want {
			progressed := false
			for _, bin := range order {
				if total == want {
					break
				}
				if targets[bin] < len(placed[bin]) {
					targets[bin]++
					total++
					progressed = true
				}
			}
			if !progressed {
				break
			}
		}
	}

	// Trim: remove from the lowest-weight non-empty bins
	if total > want {
		order := binsByWeight(bins, false)
		for total > want {
			progressed := false
			for _, bin := range order {
				if total == want {
					break
				}
				if targets[bin] > 0 {
					targets[bin]--
					total--
					progressed = true
				}
			}
			if !progressed {
				break
			}
		}
	}
	return targets
}

// binsByWeight orders the grid by composite weight, descending when desc,
// with the grid enumeration order as tiebreak.
func binsByWeight(bins []compositeBin, desc bool) []compositeBin {
	out := append([]compositeBin(nil), bins...)
	sort.SliceStable(out, func(i, j int) bool {
		wi, wj := compositeWeight(out[i]), compositeWeight(out[j])
		if desc {
			return wi.GreaterThan(wj)
		}
		return wi.LessThan(wj)
	})
	return out
}

// SampleDataset draws n questions from one dataset source, allocated
// evenly across categories with greedy spillover, uniform within each
// category. Deterministic given rng state.
func SampleDataset(candidates []*domain.Question, n int, rng *rand.Rand) []*domain.Question {
	byCategory := make(map[string][]*domain.Question)
	for _, q := range candidates {
		byCategory[q.Category] = append(byCategory[q.Category], q)
	}

	available := make(map[string]int, len(byCategory))
	for cat, qs := range byCategory {
		available[cat] = len(qs)
	}
	alloc := Allocate(n, available)

	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	var sampled []*domain.Question
	for _, cat := range categories {
		pool := byCategory[cat]
		sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
		rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		sampled = append(sampled, pool[:alloc[cat]]...)
	}
	return sampled
}
