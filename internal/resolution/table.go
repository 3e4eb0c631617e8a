package resolution

import (
	"context"
	"fmt"
	"math"

	"github.com/forecastbench/forecastbench/internal/bank"
	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/sources"
)

// resolvedValue is one memoized ground-truth lookup.
type resolvedValue struct {
	value    float64
	resolved bool
}

// marketValues are the per-question freeze-adjacent market observations
// attached to every processed market row.
type marketValues struct {
	onDueDate         float64
	onDueDateMinusOne float64
}

// resolvedTable materializes ground truth for one question set exactly
// once per (source, id, resolution date), applying the remap and nullify
// overlays before any series lookup.
type resolvedTable struct {
	registry  *sources.Registry
	repo      *bank.Repository
	series    *bank.SeriesStore
	overrides *bank.Overrides
	dueDate   domain.Day
	today     domain.Day

	values  map[string]resolvedValue
	markets map[string]marketValues
}

func newResolvedTable(registry *sources.Registry, repo *bank.Repository, series *bank.SeriesStore, overrides *bank.Overrides, dueDate, today domain.Day) *resolvedTable {
	return &resolvedTable{
		registry:  registry,
		repo:      repo,
		series:    series,
		overrides: overrides,
		dueDate:   dueDate,
		today:     today,
		values:    make(map[string]resolvedValue),
		markets:   make(map[string]marketValues),
	}
}

// resolveSingle resolves one single-leg question at a resolution date.
func (t *resolvedTable) resolveSingle(ctx context.Context, source domain.Source, id string, resolutionDate domain.Day) (resolvedValue, error) {
	memoKey := fmt.Sprintf("%s\x1f%s\x1f%d", source, id, resolutionDate)
	if v, ok := t.values[memoKey]; ok {
		return v, nil
	}

	v, err := t.resolveUncached(ctx, source, id, resolutionDate)
	if err != nil {
		return resolvedValue{}, err
	}
	t.values[memoKey] = v
	return v, nil
}

func (t *resolvedTable) resolveUncached(ctx context.Context, source domain.Source, id string, resolutionDate domain.Day) (resolvedValue, error) {
	if t.overrides.Nullified(source, id, t.dueDate) {
		return resolvedValue{value: math.NaN()}, nil
	}
	canonical := t.overrides.Canonical(source, id)

	adapter, err := t.registry.Adapter(source)
	if err != nil {
		return resolvedValue{}, err
	}
	question, err := t.repo.Get(adapter.Source(), canonical)
	if err != nil {
		return resolvedValue{}, fmt.Errorf("unresolvable question %s/%s: %w", source, canonical, err)
	}
	series, err := t.series.Get(ctx, adapter.Source(), canonical, t.today)
	if err != nil {
		return resolvedValue{}, err
	}

	value := adapter.Resolve(question, series, t.dueDate, resolutionDate)
	resolved := !math.IsNaN(value)
	if question.Source.IsMarket() {
		// An open market's value is a live price, not an outcome
		resolved = resolved && question.Resolved
	}
	return resolvedValue{value: value, resolved: resolved}, nil
}

// resolveCombo resolves a combination question: each leg separately, then
// the direction-weighted product. A NaN leg propagates.
func (t *resolvedTable) resolveCombo(ctx context.Context, source domain.Source, legs [2]string, direction []int, resolutionDate domain.Day) (resolvedValue, error) {
	if len(direction) != 2 {
		return resolvedValue{value: math.NaN()}, nil
	}
	r1, err := t.resolveSingle(ctx, source, legs[0], resolutionDate)
	if err != nil {
		return resolvedValue{}, err
	}
	r2, err := t.resolveSingle(ctx, source, legs[1], resolutionDate)
	if err != nil {
		return resolvedValue{}, err
	}
	return resolvedValue{
		value:    CombineLegs(direction, r1.value, r2.value),
		resolved: r1.resolved && r2.resolved,
	}, nil
}

// CombineLegs maps two leg outcomes and a direction tuple to the combo
// outcome: the product over legs of r_i when d_i is +1 and 1-r_i when -1.
func CombineLegs(direction []int, r1, r2 float64) float64 {
	if math.IsNaN(r1) || math.IsNaN(r2) {
		return math.NaN()
	}
	a, b := r1, r2
	if direction[0] != 1 {
		a = 1 - r1
	}
	if direction[1] != 1 {
		b = 1 - r2
	}
	return a * b
}

// marketValuesFor returns the question's series values at the forecast
// due date and the day before, memoized per question.
func (t *resolvedTable) marketValuesFor(ctx context.Context, source domain.Source, id string) (marketValues, error) {
	memoKey := string(source) + "\x1f" + id
	if v, ok := t.markets[memoKey]; ok {
		return v, nil
	}

	canonical := t.overrides.Canonical(source, id)
	adapter, err := t.registry.Adapter(source)
	if err != nil {
		return marketValues{}, err
	}
	series, err := t.series.Get(ctx, adapter.Source(), canonical, t.today)
	if err != nil {
		return marketValues{}, err
	}
	v := marketValues{
		onDueDate:         series.AtOrLast(t.dueDate).Float(),
		onDueDateMinusOne: series.AtOrLast(t.dueDate - 1).Float(),
	}
	t.markets[memoKey] = v
	return v, nil
}
