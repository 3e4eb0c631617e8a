package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/objstore"
)

// Object-store keys for the operator-maintained override tables.
const (
	remapKey   = "question_bank/id_remap.json"
	nullifyKey = "question_bank/nullify.json"
)

// RemapEntry redirects a superseded question id to its successor. Added
// when a canonicalization change re-hashes a question that already
// shipped.
type RemapEntry struct {
	Source domain.Source `json:"source"`
	OldID  string        `json:"old_id"`
	NewID  string        `json:"new_id"`
}

// NullifyEntry marks a question as resolving to NaN for every forecast due
// date on or after StartDate, without purging its history.
type NullifyEntry struct {
	Source    domain.Source `json:"source"`
	ID        string        `json:"id"`
	StartDate domain.Day    `json:"nullify_start_date"`
}

// Overrides is the loaded remap + nullify overlay. Immutable after load;
// adapters must consult it before any series lookup.
type Overrides struct {
	remap   map[string]string     // source+id -> successor id
	nullify map[string]domain.Day // source+id -> nullify start date
}

func overrideKey(source domain.Source, id string) string {
	return string(source) + "\x1f" + id
}

// maxRemapHops bounds the remap walk. Chains are one hop in practice; a
// chain this long is an operator-table cycle.
const maxRemapHops = 8

// NewOverrides builds an overlay from entry lists and validates every
// remap chain. Exposed for tests; jobs use LoadOverrides.
func NewOverrides(remaps []RemapEntry, nullifies []NullifyEntry) (*Overrides, error) {
	o := &Overrides{
		remap:   make(map[string]string, len(remaps)),
		nullify: make(map[string]domain.Day, len(nullifies)),
	}
	for _, e := range remaps {
		o.remap[overrideKey(e.Source, e.OldID)] = e.NewID
	}
	for _, e := range nullifies {
		o.nullify[overrideKey(e.Source, e.ID)] = e.StartDate
	}
	for _, e := range remaps {
		if _, ok := o.walk(e.Source, e.OldID); !ok {
			return nil, fmt.Errorf("remap chain for %s/%s exceeds %d hops, suspected cycle in the id remap table",
				e.Source, e.OldID, maxRemapHops)
		}
	}
	return o, nil
}

// LoadOverrides reads both override tables from the object store. Missing
// objects yield empty tables.
func LoadOverrides(ctx context.Context, store objstore.Store) (*Overrides, error) {
	var remaps []RemapEntry
	if err := loadJSON(ctx, store, remapKey, &remaps); err != nil {
		return nil, fmt.Errorf("failed to load id remap table: %w", err)
	}
	var nullifies []NullifyEntry
	if err := loadJSON(ctx, store, nullifyKey, &nullifies); err != nil {
		return nil, fmt.Errorf("failed to load nullify table: %w", err)
	}
	return NewOverrides(remaps, nullifies)
}

func loadJSON(ctx context.Context, store objstore.Store, key string, out interface{}) error {
	data, err := store.Get(ctx, key)
	if errors.Is(err, objstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// Canonical follows the remap chain from id to its current successor.
// Chains are validated at load, so the walk always terminates inside the
// hop bound.
func (o *Overrides) Canonical(source domain.Source, id string) string {
	canonical, _ := o.walk(source, id)
	return canonical
}

// walk follows up to maxRemapHops remap entries; the second return is
// false when the chain is still unfinished at the bound.
func (o *Overrides) walk(source domain.Source, id string) (string, bool) {
	for i := 0; i < maxRemapHops; i++ {
		next, ok := o.remap[overrideKey(source, id)]
		if !ok {
			return id, true
		}
		id = next
	}
	_, more := o.remap[overrideKey(source, id)]
	return id, !more
}

// Nullified reports whether a forecast on (source, id) with the given
// forecast due date falls into a nullification window. The check applies
// to the canonical id: nullifying a superseded id nullifies its successor
// lookups too.
func (o *Overrides) Nullified(source domain.Source, id string, dueDate domain.Day) bool {
	start, ok := o.nullify[overrideKey(source, id)]
	if !ok {
		canonical := o.Canonical(source, id)
		if canonical == id {
			return false
		}
		start, ok = o.nullify[overrideKey(source, canonical)]
		if !ok {
			return false
		}
	}
	return dueDate >= start
}
