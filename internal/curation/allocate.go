package curation

import "sort"

// Allocate splits a target total across keys using greedy even fill:
// every key gets an equal share, keys that cannot fill their share yield
// the shortfall to the others, and the process repeats until the target or
// the total availability is exhausted.
//
// Deterministic: keys are processed in ascending (availability, key)
// order, so the scarcest keys fix their allocation first.
func Allocate(target int, available map[string]int) map[string]int {
	keys := make([]string, 0, len(available))
	total := 0
	for k, n := range available {
		keys = append(keys, k)
		total += n
	}
	sort.Slice(keys, func(i, j int) bool {
		if available[keys[i]] != available[keys[j]] {
			return available[keys[i]] < available[keys[j]]
		}
		return keys[i] < keys[j]
	})

	if target > total {
		target = total
	}

	alloc := make(map[string]int, len(keys))
	remaining := target
	for i, k := range keys {
		share := remaining / (len(keys) - i)
		if share > available[k] {
			share = available[k]
		}
		alloc[k] = share
		remaining -= share
	}

	// Shortfall spillover: scarce keys may have left budget unspent; offer
	// it to keys with spare availability, richest first.
	if remaining > 0 {
		spare := make([]string, 0, len(keys))
		for _, k := range keys {
			if available[k] > alloc[k] {
				spare = append(spare, k)
			}
		}
		sort.Slice(spare, func(i, j int) bool {
			si := available[spare[i]] - alloc[spare[i]]
			sj := available[spare[j]] - alloc[spare[j]]
			if si != sj {
				return si > sj
			}
			return spare[i] < spare[j]
		})
		for remaining > 0 && len(spare) > 0 {
			progressed := false
			for _, k := range spare {
				if remaining == 0 {
					break
				}
				if available[k] > alloc[k] {
					alloc[k]++
					remaining--
					progressed = true
				}
			}
			if !progressed {
				break
			}
		}
	}
	return alloc
}
