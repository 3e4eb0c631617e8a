package resolution

import (
	"context"
	"strings"

	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/objstore"
)

// SubmittedDueDates lists the distinct forecast due dates with at least
// one submitted forecast file, in ascending order.
func SubmittedDueDates(ctx context.Context, store objstore.Store) ([]domain.Day, error) {
	keys, err := store.List(ctx, "forecast_sets/")
	if err != nil {
		return nil, err
	}
	seen := make(map[domain.Day]bool)
	var out []domain.Day
	for _, key := range keys {
		parts := strings.Split(key, "/")
		if len(parts) < 3 {
			continue
		}
		dueDate, err := domain.ParseDay(parts[1])
		if err != nil {
			continue
		}
		if !seen[dueDate] {
			seen[dueDate] = true
			out = append(out, dueDate)
		}
	}
	return out, nil
}
