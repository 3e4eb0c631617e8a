package resolution

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// rowKey uniquely identifies a submitted forecast row inside one file.
func rowKey(f domain.Forecast) string {
	parts := []string{f.ID.Key(), f.Source, f.ResolutionDate.String()}
	for _, d := range f.Direction {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, "\x1f")
}

// validateForecasts screens a submitted file: rows with an unknown source,
// a null or out-of-range forecast, or an off-grid dataset resolution date
// are dropped (and later imputed); a duplicate dataset or combo row is a
// data-integrity error that fails the whole file.
func validateForecasts(fs *domain.ForecastSet, validDates map[string]map[domain.Day]bool) (map[string]domain.Forecast, error) {
	valid := make(map[string]domain.Forecast, len(fs.Forecasts))
	seen := make(map[string]bool, len(fs.Forecasts))

	for _, f := range fs.Forecasts {
		source, ok := domain.CanonicalSource(f.Source)
		if !ok {
			continue
		}
		f.Source = string(source)

		if source.IsDataset() {
			dates := validDates[f.ID.Key()]
			if dates == nil || !dates[f.ResolutionDate] {
				continue
			}
		} else {
			// The engine picks the resolution date for market and
			// combination rows; a submitted date is not part of the
			// row identity.
			f.ResolutionDate = 0
		}

		key := rowKey(f)
		if seen[key] {
			return nil, fmt.Errorf("duplicate forecast row %s in %s/%s/%s",
				key, fs.Organization, fs.ModelOrganization, fs.Model)
		}
		seen[key] = true

		if f.Forecast == nil || !domain.ValidProbability(*f.Forecast) {
			continue
		}
		valid[key] = f
	}
	return valid, nil
}

// sortProcessed orders processed rows deterministically.
func sortProcessed(rows []domain.ProcessedForecast) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Source != rows[j].Source {
			return rows[i].Source < rows[j].Source
		}
		if rows[i].ID.Key() != rows[j].ID.Key() {
			return rows[i].ID.Key() < rows[j].ID.Key()
		}
		if rows[i].ResolutionDate != rows[j].ResolutionDate {
			return rows[i].ResolutionDate < rows[j].ResolutionDate
		}
		return fmt.Sprint(rows[i].Direction) < fmt.Sprint(rows[j].Direction)
	})
}
