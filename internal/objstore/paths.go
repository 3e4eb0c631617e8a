package objstore

import (
	"fmt"
	"strings"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// Key layout inside the bucket. These names are load-bearing: downstream
// collaborators (website renderer, submitters' CI) address objects by
// exact path.

// SeriesKey is the per-question resolution series, one JSON line per day.
func SeriesKey(source domain.Source, id string) string {
	return fmt.Sprintf("question_bank/%s/%s.jsonl", source, id)
}

// HashMappingKey is the synthesized-id to key-dict table for a source.
func HashMappingKey(source domain.Source) string {
	return fmt.Sprintf("question_bank/%s/hash_mapping.json", source)
}

// QuestionSetKey names a curated question set; kind is "llm" or "human".
func QuestionSetKey(date domain.Day, kind string) string {
	return fmt.Sprintf("question_sets/%s-%s.json", date, kind)
}

// LatestLLMKey is the alias always pointing at the newest LLM set.
const LatestLLMKey = "question_sets/latest-llm.json"

// ForecastSetPrefix holds all submissions for a forecast due date.
func ForecastSetPrefix(dueDate domain.Day) string {
	return fmt.Sprintf("forecast_sets/%s/", dueDate)
}

// ProcessedForecastSetKey mirrors the submission path after resolution.
func ProcessedForecastSetKey(dueDate domain.Day, filename string) string {
	return fmt.Sprintf("processed_forecast_sets/%s/%s", dueDate, filename)
}

// ResolutionSetKey is the published per-round ground-truth table.
func ResolutionSetKey(dueDate domain.Day) string {
	return fmt.Sprintf("resolution_sets/%s_resolution_set.json", dueDate)
}

// LeaderboardCSVKey names a leaderboard CSV; variant is "baseline" or
// "tournament".
func LeaderboardCSVKey(variant string) string {
	return fmt.Sprintf("leaderboards/csv/leaderboard_%s.csv", variant)
}

// LeaderboardJSKey names the JSON feed the website renderer consumes.
func LeaderboardJSKey(variant string) string {
	return fmt.Sprintf("leaderboards/js/leaderboard_%s.json", variant)
}

// SOTAGraphKey names the SOTA trajectory CSV per leaderboard variant.
func SOTAGraphKey(variant string) string {
	return fmt.Sprintf("leaderboards/csv/sota_graph_%s.csv", variant)
}

// FilenameFromKey returns the final path segment of a key.
func FilenameFromKey(key string) string {
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		return key
	}
	return key[idx+1:]
}
