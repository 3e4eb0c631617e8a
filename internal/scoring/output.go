package scoring

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/forecastbench/forecastbench/internal/objstore"
)

// PublishLeaderboard writes a leaderboard's CSV and JSON renditions. The
// HTML renderer is an external collaborator reading the JSON feed.
func PublishLeaderboard(ctx context.Context, store objstore.Store, lb *Leaderboard) error {
	csvData, err := leaderboardCSV(lb)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, objstore.LeaderboardCSVKey(string(lb.Variant)), csvData); err != nil {
		return fmt.Errorf("failed to publish leaderboard CSV: %w", err)
	}

	jsonData, err := json.MarshalIndent(lb, "", "  ")
	if err != nil {
		return err
	}
	if err := store.Put(ctx, objstore.LeaderboardJSKey(string(lb.Variant)), jsonData); err != nil {
		return fmt.Errorf("failed to publish leaderboard JSON: %w", err)
	}
	return nil
}

func leaderboardCSV(lb *Leaderboard) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"rank", "organization", "model_organization", "model",
		"n_dataset", "n_market", "dataset_score", "market_score", "overall_score",
		"ci_lo", "ci_hi", "p_value_superforecaster", "p_value_public",
		"oracle_equivalent", "pct_times_best", "pct_times_top_5",
		"peer_score", "brier_skill_score", "release_date",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, row := range lb.Rows {
		record := []string{
			strconv.Itoa(row.Rank),
			row.Organization,
			row.ModelOrganization,
			row.Model,
			strconv.Itoa(row.DatasetN),
			strconv.Itoa(row.MarketN),
			formatScore(row.Dataset),
			formatScore(row.Market),
			formatScore(row.Overall),
			formatScore(row.CI.Lo),
			formatScore(row.CI.Hi),
			formatScore(row.PValueSuper),
			formatScore(row.PValuePublic),
			formatScore(row.OracleEquivalent),
			formatScore(row.PctTimesBest),
			formatScore(row.PctTimesTop5),
			formatScore(row.Peer),
			formatScore(row.BSS),
			row.ReleaseDate,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// PublishSOTAGraph writes the SOTA envelope and parity quantiles for one
// leaderboard variant.
func PublishSOTAGraph(ctx context.Context, store objstore.Store, variant Variant, sota SOTAResult) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"release_date", "model", "overall_score"}); err != nil {
		return err
	}
	for _, p := range sota.Envelope {
		if err := w.Write([]string{p.ReleaseDate.String(), p.Model, formatScore(p.Score)}); err != nil {
			return err
		}
	}
	if sota.ValidReplicates > 0 {
		for i, label := range []string{"parity_p2.5", "parity_p50", "parity_p97.5"} {
			if err := w.Write([]string{sota.ParityQuantiles[i].String(), label, ""}); err != nil {
				return err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := store.Put(ctx, objstore.SOTAGraphKey(string(variant)), buf.Bytes()); err != nil {
		return fmt.Errorf("failed to publish SOTA graph: %w", err)
	}
	return nil
}

func formatScore(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}
