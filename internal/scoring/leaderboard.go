package scoring

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// Variant selects which models a leaderboard covers.
type Variant string

const (
	// VariantBaseline ranks only the benchmark's own models.
	VariantBaseline Variant = "baseline"
	// VariantTournament ranks every submission.
	VariantTournament Variant = "tournament"
)

// LeaderboardRow is one ranked leaderboard entry.
type LeaderboardRow struct {
	Rank              int     `json:"rank"`
	Organization      string  `json:"organization"`
	ModelOrganization string  `json:"model_organization"`
	Model             string  `json:"model"`
	DatasetN          int     `json:"n_dataset"`
	MarketN           int     `json:"n_market"`
	Dataset           float64 `json:"dataset_score"`
	Market            float64 `json:"market_score"`
	Overall           float64 `json:"overall_score"`
	CI                CI      `json:"overall_ci"`
	PValueSuper       float64 `json:"p_value_superforecaster"`
	PValuePublic      float64 `json:"p_value_public"`
	OracleEquivalent  float64 `json:"oracle_equivalent"`
	PctTimesBest      float64 `json:"pct_times_best"`
	PctTimesTop5      float64 `json:"pct_times_top_5"`
	Peer              float64 `json:"peer_score"`
	BSS               float64 `json:"brier_skill_score"`
	ReleaseDate       string  `json:"release_date,omitempty"`
}

// MarshalJSON writes NaN-valued score columns as null; the feed must stay
// parseable when a column could not be computed (no superforecaster
// submissions, degenerate bootstrap).
func (r LeaderboardRow) MarshalJSON() ([]byte, error) {
	type alias LeaderboardRow
	return json.Marshal(struct {
		alias
		Dataset          *float64 `json:"dataset_score"`
		Market           *float64 `json:"market_score"`
		Overall          *float64 `json:"overall_score"`
		PValueSuper      *float64 `json:"p_value_superforecaster"`
		PValuePublic     *float64 `json:"p_value_public"`
		OracleEquivalent *float64 `json:"oracle_equivalent"`
		Peer             *float64 `json:"peer_score"`
		BSS              *float64 `json:"brier_skill_score"`
	}{
		alias:            alias(r),
		Dataset:          nullableScore(r.Dataset),
		Market:           nullableScore(r.Market),
		Overall:          nullableScore(r.Overall),
		PValueSuper:      nullableScore(r.PValueSuper),
		PValuePublic:     nullableScore(r.PValuePublic),
		OracleEquivalent: nullableScore(r.OracleEquivalent),
		Peer:             nullableScore(r.Peer),
		BSS:              nullableScore(r.BSS),
	})
}

func nullableScore(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// Leaderboard is the full ranked table for one variant.
type Leaderboard struct {
	Variant Variant          `json:"variant"`
	Rows    []LeaderboardRow `json:"leaderboard"`
}

// benchmarkKey builds the ModelKey of one of the benchmark's own models.
func benchmarkKey(model string) domain.ModelKey {
	return domain.ModelKey{
		Organization:      domain.BenchmarkOrganization,
		ModelOrganization: domain.BenchmarkOrganization,
		Model:             model,
	}
}

// BuildLeaderboard ranks the scored models for one variant, attaching
// every uncertainty and supplement column. Synthetic oracles never
// appear.
func BuildLeaderboard(
	variant Variant,
	scores map[domain.ModelKey]*Score,
	reps *Replicates,
	cis map[domain.ModelKey]CI,
	releases map[string]domain.Day,
) *Leaderboard {
	rankStats := reps.RankStatsFor()
	superKey := benchmarkKey(domain.ModelSuperforecasterMed)
	publicKey := benchmarkKey(domain.ModelPublicMed)

	var rows []LeaderboardRow
	for key, s := range scores {
		if IsOracle(key) {
			continue
		}
		if variant == VariantBaseline && !key.IsBenchmark() {
			continue
		}
		row := LeaderboardRow{
			Organization:      key.Organization,
			ModelOrganization: key.ModelOrganization,
			Model:             key.Model,
			DatasetN:          s.DatasetN,
			MarketN:           s.MarketN,
			Dataset:           s.Dataset,
			Market:            s.Market,
			Overall:           s.Overall,
			CI:                cis[key],
			PValueSuper:       reps.PValueNotBetter(key, superKey),
			PValuePublic:      reps.PValueReferenceNotBetter(key, publicKey),
			OracleEquivalent:  OracleEquivalent(scores, key),
			PctTimesBest:      rankStats[key].PctTimesBest,
			PctTimesTop5:      rankStats[key].PctTimesTop5,
			Peer:              s.Peer,
			BSS:               s.BSS,
		}
		if release, ok := releases[key.Model]; ok {
			row.ReleaseDate = release.String()
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		oi, oj := rows[i].Overall, rows[j].Overall
		ni, nj := math.IsNaN(oi), math.IsNaN(oj)
		if ni != nj {
			// Unscorable rows sink below every scored row
			return nj
		}
		if !ni && oi != oj {
			return oi < oj
		}
		if rows[i].Organization != rows[j].Organization {
			return rows[i].Organization < rows[j].Organization
		}
		return rows[i].Model < rows[j].Model
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return &Leaderboard{Variant: variant, Rows: rows}
}
