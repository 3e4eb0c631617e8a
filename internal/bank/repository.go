// Package bank implements the question bank: stable storage of canonical
// questions, per-question resolution series, synthesized-id hash mappings,
// and the remap/nullify overlay. Writes are append-or-replace; a question
// that ever shipped in a question set stays resolvable forever.
package bank

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/database"
	"github.com/forecastbench/forecastbench/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS questions (
	source TEXT NOT NULL,
	id TEXT NOT NULL,
	url TEXT NOT NULL DEFAULT '',
	question TEXT NOT NULL DEFAULT '',
	background TEXT NOT NULL DEFAULT '',
	resolution_criteria TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT 'Other',
	forecast_horizons TEXT NOT NULL DEFAULT '[]',
	freeze_datetime TEXT,
	freeze_datetime_value TEXT NOT NULL DEFAULT '',
	freeze_datetime_value_explanation TEXT NOT NULL DEFAULT '',
	market_info_open_datetime TEXT,
	market_info_close_datetime TEXT,
	market_info_resolution_datetime TEXT,
	resolved INTEGER NOT NULL DEFAULT 0,
	valid_question INTEGER NOT NULL DEFAULT 1,
	event_count_params TEXT,
	comparison TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (source, id)
);

CREATE TABLE IF NOT EXISTS hash_mappings (
	source TEXT NOT NULL,
	hash TEXT NOT NULL,
	key_json TEXT NOT NULL,
	PRIMARY KEY (source, hash)
);
`

// Repository persists the per-source question tables. The id column is
// immutable: upserts only touch the mutable fields (resolution status,
// freeze values, market close/resolution times, adapter text fields).
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a question repository and applies the schema.
func NewRepository(db *database.DB, log zerolog.Logger) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply question bank schema: %w", err)
	}
	return &Repository{
		db:  db,
		log: log.With().Str("component", "bank_repository").Logger(),
	}, nil
}

// Upsert inserts a question or updates its mutable fields. The (source, id)
// pair never changes once assigned.
func (r *Repository) Upsert(q *domain.Question) error {
	horizons, err := json.Marshal(q.ForecastHorizons)
	if err != nil {
		return fmt.Errorf("failed to encode horizons for %s: %w", q.ID, err)
	}

	var eventParams interface{}
	if q.EventCount != nil {
		data, err := json.Marshal(q.EventCount)
		if err != nil {
			return fmt.Errorf("failed to encode event-count params for %s: %w", q.ID, err)
		}
		eventParams = string(data)
	}

	_, err = r.db.Exec(`
		INSERT INTO questions (
			source, id, url, question, background, resolution_criteria,
			category, forecast_horizons, freeze_datetime, freeze_datetime_value,
			freeze_datetime_value_explanation, market_info_open_datetime,
			market_info_close_datetime, market_info_resolution_datetime,
			resolved, valid_question, event_count_params, comparison
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, id) DO UPDATE SET
			url = excluded.url,
			question = excluded.question,
			background = excluded.background,
			resolution_criteria = excluded.resolution_criteria,
			category = excluded.category,
			forecast_horizons = excluded.forecast_horizons,
			freeze_datetime = excluded.freeze_datetime,
			freeze_datetime_value = excluded.freeze_datetime_value,
			freeze_datetime_value_explanation = excluded.freeze_datetime_value_explanation,
			market_info_close_datetime = excluded.market_info_close_datetime,
			market_info_resolution_datetime = excluded.market_info_resolution_datetime,
			resolved = excluded.resolved,
			valid_question = excluded.valid_question,
			event_count_params = excluded.event_count_params,
			comparison = excluded.comparison`,
		string(q.Source), q.ID, q.URL, q.Question, q.Background, q.ResolutionCriteria,
		q.Category, string(horizons), timePtr(q.FreezeDatetime), q.FreezeDatetimeValue,
		q.FreezeDatetimeValueExplanation, timeOrNil(q.MarketInfoOpenDatetime),
		timeOrNil(q.MarketInfoCloseDatetime), timeOrNil(q.MarketInfoResolutionDatetime),
		boolToInt(q.Resolved), boolToInt(q.ValidQuestion), eventParams, string(q.Comparison),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert question %s/%s: %w", q.Source, q.ID, err)
	}
	return nil
}

// Get returns a single question by source and id.
func (r *Repository) Get(source domain.Source, id string) (*domain.Question, error) {
	row := r.db.QueryRow(selectColumns+` FROM questions WHERE source = ? AND id = ?`, string(source), id)
	q, err := scanQuestion(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("question %s/%s not found", source, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load question %s/%s: %w", source, id, err)
	}
	return q, nil
}

// GetBySource returns the full question table for a source, ordered by id
// for deterministic curation input.
func (r *Repository) GetBySource(source domain.Source) ([]*domain.Question, error) {
	rows, err := r.db.Query(selectColumns+` FROM questions WHERE source = ? ORDER BY id`, string(source))
	if err != nil {
		return nil, fmt.Errorf("failed to query questions for %s: %w", source, err)
	}
	defer rows.Close()

	var questions []*domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question for %s: %w", source, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

const selectColumns = `
	SELECT source, id, url, question, background, resolution_criteria,
	       category, forecast_horizons, freeze_datetime, freeze_datetime_value,
	       freeze_datetime_value_explanation, market_info_open_datetime,
	       market_info_close_datetime, market_info_resolution_datetime,
	       resolved, valid_question, event_count_params, comparison`

// scanner abstracts sql.Row and sql.Rows for scanQuestion.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanQuestion(row scanner) (*domain.Question, error) {
	var (
		q            domain.Question
		source       string
		horizons     string
		freeze       sql.NullString
		openDT       sql.NullString
		closeDT      sql.NullString
		resolutionDT sql.NullString
		resolved     int
		valid        int
		eventParams  sql.NullString
		comparison   string
	)
	err := row.Scan(
		&source, &q.ID, &q.URL, &q.Question, &q.Background, &q.ResolutionCriteria,
		&q.Category, &horizons, &freeze, &q.FreezeDatetimeValue,
		&q.FreezeDatetimeValueExplanation, &openDT, &closeDT, &resolutionDT,
		&resolved, &valid, &eventParams, &comparison,
	)
	if err != nil {
		return nil, err
	}

	q.Source = domain.Source(source)
	q.Resolved = resolved != 0
	q.ValidQuestion = valid != 0
	q.Comparison = domain.ComparisonKind(comparison)

	if err := json.Unmarshal([]byte(horizons), &q.ForecastHorizons); err != nil {
		return nil, fmt.Errorf("corrupt horizons for %s: %w", q.ID, err)
	}
	if eventParams.Valid && eventParams.String != "" {
		var params domain.EventCountParams
		if err := json.Unmarshal([]byte(eventParams.String), &params); err != nil {
			return nil, fmt.Errorf("corrupt event-count params for %s: %w", q.ID, err)
		}
		q.EventCount = &params
	}
	if freeze.Valid {
		if t, err := time.Parse(time.RFC3339, freeze.String); err == nil {
			q.FreezeDatetime = t
		}
	}
	q.MarketInfoOpenDatetime = parseTimeOrNil(openDT)
	q.MarketInfoCloseDatetime = parseTimeOrNil(closeDT)
	q.MarketInfoResolutionDatetime = parseTimeOrNil(resolutionDT)

	return &q, nil
}

func timePtr(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func timeOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTimeOrNil(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
