package models

import "time"

// RankingRow is one participant's computed standing. The full set for a
// tournament is recomputed wholesale on every ranking run and is the single
// authoritative source of placement for every other component.
type RankingRow struct {
	ID            int `json:"id" db:"id"`
	TournamentID  int `json:"tournament_id" db:"tournament_id"`
	ParticipantID int `json:"participant_id" db:"participant_id"`

	// Dense, 1-based, no gaps, ties fully broken.
	Rank int `json:"rank" db:"rank"`

	Points          int `json:"points" db:"points"`
	GamesPlayed     int `json:"games_played" db:"games_played"`
	Wins            int `json:"wins" db:"wins"`
	Draws           int `json:"draws" db:"draws"`
	Losses          int `json:"losses" db:"losses"`
	ScoreFor        int `json:"score_for" db:"score_for"`
	ScoreAgainst    int `json:"score_against" db:"score_against"`
	ScoreDifference int `json:"score_difference" db:"score_difference"`

	// Individual-ranking formats: the aggregated metric value.
	MetricValue *float64 `json:"metric_value,omitempty" db:"metric_value"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
