package models

import "time"

// Qualifier is one participant advancing out of the group stage.
type Qualifier struct {
	ParticipantID int `json:"participant_id"`
	GroupNo       int `json:"group_no"`
	GroupRank     int `json:"group_rank"`
	Seed          int `json:"seed"`
}

// QualifierSnapshot is the immutable record of who advanced from the group
// stage. At most one exists per tournament; finalizing twice returns the
// stored snapshot instead of re-drawing the knockout bracket.
type QualifierSnapshot struct {
	ID           int         `json:"id" db:"id"`
	TournamentID int         `json:"tournament_id" db:"tournament_id"`
	Qualifiers   []Qualifier `json:"qualifiers" db:"-"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}
