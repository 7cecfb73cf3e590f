package models

import "time"

// Enrollment links a participant to a tournament. Rows are created by the
// enrollment collaborator before generation and are read-only to the engine.
// FinalPlacement is an externally recorded placement used as a reward rank
// fallback when no ranking row exists.
type Enrollment struct {
	ID             int       `json:"id" db:"id"`
	TournamentID   int       `json:"tournament_id" db:"tournament_id"`
	ParticipantID  int       `json:"participant_id" db:"participant_id"`
	FinalPlacement *int      `json:"final_placement,omitempty" db:"final_placement"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
