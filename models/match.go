package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "scheduled"
	MatchStatusCompleted MatchStatus = "completed"
	MatchStatusVoid      MatchStatus = "void"
)

// MatchStage marks which phase of the tournament a match belongs to.
type MatchStage string

const (
	StageGroup    MatchStage = "group"
	StageKnockout MatchStage = "knockout"
	StageSingle   MatchStage = "single"
)

type OutcomeKind string

const (
	OutcomeHeadToHead OutcomeKind = "head_to_head"
	OutcomeMetric     OutcomeKind = "metric"
)

type MatchResult string

const (
	ResultP1Win MatchResult = "p1_win"
	ResultP2Win MatchResult = "p2_win"
	ResultDraw  MatchResult = "draw"
)

// HeadToHeadOutcome carries a two-sided score. Result is derived from the
// scores at recording time, never supplied by the caller.
type HeadToHeadOutcome struct {
	P1Score int         `json:"p1_score"`
	P2Score int         `json:"p2_score"`
	Result  MatchResult `json:"result,omitempty"`
}

// MetricOutcome carries a single measured value for an individual-ranking
// round entry.
type MetricOutcome struct {
	Value float64 `json:"value"`
	Unit  *string `json:"unit,omitempty"`
}

// Outcome is a tagged union keyed by Kind. Exactly one payload field is set;
// the Result Recorder validates the shape against the tournament format.
type Outcome struct {
	Kind       OutcomeKind        `json:"kind"`
	HeadToHead *HeadToHeadOutcome `json:"head_to_head,omitempty"`
	Metric     *MetricOutcome     `json:"metric,omitempty"`
}

func (o *Outcome) Validate() error {
	switch o.Kind {
	case OutcomeHeadToHead:
		if o.HeadToHead == nil {
			return fmt.Errorf("head_to_head outcome requires score payload")
		}
		if o.Metric != nil {
			return fmt.Errorf("head_to_head outcome must not carry a metric payload")
		}
		if o.HeadToHead.P1Score < 0 || o.HeadToHead.P2Score < 0 {
			return fmt.Errorf("scores must be non-negative")
		}
	case OutcomeMetric:
		if o.Metric == nil {
			return fmt.Errorf("metric outcome requires value payload")
		}
		if o.HeadToHead != nil {
			return fmt.Errorf("metric outcome must not carry a score payload")
		}
	default:
		return fmt.Errorf("unknown outcome kind %q", o.Kind)
	}
	return nil
}

// MarshalDB serializes the outcome for the jsonb column.
func (o *Outcome) MarshalDB() ([]byte, error) {
	return json.Marshal(o)
}

func UnmarshalOutcome(raw []byte) (*Outcome, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var o Outcome
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("failed to decode outcome payload: %w", err)
	}
	return &o, nil
}

// Match is one playable unit: a head-to-head pairing, or a single-participant
// scoring entry for individual-ranking rounds (P2 nil).
type Match struct {
	ID           int        `json:"id" db:"id"`
	TournamentID int        `json:"tournament_id" db:"tournament_id"`
	Round        int        `json:"round" db:"round"`
	Stage        MatchStage `json:"stage" db:"stage"`
	GroupNo      *int       `json:"group_no,omitempty" db:"group_no"`
	BracketUID   *string    `json:"bracket_uid,omitempty" db:"bracket_uid"`

	P1ParticipantID *int `json:"p1_participant_id,omitempty" db:"p1_participant_id"`
	P2ParticipantID *int `json:"p2_participant_id,omitempty" db:"p2_participant_id"`

	Outcome             *Outcome    `json:"outcome,omitempty" db:"-"`
	Status              MatchStatus `json:"status" db:"status"`
	WinnerParticipantID *int        `json:"winner_participant_id,omitempty" db:"winner_participant_id"`

	// Knockout progression links: where the winner (and, for semifinals
	// feeding a third-place playoff, the loser) is slotted next.
	NextMatchID      *int `json:"next_match_id,omitempty" db:"next_match_id"`
	WinnerToSlot     *int `json:"winner_to_slot,omitempty" db:"winner_to_slot"`
	LoserNextMatchID *int `json:"loser_next_match_id,omitempty" db:"loser_next_match_id"`
	LoserToSlot      *int `json:"loser_to_slot,omitempty" db:"loser_to_slot"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// LoserParticipantID returns the losing side of a completed head-to-head
// match, or nil for draws and unfinished matches.
func (m *Match) LoserParticipantID() *int {
	if m.Status != MatchStatusCompleted || m.WinnerParticipantID == nil {
		return nil
	}
	if m.P1ParticipantID != nil && *m.P1ParticipantID != *m.WinnerParticipantID {
		return m.P1ParticipantID
	}
	if m.P2ParticipantID != nil && *m.P2ParticipantID != *m.WinnerParticipantID {
		return m.P2ParticipantID
	}
	return nil
}
