package models

import "time"

// TournamentStatus represents tournament lifecycle states, matching the ENUM in the DB.
type TournamentStatus string

const (
	StatusDraft              TournamentStatus = "draft"
	StatusActive             TournamentStatus = "active"
	StatusGroupStage         TournamentStatus = "group_stage"
	StatusKnockoutStage      TournamentStatus = "knockout_stage"
	StatusResultsComplete    TournamentStatus = "results_complete"
	StatusCompleted          TournamentStatus = "completed"
	StatusRewardsDistributed TournamentStatus = "rewards_distributed"
	StatusCancelled          TournamentStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
// Completed is not terminal: reward distribution still follows it.
func (s TournamentStatus) IsTerminal() bool {
	return s == StatusRewardsDistributed || s == StatusCancelled
}

type TournamentFormat string

const (
	FormatHeadToHead        TournamentFormat = "head_to_head"
	FormatIndividualRanking TournamentFormat = "individual_ranking"
)

// HeadToHeadKind is the bracket sub-type for head-to-head tournaments.
type HeadToHeadKind string

const (
	KindLeague        HeadToHeadKind = "league"
	KindKnockout      HeadToHeadKind = "knockout"
	KindGroupKnockout HeadToHeadKind = "group_knockout"
)

// MetricKind classifies what an individual-ranking tournament measures.
type MetricKind string

const (
	MetricScore     MetricKind = "score"
	MetricTime      MetricKind = "time"
	MetricDistance  MetricKind = "distance"
	MetricPlacement MetricKind = "placement"
	MetricRounds    MetricKind = "rounds"
)

type RankingDirection string

const (
	DirectionAscending  RankingDirection = "asc"
	DirectionDescending RankingDirection = "desc"
)

// DefaultDirection returns the natural sort direction for a metric:
// time and placement rank low-to-high, everything else high-to-low.
func (m MetricKind) DefaultDirection() RankingDirection {
	switch m {
	case MetricTime, MetricPlacement:
		return DirectionAscending
	default:
		return DirectionDescending
	}
}

// RoundAggregation controls how multi-round metric values combine before ranking.
type RoundAggregation string

const (
	AggregateSum  RoundAggregation = "sum"
	AggregateBest RoundAggregation = "best"
)

// Tournament is the root entity. It owns its matches, ranking rows and
// qualifier snapshot; reward ledger entries only reference it.
type Tournament struct {
	ID     int              `json:"id" db:"id"`
	Name   string           `json:"name" db:"name"`
	Format TournamentFormat `json:"format" db:"format"`

	// Head-to-head only.
	Kind               *HeadToHeadKind `json:"kind,omitempty" db:"kind"`
	GroupCount         int             `json:"group_count" db:"group_count"`
	QualifiersPerGroup int             `json:"qualifiers_per_group" db:"qualifiers_per_group"`
	ThirdPlaceMatch    bool            `json:"third_place_match" db:"third_place_match"`

	// Individual ranking only.
	Metric      *MetricKind       `json:"metric,omitempty" db:"metric"`
	Direction   *RankingDirection `json:"direction,omitempty" db:"direction"`
	RoundCount  int               `json:"round_count" db:"round_count"`
	Aggregation *RoundAggregation `json:"aggregation,omitempty" db:"aggregation"`

	Status              TournamentStatus `json:"status" db:"status"`
	Capacity            int              `json:"capacity" db:"capacity"`
	SessionsGenerated   bool             `json:"sessions_generated" db:"sessions_generated"`
	SessionsGeneratedAt *time.Time       `json:"sessions_generated_at,omitempty" db:"sessions_generated_at"`
	StartDate           time.Time        `json:"start_date" db:"start_date"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`

	// Optional linked data, populated by services, not mapped directly.
	Matches  []Match      `json:"matches,omitempty" db:"-"`
	Rankings []RankingRow `json:"rankings,omitempty" db:"-"`
}

// ResolvedDirection returns the configured direction, falling back to the
// metric's natural one.
func (t *Tournament) ResolvedDirection() RankingDirection {
	if t.Direction != nil {
		return *t.Direction
	}
	if t.Metric != nil {
		return t.Metric.DefaultDirection()
	}
	return DirectionDescending
}

// CollectingResults reports whether match outcomes may still be recorded.
func (t *Tournament) CollectingResults() bool {
	switch t.Status {
	case StatusActive, StatusGroupStage, StatusKnockoutStage:
		return true
	}
	return false
}

// MinParticipants is the format's floor below which generation is a
// validation error rather than a degraded bracket.
func (t *Tournament) MinParticipants() int {
	if t.Format == FormatIndividualRanking {
		return 1
	}
	if t.Kind != nil && *t.Kind == KindGroupKnockout {
		return 3
	}
	return 2
}
