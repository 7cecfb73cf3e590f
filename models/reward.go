package models

import (
	"fmt"
	"time"
)

// RewardKind enumerates the ledgers a distribution writes to.
type RewardKind string

const (
	RewardCredit RewardKind = "credit"
	RewardXP     RewardKind = "xp"
	RewardSkill  RewardKind = "skill"
	RewardBadge  RewardKind = "badge"
)

// BadgeTier names the badge awarded for a placement tier.
type BadgeTier string

const (
	BadgeChampion    BadgeTier = "champion"
	BadgeRunnerUp    BadgeTier = "runner_up"
	BadgeThirdPlace  BadgeTier = "third_place"
	BadgeParticipant BadgeTier = "participant"
)

// RewardLedgerEntry is one append-only award row. The idempotency key is
// derived deterministically from (tournament, participant, kind, reason) and
// is unique at the storage layer; EntryUID is a random audit identifier.
type RewardLedgerEntry struct {
	ID             int        `json:"id" db:"id"`
	EntryUID       string     `json:"entry_uid" db:"entry_uid"`
	TournamentID   int        `json:"tournament_id" db:"tournament_id"`
	ParticipantID  int        `json:"participant_id" db:"participant_id"`
	Kind           RewardKind `json:"kind" db:"kind"`
	Amount         float64    `json:"amount" db:"amount"`
	BadgeTier      *BadgeTier `json:"badge_tier,omitempty" db:"badge_tier"`
	SkillID        *string    `json:"skill_id,omitempty" db:"skill_id"`
	ResolvedRank   *int       `json:"resolved_rank,omitempty" db:"resolved_rank"`
	Reason         string     `json:"reason" db:"reason"`
	IdempotencyKey string     `json:"idempotency_key" db:"idempotency_key"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// RewardIdempotencyKey derives the unique key for one ledger write.
func RewardIdempotencyKey(tournamentID, participantID int, kind RewardKind, reason string) string {
	return fmt.Sprintf("t%d:p%d:%s:%s", tournamentID, participantID, kind, reason)
}

// PlacementTier is the credit/XP/badge package for one final rank. Rank 0
// marks the default tier applied to every ranked participant without a
// dedicated tier.
type PlacementTier struct {
	Rank         int        `json:"rank"`
	Credits      int        `json:"credits"`
	XPMultiplier float64    `json:"xp_multiplier"`
	BadgeTier    *BadgeTier `json:"badge_tier,omitempty"`
}

// SkillWeight distributes skill points into one skill category.
type SkillWeight struct {
	SkillID  string  `json:"skill_id"`
	Category string  `json:"category"`
	Weight   float64 `json:"weight"`
	Enabled  bool    `json:"enabled"`
}

// RewardPlan is the per-tournament reward configuration. It is validated
// when saved; distribution assumes a valid plan.
type RewardPlan struct {
	TournamentID    int                `json:"tournament_id"`
	BaseXP          int                `json:"base_xp"`
	SkillPointPool  float64            `json:"skill_point_pool"`
	Tiers           []PlacementTier    `json:"tiers"`
	Skills          []SkillWeight      `json:"skills"`
	ConversionRates map[string]float64 `json:"conversion_rates"` // per skill category, skill points -> bonus XP
}

// Validate enforces plan-level invariants. Zero enabled skills is rejected
// here, at configuration time, so distribution never has to care.
func (p *RewardPlan) Validate() error {
	if p.BaseXP < 0 {
		return fmt.Errorf("base_xp must be non-negative")
	}
	if len(p.Tiers) == 0 {
		return fmt.Errorf("at least one placement tier is required")
	}
	seenRanks := make(map[int]bool, len(p.Tiers))
	for _, tier := range p.Tiers {
		if tier.Rank < 0 {
			return fmt.Errorf("tier rank must be >= 0 (0 is the default tier)")
		}
		if seenRanks[tier.Rank] {
			return fmt.Errorf("duplicate tier for rank %d", tier.Rank)
		}
		seenRanks[tier.Rank] = true
		if tier.Credits < 0 || tier.XPMultiplier < 0 {
			return fmt.Errorf("tier for rank %d has negative values", tier.Rank)
		}
	}
	enabled := 0
	seenSkills := make(map[string]bool, len(p.Skills))
	for _, sw := range p.Skills {
		if sw.SkillID == "" {
			return fmt.Errorf("skill weight with empty skill_id")
		}
		if seenSkills[sw.SkillID] {
			return fmt.Errorf("duplicate skill weight for %q", sw.SkillID)
		}
		seenSkills[sw.SkillID] = true
		if sw.Weight < 0 {
			return fmt.Errorf("skill %q has negative weight", sw.SkillID)
		}
		if sw.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one skill must be enabled")
	}
	return nil
}

// TierForRank resolves the placement tier for a final rank, falling back to
// the default (rank 0) tier when no dedicated one exists.
func (p *RewardPlan) TierForRank(rank int) *PlacementTier {
	var fallback *PlacementTier
	for i := range p.Tiers {
		if p.Tiers[i].Rank == rank {
			return &p.Tiers[i]
		}
		if p.Tiers[i].Rank == 0 {
			fallback = &p.Tiers[i]
		}
	}
	return fallback
}

// EnabledSkills returns the enabled weights together with their total weight.
func (p *RewardPlan) EnabledSkills() ([]SkillWeight, float64) {
	out := make([]SkillWeight, 0, len(p.Skills))
	var total float64
	for _, sw := range p.Skills {
		if sw.Enabled && sw.Weight > 0 {
			out = append(out, sw)
			total += sw.Weight
		}
	}
	return out, total
}
