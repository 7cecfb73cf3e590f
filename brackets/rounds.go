package brackets

import (
	"context"
	"fmt"

	"github.com/academyhq/tournament-engine/models"
)

// ScoringRoundsGenerator produces the session plan for individual-ranking
// tournaments: R independent scoring entries per participant, no pairing.
type ScoringRoundsGenerator struct{}

func NewScoringRoundsGenerator() Generator {
	return &ScoringRoundsGenerator{}
}

func (g *ScoringRoundsGenerator) Name() string {
	return "ScoringRounds"
}

func (g *ScoringRoundsGenerator) Generate(ctx context.Context, params GenerateParams) ([]*PlannedMatch, error) {
	ids := params.ParticipantIDs
	if len(ids) == 0 {
		return nil, fmt.Errorf("scoring rounds require at least 1 participant")
	}
	rounds := params.Tournament.RoundCount
	if rounds < 1 {
		rounds = 1
	}

	matches := make([]*PlannedMatch, 0, rounds*len(ids))
	for round := 1; round <= rounds; round++ {
		for _, id := range ids {
			matches = append(matches, &PlannedMatch{
				UID:             fmt.Sprintf("T%d_RND%d_P%d", params.Tournament.ID, round, id),
				Round:           round,
				Stage:           models.StageSingle,
				P1ParticipantID: intPtr(id),
			})
		}
	}
	return matches, nil
}
