package brackets

import (
	"context"
	"fmt"

	"github.com/academyhq/tournament-engine/models"
)

// RoundRobinGenerator creates one match for every unordered participant
// pair: n·(n−1)/2 matches, each participant appearing in exactly n−1.
// Odd participant counts need no special handling.
type RoundRobinGenerator struct {
	// Stage and GroupNo let the group-stage generator reuse the pairing
	// logic for a single group.
	Stage   models.MatchStage
	GroupNo *int
}

func NewRoundRobinGenerator() Generator {
	return &RoundRobinGenerator{Stage: models.StageSingle}
}

func (g *RoundRobinGenerator) Name() string {
	return "RoundRobin"
}

func (g *RoundRobinGenerator) Generate(ctx context.Context, params GenerateParams) ([]*PlannedMatch, error) {
	ids := params.ParticipantIDs
	if len(ids) < 2 {
		return nil, fmt.Errorf("round robin requires at least 2 participants, found %d", len(ids))
	}

	prefix := fmt.Sprintf("T%d", params.Tournament.ID)
	if g.GroupNo != nil {
		prefix = fmt.Sprintf("%s_G%d", prefix, *g.GroupNo)
	}

	matches := make([]*PlannedMatch, 0, len(ids)*(len(ids)-1)/2)
	order := 0
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			order++
			matches = append(matches, &PlannedMatch{
				UID:             fmt.Sprintf("%s_RR%d_P%dvP%d", prefix, order, ids[i], ids[j]),
				Round:           1,
				Stage:           g.Stage,
				GroupNo:         g.GroupNo,
				P1ParticipantID: intPtr(ids[i]),
				P2ParticipantID: intPtr(ids[j]),
			})
		}
	}
	return matches, nil
}
