package brackets

import (
	"context"
	"fmt"

	"github.com/academyhq/tournament-engine/models"
)

// GroupStageGenerator partitions participants into balanced groups and
// round-robins each group. The knockout stage for a group+knockout
// tournament is generated later, from the finalized qualifier snapshot,
// never here.
type GroupStageGenerator struct {
	GroupCount int
}

func NewGroupStageGenerator(groupCount int) Generator {
	return &GroupStageGenerator{GroupCount: groupCount}
}

func (g *GroupStageGenerator) Name() string {
	return "GroupStage"
}

// SplitIntoGroups distributes ids across groupCount groups as evenly as
// possible, remainders spread one per leading group (7 into 2 → 4 and 3).
func SplitIntoGroups(ids []int, groupCount int) [][]int {
	if groupCount < 1 {
		groupCount = 1
	}
	if groupCount > len(ids) {
		groupCount = len(ids)
	}
	base := len(ids) / groupCount
	remainder := len(ids) % groupCount

	groups := make([][]int, 0, groupCount)
	cursor := 0
	for i := 0; i < groupCount; i++ {
		size := base
		if i < remainder {
			size++
		}
		groups = append(groups, ids[cursor:cursor+size])
		cursor += size
	}
	return groups
}

func (g *GroupStageGenerator) Generate(ctx context.Context, params GenerateParams) ([]*PlannedMatch, error) {
	ids := make([]int, len(params.ParticipantIDs))
	copy(ids, params.ParticipantIDs)

	groupCount := g.GroupCount
	if groupCount < 2 {
		groupCount = 2
	}
	if len(ids) < groupCount {
		return nil, fmt.Errorf("group stage requires at least %d participants for %d groups, found %d",
			groupCount, groupCount, len(ids))
	}
	if len(ids) < 3 {
		return nil, fmt.Errorf("group+knockout requires at least 3 participants, found %d", len(ids))
	}
	if params.Rand != nil {
		params.Rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	}

	groups := SplitIntoGroups(ids, groupCount)

	var matches []*PlannedMatch
	for groupIdx, groupIDs := range groups {
		if len(groupIDs) < 2 {
			return nil, fmt.Errorf("group %d has %d participants, need at least 2 per group", groupIdx+1, len(groupIDs))
		}
		groupNo := groupIdx + 1
		rr := &RoundRobinGenerator{Stage: models.StageGroup, GroupNo: intPtr(groupNo)}
		groupMatches, err := rr.Generate(ctx, GenerateParams{
			Tournament:     params.Tournament,
			ParticipantIDs: groupIDs,
		})
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", groupNo, err)
		}
		matches = append(matches, groupMatches...)
	}
	return matches, nil
}
