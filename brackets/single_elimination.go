package brackets

import (
	"context"
	"fmt"
	"math"

	"github.com/academyhq/tournament-engine/models"
)

type seNode struct {
	participantID *int
	sourceUID     *string
	bye           bool
}

// SingleEliminationGenerator builds a binary knockout bracket. Participant
// order is the seed order: the caller either pre-seeds it (knockout stage
// fed by group results) or passes a Rand to shuffle an open draw. Seeds are
// laid into complement-paired slots, so the top seeds land in opposite
// halves; when the participant count is not a power of two, the missing
// bottom seeds become byes against the leading participants.
type SingleEliminationGenerator struct {
	ThirdPlaceMatch bool
}

func NewSingleEliminationGenerator(thirdPlaceMatch bool) Generator {
	return &SingleEliminationGenerator{ThirdPlaceMatch: thirdPlaceMatch}
}

func (g *SingleEliminationGenerator) Name() string {
	return "SingleElimination"
}

func (g *SingleEliminationGenerator) Generate(ctx context.Context, params GenerateParams) ([]*PlannedMatch, error) {
	ids := make([]int, len(params.ParticipantIDs))
	copy(ids, params.ParticipantIDs)
	n := len(ids)

	if n < 2 {
		return nil, fmt.Errorf("single elimination requires at least 2 participants, found %d", n)
	}
	if params.Rand != nil {
		params.Rand.Shuffle(n, func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	}

	numRounds := int(math.Ceil(math.Log2(float64(n))))
	bracketSize := 1 << uint(numRounds)

	// Seeds above n are the byes. Every round-one slot pair holds one seed
	// from the top half and its complement, so a bye can never meet another
	// bye and every bye resolves in round one.
	nodes := make([]*seNode, bracketSize)
	for slot, seed := range SeedPositions(bracketSize) {
		if seed <= n {
			nodes[slot] = &seNode{participantID: intPtr(ids[seed-1])}
		} else {
			nodes[slot] = &seNode{bye: true}
		}
	}

	prefix := fmt.Sprintf("T%d_KO", params.Tournament.ID)
	matches := make([]*PlannedMatch, 0, bracketSize)
	var semifinalUIDs []string

	for round := 1; round <= numRounds; round++ {
		next := make([]*seNode, 0, len(nodes)/2)
		matchNo := 0

		for i := 0; i < len(nodes); i += 2 {
			left, right := nodes[i], nodes[i+1]
			matchNo++
			uid := fmt.Sprintf("%s_R%dM%d", prefix, round, matchNo)

			pm := &PlannedMatch{
				UID:   uid,
				Round: round,
				Stage: models.StageKnockout,
			}

			switch {
			case right.bye:
				pm.IsBye = true
				pm.ByeParticipantID = left.participantID
				pm.P1ParticipantID = left.participantID
				next = append(next, &seNode{participantID: left.participantID})
			case left.bye:
				pm.IsBye = true
				pm.ByeParticipantID = right.participantID
				pm.P1ParticipantID = right.participantID
				next = append(next, &seNode{participantID: right.participantID})
			default:
				pm.P1ParticipantID = left.participantID
				pm.P2ParticipantID = right.participantID
				pm.SourceMatch1UID = left.sourceUID
				pm.SourceMatch2UID = right.sourceUID
				next = append(next, &seNode{sourceUID: strPtr(uid)})
				if round == numRounds-1 {
					semifinalUIDs = append(semifinalUIDs, uid)
				}
			}
			matches = append(matches, pm)
		}
		nodes = next
	}

	if g.ThirdPlaceMatch && numRounds >= 2 && len(semifinalUIDs) == 2 {
		matches = append(matches, &PlannedMatch{
			UID:             fmt.Sprintf("%s_TP", prefix),
			Round:           numRounds,
			Stage:           models.StageKnockout,
			LoserSource1UID: strPtr(semifinalUIDs[0]),
			LoserSource2UID: strPtr(semifinalUIDs[1]),
		})
	}

	return matches, nil
}

// SeedPositions returns seed numbers in slot order for a bracket of the
// given power-of-two size, e.g. 4 -> [1 4 2 3]. Adjacent slot pairs sum to
// size+1 and seeds 1 and 2 end up in opposite halves.
func SeedPositions(size int) []int {
	positions := []int{1}
	for len(positions) < size {
		next := make([]int, 0, len(positions)*2)
		for _, s := range positions {
			next = append(next, s, 2*len(positions)+1-s)
		}
		positions = next
	}
	return positions
}
