package brackets

import (
	"context"
	"math/rand"

	"github.com/academyhq/tournament-engine/models"
)

// PlannedMatch is one match of a generated bracket before persistence.
// Source UIDs mark placeholder slots fed by winners (or losers, for the
// third-place playoff) of earlier matches.
type PlannedMatch struct {
	UID     string
	Round   int
	Stage   models.MatchStage
	GroupNo *int

	P1ParticipantID *int
	P2ParticipantID *int

	SourceMatch1UID *string
	SourceMatch2UID *string

	// Set on the third-place playoff: slots fed by semifinal losers.
	LoserSource1UID *string
	LoserSource2UID *string

	IsBye            bool
	ByeParticipantID *int
}

// GenerateParams carries everything a generator needs. Rand, when set, is
// the explicit source for draw-order shuffling; generators never touch
// process-global randomness.
type GenerateParams struct {
	Tournament     *models.Tournament
	ParticipantIDs []int
	Rand           *rand.Rand
}

// Generator produces the complete match set for one tournament stage.
// Generators are pure: persistence is the caller's concern.
type Generator interface {
	Generate(ctx context.Context, params GenerateParams) ([]*PlannedMatch, error)
	Name() string
}

func intPtr(v int) *int       { return &v }
func strPtr(s string) *string { return &s }
