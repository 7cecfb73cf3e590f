package services

import (
	"context"
	"testing"

	"github.com/academyhq/tournament-engine/models"
	"github.com/stretchr/testify/require"
)

func badgeRef(b models.BadgeTier) *models.BadgeTier { return &b }

func testPlan(tournamentID int) *models.RewardPlan {
	return &models.RewardPlan{
		TournamentID:   tournamentID,
		BaseXP:         100,
		SkillPointPool: 30,
		Tiers: []models.PlacementTier{
			{Rank: 1, Credits: 500, XPMultiplier: 2.0, BadgeTier: badgeRef(models.BadgeChampion)},
			{Rank: 2, Credits: 250, XPMultiplier: 1.5, BadgeTier: badgeRef(models.BadgeRunnerUp)},
			{Rank: 0, Credits: 50, XPMultiplier: 1.0},
		},
		Skills: []models.SkillWeight{
			{SkillID: "strategy", Category: "tech", Weight: 2, Enabled: true},
			{SkillID: "teamwork", Category: "soft", Weight: 1, Enabled: true},
		},
		ConversionRates: map[string]float64{"tech": 0.5, "soft": 1.0},
	}
}

type rewardFixture struct {
	store      *memStore
	rewardRepo *fakeRewardRepo
	svc        RewardService
}

func newRewardFixture(t *models.Tournament) *rewardFixture {
	store := newMemStore()
	store.addTournament(t)
	rewardRepo := &fakeRewardRepo{store: store}
	svc := NewRewardService(
		passthroughTxRunner{},
		&fakeTournamentRepo{store: store},
		&fakeRankingRepo{store: store},
		&fakeEnrollmentRepo{store: store},
		rewardRepo,
		testLogger(),
	)
	return &rewardFixture{store: store, rewardRepo: rewardRepo, svc: svc}
}

func completedTournament(id int) *models.Tournament {
	kind := models.KindLeague
	return &models.Tournament{ID: id, Format: models.FormatHeadToHead, Kind: &kind, Status: models.StatusCompleted}
}

func (f *rewardFixture) rank(tournamentID, participantID, rank int) {
	f.store.rankings[tournamentID] = append(f.store.rankings[tournamentID], &models.RankingRow{
		TournamentID:  tournamentID,
		ParticipantID: participantID,
		Rank:          rank,
	})
}

func TestDistributeRewardsWritesFullLedger(t *testing.T) {
	f := newRewardFixture(completedTournament(1))
	f.store.enroll(1, 10, 20, 30)
	f.rank(1, 10, 1)
	f.rank(1, 20, 2)
	f.rank(1, 30, 3)
	ctx := context.Background()

	summary, err := f.svc.DistributeRewards(ctx, 1, testPlan(1))
	require.NoError(t, err)
	require.False(t, summary.AlreadyDistributed)

	// Ranks 1 and 2 get credit+2 skills+xp+badge, rank 3 the default tier
	// without a badge.
	require.Equal(t, 14, summary.NewEntriesCreated)
	require.Zero(t, summary.ExistingEntries)
	require.Equal(t, 800, summary.TotalCredits)
	require.Empty(t, summary.SkippedParticipants)
	require.Zero(t, summary.DriftAlerts)

	// Champion XP: base 100 x2 plus skill conversions 20*0.5 + 10*1.0.
	entry, err := f.rewardRepo.GetByIdempotencyKey(ctx, nil,
		models.RewardIdempotencyKey(1, 10, models.RewardXP, "placement_xp"))
	require.NoError(t, err)
	require.Equal(t, 220.0, entry.Amount)

	badge, err := f.rewardRepo.GetByIdempotencyKey(ctx, nil,
		models.RewardIdempotencyKey(1, 10, models.RewardBadge, "placement_badge"))
	require.NoError(t, err)
	require.Equal(t, models.BadgeChampion, *badge.BadgeTier)
	require.Equal(t, 1, *badge.ResolvedRank)

	require.Equal(t, models.StatusRewardsDistributed, f.store.tournaments[1].Status)
}

func TestDistributeRewardsSecondRunCreatesNothing(t *testing.T) {
	f := newRewardFixture(completedTournament(1))
	f.store.enroll(1, 10, 20)
	f.rank(1, 10, 1)
	f.rank(1, 20, 2)
	ctx := context.Background()

	first, err := f.svc.DistributeRewards(ctx, 1, testPlan(1))
	require.NoError(t, err)
	require.Positive(t, first.NewEntriesCreated)

	second, err := f.svc.DistributeRewards(ctx, 1, testPlan(1))
	require.NoError(t, err)
	require.True(t, second.AlreadyDistributed)
	require.Zero(t, second.NewEntriesCreated)
	require.Equal(t, first.NewEntriesCreated, second.ExistingEntries)
}

func TestDistributeRewardsResumesPartialRun(t *testing.T) {
	f := newRewardFixture(completedTournament(1))
	f.store.enroll(1, 10, 20)
	f.rank(1, 10, 1)
	f.rank(1, 20, 2)
	ctx := context.Background()

	// A crashed earlier run left the champion's credit entry behind.
	preexisting := &models.RewardLedgerEntry{
		EntryUID:       "stale-uid",
		TournamentID:   1,
		ParticipantID:  10,
		Kind:           models.RewardCredit,
		Amount:         500,
		Reason:         "placement_credits",
		IdempotencyKey: models.RewardIdempotencyKey(1, 10, models.RewardCredit, "placement_credits"),
	}
	require.NoError(t, f.rewardRepo.CreateEntry(ctx, nil, preexisting))

	summary, err := f.svc.DistributeRewards(ctx, 1, testPlan(1))
	require.NoError(t, err)
	require.Equal(t, 9, summary.NewEntriesCreated)
	require.Equal(t, 1, summary.ExistingEntries)
	// The retained entry's credits are not double counted.
	require.Equal(t, 250, summary.TotalCredits)
}

func TestDistributeRewardsRankFallbackChain(t *testing.T) {
	f := newRewardFixture(completedTournament(1))
	f.store.enroll(1, 10, 20, 30, 40)
	ctx := context.Background()

	// 10 has a ranking row; 20 only an enrollment placement; 30 only a
	// badge from an earlier partial run; 40 has nothing and is skipped.
	f.rank(1, 10, 1)
	f.store.enrollments[1][1].FinalPlacement = intRef(2)
	require.NoError(t, f.rewardRepo.CreateEntry(ctx, nil, &models.RewardLedgerEntry{
		EntryUID:       "old-badge",
		TournamentID:   1,
		ParticipantID:  30,
		Kind:           models.RewardBadge,
		Amount:         1,
		BadgeTier:      badgeRef(models.BadgeParticipant),
		ResolvedRank:   intRef(3),
		Reason:         "placement_badge",
		IdempotencyKey: models.RewardIdempotencyKey(1, 30, models.RewardBadge, "placement_badge"),
	}))

	summary, err := f.svc.DistributeRewards(ctx, 1, testPlan(1))
	require.NoError(t, err)
	require.Equal(t, []int{40}, summary.SkippedParticipants)

	// Participant 20's rewards follow the enrollment placement.
	credit, err := f.rewardRepo.GetByIdempotencyKey(ctx, nil,
		models.RewardIdempotencyKey(1, 20, models.RewardCredit, "placement_credits"))
	require.NoError(t, err)
	require.Equal(t, 250.0, credit.Amount)
	require.Equal(t, 2, *credit.ResolvedRank)

	// Participant 30's rank came from the badge metadata.
	xp, err := f.rewardRepo.GetByIdempotencyKey(ctx, nil,
		models.RewardIdempotencyKey(1, 30, models.RewardXP, "placement_xp"))
	require.NoError(t, err)
	require.Equal(t, 3, *xp.ResolvedRank)

	// Participant 40 got nothing at all.
	entries, err := f.rewardRepo.ListByTournament(ctx, nil, 1)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotEqual(t, 40, e.ParticipantID)
	}
}

func TestDistributeRewardsDriftAlertOnChampionBadgeMismatch(t *testing.T) {
	f := newRewardFixture(completedTournament(1))
	f.store.enroll(1, 10)
	f.rank(1, 10, 2)
	ctx := context.Background()

	// A plan that hands the champion badge to rank 2 contradicts the
	// resolved rank; distribution proceeds but flags the drift.
	plan := testPlan(1)
	plan.Tiers = []models.PlacementTier{
		{Rank: 2, Credits: 100, XPMultiplier: 1.0, BadgeTier: badgeRef(models.BadgeChampion)},
	}

	summary, err := f.svc.DistributeRewards(ctx, 1, plan)
	require.NoError(t, err)
	require.Equal(t, 1, summary.DriftAlerts)
	require.Positive(t, summary.NewEntriesCreated)
}

func TestDistributeRewardsRequiresCompletedStatus(t *testing.T) {
	tournament := completedTournament(1)
	tournament.Status = models.StatusActive
	f := newRewardFixture(tournament)

	_, err := f.svc.DistributeRewards(context.Background(), 1, testPlan(1))
	require.ErrorIs(t, err, ErrTournamentNotCompleted)
}

func TestDistributeRewardsCancelledTournamentRejected(t *testing.T) {
	tournament := completedTournament(1)
	tournament.Status = models.StatusCancelled
	f := newRewardFixture(tournament)

	_, err := f.svc.DistributeRewards(context.Background(), 1, testPlan(1))
	require.ErrorIs(t, err, ErrTournamentCancelled)
}

func TestDistributeRewardsUsesSavedPlanWhenNoneGiven(t *testing.T) {
	f := newRewardFixture(completedTournament(1))
	f.store.enroll(1, 10)
	f.rank(1, 10, 1)
	ctx := context.Background()

	_, err := f.svc.DistributeRewards(ctx, 1, nil)
	require.ErrorIs(t, err, ErrRewardPlanNotFound)

	require.NoError(t, f.rewardRepo.SaveRewardPlan(ctx, nil, testPlan(1)))

	summary, err := f.svc.DistributeRewards(ctx, 1, nil)
	require.NoError(t, err)
	require.Positive(t, summary.NewEntriesCreated)
}

func TestSaveRewardPlanValidates(t *testing.T) {
	f := newRewardFixture(completedTournament(1))
	ctx := context.Background()

	// Zero enabled skills is a configuration error caught at save time.
	plan := testPlan(1)
	for i := range plan.Skills {
		plan.Skills[i].Enabled = false
	}
	err := f.svc.SaveRewardPlan(ctx, plan)
	require.ErrorIs(t, err, ErrRewardPlanInvalid)

	valid := testPlan(1)
	require.NoError(t, f.svc.SaveRewardPlan(ctx, valid))

	stored, err := f.svc.GetRewardPlan(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, valid.BaseXP, stored.BaseXP)
}

func TestSaveRewardPlanRejectedOnTerminalTournament(t *testing.T) {
	tournament := completedTournament(1)
	tournament.Status = models.StatusRewardsDistributed
	f := newRewardFixture(tournament)

	err := f.svc.SaveRewardPlan(context.Background(), testPlan(1))
	require.ErrorIs(t, err, ErrTournamentInvalidStatusTransition)
}
