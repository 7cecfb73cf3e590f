package services

import (
	"context"
	"testing"
	"time"

	"github.com/academyhq/tournament-engine/models"
	"github.com/academyhq/tournament-engine/repositories"
	"github.com/stretchr/testify/require"
)

func newTournamentFixture() (*memStore, TournamentService) {
	store := newMemStore()
	tournamentRepo := &fakeTournamentRepo{store: store}
	enrollmentRepo := &fakeEnrollmentRepo{store: store}
	matchRepo := &fakeMatchRepo{store: store}
	rankingRepo := &fakeRankingRepo{store: store}

	rankingService := NewRankingService(passthroughTxRunner{}, tournamentRepo, matchRepo, rankingRepo, testLogger())
	generationService := NewGenerationService(passthroughTxRunner{}, tournamentRepo, enrollmentRepo, matchRepo, nil, 0, testLogger())
	svc := NewTournamentService(passthroughTxRunner{}, tournamentRepo, matchRepo, rankingRepo, rankingService, generationService, testLogger())
	return store, svc
}

func validLeagueInput() CreateTournamentInput {
	kind := models.KindLeague
	return CreateTournamentInput{
		Name:      "autumn league",
		Format:    models.FormatHeadToHead,
		Kind:      &kind,
		Capacity:  16,
		StartDate: time.Now().Add(24 * time.Hour),
	}
}

func TestCreateTournamentDefaultsAndValidation(t *testing.T) {
	_, svc := newTournamentFixture()
	ctx := context.Background()

	created, err := svc.Create(ctx, validLeagueInput())
	require.NoError(t, err)
	require.Equal(t, models.StatusDraft, created.Status)
	require.NotZero(t, created.ID)

	t.Run("name required", func(t *testing.T) {
		input := validLeagueInput()
		input.Name = ""
		_, err := svc.Create(ctx, input)
		require.ErrorIs(t, err, ErrTournamentNameRequired)
	})

	t.Run("capacity must be positive", func(t *testing.T) {
		input := validLeagueInput()
		input.Capacity = 0
		_, err := svc.Create(ctx, input)
		require.ErrorIs(t, err, ErrTournamentInvalidCapacity)
	})

	t.Run("head-to-head needs a kind", func(t *testing.T) {
		input := validLeagueInput()
		input.Kind = nil
		_, err := svc.Create(ctx, input)
		require.ErrorIs(t, err, ErrValidationFailed)
	})

	t.Run("metric fields rejected for head-to-head", func(t *testing.T) {
		input := validLeagueInput()
		metric := models.MetricScore
		input.Metric = &metric
		_, err := svc.Create(ctx, input)
		require.ErrorIs(t, err, ErrValidationFailed)
	})

	t.Run("group settings only for group knockout", func(t *testing.T) {
		input := validLeagueInput()
		input.GroupCount = 2
		_, err := svc.Create(ctx, input)
		require.ErrorIs(t, err, ErrValidationFailed)
	})

	t.Run("group knockout defaults", func(t *testing.T) {
		input := validLeagueInput()
		kind := models.KindGroupKnockout
		input.Kind = &kind
		created, err := svc.Create(ctx, input)
		require.NoError(t, err)
		require.Equal(t, 2, created.GroupCount)
		require.Equal(t, 2, created.QualifiersPerGroup)
	})

	t.Run("individual ranking needs a metric", func(t *testing.T) {
		input := CreateTournamentInput{
			Name:     "trial",
			Format:   models.FormatIndividualRanking,
			Capacity: 8,
		}
		_, err := svc.Create(ctx, input)
		require.ErrorIs(t, err, ErrValidationFailed)
	})

	t.Run("individual ranking round count defaults to one", func(t *testing.T) {
		metric := models.MetricTime
		input := CreateTournamentInput{
			Name:     "sprint trial",
			Format:   models.FormatIndividualRanking,
			Metric:   &metric,
			Capacity: 8,
		}
		created, err := svc.Create(ctx, input)
		require.NoError(t, err)
		require.Equal(t, 1, created.RoundCount)
	})

	t.Run("unknown format", func(t *testing.T) {
		input := validLeagueInput()
		input.Format = "swiss"
		input.Kind = nil
		_, err := svc.Create(ctx, input)
		require.ErrorIs(t, err, ErrTournamentInvalidFormat)
	})
}

func TestStatusTransitionTable(t *testing.T) {
	allowed := []struct{ from, to models.TournamentStatus }{
		{models.StatusDraft, models.StatusActive},
		{models.StatusActive, models.StatusGroupStage},
		{models.StatusActive, models.StatusResultsComplete},
		{models.StatusGroupStage, models.StatusKnockoutStage},
		{models.StatusKnockoutStage, models.StatusResultsComplete},
		{models.StatusResultsComplete, models.StatusCompleted},
		{models.StatusCompleted, models.StatusRewardsDistributed},
		{models.StatusDraft, models.StatusCancelled},
		{models.StatusCompleted, models.StatusCancelled},
	}
	for _, tc := range allowed {
		require.True(t, isValidStatusTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	forbidden := []struct{ from, to models.TournamentStatus }{
		{models.StatusActive, models.StatusDraft},
		{models.StatusActive, models.StatusKnockoutStage},
		{models.StatusDraft, models.StatusResultsComplete},
		{models.StatusResultsComplete, models.StatusActive},
		{models.StatusRewardsDistributed, models.StatusCancelled},
		{models.StatusCancelled, models.StatusActive},
		{models.StatusCancelled, models.StatusCancelled + "x"},
	}
	for _, tc := range forbidden {
		require.False(t, isValidStatusTransition(tc.from, tc.to), "%s -> %s should be rejected", tc.from, tc.to)
	}
}

func TestCompleteRunsFinalRecompute(t *testing.T) {
	store, svc := newTournamentFixture()
	kind := models.KindLeague
	tournament := store.addTournament(&models.Tournament{
		Format: models.FormatHeadToHead,
		Kind:   &kind,
		Status: models.StatusActive,
	})
	matchRepo := &fakeMatchRepo{store: store}
	ctx := context.Background()

	require.NoError(t, matchRepo.Create(ctx, nil, h2hMatch(tournament.ID, 1, 2, 2, 0)))
	require.NoError(t, matchRepo.Create(ctx, nil, h2hMatch(tournament.ID, 1, 3, 1, 1)))
	require.NoError(t, matchRepo.Create(ctx, nil, h2hMatch(tournament.ID, 2, 3, 1, 0)))

	completed, err := svc.Complete(ctx, tournament.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, completed.Status)

	rows := store.rankings[tournament.ID]
	require.Len(t, rows, 3)
	require.Equal(t, 1, rows[0].ParticipantID)
	require.Equal(t, 1, rows[0].Rank)
}

func TestCompleteRejectsUnplayedMatches(t *testing.T) {
	store, svc := newTournamentFixture()
	kind := models.KindLeague
	tournament := store.addTournament(&models.Tournament{
		Format: models.FormatHeadToHead,
		Kind:   &kind,
		Status: models.StatusActive,
	})
	matchRepo := &fakeMatchRepo{store: store}
	ctx := context.Background()

	pending := scheduledMatch(tournament.ID, 1, 2)
	require.NoError(t, matchRepo.Create(ctx, nil, pending))

	_, err := svc.Complete(ctx, tournament.ID)
	require.ErrorIs(t, err, ErrMatchesIncomplete)
	require.Equal(t, models.StatusActive, store.tournaments[tournament.ID].Status)
}

func TestCompleteIsIdempotent(t *testing.T) {
	store, svc := newTournamentFixture()
	kind := models.KindLeague
	tournament := store.addTournament(&models.Tournament{
		Format: models.FormatHeadToHead,
		Kind:   &kind,
		Status: models.StatusCompleted,
	})

	completed, err := svc.Complete(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, completed.Status)
	require.Empty(t, store.rankings[tournament.ID], "no recompute on a repeat call")
}

func TestCancelVoidsScheduledMatchesOnly(t *testing.T) {
	store, svc := newTournamentFixture()
	kind := models.KindLeague
	tournament := store.addTournament(&models.Tournament{
		Format: models.FormatHeadToHead,
		Kind:   &kind,
		Status: models.StatusActive,
	})
	matchRepo := &fakeMatchRepo{store: store}
	ctx := context.Background()

	played := h2hMatch(tournament.ID, 1, 2, 2, 0)
	require.NoError(t, matchRepo.Create(ctx, nil, played))
	pending := scheduledMatch(tournament.ID, 1, 3)
	require.NoError(t, matchRepo.Create(ctx, nil, pending))

	cancelled, err := svc.Cancel(ctx, tournament.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelled, cancelled.Status)

	storedPlayed, _ := matchRepo.GetByID(ctx, nil, played.ID)
	require.Equal(t, models.MatchStatusCompleted, storedPlayed.Status, "recorded results survive cancellation")
	storedPending, _ := matchRepo.GetByID(ctx, nil, pending.ID)
	require.Equal(t, models.MatchStatusVoid, storedPending.Status)
}

func TestCancelRejectedOnTerminalStates(t *testing.T) {
	store, svc := newTournamentFixture()
	kind := models.KindLeague
	tournament := store.addTournament(&models.Tournament{
		Format: models.FormatHeadToHead,
		Kind:   &kind,
		Status: models.StatusRewardsDistributed,
	})

	_, err := svc.Cancel(context.Background(), tournament.ID)
	require.ErrorIs(t, err, ErrTournamentInvalidStatusTransition)
}

func TestCancelTwiceIsHarmless(t *testing.T) {
	store, svc := newTournamentFixture()
	kind := models.KindLeague
	tournament := store.addTournament(&models.Tournament{
		Format: models.FormatHeadToHead,
		Kind:   &kind,
		Status: models.StatusCancelled,
	})

	cancelled, err := svc.Cancel(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelled, cancelled.Status)
}

func TestGetDetailsAttachesMatchesAndRankings(t *testing.T) {
	store, svc := newTournamentFixture()
	kind := models.KindLeague
	tournament := store.addTournament(&models.Tournament{
		Format: models.FormatHeadToHead,
		Kind:   &kind,
		Status: models.StatusActive,
	})
	matchRepo := &fakeMatchRepo{store: store}
	ctx := context.Background()
	require.NoError(t, matchRepo.Create(ctx, nil, h2hMatch(tournament.ID, 1, 2, 2, 0)))
	store.rankings[tournament.ID] = []*models.RankingRow{
		{TournamentID: tournament.ID, ParticipantID: 1, Rank: 1},
	}

	details, err := svc.GetDetails(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, details.Matches, 1)
	require.Len(t, details.Rankings, 1)
}

func TestListFiltersByStatus(t *testing.T) {
	store, svc := newTournamentFixture()
	kind := models.KindLeague
	store.addTournament(&models.Tournament{Format: models.FormatHeadToHead, Kind: &kind, Status: models.StatusDraft})
	store.addTournament(&models.Tournament{Format: models.FormatHeadToHead, Kind: &kind, Status: models.StatusActive})

	active := models.StatusActive
	out, err := svc.List(context.Background(), repositories.ListTournamentsFilter{Status: &active})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, models.StatusActive, out[0].Status)
}

func TestDeleteOnlyDraftOrCancelled(t *testing.T) {
	store, svc := newTournamentFixture()
	kind := models.KindLeague
	draft := store.addTournament(&models.Tournament{Format: models.FormatHeadToHead, Kind: &kind, Status: models.StatusDraft})
	active := store.addTournament(&models.Tournament{Format: models.FormatHeadToHead, Kind: &kind, Status: models.StatusActive})
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, draft.ID))
	require.ErrorIs(t, svc.Delete(ctx, active.ID), ErrTournamentInvalidStatusTransition)
}

func TestAutoStartSweepsDueDrafts(t *testing.T) {
	store, svc := newTournamentFixture()
	kind := models.KindLeague
	due := store.addTournament(&models.Tournament{
		Format:    models.FormatHeadToHead,
		Kind:      &kind,
		Status:    models.StatusDraft,
		StartDate: time.Now().Add(-time.Hour),
	})
	notDue := store.addTournament(&models.Tournament{
		Format:    models.FormatHeadToHead,
		Kind:      &kind,
		Status:    models.StatusDraft,
		StartDate: time.Now().Add(time.Hour),
	})
	store.enroll(due.ID, 1, 2, 3)

	require.NoError(t, svc.AutoStartDueTournaments(context.Background(), time.Now()))

	require.Equal(t, models.StatusActive, store.tournaments[due.ID].Status)
	require.True(t, store.tournaments[due.ID].SessionsGenerated)
	require.Equal(t, models.StatusDraft, store.tournaments[notDue.ID].Status)
	require.False(t, store.tournaments[notDue.ID].SessionsGenerated)
}

func TestAutoStartOneFailureDoesNotBlockOthers(t *testing.T) {
	store, svc := newTournamentFixture()
	kind := models.KindLeague
	// First tournament has too few participants; second one is fine.
	starved := store.addTournament(&models.Tournament{
		Format:    models.FormatHeadToHead,
		Kind:      &kind,
		Status:    models.StatusDraft,
		StartDate: time.Now().Add(-time.Hour),
	})
	healthy := store.addTournament(&models.Tournament{
		Format:    models.FormatHeadToHead,
		Kind:      &kind,
		Status:    models.StatusDraft,
		StartDate: time.Now().Add(-time.Hour),
	})
	store.enroll(healthy.ID, 1, 2)

	require.NoError(t, svc.AutoStartDueTournaments(context.Background(), time.Now()))

	require.Equal(t, models.StatusDraft, store.tournaments[starved.ID].Status)
	require.Equal(t, models.StatusActive, store.tournaments[healthy.ID].Status)
}
