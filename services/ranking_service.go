package services

import (
	"context"
	"log/slog"
	"sort"

	"github.com/academyhq/tournament-engine/models"
	"github.com/academyhq/tournament-engine/repositories"
)

// RankingService recomputes standings from scratch on every invocation.
// Incremental patching drifts; a full recompute from the completed match
// set cannot. The persisted rows are the single authority on placement.
type RankingService interface {
	Recompute(ctx context.Context, tournamentID int) ([]*models.RankingRow, error)
	// RecomputeInTx runs inside the caller's transaction so the match set
	// it reads is a consistent snapshot.
	RecomputeInTx(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament) ([]*models.RankingRow, error)
	GetRankings(ctx context.Context, tournamentID int) ([]*models.RankingRow, error)
}

type rankingService struct {
	txRunner       repositories.TxRunner
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	rankingRepo    repositories.RankingRepository
	logger         *slog.Logger
}

func NewRankingService(
	txRunner repositories.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	rankingRepo repositories.RankingRepository,
	logger *slog.Logger,
) RankingService {
	return &rankingService{
		txRunner:       txRunner,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		rankingRepo:    rankingRepo,
		logger:         logger,
	}
}

func (s *rankingService) Recompute(ctx context.Context, tournamentID int) ([]*models.RankingRow, error) {
	var rows []*models.RankingRow
	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		rows, err = s.RecomputeInTx(ctx, exec, tournament)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *rankingService) RecomputeInTx(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament) ([]*models.RankingRow, error) {
	matches, err := s.matchRepo.ListByTournament(ctx, exec, tournament.ID, repositories.ListMatchesFilter{})
	if err != nil {
		return nil, err
	}

	var rows []*models.RankingRow
	if tournament.Format == models.FormatIndividualRanking {
		rows = ComputeMetricStandings(tournament, matches)
	} else {
		rows = ComputeHeadToHeadStandings(tournament.ID, matches)
	}

	if err := s.rankingRepo.DeleteByTournament(ctx, exec, tournament.ID); err != nil {
		return nil, err
	}
	if err := s.rankingRepo.BatchCreate(ctx, exec, rows); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "rankings recomputed",
		slog.Int("tournament_id", tournament.ID),
		slog.Int("participants", len(rows)))
	return rows, nil
}

func (s *rankingService) GetRankings(ctx context.Context, tournamentID int) ([]*models.RankingRow, error) {
	return s.rankingRepo.ListByTournament(ctx, nil, tournamentID)
}

// ComputeHeadToHeadStandings builds the standings table from completed
// head-to-head matches: 3 points per win, 1 per draw; tie-breaks in order
// score difference, score for, then participant id so the ordering is
// always total and ranks are dense with no unresolved ties.
func ComputeHeadToHeadStandings(tournamentID int, matches []*models.Match) []*models.RankingRow {
	table := make(map[int]*models.RankingRow)
	row := func(participantID int) *models.RankingRow {
		if r, ok := table[participantID]; ok {
			return r
		}
		r := &models.RankingRow{TournamentID: tournamentID, ParticipantID: participantID}
		table[participantID] = r
		return r
	}

	for _, m := range matches {
		if m.Status == models.MatchStatusVoid {
			continue
		}
		// Seed rows for everyone scheduled, so unplayed participants still rank.
		if m.P1ParticipantID != nil {
			row(*m.P1ParticipantID)
		}
		if m.P2ParticipantID != nil {
			row(*m.P2ParticipantID)
		}

		if m.Status != models.MatchStatusCompleted || m.Outcome == nil || m.Outcome.HeadToHead == nil {
			continue
		}
		if m.P1ParticipantID == nil || m.P2ParticipantID == nil {
			continue
		}
		h2h := m.Outcome.HeadToHead
		p1, p2 := row(*m.P1ParticipantID), row(*m.P2ParticipantID)

		p1.GamesPlayed++
		p2.GamesPlayed++
		p1.ScoreFor += h2h.P1Score
		p1.ScoreAgainst += h2h.P2Score
		p2.ScoreFor += h2h.P2Score
		p2.ScoreAgainst += h2h.P1Score

		switch h2h.Result {
		case models.ResultP1Win:
			p1.Wins++
			p2.Losses++
		case models.ResultP2Win:
			p2.Wins++
			p1.Losses++
		case models.ResultDraw:
			p1.Draws++
			p2.Draws++
		}
	}

	rows := make([]*models.RankingRow, 0, len(table))
	for _, r := range table {
		r.Points = 3*r.Wins + r.Draws
		r.ScoreDifference = r.ScoreFor - r.ScoreAgainst
		rows = append(rows, r)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.ScoreDifference != b.ScoreDifference {
			return a.ScoreDifference > b.ScoreDifference
		}
		if a.ScoreFor != b.ScoreFor {
			return a.ScoreFor > b.ScoreFor
		}
		return a.ParticipantID < b.ParticipantID
	})
	for i, r := range rows {
		r.Rank = i + 1
	}
	return rows
}

// ComputeMetricStandings aggregates completed scoring rounds per participant
// (sum or best, per configuration) and orders by the configured direction.
// Equal values fall back to participant id: ties never share a rank.
func ComputeMetricStandings(tournament *models.Tournament, matches []*models.Match) []*models.RankingRow {
	type agg struct {
		sum   float64
		best  float64
		count int
	}
	ascending := tournament.ResolvedDirection() == models.DirectionAscending
	useBest := tournament.Aggregation != nil && *tournament.Aggregation == models.AggregateBest

	values := make(map[int]*agg)
	entry := func(participantID int) *agg {
		if a, ok := values[participantID]; ok {
			return a
		}
		a := &agg{}
		values[participantID] = a
		return a
	}

	for _, m := range matches {
		if m.Status == models.MatchStatusVoid || m.P1ParticipantID == nil {
			continue
		}
		a := entry(*m.P1ParticipantID)
		if m.Status != models.MatchStatusCompleted || m.Outcome == nil || m.Outcome.Metric == nil {
			continue
		}
		v := m.Outcome.Metric.Value
		a.sum += v
		if a.count == 0 {
			a.best = v
		} else if (ascending && v < a.best) || (!ascending && v > a.best) {
			a.best = v
		}
		a.count++
	}

	rows := make([]*models.RankingRow, 0, len(values))
	for participantID, a := range values {
		r := &models.RankingRow{
			TournamentID:  tournament.ID,
			ParticipantID: participantID,
			GamesPlayed:   a.count,
		}
		if a.count > 0 {
			v := a.sum
			if useBest {
				v = a.best
			}
			r.MetricValue = &v
		}
		rows = append(rows, r)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		// Participants with no completed rounds sort after everyone with a value.
		switch {
		case a.MetricValue == nil && b.MetricValue == nil:
			return a.ParticipantID < b.ParticipantID
		case a.MetricValue == nil:
			return false
		case b.MetricValue == nil:
			return true
		}
		if *a.MetricValue != *b.MetricValue {
			if ascending {
				return *a.MetricValue < *b.MetricValue
			}
			return *a.MetricValue > *b.MetricValue
		}
		return a.ParticipantID < b.ParticipantID
	})
	for i, r := range rows {
		r.Rank = i + 1
	}
	return rows
}
