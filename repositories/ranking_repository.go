package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/academyhq/tournament-engine/models"
)

var ErrRankingRowNotFound = errors.New("ranking row not found")

// RankingRepository persists the recomputed standings. Rankings are always
// replaced wholesale (delete + batch insert) inside the caller's
// transaction so readers never observe a partially updated table.
type RankingRepository interface {
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
	BatchCreate(ctx context.Context, exec SQLExecutor, rows []*models.RankingRow) error
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.RankingRow, error)
	GetByTournamentAndParticipant(ctx context.Context, exec SQLExecutor, tournamentID, participantID int) (*models.RankingRow, error)
}

type postgresRankingRepository struct {
	db *sql.DB
}

func NewPostgresRankingRepository(db *sql.DB) RankingRepository {
	return &postgresRankingRepository{db: db}
}

func (r *postgresRankingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRankingRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM tournament_rankings WHERE tournament_id = $1`, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to delete rankings for tournament %d: %w", tournamentID, err)
	}
	return nil
}

func (r *postgresRankingRepository) BatchCreate(ctx context.Context, exec SQLExecutor, rankingRows []*models.RankingRow) error {
	executor := r.getExecutor(exec)
	if len(rankingRows) == 0 {
		return nil
	}

	query := `
		INSERT INTO tournament_rankings
			(tournament_id, participant_id, rank, points, games_played, wins, draws, losses,
			 score_for, score_against, score_difference, metric_value, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	for _, row := range rankingRows {
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = time.Now()
		}
		err := executor.QueryRowContext(ctx, query,
			row.TournamentID, row.ParticipantID, row.Rank, row.Points, row.GamesPlayed,
			row.Wins, row.Draws, row.Losses, row.ScoreFor, row.ScoreAgainst,
			row.ScoreDifference, row.MetricValue, row.UpdatedAt,
		).Scan(&row.ID)
		if err != nil {
			return fmt.Errorf("failed to insert ranking row for participant %d: %w", row.ParticipantID, err)
		}
	}
	return nil
}

func scanRankingRow(scanner interface{ Scan(...interface{}) error }) (*models.RankingRow, error) {
	var row models.RankingRow
	err := scanner.Scan(
		&row.ID, &row.TournamentID, &row.ParticipantID, &row.Rank, &row.Points,
		&row.GamesPlayed, &row.Wins, &row.Draws, &row.Losses, &row.ScoreFor,
		&row.ScoreAgainst, &row.ScoreDifference, &row.MetricValue, &row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRankingRowNotFound
		}
		return nil, err
	}
	return &row, nil
}

const rankingColumns = `
	id, tournament_id, participant_id, rank, points, games_played, wins, draws, losses,
	score_for, score_against, score_difference, metric_value, updated_at`

func (r *postgresRankingRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.RankingRow, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + rankingColumns + ` FROM tournament_rankings WHERE tournament_id = $1 ORDER BY rank ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rankings for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	out := make([]*models.RankingRow, 0)
	for rows.Next() {
		row, scanErr := scanRankingRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *postgresRankingRepository) GetByTournamentAndParticipant(ctx context.Context, exec SQLExecutor, tournamentID, participantID int) (*models.RankingRow, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + rankingColumns + ` FROM tournament_rankings WHERE tournament_id = $1 AND participant_id = $2`
	return scanRankingRow(executor.QueryRowContext(ctx, query, tournamentID, participantID))
}
