package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/academyhq/tournament-engine/models"
)

var ErrEnrollmentNotFound = errors.New("enrollment not found")

// EnrollmentRepository is read-only: enrollments are created by the external
// enrollment collaborator before the engine ever sees the tournament.
type EnrollmentRepository interface {
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Enrollment, error)
	GetByTournamentAndParticipant(ctx context.Context, exec SQLExecutor, tournamentID, participantID int) (*models.Enrollment, error)
	CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
}

type postgresEnrollmentRepository struct {
	db *sql.DB
}

func NewPostgresEnrollmentRepository(db *sql.DB) EnrollmentRepository {
	return &postgresEnrollmentRepository{db: db}
}

func (r *postgresEnrollmentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresEnrollmentRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Enrollment, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, participant_id, final_placement, created_at
		FROM enrollments
		WHERE tournament_id = $1
		ORDER BY participant_id ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	enrollments := make([]*models.Enrollment, 0)
	for rows.Next() {
		var e models.Enrollment
		if scanErr := rows.Scan(&e.ID, &e.TournamentID, &e.ParticipantID, &e.FinalPlacement, &e.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan enrollment row: %w", scanErr)
		}
		enrollments = append(enrollments, &e)
	}
	return enrollments, rows.Err()
}

func (r *postgresEnrollmentRepository) GetByTournamentAndParticipant(ctx context.Context, exec SQLExecutor, tournamentID, participantID int) (*models.Enrollment, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, participant_id, final_placement, created_at
		FROM enrollments
		WHERE tournament_id = $1 AND participant_id = $2`

	var e models.Enrollment
	err := executor.QueryRowContext(ctx, query, tournamentID, participantID).
		Scan(&e.ID, &e.TournamentID, &e.ParticipantID, &e.FinalPlacement, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *postgresEnrollmentRepository) CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	executor := r.getExecutor(exec)
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE tournament_id = $1`, tournamentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count enrollments for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}
