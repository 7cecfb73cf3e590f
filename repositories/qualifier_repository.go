package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/academyhq/tournament-engine/models"
)

var (
	ErrSnapshotNotFound = errors.New("qualifier snapshot not found")
	ErrSnapshotExists   = errors.New("qualifier snapshot already exists for this tournament")
)

// QualifierSnapshotRepository stores one immutable snapshot per tournament.
// Create translates the unique violation into ErrSnapshotExists so callers
// can fall back to the stored snapshot (write-then-reread idempotency).
type QualifierSnapshotRepository interface {
	Create(ctx context.Context, exec SQLExecutor, snapshot *models.QualifierSnapshot) error
	GetByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (*models.QualifierSnapshot, error)
}

type postgresQualifierSnapshotRepository struct {
	db *sql.DB
}

func NewPostgresQualifierSnapshotRepository(db *sql.DB) QualifierSnapshotRepository {
	return &postgresQualifierSnapshotRepository{db: db}
}

func (r *postgresQualifierSnapshotRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresQualifierSnapshotRepository) Create(ctx context.Context, exec SQLExecutor, snapshot *models.QualifierSnapshot) error {
	executor := r.getExecutor(exec)

	raw, err := json.Marshal(snapshot.Qualifiers)
	if err != nil {
		return fmt.Errorf("failed to encode qualifiers for tournament %d: %w", snapshot.TournamentID, err)
	}

	query := `
		INSERT INTO qualifier_snapshots (tournament_id, qualifiers)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err = executor.QueryRowContext(ctx, query, snapshot.TournamentID, raw).
		Scan(&snapshot.ID, &snapshot.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err, "qualifier_snapshots_tournament_id_key") {
			return ErrSnapshotExists
		}
		return err
	}
	return nil
}

func (r *postgresQualifierSnapshotRepository) GetByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (*models.QualifierSnapshot, error) {
	executor := r.getExecutor(exec)
	query := `SELECT id, tournament_id, qualifiers, created_at FROM qualifier_snapshots WHERE tournament_id = $1`

	var snapshot models.QualifierSnapshot
	var raw []byte
	err := executor.QueryRowContext(ctx, query, tournamentID).
		Scan(&snapshot.ID, &snapshot.TournamentID, &raw, &snapshot.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &snapshot.Qualifiers); err != nil {
		return nil, fmt.Errorf("failed to decode qualifiers for tournament %d: %w", tournamentID, err)
	}
	return &snapshot, nil
}
