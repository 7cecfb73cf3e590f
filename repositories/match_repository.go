package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/academyhq/tournament-engine/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound           = errors.New("match not found")
	ErrMatchTournamentInvalid  = errors.New("match tournament reference invalid")
	ErrMatchBracketUIDConflict = errors.New("bracket uid already exists for this tournament")
)

type ListMatchesFilter struct {
	Round   *int
	Stage   *models.MatchStage
	Status  *models.MatchStatus
	GroupNo *int
}

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, filter ListMatchesFilter) ([]*models.Match, error)
	UpdateOutcome(ctx context.Context, exec SQLExecutor, id int, outcome *models.Outcome, status models.MatchStatus, winnerParticipantID *int) error
	UpdateProgressionLinks(ctx context.Context, exec SQLExecutor, matchID int, nextMatchID, winnerToSlot, loserNextMatchID, loserToSlot *int) error
	SetParticipantSlot(ctx context.Context, exec SQLExecutor, matchID, slot int, participantID *int) error
	CountIncomplete(ctx context.Context, exec SQLExecutor, tournamentID int, stage *models.MatchStage) (int, error)
	VoidScheduledByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int64, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, round, stage, group_no, bracket_uid,
	p1_participant_id, p2_participant_id, outcome, status, winner_participant_id,
	next_match_id, winner_to_slot, loser_next_match_id, loser_to_slot, created_at`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)

	var outcomeRaw []byte
	if match.Outcome != nil {
		var err error
		outcomeRaw, err = match.Outcome.MarshalDB()
		if err != nil {
			return fmt.Errorf("failed to encode outcome for new match: %w", err)
		}
	}

	query := `
		INSERT INTO matches (
			tournament_id, round, stage, group_no, bracket_uid,
			p1_participant_id, p2_participant_id, outcome, status, winner_participant_id,
			next_match_id, winner_to_slot, loser_next_match_id, loser_to_slot
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		match.TournamentID, match.Round, match.Stage, match.GroupNo, match.BracketUID,
		match.P1ParticipantID, match.P2ParticipantID, outcomeRaw, match.Status, match.WinnerParticipantID,
		match.NextMatchID, match.WinnerToSlot, match.LoserNextMatchID, match.LoserToSlot,
	).Scan(&match.ID, &match.CreatedAt)

	return r.handleMatchError(err)
}

func scanMatch(scanner interface{ Scan(...interface{}) error }) (*models.Match, error) {
	var m models.Match
	var outcomeRaw []byte
	err := scanner.Scan(
		&m.ID, &m.TournamentID, &m.Round, &m.Stage, &m.GroupNo, &m.BracketUID,
		&m.P1ParticipantID, &m.P2ParticipantID, &outcomeRaw, &m.Status, &m.WinnerParticipantID,
		&m.NextMatchID, &m.WinnerToSlot, &m.LoserNextMatchID, &m.LoserToSlot, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	m.Outcome, err = models.UnmarshalOutcome(outcomeRaw)
	if err != nil {
		return nil, fmt.Errorf("match %d: %w", m.ID, err)
	}
	return &m, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`
	return scanMatch(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, filter ListMatchesFilter) ([]*models.Match, error) {
	executor := r.getExecutor(exec)

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT` + matchColumns + ` FROM matches WHERE tournament_id = $1`)
	args := []interface{}{tournamentID}
	placeholder := 2

	appendFilter := func(clause string, value interface{}) {
		queryBuilder.WriteString(" AND " + clause + " = $" + strconv.Itoa(placeholder))
		args = append(args, value)
		placeholder++
	}
	if filter.Round != nil {
		appendFilter("round", *filter.Round)
	}
	if filter.Stage != nil {
		appendFilter("stage", *filter.Stage)
	}
	if filter.Status != nil {
		appendFilter("status", *filter.Status)
	}
	if filter.GroupNo != nil {
		appendFilter("group_no", *filter.GroupNo)
	}

	queryBuilder.WriteString(" ORDER BY round ASC, id ASC")

	rows, err := executor.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) UpdateOutcome(ctx context.Context, exec SQLExecutor, id int, outcome *models.Outcome, status models.MatchStatus, winnerParticipantID *int) error {
	executor := r.getExecutor(exec)

	outcomeRaw, err := outcome.MarshalDB()
	if err != nil {
		return fmt.Errorf("failed to encode outcome for match %d: %w", id, err)
	}

	query := `UPDATE matches SET outcome = $1, status = $2, winner_participant_id = $3 WHERE id = $4`
	result, err := executor.ExecContext(ctx, query, outcomeRaw, status, winnerParticipantID, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateProgressionLinks(ctx context.Context, exec SQLExecutor, matchID int, nextMatchID, winnerToSlot, loserNextMatchID, loserToSlot *int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET next_match_id = $1, winner_to_slot = $2, loser_next_match_id = $3, loser_to_slot = $4
		WHERE id = $5`
	result, err := executor.ExecContext(ctx, query, nextMatchID, winnerToSlot, loserNextMatchID, loserToSlot, matchID)
	if err != nil {
		return fmt.Errorf("failed to update progression links for match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) SetParticipantSlot(ctx context.Context, exec SQLExecutor, matchID, slot int, participantID *int) error {
	executor := r.getExecutor(exec)
	var query string
	switch slot {
	case 1:
		query = `UPDATE matches SET p1_participant_id = $1 WHERE id = $2`
	case 2:
		query = `UPDATE matches SET p2_participant_id = $1 WHERE id = $2`
	default:
		return fmt.Errorf("invalid participant slot %d for match %d", slot, matchID)
	}
	result, err := executor.ExecContext(ctx, query, participantID, matchID)
	if err != nil {
		return fmt.Errorf("failed to set participant slot for match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) CountIncomplete(ctx context.Context, exec SQLExecutor, tournamentID int, stage *models.MatchStage) (int, error) {
	executor := r.getExecutor(exec)
	query := `SELECT COUNT(*) FROM matches WHERE tournament_id = $1 AND status = $2`
	args := []interface{}{tournamentID, models.MatchStatusScheduled}
	if stage != nil {
		query += " AND stage = $3"
		args = append(args, *stage)
	}
	var count int
	if err := executor.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count incomplete matches for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}

// VoidScheduledByTournament marks unplayed matches void on cancellation.
// Completed matches stay untouched for audit.
func (r *postgresMatchRepository) VoidScheduledByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int64, error) {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET status = $1 WHERE tournament_id = $2 AND status = $3`
	result, err := executor.ExecContext(ctx, query, models.MatchStatusVoid, tournamentID, models.MatchStatusScheduled)
	if err != nil {
		return 0, fmt.Errorf("failed to void matches for tournament %d: %w", tournamentID, err)
	}
	return result.RowsAffected()
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "matches_tournament_id_fkey":
			return ErrMatchTournamentInvalid
		case "matches_tournament_id_bracket_uid_key":
			return ErrMatchBracketUIDConflict
		}
	}
	return err
}
