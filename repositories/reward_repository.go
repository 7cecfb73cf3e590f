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
	ErrRewardEntryExists   = errors.New("reward ledger entry already exists for this idempotency key")
	ErrRewardEntryNotFound = errors.New("reward ledger entry not found")
	ErrRewardPlanNotFound  = errors.New("reward plan not found")
)

type RewardRepository interface {
	// CreateEntry inserts one ledger row, translating the idempotency-key
	// unique violation into ErrRewardEntryExists. Callers re-read on that
	// error instead of pre-checking (write-then-reread idempotency).
	CreateEntry(ctx context.Context, exec SQLExecutor, entry *models.RewardLedgerEntry) error
	GetByIdempotencyKey(ctx context.Context, exec SQLExecutor, key string) (*models.RewardLedgerEntry, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.RewardLedgerEntry, error)
	CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	// LatestBadgeRank returns the resolved rank recorded on the most recent
	// badge entry for the participant, the last link of the rank fallback chain.
	LatestBadgeRank(ctx context.Context, exec SQLExecutor, tournamentID, participantID int) (*int, error)

	SaveRewardPlan(ctx context.Context, exec SQLExecutor, plan *models.RewardPlan) error
	GetRewardPlan(ctx context.Context, exec SQLExecutor, tournamentID int) (*models.RewardPlan, error)
}

type postgresRewardRepository struct {
	db *sql.DB
}

func NewPostgresRewardRepository(db *sql.DB) RewardRepository {
	return &postgresRewardRepository{db: db}
}

func (r *postgresRewardRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const rewardEntryColumns = `
	id, entry_uid, tournament_id, participant_id, kind, amount, badge_tier,
	skill_id, resolved_rank, reason, idempotency_key, created_at`

func (r *postgresRewardRepository) CreateEntry(ctx context.Context, exec SQLExecutor, entry *models.RewardLedgerEntry) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO reward_ledger_entries
			(entry_uid, tournament_id, participant_id, kind, amount, badge_tier, skill_id, resolved_rank, reason, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		entry.EntryUID, entry.TournamentID, entry.ParticipantID, entry.Kind, entry.Amount,
		entry.BadgeTier, entry.SkillID, entry.ResolvedRank, entry.Reason, entry.IdempotencyKey,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err, "reward_ledger_entries_idempotency_key_key") {
			return ErrRewardEntryExists
		}
		return err
	}
	return nil
}

func scanRewardEntry(scanner interface{ Scan(...interface{}) error }) (*models.RewardLedgerEntry, error) {
	var e models.RewardLedgerEntry
	err := scanner.Scan(
		&e.ID, &e.EntryUID, &e.TournamentID, &e.ParticipantID, &e.Kind, &e.Amount,
		&e.BadgeTier, &e.SkillID, &e.ResolvedRank, &e.Reason, &e.IdempotencyKey, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRewardEntryNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *postgresRewardRepository) GetByIdempotencyKey(ctx context.Context, exec SQLExecutor, key string) (*models.RewardLedgerEntry, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + rewardEntryColumns + ` FROM reward_ledger_entries WHERE idempotency_key = $1`
	return scanRewardEntry(executor.QueryRowContext(ctx, query, key))
}

func (r *postgresRewardRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.RewardLedgerEntry, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + rewardEntryColumns + ` FROM reward_ledger_entries WHERE tournament_id = $1 ORDER BY participant_id ASC, kind ASC, id ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reward ledger for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	entries := make([]*models.RewardLedgerEntry, 0)
	for rows.Next() {
		e, scanErr := scanRewardEntry(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *postgresRewardRepository) CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	executor := r.getExecutor(exec)
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reward_ledger_entries WHERE tournament_id = $1`, tournamentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reward entries for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}

func (r *postgresRewardRepository) LatestBadgeRank(ctx context.Context, exec SQLExecutor, tournamentID, participantID int) (*int, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT resolved_rank FROM reward_ledger_entries
		WHERE tournament_id = $1 AND participant_id = $2 AND kind = $3 AND resolved_rank IS NOT NULL
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	var rank *int
	err := executor.QueryRowContext(ctx, query, tournamentID, participantID, models.RewardBadge).Scan(&rank)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rank, nil
}

func (r *postgresRewardRepository) SaveRewardPlan(ctx context.Context, exec SQLExecutor, plan *models.RewardPlan) error {
	executor := r.getExecutor(exec)

	raw, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to encode reward plan for tournament %d: %w", plan.TournamentID, err)
	}

	query := `
		INSERT INTO reward_plans (tournament_id, plan)
		VALUES ($1, $2)
		ON CONFLICT (tournament_id) DO UPDATE SET plan = EXCLUDED.plan, updated_at = NOW()`
	if _, err := executor.ExecContext(ctx, query, plan.TournamentID, raw); err != nil {
		return fmt.Errorf("failed to save reward plan for tournament %d: %w", plan.TournamentID, err)
	}
	return nil
}

func (r *postgresRewardRepository) GetRewardPlan(ctx context.Context, exec SQLExecutor, tournamentID int) (*models.RewardPlan, error) {
	executor := r.getExecutor(exec)

	var raw []byte
	err := executor.QueryRowContext(ctx,
		`SELECT plan FROM reward_plans WHERE tournament_id = $1`, tournamentID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRewardPlanNotFound
		}
		return nil, err
	}
	var plan models.RewardPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("failed to decode reward plan for tournament %d: %w", tournamentID, err)
	}
	plan.TournamentID = tournamentID
	return &plan, nil
}
