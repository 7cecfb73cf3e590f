package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/academyhq/tournament-engine/models"
	"github.com/academyhq/tournament-engine/repositories"
)

// The fakes below back the service tests with an in-memory store so the
// transactional flows run without postgres. The pass-through runner hands a
// nil executor to the body; the fakes ignore it.

type passthroughTxRunner struct{}

func (passthroughTxRunner) RunInTx(ctx context.Context, fn func(repositories.SQLExecutor) error) error {
	return fn(nil)
}

// serialTxRunner serializes transaction bodies the way competing row locks
// do on a real database: the generation guard's conditional UPDATE blocks
// racers until the first transaction commits.
type serialTxRunner struct{ mu sync.Mutex }

func (r *serialTxRunner) RunInTx(ctx context.Context, fn func(repositories.SQLExecutor) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(nil)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memStore struct {
	mu sync.Mutex

	tournaments      map[int]*models.Tournament
	nextTournamentID int

	enrollments map[int][]*models.Enrollment

	matches     map[int]*models.Match
	nextMatchID int

	rankings map[int][]*models.RankingRow

	snapshots map[int]*models.QualifierSnapshot

	rewardEntries map[string]*models.RewardLedgerEntry
	nextEntryID   int
	rewardPlans   map[int]*models.RewardPlan
}

func newMemStore() *memStore {
	return &memStore{
		tournaments:   make(map[int]*models.Tournament),
		enrollments:   make(map[int][]*models.Enrollment),
		matches:       make(map[int]*models.Match),
		rankings:      make(map[int][]*models.RankingRow),
		snapshots:     make(map[int]*models.QualifierSnapshot),
		rewardEntries: make(map[string]*models.RewardLedgerEntry),
		rewardPlans:   make(map[int]*models.RewardPlan),
	}
}

func (s *memStore) addTournament(t *models.Tournament) *models.Tournament {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		s.nextTournamentID++
		t.ID = s.nextTournamentID
	} else if t.ID > s.nextTournamentID {
		s.nextTournamentID = t.ID
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	copied := *t
	s.tournaments[t.ID] = &copied
	return t
}

func (s *memStore) enroll(tournamentID int, participantIDs ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pid := range participantIDs {
		s.enrollments[tournamentID] = append(s.enrollments[tournamentID], &models.Enrollment{
			ID:            len(s.enrollments[tournamentID]) + 1,
			TournamentID:  tournamentID,
			ParticipantID: pid,
		})
	}
}

// --- tournament repository ---

type fakeTournamentRepo struct{ store *memStore }

func (r *fakeTournamentRepo) Create(ctx context.Context, t *models.Tournament) error {
	r.store.addTournament(t)
	return nil
}

func (r *fakeTournamentRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTournamentRepo) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]models.Tournament, 0)
	for _, t := range r.store.tournaments {
		if filter.Format != nil && t.Format != *filter.Format {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Kind != nil && (t.Kind == nil || *t.Kind != *filter.Kind) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	return nil
}

func (r *fakeTournamentRepo) MarkSessionsGenerated(ctx context.Context, exec repositories.SQLExecutor, id int) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.tournaments[id]
	if !ok {
		return false, repositories.ErrTournamentNotFound
	}
	if t.SessionsGenerated {
		return false, nil
	}
	t.SessionsGenerated = true
	now := time.Now()
	t.SessionsGeneratedAt = &now
	return true, nil
}

func (r *fakeTournamentRepo) Delete(ctx context.Context, id int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.store.tournaments, id)
	return nil
}

func (r *fakeTournamentRepo) ListDueToStart(ctx context.Context, exec repositories.SQLExecutor, now time.Time) ([]*models.Tournament, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Tournament
	for _, t := range r.store.tournaments {
		if t.Status == models.StatusDraft && !t.StartDate.After(now) {
			copied := *t
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- enrollment repository ---

type fakeEnrollmentRepo struct{ store *memStore }

func (r *fakeEnrollmentRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.Enrollment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]*models.Enrollment, 0, len(r.store.enrollments[tournamentID]))
	for _, e := range r.store.enrollments[tournamentID] {
		copied := *e
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out, nil
}

func (r *fakeEnrollmentRepo) GetByTournamentAndParticipant(ctx context.Context, exec repositories.SQLExecutor, tournamentID, participantID int) (*models.Enrollment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, e := range r.store.enrollments[tournamentID] {
		if e.ParticipantID == participantID {
			copied := *e
			return &copied, nil
		}
	}
	return nil, repositories.ErrEnrollmentNotFound
}

func (r *fakeEnrollmentRepo) CountByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return len(r.store.enrollments[tournamentID]), nil
}

// --- match repository ---

type fakeMatchRepo struct{ store *memStore }

func (r *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.nextMatchID++
	match.ID = r.store.nextMatchID
	match.CreatedAt = time.Now()
	copied := *match
	r.store.matches[match.ID] = &copied
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *fakeMatchRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, filter repositories.ListMatchesFilter) ([]*models.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, m := range r.store.matches {
		if m.TournamentID != tournamentID {
			continue
		}
		if filter.Round != nil && m.Round != *filter.Round {
			continue
		}
		if filter.Stage != nil && m.Stage != *filter.Stage {
			continue
		}
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		if filter.GroupNo != nil && (m.GroupNo == nil || *m.GroupNo != *filter.GroupNo) {
			continue
		}
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeMatchRepo) UpdateOutcome(ctx context.Context, exec repositories.SQLExecutor, id int, outcome *models.Outcome, status models.MatchStatus, winnerParticipantID *int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Outcome = outcome
	m.Status = status
	m.WinnerParticipantID = winnerParticipantID
	return nil
}

func (r *fakeMatchRepo) UpdateProgressionLinks(ctx context.Context, exec repositories.SQLExecutor, matchID int, nextMatchID, winnerToSlot, loserNextMatchID, loserToSlot *int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.NextMatchID = nextMatchID
	m.WinnerToSlot = winnerToSlot
	m.LoserNextMatchID = loserNextMatchID
	m.LoserToSlot = loserToSlot
	return nil
}

func (r *fakeMatchRepo) SetParticipantSlot(ctx context.Context, exec repositories.SQLExecutor, matchID, slot int, participantID *int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	switch slot {
	case 1:
		m.P1ParticipantID = participantID
	case 2:
		m.P2ParticipantID = participantID
	}
	return nil
}

func (r *fakeMatchRepo) CountIncomplete(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, stage *models.MatchStage) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	count := 0
	for _, m := range r.store.matches {
		if m.TournamentID != tournamentID || m.Status != models.MatchStatusScheduled {
			continue
		}
		if stage != nil && m.Stage != *stage {
			continue
		}
		count++
	}
	return count, nil
}

func (r *fakeMatchRepo) VoidScheduledByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var voided int64
	for _, m := range r.store.matches {
		if m.TournamentID == tournamentID && m.Status == models.MatchStatusScheduled {
			m.Status = models.MatchStatusVoid
			voided++
		}
	}
	return voided, nil
}

// --- ranking repository ---

type fakeRankingRepo struct{ store *memStore }

func (r *fakeRankingRepo) DeleteByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.rankings, tournamentID)
	return nil
}

func (r *fakeRankingRepo) BatchCreate(ctx context.Context, exec repositories.SQLExecutor, rows []*models.RankingRow) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, row := range rows {
		copied := *row
		r.store.rankings[row.TournamentID] = append(r.store.rankings[row.TournamentID], &copied)
	}
	return nil
}

func (r *fakeRankingRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.RankingRow, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]*models.RankingRow, 0, len(r.store.rankings[tournamentID]))
	for _, row := range r.store.rankings[tournamentID] {
		copied := *row
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (r *fakeRankingRepo) GetByTournamentAndParticipant(ctx context.Context, exec repositories.SQLExecutor, tournamentID, participantID int) (*models.RankingRow, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, row := range r.store.rankings[tournamentID] {
		if row.ParticipantID == participantID {
			copied := *row
			return &copied, nil
		}
	}
	return nil, repositories.ErrRankingRowNotFound
}

// --- qualifier snapshot repository ---

type fakeSnapshotRepo struct{ store *memStore }

func (r *fakeSnapshotRepo) Create(ctx context.Context, exec repositories.SQLExecutor, snapshot *models.QualifierSnapshot) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.snapshots[snapshot.TournamentID]; exists {
		return repositories.ErrSnapshotExists
	}
	snapshot.ID = len(r.store.snapshots) + 1
	snapshot.CreatedAt = time.Now()
	copied := *snapshot
	r.store.snapshots[snapshot.TournamentID] = &copied
	return nil
}

func (r *fakeSnapshotRepo) GetByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (*models.QualifierSnapshot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	snapshot, ok := r.store.snapshots[tournamentID]
	if !ok {
		return nil, repositories.ErrSnapshotNotFound
	}
	copied := *snapshot
	return &copied, nil
}

// --- reward repository ---

type fakeRewardRepo struct{ store *memStore }

func (r *fakeRewardRepo) CreateEntry(ctx context.Context, exec repositories.SQLExecutor, entry *models.RewardLedgerEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.rewardEntries[entry.IdempotencyKey]; exists {
		return repositories.ErrRewardEntryExists
	}
	r.store.nextEntryID++
	entry.ID = r.store.nextEntryID
	entry.CreatedAt = time.Now()
	copied := *entry
	r.store.rewardEntries[entry.IdempotencyKey] = &copied
	return nil
}

func (r *fakeRewardRepo) GetByIdempotencyKey(ctx context.Context, exec repositories.SQLExecutor, key string) (*models.RewardLedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	entry, ok := r.store.rewardEntries[key]
	if !ok {
		return nil, repositories.ErrRewardEntryNotFound
	}
	copied := *entry
	return &copied, nil
}

func (r *fakeRewardRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.RewardLedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]*models.RewardLedgerEntry, 0)
	for _, entry := range r.store.rewardEntries {
		if entry.TournamentID == tournamentID {
			copied := *entry
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRewardRepo) CountByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	entries, _ := r.ListByTournament(ctx, exec, tournamentID)
	return len(entries), nil
}

func (r *fakeRewardRepo) LatestBadgeRank(ctx context.Context, exec repositories.SQLExecutor, tournamentID, participantID int) (*int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var latest *models.RewardLedgerEntry
	for _, entry := range r.store.rewardEntries {
		if entry.TournamentID != tournamentID || entry.ParticipantID != participantID {
			continue
		}
		if entry.Kind != models.RewardBadge || entry.ResolvedRank == nil {
			continue
		}
		if latest == nil || entry.ID > latest.ID {
			latest = entry
		}
	}
	if latest == nil {
		return nil, nil
	}
	rank := *latest.ResolvedRank
	return &rank, nil
}

func (r *fakeRewardRepo) SaveRewardPlan(ctx context.Context, exec repositories.SQLExecutor, plan *models.RewardPlan) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	copied := *plan
	r.store.rewardPlans[plan.TournamentID] = &copied
	return nil
}

func (r *fakeRewardRepo) GetRewardPlan(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (*models.RewardPlan, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	plan, ok := r.store.rewardPlans[tournamentID]
	if !ok {
		return nil, repositories.ErrRewardPlanNotFound
	}
	copied := *plan
	return &copied, nil
}
