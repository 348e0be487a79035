//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"canon/internal/proposal/models"
	"canon/internal/proposal/store"
	"canon/internal/storage"
	"canon/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "proposals", "workflow_log")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) seedProposal(id, code string, state models.State) {
	_, err := s.postgres.DB.Exec(
		`INSERT INTO proposals (id, code, state) VALUES ($1, $2, $3)`,
		id, code, string(state))
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestGetAndSetState() {
	ctx := context.Background()
	s.seedProposal("p1", "DT-001", models.StateDraft)

	got, err := s.store.Get(ctx, "p1")
	s.Require().NoError(err)
	s.Equal(models.StateDraft, got.State)

	s.Require().NoError(s.store.SetState(ctx, "p1", models.StateFacultyReview))

	got, err = s.store.Get(ctx, "p1")
	s.Require().NoError(err)
	s.Equal(models.StateFacultyReview, got.State)
}

func (s *PostgresStoreSuite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), uuid.NewString())
	s.Require().ErrorIs(err, storage.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSetStateMissing() {
	err := s.store.SetState(context.Background(), uuid.NewString(), models.StateApproved)
	s.Require().ErrorIs(err, storage.ErrNotFound)
}

func (s *PostgresStoreSuite) TestAppendAssignsSeqAndOrders() {
	ctx := context.Background()
	s.seedProposal("p1", "DT-001", models.StateDraft)

	base := time.Now().UTC().Truncate(time.Microsecond)

	// Insert out of chronological order; reads must come back sorted.
	later := &models.TransitionEvent{
		ProposalID: "p1", Action: "SUBMIT",
		FromState: models.StateDraft, ToState: models.StateFacultyReview,
		OccurredAt: base.Add(time.Hour),
	}
	earlier := &models.TransitionEvent{
		ProposalID: "p1", Action: "CREATE",
		ToState: models.StateDraft, OccurredAt: base,
	}
	s.Require().NoError(s.store.Append(ctx, later))
	s.Require().NoError(s.store.Append(ctx, earlier))
	s.Greater(earlier.Seq, later.Seq)

	events, err := s.store.ListByProposal(ctx, "p1")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal("CREATE", events[0].Action)
	s.Equal("SUBMIT", events[1].Action)

	latest, err := s.store.Latest(ctx, "p1")
	s.Require().NoError(err)
	s.Equal("SUBMIT", latest.Action)
}

func (s *PostgresStoreSuite) TestSeqBreaksTimestampTies() {
	ctx := context.Background()
	s.seedProposal("p1", "DT-001", models.StateDraft)

	at := time.Now().UTC().Truncate(time.Microsecond)
	first := &models.TransitionEvent{ProposalID: "p1", Action: "CREATE", ToState: models.StateDraft, OccurredAt: at}
	second := &models.TransitionEvent{ProposalID: "p1", Action: "SUBMIT", ToState: models.StateFacultyReview, OccurredAt: at}
	s.Require().NoError(s.store.Append(ctx, first))
	s.Require().NoError(s.store.Append(ctx, second))

	events, err := s.store.ListByProposal(ctx, "p1")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal("CREATE", events[0].Action)
	s.Equal("SUBMIT", events[1].Action)
}

func (s *PostgresStoreSuite) TestLatestEmptyLog() {
	_, err := s.store.Latest(context.Background(), "p-empty")
	s.Require().ErrorIs(err, storage.ErrNotFound)
}

func (s *PostgresStoreSuite) TestConcurrentAppends() {
	ctx := context.Background()
	s.seedProposal("p1", "DT-001", models.StateDraft)

	const goroutines = 20
	var wg sync.WaitGroup
	at := time.Now().UTC()

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := &models.TransitionEvent{
				ProposalID: "p1", Action: "SUBMIT",
				ToState: models.StateFacultyReview, OccurredAt: at,
			}
			s.Require().NoError(s.store.Append(ctx, e))
		}()
	}
	wg.Wait()

	events, err := s.store.ListByProposal(ctx, "p1")
	s.Require().NoError(err)
	s.Require().Len(events, goroutines)

	seen := make(map[int64]bool, goroutines)
	for _, e := range events {
		s.False(seen[e.Seq], "duplicate seq %d", e.Seq)
		seen[e.Seq] = true
	}
}
