package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"canon/internal/proposal/models"
	"canon/internal/storage"
)

// InMemoryStore keeps proposals and their transition logs in process memory.
// It backs unit tests and local development; production wiring uses the
// postgres implementation.
type InMemoryStore struct {
	mu        sync.RWMutex
	proposals map[string]*models.Proposal
	logs      map[string][]models.TransitionEvent
	nextSeq   int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		proposals: make(map[string]*models.Proposal),
		logs:      make(map[string][]models.TransitionEvent),
	}
}

// Clear drops all proposals and logs.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals = make(map[string]*models.Proposal)
	s.logs = make(map[string][]models.TransitionEvent)
}

// Put inserts or replaces a proposal. Used by tests and seed data; the
// reconciliation core itself only reads and calls SetState.
func (s *InMemoryStore) Put(_ context.Context, p models.Proposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.proposals[p.ID] = &cp
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*models.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]models.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *InMemoryStore) SetState(_ context.Context, id string, state models.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.State = state
	return nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.proposals), nil
}

// Append assigns the event an ID (when absent) and the next sequence number,
// then appends it to the proposal's log. Events are never mutated afterwards.
func (s *InMemoryStore) Append(_ context.Context, event *models.TransitionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	s.nextSeq++
	event.Seq = s.nextSeq
	s.logs[event.ProposalID] = append(s.logs[event.ProposalID], *event)
	return nil
}

// ListByProposal returns the proposal's events ordered by
// (occurred_at, seq) ascending, regardless of append order.
func (s *InMemoryStore) ListByProposal(_ context.Context, proposalID string) ([]models.TransitionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := append([]models.TransitionEvent{}, s.logs[proposalID]...)
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].OccurredAt.Before(events[j].OccurredAt)
		}
		return events[i].Seq < events[j].Seq
	})
	return events, nil
}

func (s *InMemoryStore) Latest(ctx context.Context, proposalID string) (*models.TransitionEvent, error) {
	events, err := s.ListByProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, storage.ErrNotFound
	}
	last := events[len(events)-1]
	return &last, nil
}
