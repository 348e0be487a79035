package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"canon/internal/proposal/models"
	"canon/internal/storage"
)

// PostgresStore persists proposals and the workflow log in PostgreSQL via
// database/sql and lib/pq. The workflow_log table is append-only: the store
// exposes no update or delete for it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Proposal, error) {
	var p models.Proposal
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, state FROM proposals WHERE id = $1`, id,
	).Scan(&p.ID, &p.Code, &p.State)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query proposal: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Proposal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, state FROM proposals ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query proposals: %w", err)
	}
	defer rows.Close()

	var out []models.Proposal
	for rows.Next() {
		var p models.Proposal
		if err := rows.Scan(&p.ID, &p.Code, &p.State); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposals: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SetState(ctx context.Context, id string, state models.State) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE proposals SET state = $2 WHERE id = $1`, id, string(state))
	if err != nil {
		return fmt.Errorf("update proposal state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update proposal state: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM proposals`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count proposals: %w", err)
	}
	return n, nil
}

// Append inserts one workflow log row. The seq column is a bigserial so the
// database assigns the tie-breaking sequence; the assigned value is read
// back into the event.
func (s *PostgresStore) Append(ctx context.Context, event *models.TransitionEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO workflow_log (
			id, proposal_id, action, from_state, to_state,
			actor_id, actor_name, comment, occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`,
		event.ID,
		event.ProposalID,
		event.Action,
		string(event.FromState),
		string(event.ToState),
		event.ActorID,
		event.ActorName,
		event.Comment,
		event.OccurredAt,
	).Scan(&event.Seq)
	if err != nil {
		return fmt.Errorf("insert workflow log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByProposal(ctx context.Context, proposalID string) ([]models.TransitionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, proposal_id, action, from_state, to_state,
		       actor_id, actor_name, comment, occurred_at, seq
		FROM workflow_log
		WHERE proposal_id = $1
		ORDER BY occurred_at ASC, seq ASC
	`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("query workflow log: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *PostgresStore) Latest(ctx context.Context, proposalID string) (*models.TransitionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, proposal_id, action, from_state, to_state,
		       actor_id, actor_name, comment, occurred_at, seq
		FROM workflow_log
		WHERE proposal_id = $1
		ORDER BY occurred_at DESC, seq DESC
		LIMIT 1
	`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("query latest workflow log: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, storage.ErrNotFound
	}
	return &events[0], nil
}

func scanEvents(rows *sql.Rows) ([]models.TransitionEvent, error) {
	var events []models.TransitionEvent
	for rows.Next() {
		var e models.TransitionEvent
		err := rows.Scan(
			&e.ID,
			&e.ProposalID,
			&e.Action,
			&e.FromState,
			&e.ToState,
			&e.ActorID,
			&e.ActorName,
			&e.Comment,
			&e.OccurredAt,
			&e.Seq,
		)
		if err != nil {
			return nil, fmt.Errorf("scan workflow log: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflow log: %w", err)
	}
	return events, nil
}
