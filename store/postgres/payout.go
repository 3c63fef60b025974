package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/payout"
)

// CreatePayout inserts a payout. The (job_id, type) unique constraint
// rejects a second payout of the same half.
func (s *Store) CreatePayout(ctx context.Context, p *payout.Payout) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("fieldwork/postgres: marshal payout: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO fieldwork_payouts (id, job_id, type, doc, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID.String(), p.JobID.String(), string(p.Type), doc, p.CreatedAt,
	)
	if err != nil {
		return storeErr("create payout", err, nil, fieldwork.ErrPayoutExists)
	}
	return nil
}

// GetPayout retrieves a payout by ID.
func (s *Store) GetPayout(ctx context.Context, payoutID id.ID) (*payout.Payout, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM fieldwork_payouts WHERE id = $1`,
		payoutID.String(),
	).Scan(&doc)
	if err != nil {
		return nil, storeErr("get payout", err, fieldwork.ErrPayoutNotFound, nil)
	}
	return decodePayout(doc)
}

// ListPayouts returns a job's payouts, first half first.
func (s *Store) ListPayouts(ctx context.Context, jobID id.JobID) ([]*payout.Payout, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM fieldwork_payouts WHERE job_id = $1 ORDER BY type ASC`,
		jobID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("fieldwork/postgres: list payouts: %w", err)
	}
	defer rows.Close()

	var out []*payout.Payout
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("fieldwork/postgres: scan payout: %w", err)
		}
		p, err := decodePayout(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdatePayout overwrites an existing payout document.
func (s *Store) UpdatePayout(ctx context.Context, p *payout.Payout) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("fieldwork/postgres: marshal payout: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE fieldwork_payouts SET doc = $2 WHERE id = $1`,
		p.ID.String(), doc,
	)
	if err != nil {
		return fmt.Errorf("fieldwork/postgres: update payout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fieldwork.ErrPayoutNotFound
	}
	return nil
}

func decodePayout(doc []byte) (*payout.Payout, error) {
	var p payout.Payout
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("fieldwork/postgres: unmarshal payout: %w", err)
	}
	return &p, nil
}
