package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
)

// CreateScholar inserts a new scholar document.
func (s *Store) CreateScholar(ctx context.Context, sc *scholar.Scholar) error {
	doc, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("fieldwork/postgres: marshal scholar: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO fieldwork_scholars (id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4)`,
		sc.ID.String(), doc, sc.CreatedAt, sc.UpdatedAt,
	)
	if err != nil {
		return storeErr("create scholar", err, nil, fieldwork.ErrScholarExists)
	}
	return nil
}

// GetScholar retrieves a scholar by ID.
func (s *Store) GetScholar(ctx context.Context, scholarID id.ID) (*scholar.Scholar, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM fieldwork_scholars WHERE id = $1`,
		scholarID.String(),
	).Scan(&doc)
	if err != nil {
		return nil, storeErr("get scholar", err, fieldwork.ErrScholarNotFound, nil)
	}
	return decodeScholar(doc)
}

// UpdateScholar overwrites an existing scholar document.
func (s *Store) UpdateScholar(ctx context.Context, sc *scholar.Scholar) error {
	doc, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("fieldwork/postgres: marshal scholar: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE fieldwork_scholars SET doc = $2, updated_at = $3 WHERE id = $1`,
		sc.ID.String(), doc, sc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("fieldwork/postgres: update scholar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fieldwork.ErrScholarNotFound
	}
	return nil
}

// ListScholars returns every scholar ordered by ID.
func (s *Store) ListScholars(ctx context.Context) ([]*scholar.Scholar, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM fieldwork_scholars ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("fieldwork/postgres: list scholars: %w", err)
	}
	defer rows.Close()

	var out []*scholar.Scholar
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("fieldwork/postgres: scan scholar: %w", err)
		}
		sc, err := decodeScholar(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ListMilestones returns the recorded thresholds for a period, ascending.
func (s *Store) ListMilestones(ctx context.Context, scholarID id.ID, period string) ([]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT threshold FROM fieldwork_milestones
		WHERE scholar_id = $1 AND period = $2
		ORDER BY threshold ASC`,
		scholarID.String(), period,
	)
	if err != nil {
		return nil, fmt.Errorf("fieldwork/postgres: list milestones: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("fieldwork/postgres: scan milestone: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// RecordMilestone inserts the milestone unless it is already recorded.
func (s *Store) RecordMilestone(ctx context.Context, m scholar.Milestone) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO fieldwork_milestones (scholar_id, period, threshold, achieved_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scholar_id, period, threshold) DO NOTHING`,
		m.ScholarID.String(), m.Period, m.Threshold, m.AchievedAt,
	)
	if err != nil {
		return false, fmt.Errorf("fieldwork/postgres: record milestone: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func decodeScholar(doc []byte) (*scholar.Scholar, error) {
	var sc scholar.Scholar
	if err := json.Unmarshal(doc, &sc); err != nil {
		return nil, fmt.Errorf("fieldwork/postgres: unmarshal scholar: %w", err)
	}
	return &sc, nil
}
