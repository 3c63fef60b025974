package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
)

// CreateJob inserts the job with Version 1.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	doc, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("fieldwork/postgres: marshal job: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO fieldwork_jobs (
			id, status, assignee_id, completed_at, version, doc, created_at, updated_at
		) VALUES ($1, $2, $3, $4, 1, $5, $6, $7)`,
		j.ID.String(), string(j.Status), j.AssigneeID, j.CompletedAt,
		doc, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return storeErr("create job", err, nil, fieldwork.ErrJobExists)
	}
	j.Version = 1
	s.notify(ctx, job.ChangeCreated, j.ID)
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT version, doc FROM fieldwork_jobs WHERE id = $1`,
		jobID.String(),
	)
	j, err := scanJob(row)
	if err != nil {
		return nil, storeErr("get job", err, fieldwork.ErrJobNotFound, nil)
	}
	return j, nil
}

// UpdateJob writes j when the stored version still equals j.Version.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	doc, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("fieldwork/postgres: marshal job: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE fieldwork_jobs
		SET status = $2, assignee_id = $3, completed_at = $4, doc = $5,
			version = version + 1, updated_at = $6
		WHERE id = $1 AND version = $7`,
		j.ID.String(), string(j.Status), j.AssigneeID, j.CompletedAt, doc,
		j.UpdatedAt, j.Version,
	)
	if err != nil {
		return fmt.Errorf("fieldwork/postgres: update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if err := s.jobExists(ctx, j.ID); err != nil {
			return err
		}
		return fieldwork.ErrVersionConflict
	}
	j.Version++
	s.notify(ctx, job.ChangeUpdated, j.ID)
	return nil
}

// ClaimJob writes j only while the stored job is posted, unassigned and at
// j.Version. The guards sit in the WHERE clause, so exactly one concurrent
// claimer updates the row.
func (s *Store) ClaimJob(ctx context.Context, j *job.Job) error {
	doc, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("fieldwork/postgres: marshal job: %w", err)
	}
	var version int64
	err = s.pool.QueryRow(ctx, `
		UPDATE fieldwork_jobs
		SET status = $2, assignee_id = $3, doc = $4,
			version = version + 1, updated_at = $5
		WHERE id = $1 AND status = $6 AND assignee_id = '' AND version = $7
		RETURNING version`,
		j.ID.String(), string(j.Status), j.AssigneeID, doc, j.UpdatedAt,
		string(job.StateApprovedForPosting), j.Version,
	).Scan(&version)
	if err != nil {
		if isNoRows(err) {
			return s.claimRejected(ctx, j.ID)
		}
		return fmt.Errorf("fieldwork/postgres: claim job: %w", err)
	}
	j.Version = version
	s.notify(ctx, job.ChangeUpdated, j.ID)
	return nil
}

// ListJobs returns jobs matching opts ordered by ID.
func (s *Store) ListJobs(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if opts.Status != "" {
		where = append(where, "status = "+arg(string(opts.Status)))
	}
	if opts.AssigneeID != "" {
		where = append(where, "assignee_id = "+arg(opts.AssigneeID))
	}
	if !opts.CompletedFrom.IsZero() {
		where = append(where, "completed_at >= "+arg(opts.CompletedFrom))
	}
	if !opts.CompletedTo.IsZero() {
		where = append(where, "completed_at < "+arg(opts.CompletedTo))
	}

	query := `SELECT version, doc FROM fieldwork_jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"
	if opts.Limit > 0 {
		query += " LIMIT " + arg(opts.Limit)
	}
	if opts.Offset > 0 {
		query += " OFFSET " + arg(opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fieldwork/postgres: list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("fieldwork/postgres: scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// WatchJobs holds a dedicated connection in LISTEN mode and forwards
// matching changes until ctx is cancelled or the store is closed.
// Notifications carry only the operation and job id, so each change is
// read back before filtering.
func (s *Store) WatchJobs(ctx context.Context, f job.Filter) (<-chan job.Change, error) {
	if s.isClosed() {
		return nil, fieldwork.ErrStoreClosed
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("fieldwork/postgres: acquire listener: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+changesChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("fieldwork/postgres: listen: %w", err)
	}

	listenCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-listenCtx.Done():
		}
	}()

	out := make(chan job.Change, 64)
	go func() {
		defer close(out)
		defer cancel()
		// The connection may be mid-wait when cancelled; closing it is
		// cheaper than restoring it to a clean state.
		defer func() {
			_ = conn.Conn().Close(context.Background())
			conn.Release()
		}()

		for {
			n, err := conn.Conn().WaitForNotification(listenCtx)
			if err != nil {
				if listenCtx.Err() == nil {
					s.logger.Warn("fieldwork/postgres: change feed stopped", "error", err)
				}
				return
			}
			op, jobID, ok := parseNotification(n.Payload)
			if !ok {
				s.logger.Warn("fieldwork/postgres: malformed change", "payload", n.Payload)
				continue
			}
			j, err := s.GetJob(listenCtx, jobID)
			if err != nil {
				s.logger.Warn("fieldwork/postgres: read changed job", "job_id", jobID.String(), "error", err)
				continue
			}
			if !f.Match(j) {
				continue
			}
			select {
			case out <- job.Change{Op: op, Job: j, At: time.Now().UTC()}:
			case <-listenCtx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *Store) notify(ctx context.Context, op job.ChangeOp, jobID id.JobID) {
	_, err := s.pool.Exec(ctx,
		`SELECT pg_notify($1, $2)`,
		changesChannel, string(op)+":"+jobID.String(),
	)
	if err != nil {
		// The write is committed; only feed subscribers miss this change.
		s.logger.Warn("failed to notify job change subscribers",
			"job_id", jobID.String(), "error", err)
	}
}

func parseNotification(payload string) (job.ChangeOp, id.JobID, bool) {
	op, raw, ok := strings.Cut(payload, ":")
	if !ok {
		return "", id.Nil, false
	}
	jobID, err := id.ParseJobID(raw)
	if err != nil {
		return "", id.Nil, false
	}
	return job.ChangeOp(op), jobID, true
}

// claimRejected explains a claim that matched no row.
func (s *Store) claimRejected(ctx context.Context, jobID id.JobID) error {
	var status, assignee string
	err := s.pool.QueryRow(ctx,
		`SELECT status, assignee_id FROM fieldwork_jobs WHERE id = $1`,
		jobID.String(),
	).Scan(&status, &assignee)
	if err != nil {
		if isNoRows(err) {
			return fieldwork.ErrJobNotFound
		}
		return fmt.Errorf("fieldwork/postgres: check claim: %w", err)
	}
	if status == string(job.StateApprovedForPosting) && assignee == "" {
		return fieldwork.ErrVersionConflict
	}
	return fieldwork.ErrAlreadyClaimed
}

func (s *Store) jobExists(ctx context.Context, jobID id.JobID) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM fieldwork_jobs WHERE id = $1)`,
		jobID.String(),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("fieldwork/postgres: check job: %w", err)
	}
	if !exists {
		return fieldwork.ErrJobNotFound
	}
	return nil
}

// scanJob decodes a (version, doc) row. The version column is
// authoritative over the copy inside the document.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		version int64
		doc     []byte
	)
	if err := row.Scan(&version, &doc); err != nil {
		return nil, err
	}
	var j job.Job
	if err := json.Unmarshal(doc, &j); err != nil {
		return nil, fmt.Errorf("fieldwork/postgres: unmarshal job: %w", err)
	}
	j.Version = version
	return &j, nil
}
