package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
)

// CreateJob stores the job document with Version 1.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	cp := *j
	cp.Version = 1
	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("fieldwork/redis: marshal job: %w", err)
	}
	ok, err := s.client.SetNX(ctx, jobKey(jID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("fieldwork/redis: create job: %w", err)
	}
	if !ok {
		return fieldwork.ErrJobExists
	}
	if err := s.client.SAdd(ctx, jobIDsKey, jID).Err(); err != nil {
		return fmt.Errorf("fieldwork/redis: index job: %w", err)
	}
	j.Version = 1
	s.publish(ctx, job.ChangeCreated, j)
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return getDoc[job.Job](ctx, s.client, jobKey(jobID.String()), fieldwork.ErrJobNotFound)
}

// UpdateJob writes j if the stored version still equals j.Version. The key
// is WATCHed between the version check and the write, so a concurrent
// writer aborts the transaction.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	key := jobKey(j.ID.String())
	next := j.Version + 1
	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		cur, err := getDoc[job.Job](ctx, tx, key, fieldwork.ErrJobNotFound)
		if err != nil {
			return err
		}
		if cur.Version != j.Version {
			return fieldwork.ErrVersionConflict
		}
		return writeJob(ctx, tx, key, j, next)
	}, key)
	if errors.Is(err, goredis.TxFailedErr) {
		return fieldwork.ErrVersionConflict
	}
	if err != nil {
		return err
	}
	j.Version = next
	s.publish(ctx, job.ChangeUpdated, j)
	return nil
}

// ClaimJob writes j only while the stored job is posted, unassigned and at
// j.Version. An aborted transaction is retried so that the stored state,
// not the abort, decides the outcome.
func (s *Store) ClaimJob(ctx context.Context, j *job.Job) error {
	key := jobKey(j.ID.String())
	var next int64
	txf := func(tx *goredis.Tx) error {
		cur, err := getDoc[job.Job](ctx, tx, key, fieldwork.ErrJobNotFound)
		if err != nil {
			return err
		}
		if cur.Status != job.StateApprovedForPosting || cur.AssigneeID != "" {
			return fieldwork.ErrAlreadyClaimed
		}
		if cur.Version != j.Version {
			return fieldwork.ErrVersionConflict
		}
		next = cur.Version + 1
		return writeJob(ctx, tx, key, j, next)
	}

	for range defaultTxAttempts {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return err
		}
		j.Version = next
		s.publish(ctx, job.ChangeUpdated, j)
		return nil
	}
	return fieldwork.ErrVersionConflict
}

func writeJob(ctx context.Context, tx *goredis.Tx, key string, j *job.Job, version int64) error {
	cp := *j
	cp.Version = version
	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("fieldwork/redis: marshal job: %w", err)
	}
	_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, key, data, 0)
		return nil
	})
	return err
}

// ListJobs returns jobs matching opts ordered by ID, which is creation
// order for time-ordered IDs.
func (s *Store) ListJobs(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("fieldwork/redis: list jobs smembers: %w", err)
	}
	keys := make([]string, len(ids))
	for i, jID := range ids {
		keys[i] = jobKey(jID)
	}
	all, err := mgetDocs[job.Job](ctx, s.client, keys)
	if err != nil {
		return nil, err
	}

	jobs := make([]*job.Job, 0, len(all))
	for _, j := range all {
		if opts.Match(j) {
			jobs = append(jobs, j)
		}
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].ID.String() < jobs[k].ID.String() })

	// Apply offset/limit.
	if opts.Offset > 0 {
		if opts.Offset >= len(jobs) {
			return nil, nil
		}
		jobs = jobs[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(jobs) {
		jobs = jobs[:opts.Limit]
	}
	return jobs, nil
}

// WatchJobs subscribes to the change channel and forwards matching changes
// until ctx is cancelled or the store is closed.
func (s *Store) WatchJobs(ctx context.Context, f job.Filter) (<-chan job.Change, error) {
	if s.isClosed() {
		return nil, fieldwork.ErrStoreClosed
	}
	sub := s.client.Subscribe(ctx, changesChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("fieldwork/redis: subscribe: %w", err)
	}

	out := make(chan job.Change, 64)
	go func() {
		defer close(out)
		defer sub.Close() //nolint:errcheck // best-effort unsubscribe
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var c job.Change
				if err := json.Unmarshal([]byte(m.Payload), &c); err != nil {
					s.logger.Warn("fieldwork/redis: malformed change", "error", err)
					continue
				}
				if !f.Match(c.Job) {
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				case <-s.done:
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *Store) publish(ctx context.Context, op job.ChangeOp, j *job.Job) {
	data, err := json.Marshal(job.Change{Op: op, Job: j, At: time.Now().UTC()})
	if err != nil {
		s.logger.Warn("fieldwork/redis: marshal change", "job_id", j.ID.String(), "error", err)
		return
	}
	if err := s.client.Publish(ctx, changesChannel, data).Err(); err != nil {
		s.logger.Warn("fieldwork/redis: publish change", "job_id", j.ID.String(), "error", err)
	}
}

// ── Document helpers ──

func getDoc[T any](ctx context.Context, c goredis.Cmdable, key string, notFound error) (*T, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("fieldwork/redis: get %s: %w", key, err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("fieldwork/redis: unmarshal %s: %w", key, err)
	}
	return &v, nil
}

func mgetDocs[T any](ctx context.Context, c goredis.Cmdable, keys []string) ([]*T, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fieldwork/redis: mget: %w", err)
	}
	out := make([]*T, 0, len(vals))
	for i, raw := range vals {
		str, ok := raw.(string)
		if !ok {
			continue // deleted between SMEMBERS and MGET
		}
		var v T
		if err := json.Unmarshal([]byte(str), &v); err != nil {
			return nil, fmt.Errorf("fieldwork/redis: unmarshal %s: %w", keys[i], err)
		}
		out = append(out, &v)
	}
	return out, nil
}
