package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
)

// CreateJob inserts the job with Version 1.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	m, err := toJobModel(j)
	if err != nil {
		return err
	}
	m.Version = 1
	if _, err := s.db.Collection(colJobs).InsertOne(ctx, m); err != nil {
		if isDuplicateKey(err) {
			return fieldwork.ErrJobExists
		}
		return fmt.Errorf("fieldwork/mongo: create job: %w", err)
	}
	j.Version = 1
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	var m jobModel
	err := s.db.Collection(colJobs).FindOne(ctx, bson.M{"_id": jobID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fieldwork.ErrJobNotFound
		}
		return nil, fmt.Errorf("fieldwork/mongo: get job: %w", err)
	}
	return fromJobModel(&m)
}

// UpdateJob writes j when the stored version still equals j.Version.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	m, err := toJobModel(j)
	if err != nil {
		return err
	}
	res, err := s.db.Collection(colJobs).UpdateOne(ctx,
		bson.M{"_id": m.ID, "version": j.Version},
		bson.M{
			"$set": bson.M{
				"status":       m.Status,
				"assignee_id":  m.AssigneeID,
				"completed_at": m.CompletedAt,
				"doc":          m.Doc,
				"updated_at":   m.UpdatedAt,
			},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return fmt.Errorf("fieldwork/mongo: update job: %w", err)
	}
	if res.MatchedCount == 0 {
		if err := s.jobExists(ctx, m.ID); err != nil {
			return err
		}
		return fieldwork.ErrVersionConflict
	}
	j.Version++
	return nil
}

// ClaimJob writes j only while the stored job is posted, unassigned and at
// j.Version. The guards are part of the update filter, so the server
// applies at most one concurrent claim.
func (s *Store) ClaimJob(ctx context.Context, j *job.Job) error {
	m, err := toJobModel(j)
	if err != nil {
		return err
	}
	var updated jobModel
	err = s.db.Collection(colJobs).FindOneAndUpdate(ctx,
		bson.M{
			"_id":         m.ID,
			"status":      string(job.StateApprovedForPosting),
			"assignee_id": "",
			"version":     j.Version,
		},
		bson.M{
			"$set": bson.M{
				"status":      m.Status,
				"assignee_id": m.AssigneeID,
				"doc":         m.Doc,
				"updated_at":  m.UpdatedAt,
			},
			"$inc": bson.M{"version": 1},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if isNoDocuments(err) {
			return s.claimRejected(ctx, m.ID)
		}
		return fmt.Errorf("fieldwork/mongo: claim job: %w", err)
	}
	j.Version = updated.Version
	return nil
}

// ListJobs returns jobs matching opts ordered by ID.
func (s *Store) ListJobs(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if opts.AssigneeID != "" {
		filter["assignee_id"] = opts.AssigneeID
	}
	if !opts.CompletedFrom.IsZero() || !opts.CompletedTo.IsZero() {
		rng := bson.M{"$ne": nil}
		if !opts.CompletedFrom.IsZero() {
			rng["$gte"] = opts.CompletedFrom
		}
		if !opts.CompletedTo.IsZero() {
			rng["$lt"] = opts.CompletedTo
		}
		filter["completed_at"] = rng
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cur, err := s.db.Collection(colJobs).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("fieldwork/mongo: list jobs: %w", err)
	}
	var models []jobModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("fieldwork/mongo: decode jobs: %w", err)
	}

	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, err := fromJobModel(&models[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// changeEvent is the subset of a change stream event the feed reads.
type changeEvent struct {
	OperationType string    `bson:"operationType"`
	FullDocument  *jobModel `bson:"fullDocument"`
}

// WatchJobs opens a change stream on the jobs collection and forwards
// matching changes until ctx is cancelled or the store is closed.
func (s *Store) WatchJobs(ctx context.Context, f job.Filter) (<-chan job.Change, error) {
	if s.isClosed() {
		return nil, fieldwork.ErrStoreClosed
	}
	pipeline := mongod.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace"}}}},
		}}},
	}
	cs, err := s.db.Collection(colJobs).Watch(ctx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, fmt.Errorf("fieldwork/mongo: watch jobs: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-watchCtx.Done():
		}
	}()

	out := make(chan job.Change, 64)
	go func() {
		defer close(out)
		defer cancel()
		defer cs.Close(context.Background()) //nolint:errcheck // best-effort

		for cs.Next(watchCtx) {
			var ev changeEvent
			if err := cs.Decode(&ev); err != nil {
				s.logger.Warn("fieldwork/mongo: decode change", slog.Any("error", err))
				continue
			}
			if ev.FullDocument == nil {
				continue
			}
			j, err := fromJobModel(ev.FullDocument)
			if err != nil {
				s.logger.Warn("fieldwork/mongo: decode changed job", slog.Any("error", err))
				continue
			}
			if !f.Match(j) {
				continue
			}
			op := job.ChangeUpdated
			if ev.OperationType == "insert" {
				op = job.ChangeCreated
			}
			select {
			case out <- job.Change{Op: op, Job: j, At: now()}:
			case <-watchCtx.Done():
				return
			}
		}
		if err := cs.Err(); err != nil && watchCtx.Err() == nil {
			s.logger.Warn("fieldwork/mongo: change stream stopped", slog.Any("error", err))
		}
	}()
	return out, nil
}

// claimRejected explains a claim that matched no document.
func (s *Store) claimRejected(ctx context.Context, jobID string) error {
	var cur jobModel
	err := s.db.Collection(colJobs).FindOne(ctx, bson.M{"_id": jobID},
		options.FindOne().SetProjection(bson.M{"status": 1, "assignee_id": 1})).Decode(&cur)
	if err != nil {
		if isNoDocuments(err) {
			return fieldwork.ErrJobNotFound
		}
		return fmt.Errorf("fieldwork/mongo: check claim: %w", err)
	}
	if cur.Status == string(job.StateApprovedForPosting) && cur.AssigneeID == "" {
		return fieldwork.ErrVersionConflict
	}
	return fieldwork.ErrAlreadyClaimed
}

func (s *Store) jobExists(ctx context.Context, jobID string) error {
	n, err := s.db.Collection(colJobs).CountDocuments(ctx, bson.M{"_id": jobID},
		options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("fieldwork/mongo: check job: %w", err)
	}
	if n == 0 {
		return fieldwork.ErrJobNotFound
	}
	return nil
}
