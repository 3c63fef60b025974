package mongo

import (
	"context"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
)

// CreateScholar inserts a new scholar.
func (s *Store) CreateScholar(ctx context.Context, sc *scholar.Scholar) error {
	m, err := toScholarModel(sc)
	if err != nil {
		return err
	}
	if _, err := s.db.Collection(colScholars).InsertOne(ctx, m); err != nil {
		if isDuplicateKey(err) {
			return fieldwork.ErrScholarExists
		}
		return fmt.Errorf("fieldwork/mongo: create scholar: %w", err)
	}
	return nil
}

// GetScholar retrieves a scholar by ID.
func (s *Store) GetScholar(ctx context.Context, scholarID id.ID) (*scholar.Scholar, error) {
	var m scholarModel
	err := s.db.Collection(colScholars).FindOne(ctx, bson.M{"_id": scholarID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fieldwork.ErrScholarNotFound
		}
		return nil, fmt.Errorf("fieldwork/mongo: get scholar: %w", err)
	}
	return fromScholarModel(&m)
}

// UpdateScholar replaces an existing scholar.
func (s *Store) UpdateScholar(ctx context.Context, sc *scholar.Scholar) error {
	m, err := toScholarModel(sc)
	if err != nil {
		return err
	}
	res, err := s.db.Collection(colScholars).ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("fieldwork/mongo: update scholar: %w", err)
	}
	if res.MatchedCount == 0 {
		return fieldwork.ErrScholarNotFound
	}
	return nil
}

// ListScholars returns every scholar ordered by ID.
func (s *Store) ListScholars(ctx context.Context) ([]*scholar.Scholar, error) {
	cur, err := s.db.Collection(colScholars).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("fieldwork/mongo: list scholars: %w", err)
	}
	var models []scholarModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("fieldwork/mongo: decode scholars: %w", err)
	}
	out := make([]*scholar.Scholar, 0, len(models))
	for i := range models {
		sc, err := fromScholarModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// ListMilestones returns the recorded thresholds for a period, ascending.
func (s *Store) ListMilestones(ctx context.Context, scholarID id.ID, period string) ([]int, error) {
	var m milestoneModel
	err := s.db.Collection(colMilestones).
		FindOne(ctx, bson.M{"_id": milestoneDocID(scholarID.String(), period)}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fieldwork/mongo: list milestones: %w", err)
	}
	slices.Sort(m.Thresholds)
	return m.Thresholds, nil
}

// RecordMilestone adds the threshold to the period document with
// $addToSet. A modified or upserted document means the threshold is new.
func (s *Store) RecordMilestone(ctx context.Context, m scholar.Milestone) (bool, error) {
	sID := m.ScholarID.String()
	filter := bson.M{"_id": milestoneDocID(sID, m.Period)}
	update := bson.M{
		"$addToSet":    bson.M{"thresholds": m.Threshold},
		"$setOnInsert": bson.M{"scholar_id": sID, "period": m.Period},
	}
	opts := options.UpdateOne().SetUpsert(true)

	col := s.db.Collection(colMilestones)
	res, err := col.UpdateOne(ctx, filter, update, opts)
	if isDuplicateKey(err) {
		// Lost a concurrent upsert; the document exists now.
		res, err = col.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return false, fmt.Errorf("fieldwork/mongo: record milestone: %w", err)
	}
	return res.ModifiedCount == 1 || res.UpsertedCount == 1, nil
}
