package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/payout"
)

// CreatePayout inserts a payout. The unique (job_id, type) index rejects
// a second payout of the same half.
func (s *Store) CreatePayout(ctx context.Context, p *payout.Payout) error {
	m, err := toPayoutModel(p)
	if err != nil {
		return err
	}
	if _, err := s.db.Collection(colPayouts).InsertOne(ctx, m); err != nil {
		if isDuplicateKey(err) {
			return fieldwork.ErrPayoutExists
		}
		return fmt.Errorf("fieldwork/mongo: create payout: %w", err)
	}
	return nil
}

// GetPayout retrieves a payout by ID.
func (s *Store) GetPayout(ctx context.Context, payoutID id.ID) (*payout.Payout, error) {
	var m payoutModel
	err := s.db.Collection(colPayouts).FindOne(ctx, bson.M{"_id": payoutID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fieldwork.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("fieldwork/mongo: get payout: %w", err)
	}
	return fromPayoutModel(&m)
}

// ListPayouts returns a job's payouts, first half first.
func (s *Store) ListPayouts(ctx context.Context, jobID id.JobID) ([]*payout.Payout, error) {
	cur, err := s.db.Collection(colPayouts).Find(ctx, bson.M{"job_id": jobID.String()},
		options.Find().SetSort(bson.D{{Key: "type", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("fieldwork/mongo: list payouts: %w", err)
	}
	var models []payoutModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("fieldwork/mongo: decode payouts: %w", err)
	}
	out := make([]*payout.Payout, 0, len(models))
	for i := range models {
		p, err := fromPayoutModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// UpdatePayout replaces an existing payout.
func (s *Store) UpdatePayout(ctx context.Context, p *payout.Payout) error {
	m, err := toPayoutModel(p)
	if err != nil {
		return err
	}
	res, err := s.db.Collection(colPayouts).ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("fieldwork/mongo: update payout: %w", err)
	}
	if res.MatchedCount == 0 {
		return fieldwork.ErrPayoutNotFound
	}
	return nil
}
