package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/payout"
)

// CreatePayout claims the job's slot for the payout type, then stores the
// payout document.
func (s *Store) CreatePayout(ctx context.Context, p *payout.Payout) error {
	pID := p.ID.String()
	jID := p.JobID.String()
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("fieldwork/redis: marshal payout: %w", err)
	}
	ok, err := s.client.SetNX(ctx, payoutSlotKey(jID, string(p.Type)), pID, 0).Result()
	if err != nil {
		return fmt.Errorf("fieldwork/redis: reserve payout slot: %w", err)
	}
	if !ok {
		return fieldwork.ErrPayoutExists
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, payoutKey(pID), data, 0)
		pipe.SAdd(ctx, jobPayoutsKey(jID), pID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("fieldwork/redis: create payout: %w", err)
	}
	return nil
}

// GetPayout retrieves a payout by ID.
func (s *Store) GetPayout(ctx context.Context, payoutID id.ID) (*payout.Payout, error) {
	return getDoc[payout.Payout](ctx, s.client, payoutKey(payoutID.String()), fieldwork.ErrPayoutNotFound)
}

// ListPayouts returns a job's payouts, first half first.
func (s *Store) ListPayouts(ctx context.Context, jobID id.JobID) ([]*payout.Payout, error) {
	ids, err := s.client.SMembers(ctx, jobPayoutsKey(jobID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("fieldwork/redis: list payouts smembers: %w", err)
	}
	keys := make([]string, len(ids))
	for i, pID := range ids {
		keys[i] = payoutKey(pID)
	}
	out, err := mgetDocs[payout.Payout](ctx, s.client, keys)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Type < out[k].Type })
	return out, nil
}

// UpdatePayout overwrites an existing payout document.
func (s *Store) UpdatePayout(ctx context.Context, p *payout.Payout) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("fieldwork/redis: marshal payout: %w", err)
	}
	ok, err := s.client.SetXX(ctx, payoutKey(p.ID.String()), data, 0).Result()
	if err != nil {
		return fmt.Errorf("fieldwork/redis: update payout: %w", err)
	}
	if !ok {
		return fieldwork.ErrPayoutNotFound
	}
	return nil
}
