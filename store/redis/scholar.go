package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
)

// CreateScholar stores a new scholar document.
func (s *Store) CreateScholar(ctx context.Context, sc *scholar.Scholar) error {
	sID := sc.ID.String()
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("fieldwork/redis: marshal scholar: %w", err)
	}
	ok, err := s.client.SetNX(ctx, scholarKey(sID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("fieldwork/redis: create scholar: %w", err)
	}
	if !ok {
		return fieldwork.ErrScholarExists
	}
	if err := s.client.SAdd(ctx, scholarIDsKey, sID).Err(); err != nil {
		return fmt.Errorf("fieldwork/redis: index scholar: %w", err)
	}
	return nil
}

// GetScholar retrieves a scholar by ID.
func (s *Store) GetScholar(ctx context.Context, scholarID id.ID) (*scholar.Scholar, error) {
	return getDoc[scholar.Scholar](ctx, s.client, scholarKey(scholarID.String()), fieldwork.ErrScholarNotFound)
}

// UpdateScholar overwrites an existing scholar document.
func (s *Store) UpdateScholar(ctx context.Context, sc *scholar.Scholar) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("fieldwork/redis: marshal scholar: %w", err)
	}
	ok, err := s.client.SetXX(ctx, scholarKey(sc.ID.String()), data, 0).Result()
	if err != nil {
		return fmt.Errorf("fieldwork/redis: update scholar: %w", err)
	}
	if !ok {
		return fieldwork.ErrScholarNotFound
	}
	return nil
}

// ListScholars returns every scholar ordered by ID.
func (s *Store) ListScholars(ctx context.Context) ([]*scholar.Scholar, error) {
	ids, err := s.client.SMembers(ctx, scholarIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("fieldwork/redis: list scholars smembers: %w", err)
	}
	keys := make([]string, len(ids))
	for i, sID := range ids {
		keys[i] = scholarKey(sID)
	}
	out, err := mgetDocs[scholar.Scholar](ctx, s.client, keys)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID.String() < out[k].ID.String() })
	return out, nil
}

// ListMilestones returns the recorded thresholds for a period, ascending.
func (s *Store) ListMilestones(ctx context.Context, scholarID id.ID, period string) ([]int, error) {
	members, err := s.client.SMembers(ctx, milestoneKey(scholarID.String(), period)).Result()
	if err != nil {
		return nil, fmt.Errorf("fieldwork/redis: list milestones: %w", err)
	}
	out := make([]int, 0, len(members))
	for _, m := range members {
		n, err := strconv.Atoi(m)
		if err != nil {
			return nil, fmt.Errorf("fieldwork/redis: milestone %q: %w", m, err)
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return out, nil
}

// RecordMilestone adds the threshold with a single SADD, which reports
// whether the member was new.
func (s *Store) RecordMilestone(ctx context.Context, m scholar.Milestone) (bool, error) {
	added, err := s.client.SAdd(ctx, milestoneKey(m.ScholarID.String(), m.Period), strconv.Itoa(m.Threshold)).Result()
	if err != nil {
		return false, fmt.Errorf("fieldwork/redis: record milestone: %w", err)
	}
	return added == 1, nil
}
