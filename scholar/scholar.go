// Package scholar defines the field worker entity, milestone records and
// their store interface.
package scholar

import (
	"context"
	"fmt"
	"time"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
)

// Scholar is a field worker.
type Scholar struct {
	fieldwork.Entity

	ID          id.ID  `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Email       string `json:"email,omitempty"`
	// MonthlyGoal is the earnings goal for one goal period, in cents.
	MonthlyGoal int64 `json:"monthly_goal"`
}

// Milestone records a threshold already broadcast for a scholar in a period.
type Milestone struct {
	ScholarID  id.ID     `json:"scholar_id"`
	Period     string    `json:"period"`
	Threshold  int       `json:"threshold"`
	AchievedAt time.Time `json:"achieved_at"`
}

// Period returns the goal period containing t, e.g. "2026-10".
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// PeriodBounds returns the [start, end) instants of a goal period.
func PeriodBounds(period string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01", period)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("scholar: parse period %q: %w", period, err)
	}
	return start, start.AddDate(0, 1, 0), nil
}

// Store defines the persistence contract for scholars and their milestones.
type Store interface {
	// CreateScholar persists a new scholar.
	CreateScholar(ctx context.Context, s *Scholar) error

	// GetScholar retrieves a scholar by ID.
	GetScholar(ctx context.Context, scholarID id.ID) (*Scholar, error)

	// UpdateScholar persists changes to an existing scholar.
	UpdateScholar(ctx context.Context, s *Scholar) error

	// ListScholars returns every scholar ordered by creation time.
	ListScholars(ctx context.Context) ([]*Scholar, error)

	// ListMilestones returns the thresholds recorded for a scholar in a
	// goal period, ascending.
	ListMilestones(ctx context.Context, scholarID id.ID, period string) ([]int, error)

	// RecordMilestone atomically adds threshold to the scholar's set for the
	// period. It reports false when the threshold was already present.
	RecordMilestone(ctx context.Context, m Milestone) (bool, error)
}
