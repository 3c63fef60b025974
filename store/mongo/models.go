package mongo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/payout"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
)

// ── Job model ─────────────────────────────────────────────────────

// jobModel lifts the queried fields out of the JSON document. Version is
// authoritative over the copy inside Doc.
type jobModel struct {
	ID          string     `bson:"_id"`
	Status      string     `bson:"status"`
	AssigneeID  string     `bson:"assignee_id"`
	CompletedAt *time.Time `bson:"completed_at,omitempty"`
	Version     int64      `bson:"version"`
	Doc         string     `bson:"doc"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func toJobModel(j *job.Job) (*jobModel, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("fieldwork/mongo: marshal job: %w", err)
	}
	return &jobModel{
		ID:          j.ID.String(),
		Status:      string(j.Status),
		AssigneeID:  j.AssigneeID,
		CompletedAt: j.CompletedAt,
		Version:     j.Version,
		Doc:         string(data),
		UpdatedAt:   j.UpdatedAt,
	}, nil
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	var j job.Job
	if err := json.Unmarshal([]byte(m.Doc), &j); err != nil {
		return nil, fmt.Errorf("fieldwork/mongo: unmarshal job %s: %w", m.ID, err)
	}
	j.Version = m.Version
	return &j, nil
}

// ── Scholar model ─────────────────────────────────────────────────

type scholarModel struct {
	ID  string `bson:"_id"`
	Doc string `bson:"doc"`
}

func toScholarModel(sc *scholar.Scholar) (*scholarModel, error) {
	data, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("fieldwork/mongo: marshal scholar: %w", err)
	}
	return &scholarModel{ID: sc.ID.String(), Doc: string(data)}, nil
}

func fromScholarModel(m *scholarModel) (*scholar.Scholar, error) {
	var sc scholar.Scholar
	if err := json.Unmarshal([]byte(m.Doc), &sc); err != nil {
		return nil, fmt.Errorf("fieldwork/mongo: unmarshal scholar %s: %w", m.ID, err)
	}
	return &sc, nil
}

// ── Milestone model ───────────────────────────────────────────────

// milestoneModel holds every threshold a scholar reached in one period.
type milestoneModel struct {
	ID         string `bson:"_id"`
	ScholarID  string `bson:"scholar_id"`
	Period     string `bson:"period"`
	Thresholds []int  `bson:"thresholds"`
}

func milestoneDocID(scholarID, period string) string {
	return scholarID + ":" + period
}

// ── Payout model ──────────────────────────────────────────────────

type payoutModel struct {
	ID    string `bson:"_id"`
	JobID string `bson:"job_id"`
	Type  string `bson:"type"`
	Doc   string `bson:"doc"`
}

func toPayoutModel(p *payout.Payout) (*payoutModel, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("fieldwork/mongo: marshal payout: %w", err)
	}
	return &payoutModel{
		ID:    p.ID.String(),
		JobID: p.JobID.String(),
		Type:  string(p.Type),
		Doc:   string(data),
	}, nil
}

func fromPayoutModel(m *payoutModel) (*payout.Payout, error) {
	var p payout.Payout
	if err := json.Unmarshal([]byte(m.Doc), &p); err != nil {
		return nil, fmt.Errorf("fieldwork/mongo: unmarshal payout %s: %w", m.ID, err)
	}
	return &p, nil
}
