package engine

import (
	"context"

	"github.com/garagescholars/garage-tech-stack-sub001/ext"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
	"github.com/garagescholars/garage-tech-stack-sub001/milestone"
	"github.com/garagescholars/garage-tech-stack-sub001/notify"
	"github.com/garagescholars/garage-tech-stack-sub001/scholar"
	"github.com/garagescholars/garage-tech-stack-sub001/sop"
	"github.com/garagescholars/garage-tech-stack-sub001/task"
)

// The subsystem packages define their own emitter interfaces so they never
// import ext; these adapters plug *ext.Registry into them.

var (
	_ sop.Emitter       = sopEmitter{}
	_ task.Emitter      = taskEmitter{}
	_ milestone.Emitter = milestoneEmitter{}
)

type sopEmitter struct{ r *ext.Registry }

func (a sopEmitter) SopGenerated(ctx context.Context, j *job.Job, regenerated bool) {
	a.r.EmitSopGenerated(ctx, j, regenerated)
}

func (a sopEmitter) SopReconciled(ctx context.Context, jobID id.JobID, outcome sop.Outcome, err error) {
	a.r.EmitSopReconciled(ctx, jobID, outcome, err)
}

type taskEmitter struct{ r *ext.Registry }

func (a taskEmitter) TaskProposed(ctx context.Context, j *job.Job, t job.Task) {
	a.r.EmitTaskProposed(ctx, j, t)
}

func (a taskEmitter) TaskDecided(ctx context.Context, j *job.Job, t job.Task, d task.Decision) {
	a.r.EmitTaskDecided(ctx, j, t, d)
}

type milestoneEmitter struct{ r *ext.Registry }

func (a milestoneEmitter) MilestoneReached(ctx context.Context, s *scholar.Scholar, m scholar.Milestone, deliveries []notify.Delivery) {
	a.r.EmitMilestoneReached(ctx, s, m, deliveries)
	for _, d := range deliveries {
		a.r.EmitNotificationDelivered(ctx, "milestone", d)
	}
}
