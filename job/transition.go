package job

import (
	"fmt"
	"strings"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
)

// edges lists the states each action may be applied from.
var edges = map[Action][]State{
	ActionGenerate:       {StateLead},
	ActionRollback:       {StateSopNeedsReview, StateLead},
	ActionApproveSop:     {StateSopNeedsReview},
	ActionClaim:          {StateApprovedForPosting},
	ActionAssign:         {StateApprovedForPosting, StateUpcoming},
	ActionReschedule:     {StateApprovedForPosting, StateUpcoming},
	ActionCheckIn:        {StateUpcoming, StateChangesRequested},
	ActionCheckOut:       {StateInProgress},
	ActionRequestChanges: {StateReviewPending},
	ActionDisqualify:     {StateUpcoming, StateInProgress, StateChangesRequested},
	ActionApproveAndPay:  {StateReviewPending},
	ActionCancel: {
		StateLead, StateSopNeedsReview, StateApprovedForPosting, StateUpcoming,
		StateInProgress, StateReviewPending, StateChangesRequested,
	},
}

// privileged actions require an admin or system actor.
var privileged = map[Action]bool{
	ActionGenerate:       true,
	ActionRollback:       true,
	ActionApproveSop:     true,
	ActionAssign:         true,
	ActionReschedule:     true,
	ActionRequestChanges: true,
	ActionDisqualify:     true,
	ActionApproveAndPay:  true,
	ActionCancel:         true,
}

// DefaultChecklist is used when an approved document yields no phases.
var DefaultChecklist = []string{"Check in", "Check out"}

// Allowed reports whether action has an edge out of state.
func Allowed(state State, action Action) bool {
	for _, s := range edges[action] {
		if s == state {
			return true
		}
	}
	return false
}

// Privileged reports whether action is restricted to admin or system actors.
func Privileged(action Action) bool { return privileged[action] }

// Transition applies cmd to j and returns the next job together with the
// side effects the caller must execute. j is never modified. A nil effect
// list with a nil error means the command was an idempotent no-op.
//
// Authorization is checked first, then the edge, then action guards, so a
// rejected command never yields a partially applied job.
func Transition(j *Job, cmd Command) (*Job, []Effect, error) {
	if _, ok := edges[cmd.Action]; !ok {
		return nil, nil, fieldwork.NewGuardError(string(cmd.Action), "action", string(j.Status),
			fmt.Sprintf("unknown action %q", cmd.Action))
	}
	if privileged[cmd.Action] && !cmd.Actor.Privileged() {
		return nil, nil, fieldwork.NewAuthError(string(cmd.Action), cmd.Actor.Role)
	}
	if cmd.Action == ActionClaim {
		if cmd.Actor.Role != fieldwork.RoleScholar {
			return nil, nil, fieldwork.NewAuthError(string(cmd.Action), cmd.Actor.Role)
		}
		if j.AssigneeID != "" && !j.Status.Terminal() {
			return nil, nil, fieldwork.ErrAlreadyClaimed
		}
	}
	if !Allowed(j.Status, cmd.Action) {
		return nil, nil, fieldwork.NewTransitionError(string(cmd.Action), string(j.Status))
	}

	next := j.Clone()
	from := j.Status
	var effects []Effect
	var note string

	guard := func(name, reason string) error {
		return fieldwork.NewGuardError(string(cmd.Action), name, string(from), reason)
	}

	switch cmd.Action {
	case ActionGenerate:
		f := cmd.Payload.Form
		if f == nil {
			return nil, nil, guard("form", "conversion form is required")
		}
		if err := f.Validate(); err != nil {
			return nil, nil, err
		}
		next.ScheduledFor = f.ScheduledFor
		next.TimeWindow = f.TimeWindow
		next.Package = f.Package
		next.ProductSelections = renderLineItems(f.ProductSelections)
		next.ShelvingSelections = renderLineItems(f.ShelvingSelections)
		next.AddOns = renderLineItems(f.AddOns)
		next.Payout = f.Payout
		next.ClientPrice = f.ClientPrice
		next.AccessNotes = f.AccessNotes
		next.GeneratedSop = ""
		next.Status = StateSopNeedsReview

	case ActionRollback:
		if from == StateLead {
			if j.GeneratedSop == "" {
				return j.Clone(), nil, nil
			}
			next.GeneratedSop = ""
			next.UpdatedAt = cmd.At
			return next, []Effect{persist()}, nil
		}
		next.GeneratedSop = ""
		next.Status = StateLead
		note = cmd.Payload.Notes

	case ActionApproveSop:
		text := strings.TrimSpace(cmd.Payload.FinalText)
		if text == "" {
			return nil, nil, guard("document", "final document text is required")
		}
		items := cmd.Payload.Checklist
		if len(items) == 0 {
			items = DefaultChecklist
		}
		at := cmd.At
		next.Checklist = make([]Task, 0, len(items))
		for _, item := range items {
			next.Checklist = append(next.Checklist, Task{
				ID:             id.NewTaskID(),
				Text:           item,
				ApprovalStatus: ApprovalApproved,
				ApprovedBy:     cmd.Actor.ID,
				ApprovedAt:     &at,
			})
		}
		next.GeneratedSop = text
		next.SopApprovedBy = cmd.Actor.ID
		next.SopApprovedAt = &at
		next.Status = StateApprovedForPosting

	case ActionClaim:
		at := cmd.At
		next.AssigneeID = cmd.Actor.ID
		next.ClaimedAt = &at
		next.Status = StateUpcoming
		effects = append(effects, notifyAdmins(fmt.Sprintf("Job for %s was claimed by %s", j.ClientName, cmd.Actor.ID)))

	case ActionAssign:
		target := strings.TrimSpace(cmd.Payload.AssigneeID)
		if target == "" {
			return nil, nil, guard("assignee", "assignee is required")
		}
		if target == j.AssigneeID {
			return nil, nil, guard("assignee", "job is already assigned to "+target)
		}
		at := cmd.At
		if j.AssigneeID != "" {
			effects = append(effects, notifyScholar(j.AssigneeID,
				fmt.Sprintf("The job for %s has been transferred to another scholar.", j.ClientName)))
			note = "transferred from " + j.AssigneeID
		}
		next.AssigneeID = target
		next.ClaimedAt = &at
		next.Status = StateUpcoming
		effects = append(effects, notifyScholar(target,
			fmt.Sprintf("You have been assigned the job for %s.", j.ClientName)))

	case ActionReschedule:
		if cmd.Payload.ScheduledFor.IsZero() {
			return nil, nil, guard("schedule", "scheduled date is required")
		}
		next.ScheduledFor = cmd.Payload.ScheduledFor
		if cmd.Payload.TimeWindow != "" {
			next.TimeWindow = cmd.Payload.TimeWindow
		}
		if j.AssigneeID != "" {
			effects = append(effects, notifyScholar(j.AssigneeID,
				fmt.Sprintf("The job for %s was rescheduled to %s %s.", j.ClientName,
					next.ScheduledFor.Format("2006-01-02"), next.TimeWindow)))
		}

	case ActionCheckIn:
		if !j.IsAssignee(cmd.Actor.ID) {
			return nil, nil, guard("assignee", "only the assigned scholar may check in")
		}
		at := cmd.At
		next.CheckInAt = &at
		if cmd.Payload.PhotoPath != "" {
			next.CheckInPhotoPath = cmd.Payload.PhotoPath
		}
		next.Status = StateInProgress

	case ActionCheckOut:
		if !j.IsAssignee(cmd.Actor.ID) {
			return nil, nil, guard("assignee", "only the assigned scholar may check out")
		}
		if cmd.Payload.PhotoPath == "" || cmd.Payload.VideoPath == "" {
			return nil, nil, guard("media", "check-out requires both a photo and a video")
		}
		at := cmd.At
		next.CheckOutAt = &at
		next.CheckOutPhotoPath = cmd.Payload.PhotoPath
		next.CheckOutVideoPath = cmd.Payload.VideoPath
		next.Status = StateReviewPending
		effects = append(effects, notifyAdmins(fmt.Sprintf("Job for %s is ready for review.", j.ClientName)))

	case ActionRequestChanges:
		next.ReviewNotes = cmd.Payload.Notes
		next.Status = StateChangesRequested
		note = cmd.Payload.Notes
		effects = append(effects, notifyScholar(j.AssigneeID,
			fmt.Sprintf("Changes were requested on the job for %s: %s", j.ClientName, cmd.Payload.Notes)))

	case ActionDisqualify:
		reason := strings.TrimSpace(cmd.Payload.Reason)
		if reason == "" {
			return nil, nil, guard("reason", "a disqualification reason is required")
		}
		next.AssigneeID = ""
		next.ClaimedAt = nil
		next.CheckInAt = nil
		next.CheckInPhotoPath = ""
		next.CheckOutAt = nil
		next.CheckOutPhotoPath = ""
		next.CheckOutVideoPath = ""
		next.Status = StateApprovedForPosting
		note = reason
		effects = append(effects, notifyScholar(j.AssigneeID,
			fmt.Sprintf("You have been removed from the job for %s. Reason: %s", j.ClientName, reason)))

	case ActionApproveAndPay:
		if j.AssigneeID == "" {
			return nil, nil, guard("assignee", "job has no assignee to pay")
		}
		if j.Payout <= 0 {
			return nil, nil, guard("payout", "job has no payout amount")
		}
		at := cmd.At
		split := SplitPayout(j.Payout)
		next.CompletedAt = &at
		next.Status = StateCompleted
		effects = append(effects, Effect{Kind: EffectCreatePayout, ScholarID: j.AssigneeID, Split: &split})

	case ActionCancel:
		reason := strings.TrimSpace(cmd.Payload.Reason)
		if reason == "" {
			return nil, nil, guard("reason", "a cancellation reason is required")
		}
		if j.AssigneeID != "" {
			effects = append(effects, notifyScholar(j.AssigneeID,
				fmt.Sprintf("The job for %s was cancelled.", j.ClientName)))
		}
		next.AssigneeID = ""
		next.CancelReason = reason
		next.Status = StateCancelled
		note = reason
	}

	next.UpdatedAt = cmd.At
	next.History = append(next.History, StatusChange{
		From:    from,
		To:      next.Status,
		Action:  cmd.Action,
		ActorID: cmd.Actor.ID,
		At:      cmd.At,
		Note:    note,
	})
	return next, append([]Effect{persist()}, effects...), nil
}

// Replay folds Transition over cmds starting from j. It stops at the first
// rejected command and returns the job reached so far with the error.
func Replay(j *Job, cmds ...Command) (*Job, error) {
	cur := j
	for _, cmd := range cmds {
		next, _, err := Transition(cur, cmd)
		if err != nil {
			return cur, err
		}
		cur = next
	}
	return cur, nil
}
