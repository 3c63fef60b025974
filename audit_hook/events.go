package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionJobIntake             = "job.intake"
	ActionJobTransitioned       = "job.transitioned"
	ActionJobClaimed            = "job.claimed"
	ActionClaimConflict         = "job.claim_conflict"
	ActionTaskProposed          = "task.proposed"
	ActionTaskDecided           = "task.decided"
	ActionSopGenerated          = "sop.generated"
	ActionSopReconciled         = "sop.reconciled"
	ActionPayoutCreated         = "payout.created"
	ActionMilestoneReached      = "milestone.reached"
	ActionNotificationDelivered = "notification.delivered"
)

// Audit event categories group related actions.
const (
	CategoryJob          = "fieldwork.job"
	CategoryTask         = "fieldwork.task"
	CategorySop          = "fieldwork.sop"
	CategoryPayout       = "fieldwork.payout"
	CategoryScholar      = "fieldwork.scholar"
	CategoryNotification = "fieldwork.notification"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob          = "job"
	ResourceTask         = "task"
	ResourcePayout       = "payout"
	ResourceScholar      = "scholar"
	ResourceNotification = "notification"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobIntake,
		ActionJobTransitioned,
		ActionJobClaimed,
		ActionClaimConflict,
		ActionTaskProposed,
		ActionTaskDecided,
		ActionSopGenerated,
		ActionSopReconciled,
		ActionPayoutCreated,
		ActionMilestoneReached,
		ActionNotificationDelivered,
	}
}
