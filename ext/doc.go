// Package ext defines the extension system for fieldwork.
//
// Extensions are notified of lifecycle events and can react to them:
// recording metrics, writing audit logs, etc. Each lifecycle hook is a
// separate interface so extensions opt in only to the events they care
// about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobClaimed(ctx context.Context, j *job.Job) error {
//	    log.Printf("job %s claimed by %s", j.ID, j.AssigneeID)
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobIntake]: a lead was stored
//   - [JobTransitioned]: a lifecycle action was persisted
//   - [JobClaimed]: a scholar won a claim
//   - [ClaimConflict]: a claim lost the race
//
// # Checklist and Document Hooks
//
//   - [TaskProposed], [TaskDecided]
//   - [SopGenerated], [SopReconciled]
//
// # Other Hooks
//
//   - [PayoutCreated], [MilestoneReached], [NotificationDelivered]
//   - [Shutdown]: the coordinator is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Hook errors are logged and
// never returned to the caller.
package ext
