// Package audithook is a fieldwork extension that turns lifecycle events
// into an audit trail.
//
// Every lead intake, transition, claim, task decision, document outcome,
// payout, milestone and notification delivery emits a structured audit
// event through the [Recorder] interface. Severity is info for normal
// operations, warning for lost claim races and undelivered notifications,
// and critical for generations that had to be reverted.
//
// # Usage
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    logger.InfoContext(ctx, "audit", "action", evt.Action, "resource_id", evt.ResourceID)
//	    return nil
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionPayoutCreated,
//	        audithook.ActionNotificationDelivered,
//	    ),
//	)
package audithook
