// Package engine wires every Fieldwork subsystem together and provides the
// application-level API for driving a job through its lifecycle.
//
// The engine package exists to break an import cycle: the root fieldwork
// package defines Entity, Actor and the error types (imported by job, sop,
// task and the rest) and therefore cannot import those packages back.
// Engine sits above all subsystem packages and below the HTTP API and the
// daemon.
//
// # Building an Engine
//
//	fw, err := fieldwork.New(
//	    fieldwork.WithStore(pgStore),
//	    fieldwork.WithAdminRecipients("+15550100"),
//	)
//
//	eng, err := engine.Build(fw,
//	    engine.WithGenerator(claude.New(pgStore, requestOpts)),
//	    engine.WithNotifier(smsGateway),
//	    engine.WithMediaStorage(bucket),
//	    engine.WithExtension(audithook.New(recorder)),
//	)
//
// # Driving a Job
//
//	lead, _ := eng.Intake(ctx, admin, job.LeadInput{ClientName: "A. Smith"})
//	sess, _ := eng.GenerateSop(ctx, lead.ID, admin, form)
//	eng.ApproveSop(ctx, lead.ID, admin, sess.Draft)
//	eng.Claim(ctx, lead.ID, fieldwork.ScholarActor(scholarID))
//
// Every action runs through the middleware chain (recover, tracing,
// metrics, logging, scope, timeout, then any WithMiddleware additions),
// persists with optimistic retries, emits extension hooks and finally
// executes the transition's payout and notification effects.
//
// # Lifecycle
//
// Start begins the change reactor that recomputes earnings milestones for
// completed jobs. Stop stops it, notifies extensions and closes the store.
package engine
