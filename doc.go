// Package fieldwork is the job lifecycle workflow engine for a home-services
// business. It governs a job from lead intake to completion: the job state
// machine, worker-proposed checklist tasks awaiting admin approval, the
// generate/review/approve pipeline for work-instruction documents (SOPs), the
// reconciliation that protects the workflow when a long-running generation
// call succeeds server-side but the caller never sees the response, milestone
// broadcasts for field workers, and payout bookkeeping.
//
// Fieldwork is designed as a library. Configure a store and the external
// collaborators (generator, notifier, media storage), then build an engine:
//
//	fw, err := fieldwork.New(
//	    fieldwork.WithStore(pgStore),
//	    fieldwork.WithAdminRecipients("+15550100"),
//	)
//	eng, err := engine.Build(fw,
//	    engine.WithGenerator(claude.New(pgStore, requestOpts)),
//	    engine.WithNotifier(webhook.New(gatewayURL)),
//	)
//
// # Architecture
//
// Each subsystem (job, task, payout, scholar) defines its own store
// interface. A single backend (memory, postgres, redis, mongo) implements
// all of them. Transitions are pure functions in package job; the engine
// package applies them with optimistic concurrency and executes their side
// effects.
//
// All entity IDs are prefix-qualified, K-sortable, UUIDv7-based strings
// such as "job_0190f5c2...".
package fieldwork
