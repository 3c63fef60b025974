// Package job defines the job aggregate, its lifecycle state machine and
// the store interface.
//
// # Job Entity
//
// A [Job] is the aggregate root. It embeds [fieldwork.Entity] for
// timestamps, carries a per-document Version used for optimistic
// concurrency, and progresses through a state machine:
//
//	LEAD → SOP_NEEDS_REVIEW → APPROVED_FOR_POSTING → UPCOMING
//	     → IN_PROGRESS → REVIEW_PENDING → COMPLETED
//	SOP_NEEDS_REVIEW → LEAD                     (rollback)
//	REVIEW_PENDING → CHANGES_REQUESTED → IN_PROGRESS
//	UPCOMING|IN_PROGRESS|CHANGES_REQUESTED → APPROVED_FOR_POSTING (disqualify)
//	any non-terminal → CANCELLED
//
// # Transitions
//
// [Transition] is a pure function from (job, command) to (next job, side
// effects). It never touches a store; callers persist the returned job and
// execute the returned [Effect] values. [Replay] folds Transition over a
// command list.
//
// # Writes
//
// [Mutate] applies a read-modify-write with a Version compare-and-swap and
// re-applies the change after a conflict. Claims use [Store.ClaimJob],
// a status-guarded conditional write, instead.
package job
