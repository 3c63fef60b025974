// Package task implements the checklist approval gate.
//
// Tasks added by an admin are approved immediately. Tasks proposed by the
// assigned scholar wait as PENDING until an admin approves or rejects
// them, and a pending task cannot be completed by a non-admin. Every
// operation is an optimistic read-modify-write on the job, so concurrent
// edits to other parts of the job are retried rather than lost.
package task
