package redis

// Redis key naming conventions for fieldwork data.
// All keys are prefixed with "fieldwork:" to avoid collisions.

const keyPrefix = "fieldwork:"

// ── Job keys ──

// jobKey returns the key for a job document: fieldwork:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// jobIDsKey is the Set tracking all job IDs for enumeration.
const jobIDsKey = keyPrefix + "job_ids"

// changesChannel is the Pub/Sub channel carrying the job change feed.
const changesChannel = keyPrefix + "job_changes"

// ── Scholar keys ──

// scholarKey returns the key for a scholar document: fieldwork:scholar:{id}
func scholarKey(id string) string { return keyPrefix + "scholar:" + id }

// scholarIDsKey is the Set tracking all scholar IDs for enumeration.
const scholarIDsKey = keyPrefix + "scholar_ids"

// milestoneKey returns the Set of thresholds recorded for a scholar in a
// period: fieldwork:milestones:{scholarID}:{period}
func milestoneKey(scholarID, period string) string {
	return keyPrefix + "milestones:" + scholarID + ":" + period
}

// ── Payout keys ──

// payoutKey returns the key for a payout document: fieldwork:payout:{id}
func payoutKey(id string) string { return keyPrefix + "payout:" + id }

// payoutSlotKey holds the payout ID of one half of a job's payout, which
// makes each half unique: fieldwork:payout_slot:{jobID}:{type}
func payoutSlotKey(jobID, payoutType string) string {
	return keyPrefix + "payout_slot:" + jobID + ":" + payoutType
}

// jobPayoutsKey is the Set of payout IDs for a job.
func jobPayoutsKey(jobID string) string { return keyPrefix + "job_payouts:" + jobID }
