package job

import (
	"time"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
)

// Action names a lifecycle transition.
type Action string

const (
	ActionGenerate       Action = "generate"
	ActionRollback       Action = "rollback"
	ActionApproveSop     Action = "approve_sop"
	ActionClaim          Action = "claim"
	ActionAssign         Action = "assign"
	ActionReschedule     Action = "reschedule"
	ActionCheckIn        Action = "check_in"
	ActionCheckOut       Action = "check_out"
	ActionRequestChanges Action = "request_changes"
	ActionDisqualify     Action = "disqualify"
	ActionApproveAndPay  Action = "approve_and_pay"
	ActionCancel         Action = "cancel"
)

// Payload carries the action-specific inputs of a Command. Each action
// reads only the fields it needs.
type Payload struct {
	// Form is the conversion form (generate).
	Form *ConversionForm `json:"form,omitempty"`
	// Checklist is the ordered list of task texts (approve_sop).
	Checklist []string `json:"checklist,omitempty"`
	// FinalText is the sealed document text (approve_sop).
	FinalText string `json:"final_text,omitempty"`
	// AssigneeID names the worker (assign).
	AssigneeID string `json:"assignee_id,omitempty"`
	// ScheduledFor and TimeWindow reschedule a job.
	ScheduledFor time.Time `json:"scheduled_for,omitzero"`
	TimeWindow   string    `json:"time_window,omitempty"`
	// PhotoPath and VideoPath reference uploaded evidence (check_in, check_out).
	PhotoPath string `json:"photo_path,omitempty"`
	VideoPath string `json:"video_path,omitempty"`
	// Reason is required by cancel and disqualify.
	Reason string `json:"reason,omitempty"`
	// Notes are review notes (request_changes).
	Notes string `json:"notes,omitempty"`
}

// Command is one action applied by one actor at one instant.
type Command struct {
	Action  Action          `json:"action"`
	Actor   fieldwork.Actor `json:"actor"`
	Payload Payload         `json:"payload"`
	At      time.Time       `json:"at"`
}

// EffectKind classifies a side effect produced by a transition.
type EffectKind string

const (
	// EffectPersist asks the caller to write the returned job.
	EffectPersist EffectKind = "persist"
	// EffectCreatePayout asks the caller to record payouts for the job.
	EffectCreatePayout EffectKind = "create_payout"
	// EffectNotify asks the caller to deliver a message.
	EffectNotify EffectKind = "notify"
)

// Audience selects who receives a notify effect.
type Audience string

const (
	AudienceAdmins  Audience = "admins"
	AudienceScholar Audience = "scholar"
)

// PayoutSplit is the two-half payout computed at approve_and_pay.
type PayoutSplit struct {
	First  int64 `json:"first"`
	Second int64 `json:"second"`
}

// SplitPayout divides total into an immediate and a deferred half.
// The halves always sum to total; any odd cent goes to the second half.
func SplitPayout(total int64) PayoutSplit {
	first := total / 2
	return PayoutSplit{First: first, Second: total - first}
}

// Effect is a side effect the caller must execute after persisting.
type Effect struct {
	Kind      EffectKind   `json:"kind"`
	Audience  Audience     `json:"audience,omitempty"`
	ScholarID string       `json:"scholar_id,omitempty"`
	Message   string       `json:"message,omitempty"`
	Split     *PayoutSplit `json:"split,omitempty"`
}

func persist() Effect { return Effect{Kind: EffectPersist} }

func notifyScholar(scholarID, msg string) Effect {
	return Effect{Kind: EffectNotify, Audience: AudienceScholar, ScholarID: scholarID, Message: msg}
}

func notifyAdmins(msg string) Effect {
	return Effect{Kind: EffectNotify, Audience: AudienceAdmins, Message: msg}
}

// NotifyAdmins returns a notify effect addressed to the admin recipients.
func NotifyAdmins(msg string) Effect { return notifyAdmins(msg) }

// NotifyScholar returns a notify effect addressed to a worker.
func NotifyScholar(scholarID, msg string) Effect { return notifyScholar(scholarID, msg) }

// Persists reports whether effects include a persist request.
func Persists(effects []Effect) bool {
	for _, e := range effects {
		if e.Kind == EffectPersist {
			return true
		}
	}
	return false
}
