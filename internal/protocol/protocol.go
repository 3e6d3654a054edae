package protocol

import "time"

// Status is the lifecycle state of an approval request.
type Status string

// Approval request statuses.
const (
	// StatusPending means no operator decision has arrived yet.
	StatusPending Status = "pending"
	// StatusApproved means the operator approved the action.
	StatusApproved Status = "approved"
	// StatusDenied means the operator denied the action outright.
	StatusDenied Status = "denied"
	// StatusDeniedCustom means the denial carries a follow-up instruction.
	StatusDeniedCustom Status = "denied_custom"
	// StatusAwaitingInstruction means the operator chose to suggest an
	// alternative and the next free-text message will be captured.
	StatusAwaitingInstruction Status = "awaiting_custom_instruction"
	// StatusNotFound is returned for unknown request ids. It is never
	// stored on a record.
	StatusNotFound Status = "not_found"
)

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusDenied, StatusDeniedCustom:
		return true
	}
	return false
}

// Response classifies the raw operator reply.
type Response string

// Operator response classifications.
const (
	ResponseNone         Response = ""
	ResponseApproved     Response = "approved"
	ResponseDenied       Response = "denied"
	ResponseDeniedCustom Response = "denied_custom"
)

// Outcome is the result of a blocking wait for a decision.
type Outcome string

// Wait outcomes. OutcomeStillPending is returned on deadline expiry and
// is distinct from a denial: the request stays open and resolvable.
const (
	OutcomeApproved     Outcome = "approved"
	OutcomeDenied       Outcome = "denied"
	OutcomeDeniedCustom Outcome = "denied_custom"
	OutcomeStillPending Outcome = "still_pending"
)

// ApprovalRecord is the stored state of one approval request.
type ApprovalRecord struct {
	// ID uniquely identifies the request. Never reused.
	ID string `json:"id"`
	// Action describes the pending action. Immutable after creation.
	Action string `json:"action"`
	// Details optionally elaborates on the action. Immutable.
	Details string `json:"details,omitempty"`
	// Status is the current lifecycle state.
	Status Status `json:"status"`
	// Response classifies the operator reply, if any.
	Response Response `json:"response,omitempty"`
	// Instruction is free-text operator guidance. Set iff Status is
	// StatusDeniedCustom.
	Instruction string `json:"instruction,omitempty"`
	// CreatedAt is the creation time, used for ordering and debugging.
	CreatedAt time.Time `json:"created_at"`
}
