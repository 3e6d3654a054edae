package protocol

// NotifyResult is the fixed JSON response of the notification tools.
type NotifyResult struct {
	// Status is "sent" on success.
	Status string `json:"status"`
	// Detail is a human-readable summary of what was sent.
	Detail string `json:"detail,omitempty"`
}

// ApprovalResult is the fixed JSON response of the approval tools.
type ApprovalResult struct {
	// RequestID identifies the approval request.
	RequestID string `json:"request_id"`
	// Status is the request status at response time.
	Status Status `json:"status"`
	// Response classifies the operator reply, if any.
	Response Response `json:"response,omitempty"`
	// Instruction is the operator's follow-up guidance, if any.
	Instruction string `json:"instruction,omitempty"`
	// Outcome is set by the waiting tools.
	Outcome Outcome `json:"outcome,omitempty"`
	// Message is a human-readable summary.
	Message string `json:"message,omitempty"`
}
