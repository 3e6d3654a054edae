package protocol

import (
	"fmt"
	"strings"
)

// Action identifies the interactive control the operator pressed.
type Action string

// Callback actions carried by inline controls.
const (
	// ActionApprove approves the request.
	ActionApprove Action = "approve"
	// ActionDeny denies the request outright.
	ActionDeny Action = "deny"
	// ActionDenyAlt denies and asks the operator for an alternative;
	// the next free-text message becomes the instruction.
	ActionDenyAlt Action = "deny_alt"
	// ActionDenyPause denies and tells the agent to pause.
	ActionDenyPause Action = "deny_pause"
	// ActionDenyInfo denies and asks the agent for more information.
	ActionDenyInfo Action = "deny_info"
)

// tokenPrefix distinguishes approval callbacks from any other inline
// controls sharing the chat.
const tokenPrefix = "apv"

const tokenSep = ":"

// Callback is a decoded callback token.
type Callback struct {
	// Action is the pressed control.
	Action Action
	// RequestID is the approval request the control belongs to.
	RequestID string
}

// EncodeToken builds the opaque callback token for a control.
// Telegram caps callback data at 64 bytes; prefix + action + uuid fits.
func EncodeToken(action Action, requestID string) string {
	return tokenPrefix + tokenSep + string(action) + tokenSep + requestID
}

// DecodeToken parses a callback token. Tokens from other controls or
// with unknown actions are rejected.
func DecodeToken(data string) (Callback, error) {
	parts := strings.SplitN(data, tokenSep, 3)
	if len(parts) != 3 || parts[0] != tokenPrefix {
		return Callback{}, fmt.Errorf("not an approval token: %q", data)
	}
	action := Action(parts[1])
	switch action {
	case ActionApprove, ActionDeny, ActionDenyAlt, ActionDenyPause, ActionDenyInfo:
	default:
		return Callback{}, fmt.Errorf("unknown approval action: %q", parts[1])
	}
	if parts[2] == "" {
		return Callback{}, fmt.Errorf("empty request id in token: %q", data)
	}
	return Callback{Action: action, RequestID: parts[2]}, nil
}
