package ingress

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action names the four-variant control directive sum type.
type Action string

const (
	ActionContinue Action = "continue"
	ActionRespond  Action = "respond"
	ActionDeny     Action = "deny"
	ActionDispatch Action = "dispatch"
)

// ControlDirective is the tagged union a hook returns, discriminated by
// Action. Unknown actions are a parse error, never silently "continue",
// so a newer hook speaking a future action can't be misread as a no-op.
//
// respond/deny carry a reply shape: Text alone yields a raw text/plain
// body; Card (optionally alongside Text) yields a JSON {text,card} body.
// Body/Headers are an explicit escape hatch for a hook that wants to set
// the response directly rather than going through the text/card
// convention.
type ControlDirective struct {
	Action     Action            `json:"action"`
	Status     int               `json:"status,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Text       string            `json:"text,omitempty"`
	Card       json.RawMessage   `json:"card,omitempty"`
	Body       json.RawMessage   `json:"body,omitempty"`
	ReasonCode string            `json:"reason_code,omitempty"`

	// dispatch-only fields
	Tenant string `json:"tenant,omitempty"`
	Team   string `json:"team,omitempty"`
	Pack   string `json:"pack,omitempty"`
	Flow   string `json:"flow,omitempty"`
	Node   string `json:"node,omitempty"`
}

// DirectiveParseError is returned for malformed or unrecognized directives.
type DirectiveParseError struct {
	Detail string
}

func (e *DirectiveParseError) Error() string {
	return "ingress: hook directive parse error: " + e.Detail
}

// ParseControlDirective decodes raw hook output into a ControlDirective,
// validating the action discriminator.
func ParseControlDirective(raw []byte) (*ControlDirective, error) {
	var d ControlDirective
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, &DirectiveParseError{Detail: err.Error()}
	}
	switch d.Action {
	case ActionContinue, ActionRespond, ActionDeny:
		return &d, nil
	case ActionDispatch:
		if err := validateDispatchTarget(d.Tenant, d.Team, d.Pack, d.Flow, d.Node); err != nil {
			return nil, err
		}
		return &d, nil
	default:
		return nil, &DirectiveParseError{Detail: fmt.Sprintf("unknown action %q", d.Action)}
	}
}

// DispatchTargetInvalidError names the offending segment in a dispatch
// directive.
type DispatchTargetInvalidError struct {
	Field string
	Value string
}

func (e *DispatchTargetInvalidError) Error() string {
	return fmt.Sprintf("ingress: invalid dispatch target %s=%q", e.Field, e.Value)
}

var forbiddenSubstrings = []string{"..", "/", "\\", "\x00", ":"}

// validateDispatchTarget rejects path traversal and separator characters in
// every non-empty dispatch segment.
func validateDispatchTarget(tenant, team, pack, flow, node string) error {
	type field struct {
		name     string
		value    string
		required bool
	}
	fields := []field{
		{"tenant", tenant, true},
		{"pack", pack, true},
		{"team", team, false},
		{"flow", flow, false},
		{"node", node, false},
	}
	for _, f := range fields {
		if f.value == "" && !f.required {
			continue
		}
		if err := validateSegment(f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}

func validateSegment(field, value string) error {
	if value == "" {
		return &DispatchTargetInvalidError{Field: field, Value: value}
	}
	if value == "." {
		return &DispatchTargetInvalidError{Field: field, Value: value}
	}
	if strings.HasPrefix(value, ".") {
		return &DispatchTargetInvalidError{Field: field, Value: value}
	}
	for _, bad := range forbiddenSubstrings {
		if strings.Contains(value, bad) {
			return &DispatchTargetInvalidError{Field: field, Value: value}
		}
	}
	return nil
}
