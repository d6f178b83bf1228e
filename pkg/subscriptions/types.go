// Package subscriptions implements the subscription lifecycle scheduler:
// ensure/renew-due/delete of provider subscriptions, backed by one JSON
// state file per binding under the deterministic layout from
// pkg/statelayout, with `team` defaulting to the literal "default" when
// absent.
package subscriptions

import "fmt"

// Well-known provider op names a subscription-capable pack must declare as
// a "sub" offer for the scheduler to drive.
const (
	OpEnsure = "subscription_ensure"
	OpRenew  = "subscription_renew"
	OpDelete = "subscription_delete"
)

// DomainSubscriptions is the Runner Host invocation domain this scheduler
// passes through to every provider op it drives.
const DomainSubscriptions = "subscriptions"

// DefaultTeam is substituted whenever a binding's Team is empty, so state
// files never carry an empty path segment.
const DefaultTeam = "default"

// User is an opaque reference into the external secret store: the
// scheduler never reads or writes secret material itself.
type User struct {
	UserID   string `json:"user_id"`
	TokenKey string `json:"token_key"`
}

// State is the persisted subscription binding. Team is always normalized
// to DefaultTeam before being written to or read from disk.
type State struct {
	BindingID         string   `json:"binding_id"`
	Provider          string   `json:"provider"`
	Tenant            string   `json:"tenant"`
	Team              string   `json:"team"`
	Resource          string   `json:"resource,omitempty"`
	ChangeTypes       []string `json:"change_types,omitempty"`
	NotificationURL   string   `json:"notification_url,omitempty"`
	ClientState       string   `json:"client_state,omitempty"`
	SubscriptionID    string   `json:"subscription_id,omitempty"`
	ExpirationUnixMs  *int64   `json:"expiration_unix_ms,omitempty"`
	User              *User    `json:"user,omitempty"`
}

// EnsureRequest names the binding to create or re-assert. BindingID is
// synthesized with a fresh UUID when left empty.
type EnsureRequest struct {
	BindingID       string
	Provider        string
	Tenant          string
	Team            string
	Resource        string
	ChangeTypes     []string
	NotificationURL string
	ClientState     string
	User            *User
}

// NotFoundError is returned when an operation names a binding that has no
// persisted state file.
type NotFoundError struct {
	Provider, Tenant, Team, BindingID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("subscriptions: no binding %s/%s/%s/%s", e.Provider, e.Tenant, e.Team, e.BindingID)
}

// ProviderOpNotOfferedError is returned when the named provider pack has no
// "sub" offer for the requested op (ensure/renew/delete).
type ProviderOpNotOfferedError struct {
	Provider, Op string
}

func (e *ProviderOpNotOfferedError) Error() string {
	return fmt.Sprintf("subscriptions: provider %q offers no %s op", e.Provider, e.Op)
}

// RenewResult is one outcome of a RenewDue sweep: a single binding's
// renewal failure never halts the rest of the sweep, so the caller gets
// one result per eligible binding instead of a single error.
type RenewResult struct {
	BindingID string
	Err       error
}

func normalizeTeam(team string) string {
	if team == "" {
		return DefaultTeam
	}
	return team
}
