// Package statelayout builds the fixed, deterministic on-disk paths for
// runtime state: resolved manifests, capability install records,
// config envelopes, pidfiles, logs, the dead-letter sink, and subscription
// bindings, all relative to a bundle root.
package statelayout

import "path/filepath"

// Layout roots every path under a single bundle root directory.
type Layout struct {
	Root string
}

// New returns a Layout rooted at root.
func New(root string) Layout {
	return Layout{Root: root}
}

func (l Layout) state() string {
	return filepath.Join(l.Root, "state")
}

// ResolvedManifestPath is state/resolved/{tenant}[.{team}].yaml.
func (l Layout) ResolvedManifestPath(tenant, team string) string {
	name := tenant
	if team != "" {
		name = tenant + "." + team
	}
	return filepath.Join(l.state(), "resolved", name+".yaml")
}

func (l Layout) runtimeDir(tenant, team string) string {
	return filepath.Join(l.state(), "runtime", tenant, team)
}

// CapabilityInstallPath is
// state/runtime/{tenant}/{team}/capabilities/{stable_id}.install.json.
func (l Layout) CapabilityInstallPath(tenant, team, stableID string) string {
	return filepath.Join(l.runtimeDir(tenant, team), "capabilities", stableID+".install.json")
}

func (l Layout) providerDir(tenant, team, providerID string) string {
	return filepath.Join(l.runtimeDir(tenant, team), "providers", providerID)
}

// ConfigEnvelopePath is
// state/runtime/{tenant}/{team}/providers/{provider_id}/config.envelope.cbor.
func (l Layout) ConfigEnvelopePath(tenant, team, providerID string) string {
	return filepath.Join(l.providerDir(tenant, team, providerID), "config.envelope.cbor")
}

// ContractAuditPath is
// state/runtime/{tenant}/{team}/providers/{provider_id}/_contracts/{digest}.contract.cbor.
func (l Layout) ContractAuditPath(tenant, team, providerID, digest string) string {
	return filepath.Join(l.providerDir(tenant, team, providerID), "_contracts", digest+".contract.cbor")
}

// PidFilePath is state/runtime/{tenant}/{team}/pids/{service}.pid.
func (l Layout) PidFilePath(tenant, team, service string) string {
	return filepath.Join(l.runtimeDir(tenant, team), "pids", service+".pid")
}

// LogFilePath is state/runtime/{tenant}/{team}/logs/{service}.log.
func (l Layout) LogFilePath(tenant, team, service string) string {
	return filepath.Join(l.runtimeDir(tenant, team), "logs", service+".log")
}

// DeadLetterDir is state/runtime/{tenant}/{team}/dlq/.
func (l Layout) DeadLetterDir(tenant, team string) string {
	return filepath.Join(l.runtimeDir(tenant, team), "dlq")
}

// SubscriptionBindingPath is
// state/subscriptions/{provider}/{tenant}/{team}/{binding_id}.json.
func (l Layout) SubscriptionBindingPath(provider, tenant, team, bindingID string) string {
	return filepath.Join(l.state(), "subscriptions", provider, tenant, team, bindingID+".json")
}

// SubscriptionProviderTenantTeamDir is
// state/subscriptions/{provider}/{tenant}/{team}/, used to list existing
// bindings for a scope.
func (l Layout) SubscriptionProviderTenantTeamDir(provider, tenant, team string) string {
	return filepath.Join(l.state(), "subscriptions", provider, tenant, team)
}

// SubscriptionsRoot is state/subscriptions/, the root the scheduler walks
// to enumerate every persisted binding across providers/tenants/teams.
func (l Layout) SubscriptionsRoot() string {
	return filepath.Join(l.state(), "subscriptions")
}

// GmapTenantPath and GmapTeamPath are state/gmap/{tenant}.gmap and
// state/gmap/{tenant}/{team}.gmap. They sit directly under state/, beside
// the resolved manifests and outside state/runtime, since gmap policy is
// tenant/team-scoped configuration, not per-provider runtime state.
func (l Layout) GmapTenantPath(tenant string) string {
	return filepath.Join(l.state(), "gmap", tenant+".gmap")
}

func (l Layout) GmapTeamPath(tenant, team string) string {
	return filepath.Join(l.state(), "gmap", tenant, team+".gmap")
}
