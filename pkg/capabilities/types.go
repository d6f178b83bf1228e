// Package capabilities implements the capability registry: it groups
// capability offers declared across a pack index by cap_id, orders each
// group deterministically, and answers resolve queries under a scope.
package capabilities

import (
	"fmt"

	"github.com/greentic/packoperator/pkg/manifest"
)

// ResolveScope is the (env, tenant, team) triple a resolve query is
// evaluated against.
type ResolveScope struct {
	Env    string
	Tenant string
	Team   string
}

// OfferRecord is one capability offer, with its owning pack identity and a
// guaranteed-non-empty StableID (synthesized if the manifest omitted one).
type OfferRecord struct {
	manifest.CapabilityOffer
	PackID   string
	PackPath string
}

// Binding is a short-lived projection of one selected OfferRecord. It is
// never persisted; callers use it to invoke the bound provider op via the
// runner host.
type Binding struct {
	CapID                string
	StableID             string
	PackID               string
	PackPath             string
	Version              string
	ProviderComponentRef string
	ProviderOp           string
}

func synthesizeStableID(packID string, offer manifest.CapabilityOffer, index int) string {
	if offer.StableID != "" {
		return offer.StableID
	}
	return fmt.Sprintf("%s::%s::%s::%s::%d", packID, offer.CapID, offer.ProviderComponentRef, offer.ProviderOp, index)
}

// ScopeMatches reports whether an offer's declared scope is compatible with
// a resolve scope: on each dimension, the offer's set must be empty (any)
// or must contain the resolve scope's value.
func ScopeMatches(envs, tenants, teams []string, scope ResolveScope) bool {
	return dimMatches(envs, scope.Env) && dimMatches(tenants, scope.Tenant) && dimMatches(teams, scope.Team)
}

func dimMatches(set []string, value string) bool {
	if len(set) == 0 {
		return true
	}
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}

// appliesToOp reports whether an offer's applies_to_ops filter allows opName
// (an empty filter applies to all ops).
func appliesToOp(filter []string, opName string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == opName {
			return true
		}
	}
	return false
}
