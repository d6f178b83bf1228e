package capabilities

import (
	"log/slog"
	"sort"

	"github.com/greentic/packoperator/pkg/manifest"
	"github.com/greentic/packoperator/pkg/packindex"
)

// PreOpHookCapID and PostOpHookCapID are the well-known cap_ids that
// ResolveHookChain selects capabilities under.
const (
	PreOpHookCapID  = "greentic.cap.hook.pre_op.v1"
	PostOpHookCapID = "greentic.cap.hook.post_op.v1"
)

// Registry indexes capability offers across a pack set, grouped by cap_id
// and sorted by (priority asc, stable_id asc).
type Registry struct {
	byCapID map[string][]*OfferRecord
}

// BuildFromIndex iterates every pack in idx, extracts capability offers from
// the ExtCapabilities extension (schema_version must be 1, else the pack's
// offers are skipped with one warning), and groups them deterministically.
func BuildFromIndex(idx *packindex.Index) (*Registry, error) {
	r := &Registry{byCapID: make(map[string][]*OfferRecord)}

	packs := idx.Packs()
	sort.Slice(packs, func(i, j int) bool { return packs[i].PackID < packs[j].PackID })

	for _, p := range packs {
		ext, ok := p.Manifest.ManifestExtensions[manifest.ExtCapabilities]
		if !ok {
			continue
		}
		offers, err := manifest.ParseCapabilityOffers(ext, p.Manifest.Entrypoints())
		if err != nil {
			slog.Warn("capabilities: skipping unsupported extension schema", "pack_id", p.PackID, "err", err)
			continue
		}

		for i, offer := range offers {
			rec := &OfferRecord{
				CapabilityOffer: offer,
				PackID:          p.PackID,
				PackPath:        p.PackPath,
			}
			rec.StableID = synthesizeStableID(p.PackID, offer, i)
			r.byCapID[offer.CapID] = append(r.byCapID[offer.CapID], rec)
		}
	}

	for capID := range r.byCapID {
		sortGroup(r.byCapID[capID])
	}

	return r, nil
}

func sortGroup(group []*OfferRecord) {
	sort.Slice(group, func(i, j int) bool {
		if group[i].Priority != group[j].Priority {
			return group[i].Priority < group[j].Priority
		}
		return group[i].StableID < group[j].StableID
	})
}

// OffersFor returns the ordered offers for cap_id, or nil if there are none.
func (r *Registry) OffersFor(capID string) []*OfferRecord {
	return r.byCapID[capID]
}

// Resolve returns the first offer for cap_id whose version matches
// minVersion (exact string equality; nil matches any version) and whose
// scope is compatible with scope. Version matching has no semver semantics
// by design.
func (r *Registry) Resolve(capID string, minVersion *string, scope ResolveScope) (*Binding, bool) {
	for _, rec := range r.byCapID[capID] {
		if minVersion != nil && rec.Version != *minVersion {
			continue
		}
		if !ScopeMatches(rec.ScopeEnvs, rec.ScopeTenants, rec.ScopeTeams, scope) {
			continue
		}
		return &Binding{
			CapID:                rec.CapID,
			StableID:             rec.StableID,
			PackID:               rec.PackID,
			PackPath:             rec.PackPath,
			Version:              rec.Version,
			ProviderComponentRef: rec.ProviderComponentRef,
			ProviderOp:           rec.ProviderOp,
		}, true
	}
	return nil, false
}

// ResolveHookChain selects the capabilities declared under the well-known
// pre/post op-hook cap_id for stage, filtered by applies_to_ops.
func ResolveHookChain(r *Registry, stage string, opName string) []*Binding {
	capID := PostOpHookCapID
	if stage == "pre_op" {
		capID = PreOpHookCapID
	}

	var out []*Binding
	for _, rec := range r.byCapID[capID] {
		if !appliesToOp(rec.AppliesToOps, opName) {
			continue
		}
		out = append(out, &Binding{
			CapID:                rec.CapID,
			StableID:             rec.StableID,
			PackID:               rec.PackID,
			PackPath:             rec.PackPath,
			Version:              rec.Version,
			ProviderComponentRef: rec.ProviderComponentRef,
			ProviderOp:           rec.ProviderOp,
		})
	}
	return out
}

// OffersRequiringSetup returns every offer (across every cap_id) whose
// RequiresSetup is true and whose scope matches scope, ordered by
// (cap_id asc, priority asc, stable_id asc) for determinism.
func (r *Registry) OffersRequiringSetup(scope ResolveScope) []*OfferRecord {
	var out []*OfferRecord
	for _, group := range r.byCapID {
		for _, rec := range group {
			if rec.RequiresSetup && ScopeMatches(rec.ScopeEnvs, rec.ScopeTenants, rec.ScopeTeams, scope) {
				out = append(out, rec)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CapID != out[j].CapID {
			return out[i].CapID < out[j].CapID
		}
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].StableID < out[j].StableID
	})
	return out
}
