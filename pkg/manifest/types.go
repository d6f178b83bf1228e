// Package manifest decodes a pack's canonical-CBOR manifest: a tolerant
// decoder that accepts either literal strings or symbol-table indices for
// a handful of identifier fields, and exposes the pack's identity, entry
// flows, extensions, and offers to the rest of the runtime.
package manifest

// ExtCapabilities is the well-known extension id under which capability
// offers are declared.
const ExtCapabilities = "greentic.ext.capabilities.v1"

// HookControlContract is the well-known contract id for the post-ingress
// hook chain.
const HookControlContract = "greentic.hook.control.v1"

// StagePostIngress is the only hook stage the ingress engine dispatches.
const StagePostIngress = "post_ingress"

// Manifest is the decoded, resolved form of a pack's manifest.cbor.
type Manifest struct {
	PackID            string
	SchemaVersion     string
	EntryFlows        []string
	ManifestExtensions map[string]Extension
	Offers            []Offer // top-level hook/sub offers

	entrypoints []string // symbols.entrypoints, kept for capability offer resolution
}

// Entrypoints returns the manifest's symbols.entrypoints table, used to
// resolve symbol-indexed provider_component_ref/provider_op fields inside
// extension inline payloads (e.g. capability offers).
func (m *Manifest) Entrypoints() []string {
	return m.entrypoints
}

// Extension is an inline extension payload keyed by extension id.
type Extension struct {
	ID            string
	SchemaVersion int
	Inline        map[string]interface{} // raw decoded payload, including any "offers" sub-map
}

// OfferKind distinguishes hook offers from subscription offers. Capability
// offers are not Offer values; they live under ExtCapabilities and are
// modeled as wireCapabilityOffer (wire.go) and CapabilityOffer.
type OfferKind string

const (
	OfferKindHook OfferKind = "hook"
	OfferKindSub  OfferKind = "sub"
)

// Offer is a hook or subscription offer declared at the manifest top level
// or nested under an extension's inline.offers map.
type Offer struct {
	OfferID               string
	Kind                  OfferKind
	Stage                 string // required for hooks
	Contract              string // required for hooks, optional for subs
	Priority              int32
	ProviderComponentRef  string
	ProviderOp            string
}

// CapabilityOffer is a capability declaration extracted from the
// ExtCapabilities extension's inline payload.
type CapabilityOffer struct {
	StableID             string
	CapID                string
	Version               string
	ProviderComponentRef  string
	ProviderOp            string
	Priority              int32
	RequiresSetup         bool
	SetupQARef            string
	ScopeEnvs             []string
	ScopeTenants          []string
	ScopeTeams            []string
	AppliesToOps          []string
}

// DecodeError is returned when a required field cannot be materialized as
// either a literal value or a valid symbol-table index.
type DecodeError struct {
	FieldPath string
	Expected  string
}

func (e *DecodeError) Error() string {
	return "invalid type at " + e.FieldPath + " (expected " + e.Expected + ")"
}
