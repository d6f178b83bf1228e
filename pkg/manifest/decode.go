package manifest

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// symbolKind names which sibling table under `symbols` a field resolves
// against, purely for error messages.
type symbolKind int

const (
	symbolPack symbolKind = iota
	symbolFlow
	symbolEntrypoint
)

// Decode parses a canonical-CBOR manifest. It tries the straightforward
// decoding of each polymorphic field first (a text value) and falls back to
// symbol-table resolution, failing only if neither form can be materialized.
func Decode(data []byte) (*Manifest, error) {
	var w wireManifest
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("manifest: cbor decode: %w", err)
	}

	symbols := w.Symbols
	if symbols == nil {
		symbols = &wireSymbols{}
	}

	packID, err := resolveSymbolic(w.PackID, symbols.PackIDs, "pack_id")
	if err != nil {
		return nil, err
	}
	if packID == "" {
		return nil, &DecodeError{FieldPath: "pack_id", Expected: "non-empty string"}
	}

	entryFlows, err := resolveEntryFlows(&w, symbols, packID)
	if err != nil {
		return nil, err
	}

	extensions := make(map[string]Extension, len(w.Extensions))
	for extID, wext := range w.Extensions {
		extensions[extID] = Extension{
			ID:            extID,
			SchemaVersion: wext.SchemaVersion,
			Inline:        wext.Inline,
		}
	}

	offers := make([]Offer, 0, len(w.Offers))
	for offerID, wo := range w.Offers {
		o, err := resolveOffer(offerID, wo, symbols.Entrypoints, "offers."+offerID)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	// The wire offers are a CBOR map; order them by offer_id so repeated
	// decodes of the same bytes always agree.
	sort.Slice(offers, func(i, j int) bool { return offers[i].OfferID < offers[j].OfferID })

	return &Manifest{
		PackID:             packID,
		SchemaVersion:      w.SchemaVersion,
		EntryFlows:         entryFlows,
		ManifestExtensions: extensions,
		Offers:             offers,
		entrypoints:        symbols.Entrypoints,
	}, nil
}

func resolveEntryFlows(w *wireManifest, symbols *wireSymbols, packID string) ([]string, error) {
	var raw []interface{}
	field := "meta.entry_flows"
	if w.Meta != nil && len(w.Meta.EntryFlows) > 0 {
		raw = w.Meta.EntryFlows
	} else if len(w.Flows) > 0 {
		raw = w.Flows
		field = "flows"
	}

	if len(raw) == 0 {
		return []string{packID}, nil
	}

	out := make([]string, len(raw))
	for i, v := range raw {
		path := fmt.Sprintf("%s[%d]", field, i)
		s, err := resolveSymbolic(v, symbols.FlowIDs, path)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func resolveOffer(offerID string, wo wireOffer, entrypoints []string, pathPrefix string) (Offer, error) {
	stage, err := resolveSymbolicOptional(wo.Stage, entrypoints, pathPrefix+".stage")
	if err != nil {
		return Offer{}, err
	}
	ref, err := resolveSymbolicOptional(wo.ProviderComponentRef, entrypoints, pathPrefix+".provider_component_ref")
	if err != nil {
		return Offer{}, err
	}
	op, err := resolveSymbolicOptional(wo.ProviderOp, entrypoints, pathPrefix+".provider_op")
	if err != nil {
		return Offer{}, err
	}

	priority := defaultPriority
	if wo.Priority != nil {
		priority = *wo.Priority
	}

	kind := OfferKindSub
	if stage != "" {
		kind = OfferKindHook
	}

	return Offer{
		OfferID:              offerID,
		Kind:                 kind,
		Stage:                stage,
		Contract:             wo.Contract,
		Priority:             priority,
		ProviderComponentRef: ref,
		ProviderOp:           op,
	}, nil
}

// resolveSymbolic resolves a required polymorphic field: either a non-empty
// text value, or an integer index into symbols. Neither form being available
// is a hard decode error naming fieldPath.
func resolveSymbolic(raw interface{}, symbols []string, fieldPath string) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case uint64:
		return indexInto(symbols, int(v), fieldPath)
	case int64:
		return indexInto(symbols, int(v), fieldPath)
	default:
		return "", &DecodeError{FieldPath: fieldPath, Expected: "string"}
	}
}

// resolveSymbolicOptional is like resolveSymbolic but treats a nil/absent
// raw value as an empty string rather than an error.
func resolveSymbolicOptional(raw interface{}, symbols []string, fieldPath string) (string, error) {
	if raw == nil {
		return "", nil
	}
	return resolveSymbolic(raw, symbols, fieldPath)
}

func indexInto(symbols []string, idx int, fieldPath string) (string, error) {
	if idx < 0 || idx >= len(symbols) {
		return "", &DecodeError{FieldPath: fieldPath, Expected: "string"}
	}
	return symbols[idx], nil
}

// ParseCapabilityOffers extracts capability offers from the
// ExtCapabilities extension's inline payload. The extension's
// schema_version must equal 1; any other value is an error the caller
// (the capability registry) should treat as UnsupportedExtensionSchema.
func ParseCapabilityOffers(ext Extension, entrypoints []string) ([]CapabilityOffer, error) {
	if ext.SchemaVersion != 1 {
		return nil, fmt.Errorf("manifest: unsupported capabilities schema_version %d", ext.SchemaVersion)
	}
	if err := ValidateExtensionInline(ext); err != nil {
		return nil, err
	}

	rawOffers, _ := ext.Inline["offers"].([]interface{})
	out := make([]CapabilityOffer, 0, len(rawOffers))
	for i, item := range rawOffers {
		encoded, err := cbor.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("manifest: re-encode capability offer %d: %w", i, err)
		}
		var wco wireCapabilityOffer
		if err := cbor.Unmarshal(encoded, &wco); err != nil {
			return nil, fmt.Errorf("manifest: decode capability offer %d: %w", i, err)
		}

		pathPrefix := fmt.Sprintf("extensions.%s.inline.offers[%d]", ext.ID, i)
		ref, err := resolveSymbolicOptional(wco.ProviderComponentRef, entrypoints, pathPrefix+".provider_component_ref")
		if err != nil {
			return nil, err
		}
		op, err := resolveSymbolicOptional(wco.ProviderOp, entrypoints, pathPrefix+".provider_op")
		if err != nil {
			return nil, err
		}

		priority := defaultPriority
		if wco.Priority != nil {
			priority = *wco.Priority
		}

		co := CapabilityOffer{
			StableID:             wco.StableID,
			CapID:                wco.CapID,
			Version:              wco.Version,
			ProviderComponentRef: ref,
			ProviderOp:           op,
			Priority:             priority,
			RequiresSetup:        wco.RequiresSetup,
			SetupQARef:           wco.SetupQARef,
			AppliesToOps:         wco.AppliesToOps,
		}
		if wco.Scope != nil {
			co.ScopeEnvs = wco.Scope.Envs
			co.ScopeTenants = wco.Scope.Tenants
			co.ScopeTeams = wco.Scope.Teams
		}
		out = append(out, co)
	}
	return out, nil
}

// ParseExtensionOffers extracts hook/subscription offers nested under any
// extension's inline.offers map; packs may declare offers there as well as
// at the manifest top level. It keys each offer by its map key, matching
// the top-level `offers` field's shape.
//
// ext.Inline is decoded into interface{} values, so a nested CBOR map comes
// back as map[interface{}]interface{} rather than map[string]interface{}
// (the library's default generic-map behavior); rather than type-assert
// against either shape, the raw value is re-encoded and decoded straight
// into a concretely typed map, the same re-encode-then-decode approach
// ParseCapabilityOffers uses for its array of offers. An extension with no
// "offers" key contributes nothing.
func ParseExtensionOffers(ext Extension, entrypoints []string) ([]Offer, error) {
	rawOffers, present := ext.Inline["offers"]
	if !present || rawOffers == nil {
		return nil, nil
	}

	encoded, err := cbor.Marshal(rawOffers)
	if err != nil {
		return nil, fmt.Errorf("manifest: re-encode extension %s offers: %w", ext.ID, err)
	}
	var wireOffers map[string]wireOffer
	if err := cbor.Unmarshal(encoded, &wireOffers); err != nil {
		return nil, fmt.Errorf("manifest: decode extension %s offers: %w", ext.ID, err)
	}

	out := make([]Offer, 0, len(wireOffers))
	for offerID, wo := range wireOffers {
		pathPrefix := fmt.Sprintf("extensions.%s.inline.offers.%s", ext.ID, offerID)
		o, err := resolveOffer(offerID, wo, entrypoints, pathPrefix)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OfferID < out[j].OfferID })
	return out, nil
}
