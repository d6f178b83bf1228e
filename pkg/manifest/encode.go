package manifest

import (
	"github.com/fxamacker/cbor/v2"
)

var canonicalMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic("manifest: invalid canonical cbor options: " + err.Error())
	}
	return mode
}()

// Encode serializes a Manifest back into canonical CBOR. Symbol tables are
// never reconstructed: every polymorphic field is emitted as a literal
// string, which a tolerant decoder (this package's Decode) accepts just as
// readily as a symbol index. This keeps decode(encode(m)) == m exact.
func Encode(m *Manifest) ([]byte, error) {
	w := wireManifest{
		PackID:        m.PackID,
		SchemaVersion: m.SchemaVersion,
		Flows:         toAnySlice(m.EntryFlows),
		Extensions:    make(map[string]wireExtension, len(m.ManifestExtensions)),
		Offers:        make(map[string]wireOffer, len(m.Offers)),
	}
	if len(m.entrypoints) > 0 {
		w.Symbols = &wireSymbols{Entrypoints: m.entrypoints}
	}

	for id, ext := range m.ManifestExtensions {
		w.Extensions[id] = wireExtension{
			SchemaVersion: ext.SchemaVersion,
			Inline:        ext.Inline,
		}
	}

	for _, o := range m.Offers {
		priority := o.Priority
		w.Offers[o.OfferID] = wireOffer{
			Stage:                o.Stage,
			Contract:             o.Contract,
			Priority:             &priority,
			ProviderComponentRef: o.ProviderComponentRef,
			ProviderOp:           o.ProviderOp,
		}
	}

	return canonicalMode.Marshal(w)
}

func toAnySlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
