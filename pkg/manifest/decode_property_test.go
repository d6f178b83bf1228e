//go:build property
// +build property

package manifest_test

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/greentic/packoperator/pkg/manifest"
)

// TestManifestRoundTripDeterminism verifies decode(encode(m)) == m for
// randomly generated manifests, supplementing TestRoundTrip's single
// worked example.
func TestManifestRoundTripDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("decode(encode(m)) == m", prop.ForAll(
		func(packID, schemaVersion string, entryFlows []string, offerIDs []string) bool {
			if packID == "" {
				return true // pack_id is a required field, not this property's concern
			}

			offers := make([]manifest.Offer, 0, len(offerIDs))
			seen := make(map[string]bool, len(offerIDs))
			for _, id := range offerIDs {
				if id == "" || seen[id] {
					continue
				}
				seen[id] = true
				offers = append(offers, manifest.Offer{
					OfferID:              id,
					Kind:                 manifest.OfferKindHook,
					Stage:                manifest.StagePostIngress,
					Contract:             manifest.HookControlContract,
					Priority:             10,
					ProviderComponentRef: "comp." + id,
					ProviderOp:           "op." + id,
				})
			}
			// Decode orders offers by offer_id.
			sort.Slice(offers, func(i, j int) bool { return offers[i].OfferID < offers[j].OfferID })

			m := &manifest.Manifest{
				PackID:        packID,
				SchemaVersion: schemaVersion,
				EntryFlows:    entryFlows,
				Offers:        offers,
			}

			encoded, err := manifest.Encode(m)
			if err != nil {
				return false
			}
			decoded, err := manifest.Decode(encoded)
			if err != nil {
				return false
			}

			if decoded.PackID != m.PackID || decoded.SchemaVersion != m.SchemaVersion {
				return false
			}
			if diff := cmp.Diff(m.Offers, decoded.Offers); diff != "" {
				return false
			}

			wantEntryFlows := m.EntryFlows
			if len(wantEntryFlows) == 0 {
				wantEntryFlows = []string{packID} // Decode's documented default
			}
			if diff := cmp.Diff(wantEntryFlows, decoded.EntryFlows); diff != "" {
				return false
			}
			return true
		},
		gen.Identifier(),
		gen.Identifier(),
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
