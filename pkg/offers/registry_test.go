package offers_test

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greentic/packoperator/pkg/offers"
	"github.com/greentic/packoperator/pkg/packindex"
)

func writeOffersPack(t *testing.T, dir, fileName, packID string, wireOffers map[string]interface{}) string {
	t.Helper()

	manifestBytes, err := cbor.Marshal(map[string]interface{}{
		"pack_id":        packID,
		"schema_version": "1",
		"offers":         wireOffers,
	})
	require.NoError(t, err)

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	w, err := zw.Create(packindex.ManifestEntryName)
	require.NoError(t, err)
	_, err = w.Write(manifestBytes)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, fileName)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

// Invariant: select_hooks returns only offers matching (stage, contract)
// exactly, ordered by (priority asc, offer_key asc).
func TestSelectHooks_OrderedByPriorityThenKey(t *testing.T) {
	dir := t.TempDir()
	writeOffersPack(t, dir, "one.pack", "pack.one", map[string]interface{}{
		"hook.b": map[string]interface{}{
			"stage":                  "post_ingress",
			"contract":               "greentic.hook.control.v1",
			"priority":               int32(10),
			"provider_component_ref": "hook.provider",
			"provider_op":            "op.b",
		},
		"hook.a": map[string]interface{}{
			"stage":                  "post_ingress",
			"contract":               "greentic.hook.control.v1",
			"priority":               int32(10),
			"provider_component_ref": "hook.provider",
			"provider_op":            "op.a",
		},
		"hook.other_stage": map[string]interface{}{
			"stage":                  "pre_op",
			"contract":               "greentic.hook.control.v1",
			"provider_component_ref": "hook.provider",
			"provider_op":            "op.c",
		},
	})

	idx, err := packindex.Build(dir)
	require.NoError(t, err)
	reg, err := offers.BuildFromIndex(idx)
	require.NoError(t, err)

	hooks := reg.SelectHooks("post_ingress", "greentic.hook.control.v1")
	require.Len(t, hooks, 2)
	assert.Equal(t, "pack.one::hook.a", hooks[0].Key, "same priority ties break on offer_key")
	assert.Equal(t, "pack.one::hook.b", hooks[1].Key)
}

// Invariant: select_subs with no contract filter returns every sub offer;
// with a filter it narrows to that contract only.
func TestSelectSubs_FiltersByContract(t *testing.T) {
	dir := t.TempDir()
	writeOffersPack(t, dir, "one.pack", "pack.one", map[string]interface{}{
		"sub.a": map[string]interface{}{
			"contract":               "contract.one",
			"provider_component_ref": "sub.provider",
			"provider_op":            "op.a",
		},
		"sub.b": map[string]interface{}{
			"contract":               "contract.two",
			"provider_component_ref": "sub.provider",
			"provider_op":            "op.b",
		},
	})

	idx, err := packindex.Build(dir)
	require.NoError(t, err)
	reg, err := offers.BuildFromIndex(idx)
	require.NoError(t, err)

	assert.Len(t, reg.SelectSubs(""), 2)
	filtered := reg.SelectSubs("contract.one")
	require.Len(t, filtered, 1)
	assert.Equal(t, "pack.one::sub.a", filtered[0].Key)
}

// Invariant: an offer nested under a non-capabilities extension's
// inline.offers map is indexed exactly like a top-level offer.
func TestSelectHooks_FindsExtensionNestedOffer(t *testing.T) {
	dir := t.TempDir()

	manifestBytes, err := cbor.Marshal(map[string]interface{}{
		"pack_id":        "pack.ext",
		"schema_version": "1",
		"extensions": map[string]interface{}{
			"vendor.ext.hooks.v1": map[string]interface{}{
				"schema_version": 1,
				"inline": map[string]interface{}{
					"offers": map[string]interface{}{
						"hook.nested": map[string]interface{}{
							"stage":                  "post_ingress",
							"contract":               "greentic.hook.control.v1",
							"priority":               int32(5),
							"provider_component_ref": "hook.provider",
							"provider_op":            "op.nested",
						},
					},
				},
			},
		},
	})
	require.NoError(t, err)

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	w, err := zw.Create(packindex.ManifestEntryName)
	require.NoError(t, err)
	_, err = w.Write(manifestBytes)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ext.pack"), buf.Bytes(), 0o644))

	idx, err := packindex.Build(dir)
	require.NoError(t, err)
	reg, err := offers.BuildFromIndex(idx)
	require.NoError(t, err)

	hooks := reg.SelectHooks("post_ingress", "greentic.hook.control.v1")
	require.Len(t, hooks, 1)
	assert.Equal(t, "pack.ext::hook.nested", hooks[0].Key)
	assert.Equal(t, "op.nested", hooks[0].ProviderOp)
}

// Invariant: a pack declaring no offers builds cleanly (the duplicate-id
// guard in BuildFromIndex is not reached here; it fires only when the same
// offer_id appears in more than one of a pack's offers maps, e.g. at the
// top level and under an extension's inline.offers).
func TestBuildFromIndex_EmptyOffersIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	manifestBytes, err := cbor.Marshal(map[string]interface{}{
		"pack_id":        "pack.dup",
		"schema_version": "1",
	})
	require.NoError(t, err)

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	w, err := zw.Create(packindex.ManifestEntryName)
	require.NoError(t, err)
	_, err = w.Write(manifestBytes)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dup.pack"), buf.Bytes(), 0o644))

	idx, err := packindex.Build(dir)
	require.NoError(t, err)

	_, err = offers.BuildFromIndex(idx)
	require.NoError(t, err, "a pack with no offers never collides")
}
