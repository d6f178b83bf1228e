package envelope_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greentic/packoperator/pkg/envelope"
	"github.com/greentic/packoperator/pkg/manifest"
	"github.com/greentic/packoperator/pkg/packindex"
	"github.com/greentic/packoperator/pkg/statelayout"
)

func testPack() *packindex.Pack {
	return &packindex.Pack{
		PackID:         "pack.demo",
		PackPath:       "/bundle/pack.demo.pack",
		ResolvedDigest: "aaaaaaaaaaaaaaaa",
		DescribeHash:   "bbbbbbbbbbbbbbbb",
		Manifest: &manifest.Manifest{
			PackID:        "pack.demo",
			SchemaVersion: "1",
		},
	}
}

// Invariant: two writes with equal (config, pack, operation_id) produce
// envelopes that agree modulo UpdatedAt.
func TestWrite_DeterminismModuloUpdatedAt(t *testing.T) {
	layout := statelayout.New(t.TempDir())
	req := envelope.WriteRequest{
		Layout:      layout,
		Pack:        testPack(),
		Tenant:      "acme",
		Team:        "eng",
		ProviderID:  "provider.one",
		OperationID: "op.sync",
		Config:      map[string]interface{}{"b": 2, "a": 1},
	}

	path1, err := envelope.Write(req)
	require.NoError(t, err)
	env1, err := envelope.Read(path1)
	require.NoError(t, err)

	path2, err := envelope.Write(req)
	require.NoError(t, err)
	env2, err := envelope.Read(path2)
	require.NoError(t, err)

	assert.Equal(t, path1, path2)
	assert.True(t, env1.Equal(*env2))
}

// Invariant: EnsureContractCompatible fails with ContractDriftError when
// the resolved describe_hash no longer matches the stored one.
func TestEnsureContractCompatible_DetectsDrift(t *testing.T) {
	layout := statelayout.New(t.TempDir())
	req := envelope.WriteRequest{
		Layout:      layout,
		Pack:        testPack(),
		Tenant:      "acme",
		Team:        "eng",
		ProviderID:  "provider.one",
		OperationID: "op.sync",
		Config:      map[string]interface{}{"a": 1},
	}
	path, err := envelope.Write(req)
	require.NoError(t, err)

	_, err = envelope.EnsureContractCompatible(path, "bbbbbbbbbbbbbbbb", false)
	require.NoError(t, err)

	_, err = envelope.EnsureContractCompatible(path, "different-hash", false)
	require.Error(t, err)
	var driftErr *envelope.ContractDriftError
	require.ErrorAs(t, err, &driftErr)

	_, err = envelope.EnsureContractCompatible(path, "different-hash", true)
	require.NoError(t, err, "allow_contract_change bypasses the drift check")
}

// Invariant: a config that fails its declared JSON Schema is rejected
// before anything is written to disk.
func TestWrite_RejectsConfigFailingSchema(t *testing.T) {
	layout := statelayout.New(t.TempDir())
	schema := []byte(`{"type":"object","required":["api_key"],"properties":{"api_key":{"type":"string"}}}`)

	_, err := envelope.Write(envelope.WriteRequest{
		Layout:       layout,
		Pack:         testPack(),
		Tenant:       "acme",
		Team:         "eng",
		ProviderID:   "provider.one",
		OperationID:  "op.sync",
		Config:       map[string]interface{}{"wrong_field": true},
		ConfigSchema: schema,
	})
	require.Error(t, err)
	var schemaErr *envelope.SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)

	path := layout.ConfigEnvelopePath("acme", "eng", "provider.one")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "a rejected config must not be written")
}

func TestWrite_AcceptsConfigMatchingSchema(t *testing.T) {
	layout := statelayout.New(t.TempDir())
	schema := []byte(`{"type":"object","required":["api_key"],"properties":{"api_key":{"type":"string"}}}`)

	path, err := envelope.Write(envelope.WriteRequest{
		Layout:       layout,
		Pack:         testPack(),
		Tenant:       "acme",
		Team:         "eng",
		ProviderID:   "provider.one",
		OperationID:  "op.sync",
		Config:       map[string]interface{}{"api_key": "secret"},
		ConfigSchema: schema,
	})
	require.NoError(t, err)

	env, err := envelope.Read(path)
	require.NoError(t, err)
	assert.NotEmpty(t, env.SchemaHash, "a declared schema stamps schema_hash onto the envelope")
}

// Invariant: backup=true retains prior generations up to backup_count,
// rotating the oldest out.
func TestWrite_BackupRing(t *testing.T) {
	layout := statelayout.New(t.TempDir())
	base := envelope.WriteRequest{
		Layout:      layout,
		Pack:        testPack(),
		Tenant:      "acme",
		Team:        "eng",
		ProviderID:  "provider.one",
		OperationID: "op.sync",
		Backup:      true,
		BackupCount: 2,
	}

	for i := 0; i < 3; i++ {
		req := base
		req.Config = map[string]interface{}{"generation": i}
		_, err := envelope.Write(req)
		require.NoError(t, err)
	}

	path := layout.ConfigEnvelopePath("acme", "eng", "provider.one")
	_, err := os.Stat(path + ".bak.1")
	require.NoError(t, err)
	_, err = os.Stat(path + ".bak.2")
	require.NoError(t, err)
	_, err = os.Stat(path + ".bak.3")
	assert.True(t, os.IsNotExist(err), "backup_count=2 must not retain a third generation")
}
