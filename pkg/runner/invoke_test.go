package runner_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/greentic/packoperator/pkg/manifest"
	"github.com/greentic/packoperator/pkg/packindex"
	"github.com/greentic/packoperator/pkg/runner"
)

func writeEmptyPack(t *testing.T, dir, fileName, packID string) *packindex.Pack {
	t.Helper()
	path := filepath.Join(dir, fileName)

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	w, err := zw.Create(packindex.ManifestEntryName)
	require.NoError(t, err)
	_, err = w.Write(mustManifestBytes(t, packID))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	idx, err := packindex.Build(dir)
	require.NoError(t, err)
	p, ok := idx.ByPackID(packID)
	require.True(t, ok)
	return p
}

func mustManifestBytes(t *testing.T, packID string) []byte {
	t.Helper()
	m := &manifest.Manifest{PackID: packID, SchemaVersion: "1"}
	encoded, err := manifest.Encode(m)
	require.NoError(t, err)
	return encoded
}

// Invariant: an op not declared by the manifest is OpNotFoundError, and the
// sandbox is never reached.
func TestInvoke_OpNotDeclared(t *testing.T) {
	dir := t.TempDir()
	pack := writeEmptyPack(t, dir, "one.pack", "pack.one")

	_, err := runner.Invoke(context.Background(), runner.InvokeRequest{
		Pack:                 pack,
		ProviderComponentRef: "provider.one",
		OpName:               "op.missing",
	})
	require.Error(t, err)
	var notFound *runner.OpNotFoundError
	require.ErrorAs(t, err, &notFound)
}

// Invariant: EnvelopePath pointing at a nonexistent file is treated as "no
// stored envelope" rather than an error: the drift gate only applies once
// something has been written.
func TestInvoke_MissingEnvelopeIsNotDrift(t *testing.T) {
	dir := t.TempDir()
	pack := writeEmptyPack(t, dir, "one.pack", "pack.one")

	_, err := runner.Invoke(context.Background(), runner.InvokeRequest{
		Pack:                 pack,
		ProviderComponentRef: "provider.one",
		OpName:               "op.missing",
		EnvelopePath:         filepath.Join(dir, "does-not-exist.cbor"),
	})
	require.Error(t, err)
	var notFound *runner.OpNotFoundError
	require.True(t, errors.As(err, &notFound), "missing envelope should not block op-not-found reporting")
}
