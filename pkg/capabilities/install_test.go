package capabilities_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greentic/packoperator/pkg/capabilities"
	"github.com/greentic/packoperator/pkg/statelayout"
)

// Invariant: a binding requiring setup with no install record on disk
// reports IsReady==false; after WriteInstallRecord with status "ready",
// IsReady==true.
func TestIsReady_RequiresInstallRecord(t *testing.T) {
	layout := statelayout.New(t.TempDir())

	ready, err := capabilities.IsReady(layout, "acme", "eng", true, "s1")
	require.NoError(t, err)
	assert.False(t, ready)

	_, err = capabilities.WriteInstallRecord(layout, "acme", "eng", capabilities.InstallRecord{
		CapID:            "cap.demo",
		StableID:         "s1",
		PackID:           "p1",
		Status:           capabilities.InstallStatusReady,
		TimestampUnixSec: 1000,
	})
	require.NoError(t, err)

	ready, err = capabilities.IsReady(layout, "acme", "eng", true, "s1")
	require.NoError(t, err)
	assert.True(t, ready)
}

// Invariant: a binding that does not require setup is always ready,
// regardless of any install record.
func TestIsReady_NoSetupRequired(t *testing.T) {
	layout := statelayout.New(t.TempDir())
	ready, err := capabilities.IsReady(layout, "acme", "eng", false, "s1")
	require.NoError(t, err)
	assert.True(t, ready)
}

// Round-trip law: read_install_record(write_install_record(r)) == r.
func TestInstallRecord_RoundTrip(t *testing.T) {
	layout := statelayout.New(t.TempDir())
	want := capabilities.InstallRecord{
		CapID:            "cap.demo",
		StableID:         "s1",
		PackID:           "p1",
		Status:           capabilities.InstallStatusFailed,
		ConfigStateKeys:  []string{"api_key", "webhook_url"},
		TimestampUnixSec: 42,
	}
	_, err := capabilities.WriteInstallRecord(layout, "acme", "eng", want)
	require.NoError(t, err)

	got, ok, err := capabilities.ReadInstallRecord(layout, "acme", "eng", "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, *got)
}

func TestReadInstallRecord_MissingIsNotError(t *testing.T) {
	layout := statelayout.New(t.TempDir())
	rec, ok, err := capabilities.ReadInstallRecord(layout, "acme", "eng", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, rec)
}
