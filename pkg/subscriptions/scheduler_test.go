package subscriptions_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greentic/packoperator/pkg/offers"
	"github.com/greentic/packoperator/pkg/packindex"
	"github.com/greentic/packoperator/pkg/statelayout"
	"github.com/greentic/packoperator/pkg/subscriptions"
)

func emptyScheduler(t *testing.T) (*subscriptions.Scheduler, statelayout.Layout) {
	t.Helper()
	idx, err := packindex.Build(t.TempDir())
	require.NoError(t, err)
	reg, err := offers.BuildFromIndex(idx)
	require.NoError(t, err)
	layout := statelayout.New(t.TempDir())
	return subscriptions.New(idx, reg, layout), layout
}

// Invariant: ensuring a binding against a provider pack the index has
// never heard of fails fast, before any state file is written.
func TestEnsure_UnknownProvider(t *testing.T) {
	sched, layout := emptyScheduler(t)

	_, err := sched.Ensure(context.Background(), subscriptions.EnsureRequest{
		Provider: "pack.missing",
		Tenant:   "acme",
		Team:     "eng",
	})
	require.Error(t, err)

	_, statErr := os.Stat(layout.SubscriptionBindingPath("pack.missing", "acme", "eng", "anything"))
	assert.True(t, os.IsNotExist(statErr))
}

func writeBindingFile(t *testing.T, layout statelayout.Layout, st subscriptions.State) {
	t.Helper()
	path := layout.SubscriptionBindingPath(st.Provider, st.Tenant, st.Team, st.BindingID)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data, err := json.Marshal(st)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func int64Ptr(v int64) *int64 { return &v }

// Invariant: ListAll sorts deterministically by
// (provider, tenant, team, binding_id), independent of filesystem
// enumeration order.
func TestScheduler_ListAllSortedDeterministically(t *testing.T) {
	sched, layout := emptyScheduler(t)

	writeBindingFile(t, layout, subscriptions.State{Provider: "zeta", Tenant: "acme", Team: "eng", BindingID: "b1"})
	writeBindingFile(t, layout, subscriptions.State{Provider: "alpha", Tenant: "acme", Team: "eng", BindingID: "b2"})
	writeBindingFile(t, layout, subscriptions.State{Provider: "alpha", Tenant: "acme", Team: "default", BindingID: "b3"})

	got, err := sched.ListAll()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "alpha", got[0].Provider)
	assert.Equal(t, "default", got[0].Team)
	assert.Equal(t, "alpha", got[1].Provider)
	assert.Equal(t, "eng", got[1].Team)
	assert.Equal(t, "zeta", got[2].Provider)
}

// With now=1_000_000ms and expiration=1_000_400ms, skew=500ms must select
// this binding for renewal; skew=100ms must not.
func TestRenewDue_SkewWindow(t *testing.T) {
	sched, layout := emptyScheduler(t)
	writeBindingFile(t, layout, subscriptions.State{
		Provider:         "pack.missing",
		Tenant:           "acme",
		Team:             "eng",
		BindingID:        "b1",
		ExpirationUnixMs: int64Ptr(1_000_400),
	})
	now := time.UnixMilli(1_000_000)

	results, err := sched.RenewDue(context.Background(), 500*time.Millisecond, now)
	require.NoError(t, err)
	require.Len(t, results, 1, "within the 500ms skew window, the binding must be attempted")
	assert.Equal(t, "b1", results[0].BindingID)
	assert.Error(t, results[0].Err, "renewal itself fails because the provider pack is unknown, but selection must still occur")

	results, err = sched.RenewDue(context.Background(), 100*time.Millisecond, now)
	require.NoError(t, err)
	assert.Empty(t, results, "outside the 100ms skew window, the binding must not be attempted")
}

// Invariant: a binding with no expiration is never selected by renew_due.
func TestRenewDue_SkipsBindingsWithoutExpiration(t *testing.T) {
	sched, layout := emptyScheduler(t)
	writeBindingFile(t, layout, subscriptions.State{
		Provider:  "pack.missing",
		Tenant:    "acme",
		Team:      "eng",
		BindingID: "b1",
	})

	results, err := sched.RenewDue(context.Background(), time.Hour, time.UnixMilli(1_000_000))
	require.NoError(t, err)
	assert.Empty(t, results)
}

// Invariant: DeleteBinding leaves the state file untouched when the
// provider invocation fails (no half-deleted state).
func TestDeleteBinding_FailureLeavesFileInPlace(t *testing.T) {
	sched, layout := emptyScheduler(t)
	st := subscriptions.State{Provider: "pack.missing", Tenant: "acme", Team: "eng", BindingID: "b1"}
	writeBindingFile(t, layout, st)

	err := sched.DeleteBinding(context.Background(), &st)
	require.Error(t, err)

	path := layout.SubscriptionBindingPath("pack.missing", "acme", "eng", "b1")
	_, statErr := os.Stat(path)
	require.NoError(t, statErr, "state file must still exist after a failed delete")
}

func TestLoad_NotFound(t *testing.T) {
	sched, _ := emptyScheduler(t)
	_, err := sched.Load("p1", "acme", "eng", "nope")
	require.Error(t, err)
	var nf *subscriptions.NotFoundError
	require.ErrorAs(t, err, &nf)
}
