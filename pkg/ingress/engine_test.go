package ingress_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/greentic/packoperator/pkg/gmap"
	"github.com/greentic/packoperator/pkg/ingress"
	"github.com/greentic/packoperator/pkg/offers"
	"github.com/greentic/packoperator/pkg/packindex"
	"github.com/greentic/packoperator/pkg/runner"
)

func emptyEngine(t *testing.T, resolver *gmap.Resolver) *ingress.Engine {
	t.Helper()
	idx, err := packindex.Build(t.TempDir())
	require.NoError(t, err)
	reg, err := offers.BuildFromIndex(idx)
	require.NoError(t, err)
	return &ingress.Engine{Index: idx, Offers: reg, Resolver: resolver, HooksEnabled: true}
}

// Invariant: a path denied by the gmap resolver returns status 403 with
// reason_code policy_forbidden, and never reaches the pack index.
func TestProcess_PolicyForbidden(t *testing.T) {
	resolver := &gmap.Resolver{TenantRules: []gmap.Rule{{Path: gmap.Wildcard, Policy: gmap.Forbidden}}}
	e := emptyEngine(t, resolver)

	resp, events, err := e.Process(context.Background(), ingress.IngressRequestV1{
		Tenant: "acme", Pack: "pack.one",
	})
	require.Error(t, err)
	var pf *ingress.PolicyForbiddenError
	require.ErrorAs(t, err, &pf)
	require.Equal(t, 403, resp.Status)
	require.Nil(t, events)
}

// Invariant: an allowed request against a pack absent from the index
// fails with PackMissingError, not a silent empty response.
func TestProcess_PackMissing(t *testing.T) {
	resolver := &gmap.Resolver{TenantRules: []gmap.Rule{{Path: gmap.Wildcard, Policy: gmap.Public}}}
	e := emptyEngine(t, resolver)

	_, _, err := e.Process(context.Background(), ingress.IngressRequestV1{
		Tenant: "acme", Pack: "pack.one",
	})
	require.Error(t, err)
	var missing *runner.PackMissingError
	require.True(t, errors.As(err, &missing))
}
