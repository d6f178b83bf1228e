package wizardcontract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greentic/packoperator/pkg/wizardcontract"
)

func TestParseJSON_Valid(t *testing.T) {
	data := []byte(`{
		"bundle_path": "/bundles/acme",
		"bundle_name": "Acme Demo",
		"pack_refs": [
			{"pack_ref": "oci://registry/acme-pack:1", "access_scope": "tenant_all_teams", "tenant_id": "acme"}
		],
		"providers": [{"provider_id": "slack"}],
		"targets": [{"tenant_id": "acme", "team_id": "eng"}],
		"execution_mode": "dry run"
	}`)

	a, err := wizardcontract.ParseJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "/bundles/acme", a.BundlePath)
	assert.True(t, a.IsDryRun())
	assert.Len(t, a.PackRefs, 1)
}

func TestParseYAML_Valid(t *testing.T) {
	data := []byte("bundle_path: /bundles/acme\nexecution_mode: execute\n")
	a, err := wizardcontract.ParseYAML(data)
	require.NoError(t, err)
	assert.False(t, a.IsDryRun())
}

func TestValidate_RejectsUnknownExecutionMode(t *testing.T) {
	_, err := wizardcontract.ParseJSON([]byte(`{"bundle_path":"/b","execution_mode":"maybe"}`))
	require.Error(t, err)
	var verr *wizardcontract.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "execution_mode", verr.Field)
}

func TestValidate_RequiresBundlePath(t *testing.T) {
	_, err := wizardcontract.ParseJSON([]byte(`{"execution_mode":"execute"}`))
	require.Error(t, err)
}

func TestValidate_SpecificTeamRequiresTenantAndTeam(t *testing.T) {
	_, err := wizardcontract.ParseJSON([]byte(`{
		"bundle_path": "/b",
		"execution_mode": "execute",
		"pack_refs": [{"pack_ref": "p1", "access_scope": "specific_team"}]
	}`))
	require.Error(t, err)
}
