// Package wizardcontract defines the JSON/YAML answer-file contract the
// external interactive wizard/forms engine produces. The wizard itself,
// prompting, locale selection, and form rendering all live elsewhere;
// this package only decodes and validates the answer file it hands back.
package wizardcontract

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// AccessScope names how a pack reference is bound into the bundle.
type AccessScope string

const (
	AccessScopeAllTenants     AccessScope = "all_tenants"
	AccessScopeTenantAllTeams AccessScope = "tenant_all_teams"
	AccessScopeSpecificTeam   AccessScope = "specific_team"
)

// ExecutionMode gates whether Execute actually mutates the bundle.
type ExecutionMode string

const (
	ExecutionModeDryRun ExecutionMode = "dry run"
	ExecutionModeExecute ExecutionMode = "execute"
)

// PackRef names one pack to install, plus the access scope it is bound to.
type PackRef struct {
	PackRef         string      `json:"pack_ref" yaml:"pack_ref"`
	AccessScope     AccessScope `json:"access_scope" yaml:"access_scope"`
	TenantID        string      `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	TeamID          string      `json:"team_id,omitempty" yaml:"team_id,omitempty"`
	MakeDefaultPack bool        `json:"make_default_pack,omitempty" yaml:"make_default_pack,omitempty"`
}

// ProviderRef names one provider to configure.
type ProviderRef struct {
	ProviderID string `json:"provider_id" yaml:"provider_id"`
}

// Target names one (tenant, team) the answer file's mutations apply to.
type Target struct {
	TenantID string `json:"tenant_id" yaml:"tenant_id"`
	TeamID   string `json:"team_id,omitempty" yaml:"team_id,omitempty"`
}

// AnswerFile is the wizard's output contract.
type AnswerFile struct {
	BundlePath    string        `json:"bundle_path" yaml:"bundle_path"`
	BundleName    string        `json:"bundle_name,omitempty" yaml:"bundle_name,omitempty"`
	Locale        string        `json:"locale,omitempty" yaml:"locale,omitempty"`
	PackRefs      []PackRef     `json:"pack_refs,omitempty" yaml:"pack_refs,omitempty"`
	Providers     []ProviderRef `json:"providers,omitempty" yaml:"providers,omitempty"`
	Targets       []Target      `json:"targets,omitempty" yaml:"targets,omitempty"`
	ExecutionMode ExecutionMode `json:"execution_mode" yaml:"execution_mode"`
}

// ValidationError names a required field the answer file omitted or a
// value outside its closed set (e.g. an unrecognized access_scope).
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("wizardcontract: invalid %s=%q", e.Field, e.Value)
}

// ParseJSON decodes an answer file encoded as JSON.
func ParseJSON(data []byte) (*AnswerFile, error) {
	var a AnswerFile
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("wizardcontract: decode json: %w", err)
	}
	return &a, a.Validate()
}

// ParseYAML decodes an answer file encoded as YAML.
func ParseYAML(data []byte) (*AnswerFile, error) {
	var a AnswerFile
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("wizardcontract: decode yaml: %w", err)
	}
	return &a, a.Validate()
}

// Validate checks the closed-set fields and required fields of the
// contract. It does not resolve pack_refs or touch the filesystem: that
// is the wizard executor's job, external to this core.
func (a *AnswerFile) Validate() error {
	if a.BundlePath == "" {
		return &ValidationError{Field: "bundle_path", Value: ""}
	}
	switch a.ExecutionMode {
	case ExecutionModeDryRun, ExecutionModeExecute:
	default:
		return &ValidationError{Field: "execution_mode", Value: string(a.ExecutionMode)}
	}
	for _, ref := range a.PackRefs {
		switch ref.AccessScope {
		case AccessScopeAllTenants, AccessScopeTenantAllTeams, AccessScopeSpecificTeam:
		default:
			return &ValidationError{Field: "pack_refs[].access_scope", Value: string(ref.AccessScope)}
		}
		if ref.AccessScope == AccessScopeSpecificTeam && (ref.TenantID == "" || ref.TeamID == "") {
			return &ValidationError{Field: "pack_refs[].team_id", Value: ref.TeamID}
		}
	}
	return nil
}

// IsDryRun reports whether a is in dry-run mode: the CLI / wizard executor
// must print the planned mutation without writing it.
func (a *AnswerFile) IsDryRun() bool {
	return a.ExecutionMode == ExecutionModeDryRun
}
