package capabilities

import (
	"encoding/json"
	"os"

	"github.com/greentic/packoperator/pkg/fsatomic"
	"github.com/greentic/packoperator/pkg/statelayout"
)

const installFilePerm = 0o644

// InstallStatus is the terminal state of a capability's setup flow.
type InstallStatus string

const (
	InstallStatusReady  InstallStatus = "ready"
	InstallStatusFailed InstallStatus = "failed"
)

// InstallRecord is the durable marker that a setup-requiring capability may
// be invoked (or, with status "failed", that it explicitly may not yet).
// It is the only persisted artifact this package owns; everything else
// (offers, bindings) is reconstructed from pack manifests on every build.
type InstallRecord struct {
	CapID           string        `json:"cap_id"`
	StableID        string        `json:"stable_id"`
	PackID          string        `json:"pack_id"`
	Status          InstallStatus `json:"status"`
	ConfigStateKeys []string      `json:"config_state_keys,omitempty"`
	TimestampUnixSec int64        `json:"timestamp_unix_sec"`
}

// WriteInstallRecord atomically writes r to
// state/runtime/{tenant}/{team}/capabilities/{stable_id}.install.json.
func WriteInstallRecord(layout statelayout.Layout, tenant, team string, r InstallRecord) (string, error) {
	path := layout.CapabilityInstallPath(tenant, team, r.StableID)
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	if err := fsatomic.WriteFile(path, data, installFilePerm); err != nil {
		return "", err
	}
	return path, nil
}

// ReadInstallRecord loads the install record for stableID within
// (tenant, team), if one has been written. A missing file is reported via
// ok=false rather than an error: "no install record" is the normal state
// for a capability that has never completed setup.
func ReadInstallRecord(layout statelayout.Layout, tenant, team, stableID string) (*InstallRecord, bool, error) {
	path := layout.CapabilityInstallPath(tenant, team, stableID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var r InstallRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false, err
	}
	return &r, true, nil
}

// IsReady reports whether the binding with stableID may be invoked: when
// requiresSetup is false it is always ready; otherwise it needs a persisted
// InstallRecord with status "ready".
func IsReady(layout statelayout.Layout, tenant, team string, requiresSetup bool, stableID string) (bool, error) {
	if !requiresSetup {
		return true, nil
	}
	rec, ok, err := ReadInstallRecord(layout, tenant, team, stableID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return rec.Status == InstallStatusReady, nil
}
