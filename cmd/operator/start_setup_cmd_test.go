package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/greentic/packoperator/pkg/packindex"
)

// writeTestPackWithSetupCapability writes a pack whose manifest declares one
// capability offer with requires_setup=true under the capabilities extension.
func writeTestPackWithSetupCapability(t *testing.T, bundle, packID, capID string) {
	t.Helper()

	manifestBytes, err := cbor.Marshal(map[string]interface{}{
		"pack_id":        packID,
		"schema_version": "1",
		"extensions": map[string]interface{}{
			"greentic.ext.capabilities.v1": map[string]interface{}{
				"schema_version": 1,
				"inline": map[string]interface{}{
					"offers": []interface{}{
						map[string]interface{}{
							"cap_id":                 capID,
							"version":                "v1",
							"provider_component_ref": "comp",
							"provider_op":            "setup",
							"requires_setup":         true,
						},
					},
				},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	w, err := zw.Create(packindex.ManifestEntryName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(manifestBytes); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(bundle, "packs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, packID+".pack"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStartCmd_BoundedSweeps(t *testing.T) {
	bundle := t.TempDir()
	if err := os.MkdirAll(filepath.Join(bundle, "packs"), 0o755); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, code := runCLI(t, "start", "--bundle", bundle, "--sweeps", "1", "--interval-seconds", "1")
	if code != 0 {
		t.Fatalf("code = %d, want 0: stderr=%q", code, stderr)
	}
	if !strings.Contains(stdout, "sweep complete") {
		t.Fatalf("stdout = %q, want a sweep summary", stdout)
	}

	pidPath := filepath.Join(bundle, "state", "runtime", "demo", "default", "pids", "operator.pid")
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("pidfile must be removed on exit, stat err = %v", err)
	}
}

func TestStartCmd_MissingBundleFlag(t *testing.T) {
	_, stderr, code := runCLI(t, "start")
	if code != 2 {
		t.Fatalf("code = %d, want 2", code)
	}
	if !strings.Contains(stderr, "--bundle is required") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestUpAliasesStart(t *testing.T) {
	bundle := t.TempDir()
	if err := os.MkdirAll(filepath.Join(bundle, "packs"), 0o755); err != nil {
		t.Fatal(err)
	}

	stdout, _, code := runCLI(t, "up", "--bundle", bundle, "--sweeps", "1", "--interval-seconds", "1")
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}
	if !strings.Contains(stdout, "started") {
		t.Fatalf("stdout = %q, want the start banner", stdout)
	}
}

func TestSetupCmd_DryRunListsPendingOffer(t *testing.T) {
	bundle := t.TempDir()
	writeTestPackWithSetupCapability(t, bundle, "pack.demo", "cap.demo")

	stdout, stderr, code := runCLI(t, "setup", "--bundle", bundle, "--dry-run")
	if code != 0 {
		t.Fatalf("code = %d, want 0: stderr=%q", code, stderr)
	}
	if !strings.Contains(stdout, "1 capability offer(s) require setup") {
		t.Fatalf("stdout = %q, want one pending offer", stdout)
	}
	if !strings.Contains(stdout, "would invoke comp.setup on pack pack.demo") {
		t.Fatalf("stdout = %q, want the dry-run plan line", stdout)
	}

	capsDir := filepath.Join(bundle, "state", "runtime", "demo", "default", "capabilities")
	if entries, err := os.ReadDir(capsDir); err == nil && len(entries) > 0 {
		t.Fatalf("dry run must not write install records, found %d", len(entries))
	}
}

func TestSetupCmd_FailureWritesFailedRecord(t *testing.T) {
	bundle := t.TempDir()
	writeTestPackWithSetupCapability(t, bundle, "pack.demo", "cap.demo")

	// The pack carries no comp.wasm entry, so the setup invocation fails
	// and the offer must be recorded as failed rather than ready.
	_, stderr, code := runCLI(t, "setup", "--bundle", bundle)
	if code != 1 {
		t.Fatalf("code = %d, want 1: stderr=%q", code, stderr)
	}
	if !strings.Contains(stderr, "setup failed") {
		t.Fatalf("stderr = %q, want a setup failure", stderr)
	}

	stableID := "pack.demo::cap.demo::comp::setup::0"
	recordPath := filepath.Join(bundle, "state", "runtime", "demo", "default",
		"capabilities", stableID+".install.json")
	data, err := os.ReadFile(recordPath)
	if err != nil {
		t.Fatalf("read install record: %v", err)
	}
	var record struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatal(err)
	}
	if record.Status != "failed" {
		t.Fatalf("record status = %q, want failed", record.Status)
	}
}

func TestSetupCmd_SkipsReadyOffer(t *testing.T) {
	bundle := t.TempDir()
	writeTestPackWithSetupCapability(t, bundle, "pack.demo", "cap.demo")

	stableID := "pack.demo::cap.demo::comp::setup::0"
	if _, _, code := runCLI(t, "capability", "mark-ready",
		"--bundle", bundle,
		"--cap-id", "cap.demo",
		"--pack-id", "pack.demo",
		"--stable-id", stableID,
	); code != 0 {
		t.Fatalf("mark-ready failed with code %d", code)
	}

	stdout, _, code := runCLI(t, "setup", "--bundle", bundle)
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}
	if !strings.Contains(stdout, "already ready, skipping") {
		t.Fatalf("stdout = %q, want the skip line", stdout)
	}
}

func TestSetupCmd_CapIDFilter(t *testing.T) {
	bundle := t.TempDir()
	writeTestPackWithSetupCapability(t, bundle, "pack.demo", "cap.demo")

	stdout, _, code := runCLI(t, "setup", "--bundle", bundle, "--cap-id", "cap.other", "--dry-run")
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}
	if !strings.Contains(stdout, "0 capability offer(s) require setup") {
		t.Fatalf("stdout = %q, want zero offers after filtering", stdout)
	}
}
