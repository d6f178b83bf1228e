package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/greentic/packoperator/pkg/gmap"
	"github.com/greentic/packoperator/pkg/statelayout"
	"github.com/greentic/packoperator/pkg/wizardcontract"
)

// runWizardCmd decodes and validates a wizard answer file and, in execute
// mode, applies the one mutation this runtime actually owns: turning each
// pack_ref's access scope into a gmap allow rule. Everything else a
// wizard drives (catalog resolution, OCI pack fetch, QA rendering)
// belongs to the external wizard/forms engine.
func runWizardCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("wizard", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		answersFile string
		dryRun      bool
	)
	cmd.StringVar(&answersFile, "answers-file", "", "path to the wizard answer file, JSON or YAML (required)")
	cmd.BoolVar(&dryRun, "dry-run", false, "force plan-only mode even if the answer file says execute")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if answersFile == "" {
		fmt.Fprintln(stderr, "error: --answers-file is required")
		return 2
	}

	data, err := os.ReadFile(answersFile)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	var answers *wizardcontract.AnswerFile
	if strings.HasSuffix(answersFile, ".yaml") || strings.HasSuffix(answersFile, ".yml") {
		answers, err = wizardcontract.ParseYAML(data)
	} else {
		answers, err = wizardcontract.ParseJSON(data)
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "bundle: %s\n", answers.BundlePath)
	fmt.Fprintf(stdout, "execution_mode: %s\n", answers.ExecutionMode)
	for _, ref := range answers.PackRefs {
		fmt.Fprintf(stdout, "  pack_ref: %s scope=%s tenant=%s team=%s\n", ref.PackRef, ref.AccessScope, ref.TenantID, ref.TeamID)
	}
	for _, p := range answers.Providers {
		fmt.Fprintf(stdout, "  provider: %s\n", p.ProviderID)
	}

	if dryRun || answers.IsDryRun() {
		fmt.Fprintln(stdout, "dry run: no mutations applied")
		return 0
	}

	layout := statelayout.New(filepath.Clean(answers.BundlePath))
	applied := 0
	for _, ref := range answers.PackRefs {
		if err := applyPackRefAccess(layout, ref); err != nil {
			fmt.Fprintf(stderr, "error applying %s: %v\n", ref.PackRef, err)
			return 1
		}
		applied++
	}
	fmt.Fprintf(stdout, "applied %d pack_ref allow rule(s)\n", applied)
	return 0
}

func applyPackRefAccess(layout statelayout.Layout, ref wizardcontract.PackRef) error {
	rule := gmap.Rule{Path: gmap.Wildcard, Policy: gmap.Public}

	switch ref.AccessScope {
	case wizardcontract.AccessScopeAllTenants:
		return gmap.Upsert(layout.GmapTenantPath("_"), rule)
	case wizardcontract.AccessScopeTenantAllTeams:
		return gmap.Upsert(layout.GmapTenantPath(ref.TenantID), rule)
	case wizardcontract.AccessScopeSpecificTeam:
		return gmap.Upsert(layout.GmapTeamPath(ref.TenantID, ref.TeamID), rule)
	default:
		return fmt.Errorf("unhandled access scope %q", ref.AccessScope)
	}
}
