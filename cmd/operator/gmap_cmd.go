package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/greentic/packoperator/pkg/gmap"
	"github.com/greentic/packoperator/pkg/statelayout"
)

// runGmapCmd implements both `allow` and `forbid`: they differ only in
// which Policy gets upserted.
func runGmapCmd(args []string, stdout, stderr io.Writer, allow bool) int {
	name := "forbid"
	if allow {
		name = "allow"
	}
	cmd := flag.NewFlagSet(name, flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		bundle, tenant, team string
		path, cel            string
		remove               bool
		dryRun               bool
	)
	cmd.StringVar(&bundle, "bundle", "", "bundle root directory (required)")
	cmd.StringVar(&tenant, "tenant", defaultTenant, "tenant id")
	cmd.StringVar(&team, "team", "", "team id; empty targets the tenant-wide gmap file")
	cmd.StringVar(&path, "path", gmap.Wildcard, "pack/flow/node path, or _ for the wildcard rule")
	cmd.StringVar(&cel, "cel", "", "optional CEL predicate narrowing when the rule applies")
	cmd.BoolVar(&remove, "remove", false, "remove the rule for --path instead of upserting it")
	cmd.BoolVar(&dryRun, "dry-run", false, "print the mutation that would be made without writing it")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if bundle == "" {
		fmt.Fprintln(stderr, "error: --bundle is required")
		return 2
	}

	layout := statelayout.New(bundle)

	filePath := layout.GmapTenantPath(tenant)
	if team != "" {
		filePath = layout.GmapTeamPath(tenant, team)
	}

	if remove {
		if dryRun {
			fmt.Fprintf(stdout, "dry run: would remove rule for %s from %s\n", path, filePath)
			return 0
		}
		if err := gmap.Remove(filePath, path); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "removed rule for %s from %s\n", path, filePath)
		return 0
	}

	policy := gmap.Forbidden
	if allow {
		policy = gmap.Public
	}
	if dryRun {
		fmt.Fprintf(stdout, "dry run: would write %s: %s = %s to %s\n", name, path, policy, filePath)
		return 0
	}
	if err := gmap.Upsert(filePath, gmap.Rule{Path: path, Policy: policy, CEL: cel}); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "%s: %s = %s written to %s\n", name, path, policy, filePath)
	return 0
}
