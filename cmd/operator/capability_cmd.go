package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/greentic/packoperator/pkg/capabilities"
	"github.com/greentic/packoperator/pkg/config"
	"github.com/greentic/packoperator/pkg/runner"
)

func runCapabilityCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "usage: operator capability <resolve|invoke|setup-plan|mark-ready|mark-failed> [flags]")
		return 2
	}

	switch args[0] {
	case "resolve":
		return runCapabilityResolve(args[1:], stdout, stderr)
	case "invoke":
		return runCapabilityInvoke(args[1:], stdout, stderr)
	case "setup-plan":
		return runCapabilitySetupPlan(args[1:], stdout, stderr)
	case "mark-ready":
		return runCapabilityMark(args[1:], stdout, stderr, capabilities.InstallStatusReady)
	case "mark-failed":
		return runCapabilityMark(args[1:], stdout, stderr, capabilities.InstallStatusFailed)
	default:
		fmt.Fprintf(stderr, "unknown capability subcommand: %s\n", args[0])
		return 2
	}
}

func capabilityScopeFlags(cmd *flag.FlagSet) (bundle, tenant, team, env, capID *string) {
	bundle = cmd.String("bundle", "", "bundle root directory (required)")
	tenant = cmd.String("tenant", defaultTenant, "tenant id")
	team = cmd.String("team", defaultTeam, "team id")
	env = cmd.String("env", config.Load().Env, "environment (dev/staging/prod/...)")
	capID = cmd.String("cap-id", "", "capability id (required)")
	return
}

func runCapabilityResolve(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("capability resolve", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	bundle, tenant, team, env, capID := capabilityScopeFlags(cmd)
	minVersion := cmd.String("min-version", "", "required exact version match; empty matches any")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *bundle == "" || *capID == "" {
		fmt.Fprintln(stderr, "error: --bundle and --cap-id are required")
		return 2
	}

	rt, err := buildRuntime(*bundle, *tenant, *team)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	var mv *string
	if *minVersion != "" {
		mv = minVersion
	}
	binding, ok := rt.Caps.Resolve(*capID, mv, capabilities.ResolveScope{Env: *env, Tenant: *tenant, Team: *team})
	if !ok {
		fmt.Fprintf(stderr, "no matching offer for cap_id %q in scope\n", *capID)
		for _, rec := range capabilities.SortOffersForDisplay(rt.Caps.OffersFor(*capID)) {
			fmt.Fprintf(stderr, "  known: %s version=%s priority=%d\n", rec.StableID, rec.Version, rec.Priority)
		}
		return 1
	}
	return printJSON(stdout, binding)
}

func runCapabilityInvoke(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("capability invoke", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	bundle, tenant, team, env, capID := capabilityScopeFlags(cmd)
	minVersion := cmd.String("min-version", "", "required exact version match; empty matches any")
	payloadFile := cmd.String("payload-file", "-", "path to the JSON payload; - reads stdin")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *bundle == "" || *capID == "" {
		fmt.Fprintln(stderr, "error: --bundle and --cap-id are required")
		return 2
	}

	rt, err := buildRuntime(*bundle, *tenant, *team)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	var mv *string
	if *minVersion != "" {
		mv = minVersion
	}
	scope := capabilities.ResolveScope{Env: *env, Tenant: *tenant, Team: *team}
	binding, ok := rt.Caps.Resolve(*capID, mv, scope)
	if !ok {
		fmt.Fprintf(stderr, "no matching offer for cap_id %q in scope\n", *capID)
		return 1
	}

	offer := findOfferRecord(rt.Caps, *capID, binding.StableID)
	requiresSetup := offer != nil && offer.RequiresSetup
	ready, err := capabilities.IsReady(rt.Layout, *tenant, *team, requiresSetup, binding.StableID)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if !ready {
		fmt.Fprintf(stderr, "capability %s (stable_id %s) requires setup and is not ready\n", *capID, binding.StableID)
		return 1
	}

	pack, ok := rt.Index.ByPackID(binding.PackID)
	if !ok {
		fmt.Fprintf(stderr, "error: pack %s vanished from index between resolve and invoke\n", binding.PackID)
		return 1
	}

	payload, err := readBody(*payloadFile)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	outcome, err := runner.Invoke(context.Background(), runner.InvokeRequest{
		Domain:               "capabilities",
		Pack:                 pack,
		ProviderComponentRef: binding.ProviderComponentRef,
		OpName:               binding.ProviderOp,
		Payload:              payload,
	})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return printJSON(stdout, outcome)
}

func runCapabilitySetupPlan(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("capability setup-plan", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	bundle := cmd.String("bundle", "", "bundle root directory (required)")
	tenant := cmd.String("tenant", defaultTenant, "tenant id")
	team := cmd.String("team", defaultTeam, "team id")
	env := cmd.String("env", config.Load().Env, "environment")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *bundle == "" {
		fmt.Fprintln(stderr, "error: --bundle is required")
		return 2
	}

	rt, err := buildRuntime(*bundle, *tenant, *team)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	offers := rt.Caps.OffersRequiringSetup(capabilities.ResolveScope{Env: *env, Tenant: *tenant, Team: *team})
	return printJSON(stdout, offers)
}

func runCapabilityMark(args []string, stdout, stderr io.Writer, status capabilities.InstallStatus) int {
	name := "capability mark-failed"
	if status == capabilities.InstallStatusReady {
		name = "capability mark-ready"
	}
	cmd := flag.NewFlagSet(name, flag.ContinueOnError)
	cmd.SetOutput(stderr)
	bundle := cmd.String("bundle", "", "bundle root directory (required)")
	tenant := cmd.String("tenant", defaultTenant, "tenant id")
	team := cmd.String("team", defaultTeam, "team id")
	capID := cmd.String("cap-id", "", "capability id (required)")
	packID := cmd.String("pack-id", "", "owning pack id (required)")
	stableID := cmd.String("stable-id", "", "stable_id of the offer being marked (required)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *bundle == "" || *capID == "" || *packID == "" || *stableID == "" {
		fmt.Fprintln(stderr, "error: --bundle, --cap-id, --pack-id, and --stable-id are required")
		return 2
	}

	rt, err := buildRuntime(*bundle, *tenant, *team)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	path, err := capabilities.WriteInstallRecord(rt.Layout, *tenant, *team, capabilities.InstallRecord{
		CapID:            *capID,
		StableID:         *stableID,
		PackID:           *packID,
		Status:           status,
		TimestampUnixSec: time.Now().Unix(),
	})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return 0
}

func findOfferRecord(reg *capabilities.Registry, capID, stableID string) *capabilities.OfferRecord {
	for _, rec := range reg.OffersFor(capID) {
		if rec.StableID == stableID {
			return rec
		}
	}
	return nil
}
