package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/greentic/packoperator/pkg/capabilities"
	"github.com/greentic/packoperator/pkg/config"
	"github.com/greentic/packoperator/pkg/runner"
)

// runSetupCmd drives provider setup flows: every capability offer in
// scope with requires_setup=true and no ready install record gets its
// provider op invoked once, and the outcome is persisted as an install
// record ("ready" on success, "failed" otherwise): the one durable
// transition that later allows the capability to be invoked.
func runSetupCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("setup", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		bundle, tenant, team, env string
		capID                     string
		dryRun                    bool
	)
	cmd.StringVar(&bundle, "bundle", "", "bundle root directory (required)")
	cmd.StringVar(&tenant, "tenant", defaultTenant, "tenant id")
	cmd.StringVar(&team, "team", defaultTeam, "team id")
	cmd.StringVar(&env, "env", config.Load().Env, "environment")
	cmd.StringVar(&capID, "cap-id", "", "only run setup for this capability id")
	cmd.BoolVar(&dryRun, "dry-run", false, "print the setup plan without invoking providers or writing records")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if bundle == "" {
		fmt.Fprintln(stderr, "error: --bundle is required")
		return 2
	}

	rt, err := buildRuntime(bundle, tenant, team)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	scope := capabilities.ResolveScope{Env: env, Tenant: tenant, Team: team}
	pending := rt.Caps.OffersRequiringSetup(scope)
	if capID != "" {
		filtered := pending[:0:0]
		for _, rec := range pending {
			if rec.CapID == capID {
				filtered = append(filtered, rec)
			}
		}
		pending = filtered
	}

	fmt.Fprintf(stdout, "%d capability offer(s) require setup in scope\n", len(pending))

	failed := 0
	for _, rec := range pending {
		ready, err := capabilities.IsReady(rt.Layout, tenant, team, true, rec.StableID)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		if ready {
			fmt.Fprintf(stdout, "  %s (%s): already ready, skipping\n", rec.CapID, rec.StableID)
			continue
		}
		if dryRun {
			fmt.Fprintf(stdout, "  %s (%s): would invoke %s.%s on pack %s\n",
				rec.CapID, rec.StableID, rec.ProviderComponentRef, rec.ProviderOp, rec.PackID)
			continue
		}

		status := capabilities.InstallStatusReady
		if err := runSetupFlow(rt, env, tenant, team, rec); err != nil {
			status = capabilities.InstallStatusFailed
			failed++
			fmt.Fprintf(stderr, "  %s (%s): setup failed: %v\n", rec.CapID, rec.StableID, err)
		} else {
			fmt.Fprintf(stdout, "  %s (%s): ready\n", rec.CapID, rec.StableID)
		}

		if _, err := capabilities.WriteInstallRecord(rt.Layout, tenant, team, capabilities.InstallRecord{
			CapID:            rec.CapID,
			StableID:         rec.StableID,
			PackID:           rec.PackID,
			Status:           status,
			TimestampUnixSec: time.Now().Unix(),
		}); err != nil {
			fmt.Fprintf(stderr, "error: write install record: %v\n", err)
			return 1
		}
	}

	if failed > 0 {
		return 1
	}
	return 0
}

func runSetupFlow(rt *runtime, env, tenant, team string, rec *capabilities.OfferRecord) error {
	pack, ok := rt.Index.ByPackID(rec.PackID)
	if !ok {
		return fmt.Errorf("pack %s vanished from index", rec.PackID)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"cap_id":       rec.CapID,
		"stable_id":    rec.StableID,
		"env":          env,
		"tenant":       tenant,
		"team":         team,
		"setup_qa_ref": rec.SetupQARef,
	})
	if err != nil {
		return err
	}

	_, err = runner.Invoke(context.Background(), runner.InvokeRequest{
		Domain:               "setup",
		Pack:                 pack,
		ProviderComponentRef: rec.ProviderComponentRef,
		OpName:               rec.ProviderOp,
		Payload:              payload,
	})
	return err
}
