package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/greentic/packoperator/pkg/runner"
)

// runSendCmd invokes one provider op directly against a pack in the
// index, bypassing ingress policy and the hook chain entirely: the
// low-level escape hatch onto the runner host that the higher-level
// commands (ingress, subscriptions, capability) are themselves built on.
func runSendCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("send", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		bundle, tenant, team string
		pack, providerRef    string
		op, domain           string
		payloadFile          string
		envelopeProvider     string
		allowContractChange  bool
	)
	cmd.StringVar(&bundle, "bundle", "", "bundle root directory (required)")
	cmd.StringVar(&tenant, "tenant", defaultTenant, "tenant id")
	cmd.StringVar(&team, "team", defaultTeam, "team id")
	cmd.StringVar(&pack, "pack", "", "target pack_id (required)")
	cmd.StringVar(&providerRef, "provider-ref", "", "provider_component_ref declared by an offer on the pack (required)")
	cmd.StringVar(&op, "op", "", "provider op name (required)")
	cmd.StringVar(&domain, "domain", "", "invocation domain")
	cmd.StringVar(&payloadFile, "payload-file", "-", "path to the JSON payload; - reads stdin")
	cmd.StringVar(&envelopeProvider, "envelope-provider", "", "provider_id whose config envelope gates this call with a contract-drift check; empty skips the gate")
	cmd.BoolVar(&allowContractChange, "allow-contract-change", false, "bypass a detected contract drift instead of failing")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if bundle == "" || pack == "" || providerRef == "" || op == "" {
		fmt.Fprintln(stderr, "error: --bundle, --pack, --provider-ref, and --op are required")
		return 2
	}

	rt, err := buildRuntime(bundle, tenant, team)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	target, ok := rt.Index.ByPackID(pack)
	if !ok {
		fmt.Fprintf(stderr, "error: pack %q not found in index\n", pack)
		return 1
	}

	payload, err := readBody(payloadFile)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	req := runner.InvokeRequest{
		Domain:               domain,
		Pack:                 target,
		ProviderComponentRef: providerRef,
		OpName:               op,
		Payload:              payload,
		AllowContractChange:  allowContractChange,
	}
	if envelopeProvider != "" {
		req.EnvelopePath = rt.Layout.ConfigEnvelopePath(tenant, team, envelopeProvider)
	}

	outcome, err := runner.Invoke(context.Background(), req)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	code := printJSON(stdout, outcome)
	if err != nil {
		return 1
	}
	return code
}
