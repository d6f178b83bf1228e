package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/greentic/packoperator/pkg/config"
	"github.com/greentic/packoperator/pkg/ingress"
)

func runIngressCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("ingress", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		bundle, tenant, team string
		pack, flowName, node string
		method, path, domain string
		bodyFile             string
		hooksEnabled         bool
		eventHooks           bool
		hookRPS              float64
		hookBurst            int
	)
	cmd.StringVar(&bundle, "bundle", "", "bundle root directory (required)")
	cmd.StringVar(&tenant, "tenant", defaultTenant, "tenant id")
	cmd.StringVar(&team, "team", defaultTeam, "team id")
	cmd.StringVar(&pack, "pack", "", "target pack_id (required)")
	cmd.StringVar(&flowName, "flow", "", "flow name within the pack")
	cmd.StringVar(&node, "node", "", "node name within the flow")
	cmd.StringVar(&method, "method", "POST", "request method")
	cmd.StringVar(&path, "path", "/", "request path")
	cmd.StringVar(&domain, "domain", "", "invocation domain (e.g. events)")
	cmd.StringVar(&bodyFile, "body-file", "", "path to a file containing the raw request body; - reads stdin")

	cfg := config.Load()
	cmd.BoolVar(&hooksEnabled, "hooks", cfg.HooksEnabled, "run the post-ingress hook chain")
	cmd.BoolVar(&eventHooks, "event-hooks", cfg.EnableEventHooks, "also run hooks for domain=events requests")
	cmd.Float64Var(&hookRPS, "hook-rps", 0, "per-pack hook invocation rate limit; 0 disables limiting")
	cmd.IntVar(&hookBurst, "hook-burst", 1, "per-pack hook invocation burst size")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if bundle == "" || pack == "" {
		fmt.Fprintln(stderr, "error: --bundle and --pack are required")
		return 2
	}

	rt, err := buildRuntime(bundle, tenant, team)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	body, err := readBody(bodyFile)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	engine := &ingress.Engine{
		Index:            rt.Index,
		Offers:           rt.Offers,
		Resolver:         rt.Resolver,
		HooksEnabled:     hooksEnabled,
		EnableEventHooks: eventHooks,
		HookRateLimit:    ingress.NewHookRateLimiter(hookRPS, hookBurst),
	}

	resp, events, err := engine.Process(context.Background(), ingress.IngressRequestV1{
		Method: method,
		Path:   path,
		Body:   body,
		Tenant: tenant,
		Team:   team,
		Domain: domain,
		Pack:   pack,
		Flow:   flowName,
		Node:   node,
	})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]interface{}{"response": resp, "events": events})

	if err != nil {
		return 1
	}
	return 0
}

func readBody(bodyFile string) ([]byte, error) {
	switch bodyFile {
	case "":
		return nil, nil
	case "-":
		return io.ReadAll(os.Stdin)
	default:
		return os.ReadFile(bodyFile)
	}
}
