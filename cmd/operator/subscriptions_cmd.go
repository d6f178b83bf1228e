package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/greentic/packoperator/pkg/subscriptions"
)

func runSubscriptionsCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "usage: operator subscriptions <ensure|status|renew|delete> [flags]")
		return 2
	}

	switch args[0] {
	case "ensure":
		return runSubscriptionsEnsure(args[1:], stdout, stderr)
	case "status":
		return runSubscriptionsStatus(args[1:], stdout, stderr)
	case "renew":
		return runSubscriptionsRenew(args[1:], stdout, stderr)
	case "delete":
		return runSubscriptionsDelete(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown subscriptions subcommand: %s\n", args[0])
		return 2
	}
}

func subscriptionsFlags(cmd *flag.FlagSet) (bundle, tenant, team, provider, bindingID *string) {
	bundle = cmd.String("bundle", "", "bundle root directory (required)")
	tenant = cmd.String("tenant", defaultTenant, "tenant id")
	team = cmd.String("team", "", "team id; defaults to the subscription package's default team")
	provider = cmd.String("provider", "", "provider pack_id (required)")
	bindingID = cmd.String("binding-id", "", "binding id; ensure synthesizes one when omitted")
	return
}

func runSubscriptionsEnsure(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("subscriptions ensure", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	bundle, tenant, team, provider, bindingID := subscriptionsFlags(cmd)
	resource := cmd.String("resource", "", "resource this subscription targets")
	notifyURL := cmd.String("notification-url", "", "webhook URL the provider should notify")
	clientState := cmd.String("client-state", "", "opaque client state echoed back by the provider")
	dryRun := cmd.Bool("dry-run", false, "print the binding that would be ensured without calling the provider or persisting state")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *bundle == "" || *provider == "" {
		fmt.Fprintln(stderr, "error: --bundle and --provider are required")
		return 2
	}

	req := subscriptions.EnsureRequest{
		BindingID:       *bindingID,
		Provider:        *provider,
		Tenant:          *tenant,
		Team:            *team,
		Resource:        *resource,
		NotificationURL: *notifyURL,
		ClientState:     *clientState,
	}

	if *dryRun {
		fmt.Fprintf(stdout, "dry run: would ensure binding for provider=%s tenant=%s team=%s resource=%s\n",
			req.Provider, req.Tenant, req.Team, req.Resource)
		return 0
	}

	rt, err := buildRuntime(*bundle, *tenant, *team)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	st, err := rt.Sched.Ensure(context.Background(), req)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return printJSON(stdout, st)
}

func runSubscriptionsStatus(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("subscriptions status", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	bundle, tenant, team, provider, bindingID := subscriptionsFlags(cmd)
	listAll := cmd.Bool("all", false, "list every persisted binding instead of one")

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

	if *listAll {
		states, err := rt.Sched.ListAll()
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		return printJSON(stdout, states)
	}

	if *provider == "" || *bindingID == "" {
		fmt.Fprintln(stderr, "error: --provider and --binding-id are required unless --all is set")
		return 2
	}
	st, err := rt.Sched.Load(*provider, *tenant, *team, *bindingID)
	if err != nil {
		var nf *subscriptions.NotFoundError
		if errors.As(err, &nf) {
			fmt.Fprintf(stderr, "not found: %v\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return printJSON(stdout, st)
}

func runSubscriptionsRenew(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("subscriptions renew", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	bundle, tenant, team, provider, bindingID := subscriptionsFlags(cmd)
	skewSeconds := cmd.Int("skew-seconds", 300, "renew bindings expiring within this many seconds (used with --due)")
	due := cmd.Bool("due", false, "sweep every binding due for renewal instead of renewing one")

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

	if *due {
		results, err := rt.Sched.RenewDue(context.Background(), time.Duration(*skewSeconds)*time.Second, time.Now())
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		failed := 0
		for _, r := range results {
			status := "ok"
			if r.Err != nil {
				status = r.Err.Error()
				failed++
			}
			fmt.Fprintf(stdout, "%s: %s\n", r.BindingID, status)
		}
		if failed > 0 {
			return 1
		}
		return 0
	}

	if *provider == "" || *bindingID == "" {
		fmt.Fprintln(stderr, "error: --provider and --binding-id are required unless --due is set")
		return 2
	}
	st, err := rt.Sched.Load(*provider, *tenant, *team, *bindingID)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if err := rt.Sched.RenewBinding(context.Background(), st); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "renewed %s\n", *bindingID)
	return 0
}

func runSubscriptionsDelete(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("subscriptions delete", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	bundle, tenant, team, provider, bindingID := subscriptionsFlags(cmd)

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *bundle == "" || *provider == "" || *bindingID == "" {
		fmt.Fprintln(stderr, "error: --bundle, --provider, and --binding-id are required")
		return 2
	}

	rt, err := buildRuntime(*bundle, *tenant, *team)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	st, err := rt.Sched.Load(*provider, *tenant, *team, *bindingID)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if err := rt.Sched.DeleteBinding(context.Background(), st); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "deleted %s\n", *bindingID)
	return 0
}

func printJSON(w io.Writer, v interface{}) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return 1
	}
	return 0
}
