package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the CLI entrypoint, kept separate from main for testability.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stdout)
		return 2
	}

	switch args[1] {
	case "build":
		return runBuildCmd(args[2:], stdout, stderr)
	case "start", "up":
		return runStartCmd(args[2:], stdout, stderr)
	case "setup":
		return runSetupCmd(args[2:], stdout, stderr)
	case "ingress":
		return runIngressCmd(args[2:], stdout, stderr)
	case "allow":
		return runGmapCmd(args[2:], stdout, stderr, true)
	case "forbid":
		return runGmapCmd(args[2:], stdout, stderr, false)
	case "subscriptions":
		return runSubscriptionsCmd(args[2:], stdout, stderr)
	case "capability":
		return runCapabilityCmd(args[2:], stdout, stderr)
	case "send":
		return runSendCmd(args[2:], stdout, stderr)
	case "wizard":
		return runWizardCmd(args[2:], stdout, stderr)
	case "envelope":
		return runEnvelopeCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "operator: tenant-scoped pack operator runtime")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "usage: operator <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  build           scan a bundle's packs/ into a pack index and report it")
	fmt.Fprintln(w, "  start, up       launch the service loop: pidfile + subscription renewal sweeps")
	fmt.Fprintln(w, "  setup           run setup flows for capabilities that require them")
	fmt.Fprintln(w, "  ingress         run one request through the ingress + hook engine")
	fmt.Fprintln(w, "  allow           add or replace a public gmap rule")
	fmt.Fprintln(w, "  forbid          add or replace a forbidden gmap rule")
	fmt.Fprintln(w, "  subscriptions   ensure/status/renew/delete subscription bindings")
	fmt.Fprintln(w, "  capability      resolve, invoke, and mark setup state for a capability")
	fmt.Fprintln(w, "  send            invoke one provider op directly, bypassing ingress")
	fmt.Fprintln(w, "  wizard          validate (and, in execute mode, apply) a wizard answer file")
	fmt.Fprintln(w, "  envelope        write or read a provider's config envelope")
	fmt.Fprintln(w, "  help            show this help")
}
