package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/greentic/packoperator/pkg/config"
	"github.com/greentic/packoperator/pkg/fsatomic"
)

const pidFilePerm = 0o644

// runStartCmd launches the operator's long-running service loop from a
// bundle: it writes a pidfile under the fixed state layout, then drives
// the subscription renewal sweep on a fixed-interval timer until
// interrupted (or until --sweeps bounded runs complete). The ingress
// pipeline itself has no daemon state; the loop exists for the renewal
// sweep, the one timeline the CLI cannot drive per-request.
func runStartCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("start", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		bundle, tenant, team string
		service              string
		intervalSeconds      int
		skewSeconds          int
		sweeps               int
	)
	cfg := config.Load()
	cmd.StringVar(&bundle, "bundle", "", "bundle root directory (required)")
	cmd.StringVar(&tenant, "tenant", defaultTenant, "tenant id")
	cmd.StringVar(&team, "team", defaultTeam, "team id")
	cmd.StringVar(&service, "service", "operator", "service name for the pidfile")
	cmd.IntVar(&intervalSeconds, "interval-seconds", cfg.TimerIntervalSeconds, "seconds between renewal sweeps")
	cmd.IntVar(&skewSeconds, "skew-seconds", 300, "renew bindings expiring within this many seconds")
	cmd.IntVar(&sweeps, "sweeps", 0, "run this many sweeps then exit; 0 runs until interrupted")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if bundle == "" {
		fmt.Fprintln(stderr, "error: --bundle is required")
		return 2
	}
	if intervalSeconds <= 0 {
		fmt.Fprintln(stderr, "error: --interval-seconds must be positive")
		return 2
	}

	rt, err := buildRuntime(bundle, tenant, team)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	pidPath := rt.Layout.PidFilePath(tenant, team, service)
	if err := fsatomic.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), pidFilePerm); err != nil {
		fmt.Fprintf(stderr, "error: write pidfile: %v\n", err)
		return 1
	}
	defer func() { _ = os.Remove(pidPath) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(stdout, "started: pid %d, sweeping every %ds (pidfile %s)\n", os.Getpid(), intervalSeconds, pidPath)

	skew := time.Duration(skewSeconds) * time.Second
	interval := time.Duration(intervalSeconds) * time.Second

	completed := 0
	for {
		results, err := rt.Sched.RenewDue(ctx, skew, time.Now())
		if err != nil {
			fmt.Fprintf(stderr, "sweep error: %v\n", err)
		} else {
			renewed, failed := 0, 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(stderr, "sweep: renew %s failed: %v\n", r.BindingID, r.Err)
				} else {
					renewed++
				}
			}
			fmt.Fprintf(stdout, "sweep complete: %d renewed, %d failed\n", renewed, failed)
		}

		completed++
		if sweeps > 0 && completed >= sweeps {
			return 0
		}

		select {
		case <-ctx.Done():
			fmt.Fprintln(stdout, "shutting down")
			return 0
		case <-time.After(interval):
		}
	}
}
