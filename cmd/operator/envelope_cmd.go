package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/greentic/packoperator/pkg/envelope"
	"github.com/greentic/packoperator/pkg/statelayout"
)

// runEnvelopeCmd writes or reads a provider's config envelope directly
// from the CLI. Higher-level setup flows (capability setup-plan,
// wizard) decide *when* a provider needs configuring; this command is the
// mechanism that actually persists it, the same way `send` is the raw
// mechanism `ingress`/`capability invoke` are built on.
func runEnvelopeCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "usage: operator envelope <set|show> [flags]")
		return 2
	}

	switch args[0] {
	case "set":
		return runEnvelopeSet(args[1:], stdout, stderr)
	case "show":
		return runEnvelopeShow(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown envelope subcommand: %s\n", args[0])
		return 2
	}
}

func runEnvelopeSet(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("envelope set", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		bundle, tenant, team string
		pack, providerID     string
		operationID          string
		configFile           string
		schemaFile           string
		backup               bool
		backupCount          int
	)
	cmd.StringVar(&bundle, "bundle", "", "bundle root directory (required)")
	cmd.StringVar(&tenant, "tenant", defaultTenant, "tenant id")
	cmd.StringVar(&team, "team", defaultTeam, "team id")
	cmd.StringVar(&pack, "pack", "", "owning pack_id the envelope's provenance is stamped from (required)")
	cmd.StringVar(&providerID, "provider-id", "", "provider id the envelope configures (required)")
	cmd.StringVar(&operationID, "operation-id", "", "operation id recorded on the envelope")
	cmd.StringVar(&configFile, "config-file", "-", "path to a JSON config document; - reads stdin (required)")
	cmd.StringVar(&schemaFile, "schema-file", "", "path to a JSON Schema (draft 2020-12) the config must satisfy; empty skips validation")
	cmd.BoolVar(&backup, "backup", false, "keep a rotating backup of the prior envelope generation")
	cmd.IntVar(&backupCount, "backup-count", envelope.DefaultBackupCount, "number of prior generations to retain when --backup is set")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if bundle == "" || pack == "" || providerID == "" {
		fmt.Fprintln(stderr, "error: --bundle, --pack, and --provider-id are required")
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

	configBytes, err := readBody(configFile)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	var config interface{}
	if err := json.Unmarshal(configBytes, &config); err != nil {
		fmt.Fprintf(stderr, "error: --config-file is not valid JSON: %v\n", err)
		return 2
	}

	var schema []byte
	if schemaFile != "" {
		schema, err = readBody(schemaFile)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 2
		}
	}

	path, err := envelope.Write(envelope.WriteRequest{
		Layout:       rt.Layout,
		Pack:         target,
		Tenant:       tenant,
		Team:         team,
		ProviderID:   providerID,
		OperationID:  operationID,
		Config:       config,
		Backup:       backup,
		BackupCount:  backupCount,
		ConfigSchema: schema,
	})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return 0
}

func runEnvelopeShow(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("envelope show", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var bundle, tenant, team, providerID string
	cmd.StringVar(&bundle, "bundle", "", "bundle root directory (required)")
	cmd.StringVar(&tenant, "tenant", defaultTenant, "tenant id")
	cmd.StringVar(&team, "team", defaultTeam, "team id")
	cmd.StringVar(&providerID, "provider-id", "", "provider id whose envelope to read (required)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if bundle == "" || providerID == "" {
		fmt.Fprintln(stderr, "error: --bundle and --provider-id are required")
		return 2
	}

	layout := statelayout.New(bundle)
	env, err := envelope.Read(layout.ConfigEnvelopePath(tenant, team, providerID))
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return printJSON(stdout, env)
}
