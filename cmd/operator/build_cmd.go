package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/greentic/packoperator/pkg/packindex"
)

func runBuildCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("build", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		bundle     string
		jsonOutput bool
	)
	cmd.StringVar(&bundle, "bundle", "", "bundle root directory (required)")
	cmd.BoolVar(&jsonOutput, "json", false, "print the index as JSON instead of a table")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if bundle == "" {
		fmt.Fprintln(stderr, "error: --bundle is required")
		return 2
	}

	idx, err := packindex.Build(packsDir(bundle))
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	packs := idx.Packs()
	sort.Slice(packs, func(i, j int) bool { return packs[i].PackID < packs[j].PackID })

	if jsonOutput {
		type packSummary struct {
			PackID         string `json:"pack_id"`
			PackPath       string `json:"pack_path"`
			ResolvedDigest string `json:"resolved_digest"`
			DescribeHash   string `json:"describe_hash"`
		}
		out := make([]packSummary, 0, len(packs))
		for _, p := range packs {
			out = append(out, packSummary{PackID: p.PackID, PackPath: p.PackPath, ResolvedDigest: p.ResolvedDigest, DescribeHash: p.DescribeHash})
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return boolToExit(enc.Encode(out) == nil)
	}

	fmt.Fprintf(stdout, "%d pack(s) indexed under %s\n", idx.Len(), packsDir(bundle))
	for _, p := range packs {
		fmt.Fprintf(stdout, "  %-40s %s\n", p.PackID, p.ResolvedDigest)
	}
	return 0
}

func boolToExit(ok bool) int {
	if ok {
		return 0
	}
	return 1
}
