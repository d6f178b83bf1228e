// Command operator is the thin CLI front-end over the pack runtime. It
// stays a dispatcher over flag parsing and wiring: every decision of
// substance (manifest decoding, registry resolution, policy evaluation,
// hook dispatch, subscription lifecycle) lives in pkg/*, not here.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/greentic/packoperator/pkg/capabilities"
	"github.com/greentic/packoperator/pkg/gmap"
	"github.com/greentic/packoperator/pkg/offers"
	"github.com/greentic/packoperator/pkg/packindex"
	"github.com/greentic/packoperator/pkg/statelayout"
	"github.com/greentic/packoperator/pkg/subscriptions"
)

const (
	defaultTenant = "demo"
	defaultTeam   = "default"
)

// packsDir is where a bundle keeps its pack archives, a fixed convention
// alongside state/ in the bundle root.
func packsDir(bundle string) string {
	return filepath.Join(bundle, "packs")
}

// runtime bundles the wired core components a subcommand needs, built
// fresh from the bundle root on every invocation: there is no daemon
// state to reuse between CLI runs.
type runtime struct {
	Index    *packindex.Index
	Offers   *offers.Registry
	Caps     *capabilities.Registry
	Layout   statelayout.Layout
	Resolver *gmap.Resolver
	Sched    *subscriptions.Scheduler
}

func buildRuntime(bundle, tenant, team string) (*runtime, error) {
	idx, err := packindex.Build(packsDir(bundle))
	if err != nil {
		return nil, fmt.Errorf("scan packs: %w", err)
	}
	offReg, err := offers.BuildFromIndex(idx)
	if err != nil {
		return nil, fmt.Errorf("build offer registry: %w", err)
	}
	capReg, err := capabilities.BuildFromIndex(idx)
	if err != nil {
		return nil, fmt.Errorf("build capability registry: %w", err)
	}
	layout := statelayout.New(bundle)

	resolver, err := loadResolver(layout, tenant, team)
	if err != nil {
		return nil, fmt.Errorf("load gmap: %w", err)
	}

	return &runtime{
		Index:    idx,
		Offers:   offReg,
		Caps:     capReg,
		Layout:   layout,
		Resolver: resolver,
		Sched:    subscriptions.New(idx, offReg, layout),
	}, nil
}

func loadResolver(layout statelayout.Layout, tenant, team string) (*gmap.Resolver, error) {
	tenantRules, err := gmap.Load(layout.GmapTenantPath(tenant))
	if err != nil {
		return nil, err
	}

	var teamRules []gmap.Rule
	if team != "" {
		teamPath := layout.GmapTeamPath(tenant, team)
		if _, statErr := os.Stat(teamPath); statErr == nil {
			teamRules, err = gmap.Load(teamPath)
			if err != nil {
				return nil, err
			}
		}
	}

	cel, err := gmap.NewCELEvaluator()
	if err != nil {
		return nil, err
	}
	return &gmap.Resolver{TenantRules: tenantRules, TeamRules: teamRules, CEL: cel}, nil
}
