package offers

import (
	"log/slog"
	"sort"

	"github.com/greentic/packoperator/pkg/manifest"
	"github.com/greentic/packoperator/pkg/packindex"
)

// Registry indexes every hook/subscription offer across a pack set.
type Registry struct {
	byKey map[string]*Record
}

// BuildFromIndex iterates every pack in idx in pack_id order, collects its
// top-level offers plus any hook/sub offers nested under a non-capabilities
// extension's inline.offers map, and rejects a duplicate offer_id within
// one pack with DuplicateOfferError. On success it emits exactly one
// LoadTelemetry event via log/slog at info level.
func BuildFromIndex(idx *packindex.Index) (*Registry, error) {
	r := &Registry{byKey: make(map[string]*Record)}

	packs := idx.Packs()
	sort.Slice(packs, func(i, j int) bool { return packs[i].PackID < packs[j].PackID })

	seenInPack := make(map[string]map[string]bool, len(packs))

	for _, p := range packs {
		seen := seenInPack[p.PackID]
		if seen == nil {
			seen = make(map[string]bool)
			seenInPack[p.PackID] = seen
		}

		offers := append([]manifest.Offer(nil), p.Manifest.Offers...)

		extIDs := make([]string, 0, len(p.Manifest.ManifestExtensions))
		for extID := range p.Manifest.ManifestExtensions {
			extIDs = append(extIDs, extID)
		}
		sort.Strings(extIDs)
		for _, extID := range extIDs {
			if extID == manifest.ExtCapabilities {
				continue
			}
			ext := p.Manifest.ManifestExtensions[extID]
			extOffers, err := manifest.ParseExtensionOffers(ext, p.Manifest.Entrypoints())
			if err != nil {
				return nil, err
			}
			offers = append(offers, extOffers...)
		}

		for _, o := range offers {
			if seen[o.OfferID] {
				return nil, &DuplicateOfferError{PackID: p.PackID, OfferID: o.OfferID}
			}
			seen[o.OfferID] = true

			rec := &Record{
				Offer:    o,
				PackID:   p.PackID,
				PackPath: p.PackPath,
				Key:      p.PackID + "::" + o.OfferID,
			}
			r.byKey[rec.Key] = rec
		}
	}

	emitTelemetry(r, len(packs))
	return r, nil
}

func emitTelemetry(r *Registry, packsTotal int) {
	t := LoadTelemetry{
		PacksTotal:                packsTotal,
		OffersTotal:               len(r.byKey),
		KindCounts:                make(map[string]int),
		HookCountsByStageContract: make(map[string]int),
		SubsCountsByContract:      make(map[string]int),
	}
	for _, rec := range r.byKey {
		t.KindCounts[string(rec.Kind)]++
		switch rec.Kind {
		case "hook":
			t.HookCountsByStageContract[stageContractKey(rec.Stage, rec.Contract)]++
		case "sub":
			t.SubsCountsByContract[rec.Contract]++
		}
	}
	slog.Info("offers: registry loaded",
		"packs_total", t.PacksTotal,
		"offers_total", t.OffersTotal,
		"kind_counts", t.KindCounts,
		"hook_counts_by_stage_contract", t.HookCountsByStageContract,
		"subs_counts_by_contract", t.SubsCountsByContract,
	)
}

// SelectHooks returns hook offers whose (stage, contract) match exactly,
// sorted by (priority asc, offer_key asc).
func (r *Registry) SelectHooks(stage, contract string) []*Record {
	var out []*Record
	for _, rec := range r.byKey {
		if rec.Kind != "hook" {
			continue
		}
		if rec.Stage == stage && rec.Contract == contract {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out
}

// SelectSubs returns subscription offers, optionally filtered by contract
// (empty contract matches all), sorted by (priority asc, offer_key asc).
func (r *Registry) SelectSubs(contract string) []*Record {
	var out []*Record
	for _, rec := range r.byKey {
		if rec.Kind != "sub" {
			continue
		}
		if contract != "" && rec.Contract != contract {
			continue
		}
		out = append(out, rec)
	}
	sortRecords(out)
	return out
}

func sortRecords(recs []*Record) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Priority != recs[j].Priority {
			return recs[i].Priority < recs[j].Priority
		}
		return recs[i].Key < recs[j].Key
	})
}
