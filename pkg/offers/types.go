// Package offers implements the offer registry: a cross-pack index of
// hook and subscription offers declared at the manifest top level or under
// any extension's inline.offers, keyed by "{pack_id}::{offer_id}".
package offers

import (
	"fmt"

	"github.com/greentic/packoperator/pkg/manifest"
)

// Record is one offer with its owning pack identity and synthesized key.
type Record struct {
	manifest.Offer
	PackID   string
	PackPath string
	Key      string // "{pack_id}::{offer_id}"
}

// DuplicateOfferError is returned when a pack declares the same offer_id
// more than once.
type DuplicateOfferError struct {
	PackID  string
	OfferID string
}

func (e *DuplicateOfferError) Error() string {
	return fmt.Sprintf("offers: duplicate offer_id %q within pack %q", e.OfferID, e.PackID)
}

// LoadTelemetry is the single structured event a registry load emits,
// naming aggregate counts for observability tests.
type LoadTelemetry struct {
	PacksTotal               int            `json:"packs_total"`
	OffersTotal              int            `json:"offers_total"`
	KindCounts               map[string]int `json:"kind_counts"`
	HookCountsByStageContract map[string]int `json:"hook_counts_by_stage_contract"`
	SubsCountsByContract     map[string]int `json:"subs_counts_by_contract"`
}

func stageContractKey(stage, contract string) string {
	return stage + "::" + contract
}
