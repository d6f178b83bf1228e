package capabilities

import "github.com/Masterminds/semver/v3"

// SortOffersForDisplay orders offers for a single cap_id by semantic
// version descending (newest first) when every version string parses as
// semver, falling back to lexicographic order otherwise. This is a
// diagnostics-only ordering for CLI listings (the offers `capability
// resolve` lists when nothing matches); it never participates in Resolve,
// which matches version by exact string equality.
func SortOffersForDisplay(group []*OfferRecord) []*OfferRecord {
	out := make([]*OfferRecord, len(group))
	copy(out, group)

	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && lessForDisplay(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func lessForDisplay(a, b *OfferRecord) bool {
	va, errA := semver.NewVersion(a.Version)
	vb, errB := semver.NewVersion(b.Version)
	if errA != nil || errB != nil {
		return a.Version < b.Version
	}
	return vb.LessThan(va) // descending: newest first
}
