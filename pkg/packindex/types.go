// Package packindex walks a bundle directory, opens each pack archive (a
// standard zip containing manifest.cbor), decodes its manifest, and caches
// the result by canonicalized absolute path: an immutable, read-mostly
// index rebuilt wholesale on rescan (see pkg/manifest for the decoder it
// drives).
package packindex

import (
	"fmt"

	"github.com/greentic/packoperator/pkg/manifest"
)

// PackSuffix is the file extension a bundle scan looks for.
const PackSuffix = ".pack"

// ManifestEntryName is the single zip entry every pack archive must carry.
const ManifestEntryName = "manifest.cbor"

// Pack is an immutable, opened pack: identity plus its decoded manifest.
type Pack struct {
	PackID         string
	PackPath       string // canonicalized absolute path
	Manifest       *manifest.Manifest
	ResolvedDigest string // hex-encoded 128-bit hash of the archive bytes
	DescribeHash   string // hex-encoded 128-bit hash of the manifest's public contract
}

// CollisionError is returned when two distinct paths resolve to the same
// pack_id within one index build.
type CollisionError struct {
	PackID   string
	PathA    string
	PathB    string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("packindex: pack_id %q claimed by both %s and %s", e.PackID, e.PathA, e.PathB)
}

// Index is an immutable snapshot of every pack found under a scan root,
// keyed by canonicalized absolute path. A rescan produces a new Index;
// there is no in-place mutation.
type Index struct {
	byPath   map[string]*Pack
	byPackID map[string]string // pack_id -> path, for collision detection
}

// Packs returns every pack in the index, in no particular order.
func (idx *Index) Packs() []*Pack {
	out := make([]*Pack, 0, len(idx.byPath))
	for _, p := range idx.byPath {
		out = append(out, p)
	}
	return out
}

// ByPath returns the pack opened at the given canonicalized path, if any.
func (idx *Index) ByPath(path string) (*Pack, bool) {
	p, ok := idx.byPath[path]
	return p, ok
}

// ByPackID returns the pack with the given pack_id, if any.
func (idx *Index) ByPackID(packID string) (*Pack, bool) {
	path, ok := idx.byPackID[packID]
	if !ok {
		return nil, false
	}
	return idx.ByPath(path)
}

// Len reports how many packs this index holds.
func (idx *Index) Len() int {
	return len(idx.byPath)
}
