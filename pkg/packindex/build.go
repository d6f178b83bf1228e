package packindex

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/greentic/packoperator/pkg/manifest"
)

// Build walks root recursively, opens every file whose extension is
// PackSuffix, decodes its manifest.cbor entry, and returns an immutable
// Index keyed by canonicalized absolute path. Two archives under root that
// declare the same pack_id at different paths are a hard CollisionError. Scans
// are single-threaded and deterministic: repeated builds of the same root
// produce equal indexes.
func Build(root string) (*Index, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("packindex: resolve root %s: %w", root, err)
	}

	var paths []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), PackSuffix) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("packindex: walk %s: %w", absRoot, err)
	}
	sort.Strings(paths) // deterministic processing order

	idx := &Index{
		byPath:   make(map[string]*Pack, len(paths)),
		byPackID: make(map[string]string, len(paths)),
	}

	for _, path := range paths {
		canon, err := canonicalize(path)
		if err != nil {
			return nil, err
		}
		p, err := openPack(canon)
		if err != nil {
			return nil, fmt.Errorf("packindex: open %s: %w", canon, err)
		}

		if existingPath, ok := idx.byPackID[p.PackID]; ok && existingPath != canon {
			return nil, &CollisionError{PackID: p.PackID, PathA: existingPath, PathB: canon}
		}

		idx.byPath[canon] = p
		idx.byPackID[p.PackID] = canon
	}

	return idx, nil
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("abs: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Fall back to the absolute path if symlink resolution fails
		// (e.g. the path does not exist yet in a test fixture).
		return abs, nil //nolint:nilerr
	}
	return resolved, nil
}

func openPack(path string) (*Pack, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("zip open: %w", err)
	}
	defer func() { _ = zr.Close() }()

	var manifestBytes []byte
	found := false
	for _, f := range zr.File {
		if f.Name != ManifestEntryName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", ManifestEntryName, err)
		}
		manifestBytes, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", ManifestEntryName, err)
		}
		found = true
		break
	}
	if !found {
		return nil, fmt.Errorf("archive has no %s entry", ManifestEntryName)
	}

	m, err := manifest.Decode(manifestBytes)
	if err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	archiveDigest, err := digestFile(path)
	if err != nil {
		return nil, fmt.Errorf("digest archive: %w", err)
	}

	describeHash, err := describeHash(m)
	if err != nil {
		return nil, fmt.Errorf("compute describe hash: %w", err)
	}

	return &Pack{
		PackID:         m.PackID,
		PackPath:       path,
		Manifest:       m,
		ResolvedDigest: archiveDigest,
		DescribeHash:   describeHash,
	}, nil
}

// FileStem returns path's base name without the pack suffix, the form a
// dispatch directive may name a pack by.
func FileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// digestFile and describeHash both truncate a SHA-256 digest to its first
// 16 bytes (128 bits), the content-hash width carried on every pack.
func digestFile(path string) (string, error) {
	// Hash the archive's raw bytes, not the decompressed entries, so that
	// ResolvedDigest is a pure function of the bytes delivered into the
	// local cache.
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:16]), nil
}

// describeHash is a pure function of the manifest's public contract: the
// canonical-CBOR re-encoding of the decoded manifest (operations, offers,
// and schemas all live inside it). Two packs with byte-identical manifests
// always agree; a contract change always changes this hash, which is the
// property envelope drift detection relies on.
func describeHash(m *manifest.Manifest) (string, error) {
	encoded, err := manifest.Encode(m)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(encoded)
	return hex.EncodeToString(h[:16]), nil
}
