package gmap

import (
	"fmt"
	"os"

	"github.com/greentic/packoperator/pkg/fsatomic"
)

const filePerm = 0o644

// Load reads and parses the gmap file at path. A missing file is not an
// error: it is treated as an empty rule set (equivalent to no wildcard
// rule configured, which resolution treats as Forbidden by default).
func Load(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("gmap: read %s: %w", path, err)
	}
	return Parse(data)
}

// Upsert inserts or replaces the rule for path within the file at
// filePath, then rewrites the whole file in canonical order via an atomic
// write.
func Upsert(filePath string, rule Rule) error {
	rules, err := Load(filePath)
	if err != nil {
		return err
	}

	replaced := false
	for i, r := range rules {
		if r.Path == rule.Path {
			rules[i] = rule
			replaced = true
			break
		}
	}
	if !replaced {
		rules = append(rules, rule)
	}

	return fsatomic.WriteFile(filePath, Format(rules), filePerm)
}

// Remove deletes the rule for path within the file at filePath, if present.
func Remove(filePath string, path string) error {
	rules, err := Load(filePath)
	if err != nil {
		return err
	}

	out := rules[:0:0]
	for _, r := range rules {
		if r.Path != path {
			out = append(out, r)
		}
	}
	return fsatomic.WriteFile(filePath, Format(out), filePerm)
}
