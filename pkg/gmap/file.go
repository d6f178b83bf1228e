package gmap

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strings"
)

const celSuffixMarker = "# cel:"

// Parse reads a gmap file's line-oriented rules: "path = public|forbidden",
// with an optional trailing "# cel: <expr>" narrowing predicate. Blank
// lines and lines starting with "#" are ignored.
func Parse(data []byte) ([]Rule, error) {
	var rules []Rule
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		cel := ""
		if idx := strings.Index(line, celSuffixMarker); idx >= 0 {
			cel = strings.TrimSpace(line[idx+len(celSuffixMarker):])
			line = strings.TrimSpace(line[:idx])
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("gmap: line %d: malformed rule %q", lineNo, line)
		}
		path := strings.TrimSpace(parts[0])
		policy := Policy(strings.TrimSpace(parts[1]))
		if policy != Public && policy != Forbidden {
			return nil, fmt.Errorf("gmap: line %d: unknown policy %q", lineNo, policy)
		}
		if path == "" {
			return nil, fmt.Errorf("gmap: line %d: empty path", lineNo)
		}

		rules = append(rules, Rule{Path: path, Policy: policy, CEL: cel})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("gmap: scan: %w", err)
	}
	return rules, nil
}

// Format renders rules in the canonical on-disk order required by upsert:
// wildcard first, then shorter paths before longer, then lexicographic.
func Format(rules []Rule) []byte {
	sorted := append([]Rule(nil), rules...)
	SortCanonical(sorted)

	var buf bytes.Buffer
	for _, r := range sorted {
		fmt.Fprintf(&buf, "%s = %s", r.Path, r.Policy)
		if r.CEL != "" {
			fmt.Fprintf(&buf, " %s %s", celSuffixMarker, r.CEL)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// SortCanonical orders rules in place: wildcard first, shorter paths before
// longer, lexicographic tie-break.
func SortCanonical(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if (a.Path == Wildcard) != (b.Path == Wildcard) {
			return a.Path == Wildcard
		}
		if len(a.Path) != len(b.Path) {
			return len(a.Path) < len(b.Path)
		}
		return a.Path < b.Path
	})
}
