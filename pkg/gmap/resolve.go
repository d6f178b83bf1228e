package gmap

// Resolver answers is_allowed queries. It holds the parsed rule sets for
// one tenant file and (optionally) one team file, plus an optional CEL
// evaluator for rules carrying an advanced predicate.
type Resolver struct {
	TenantRules []Rule
	TeamRules   []Rule // nil when no team-specific file exists
	CEL         *CELEvaluator
}

// IsAllowed resolves (tenant, team, path): the team's rule set is used
// when present, else the tenant's. Within the chosen file, the
// longest-prefix matching rule wins; a rule carrying a CEL predicate only
// counts as a match when the predicate also evaluates true; otherwise
// evaluation falls through to the next-longest matching rule. An empty or
// unconfigured rule set denies by default.
func (r *Resolver) IsAllowed(tenant, team, path string) bool {
	rules := r.TeamRules
	if rules == nil {
		rules = r.TenantRules
	}
	if len(rules) == 0 {
		return false
	}

	querySegments := splitQueryPath(path)
	best, found := bestMatch(rules, querySegments, r.CEL, tenant, team, path)
	if !found {
		return false
	}
	return best.Policy == Public
}

// bestMatch returns the longest-prefix rule matching querySegments, among
// those whose CEL predicate (if any) also matches.
func bestMatch(rules []Rule, querySegments []string, evalr *CELEvaluator, tenant, team, path string) (Rule, bool) {
	var best Rule
	found := false
	for _, r := range rules {
		if !r.matchesPrefix(querySegments) {
			continue
		}
		if r.CEL != "" {
			if evalr == nil || !evalr.Matches(r.CEL, tenant, team, path) {
				continue
			}
		}
		switch {
		case !found:
			best, found = r, true
		case r.depth() > best.depth():
			best = r
		case r.depth() == best.depth() && r.CEL != "" && best.CEL == "":
			// A satisfied CEL predicate makes an equal-depth rule strictly
			// more specific than a plain one at the same path.
			best = r
		}
	}
	return best, found
}
