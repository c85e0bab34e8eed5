package search

import "strings"

// acronymMaxLen is the longest token still treated as an acronym. Short
// tokens ("DNA", "mRNA" without the m, "HIV") pluralize badly and are
// matched exactly as typed.
const acronymMaxLen = 3

// position is one AND-position of a keyword query. A position matches a
// record when any of its alternatives (or their variants) matches.
type position struct {
	raw   string   // as typed, for logging
	terms []string // pipe-separated alternatives
}

// parseQuery splits a keyword query into AND-positions by whitespace.
// Each position may carry pipe-separated OR-alternatives, so
// "neural|brain organoid" parses to (neural OR brain) AND organoid.
// Empty alternatives and empty positions are dropped.
func parseQuery(query string) []position {
	fields := strings.Fields(query)
	positions := make([]position, 0, len(fields))
	for _, field := range fields {
		alts := make([]string, 0, 1)
		for _, alt := range strings.Split(field, "|") {
			alt = strings.TrimSpace(alt)
			if alt == "" {
				continue
			}
			alts = append(alts, alt)
		}
		if len(alts) == 0 {
			continue
		}
		positions = append(positions, position{raw: field, terms: alts})
	}
	return positions
}

// generateVariants returns the token followed by its singular/plural
// variants. Acronyms (≤3 characters, or all-caps as typed) are never
// varied. Generated variants are lowercase; the keyword index matches
// case-insensitively, so only the original keeps its typed case.
func generateVariants(token string) []string {
	if isAcronym(token) {
		return []string{token}
	}

	variants := []string{token}
	seen := map[string]bool{strings.ToLower(token): true}
	add := func(v string) {
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		variants = append(variants, v)
	}

	lower := strings.ToLower(token)
	n := len(lower)

	// Plural to singular.
	switch {
	case strings.HasSuffix(lower, "ies") && n > len("ies"):
		add(lower[:n-3] + "y")
	case hasSibilantPlural(lower):
		add(lower[:n-2])
	case strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss"):
		add(lower[:n-1])
	}

	// Singular to plural.
	switch {
	case endsConsonantY(lower):
		add(lower[:n-1] + "ies")
	case !strings.HasSuffix(lower, "s"):
		add(lower + "s")
	}

	return variants
}

// isAcronym reports whether a token is matched exactly as typed.
func isAcronym(token string) bool {
	if len(token) <= acronymMaxLen {
		return true
	}
	return isAllCaps(token)
}

// isAllCaps reports whether every letter in the token is uppercase.
// Tokens with no letters at all are not acronyms by this rule.
func isAllCaps(token string) bool {
	sawLetter := false
	for _, r := range token {
		switch {
		case r >= 'A' && r <= 'Z':
			sawLetter = true
		case r >= 'a' && r <= 'z':
			return false
		}
	}
	return sawLetter
}

// hasSibilantPlural reports whether the lowercase token ends in an
// "-es" plural after a sibilant (-ses, -xes, -ches, -shes, -zes).
func hasSibilantPlural(lower string) bool {
	for _, suffix := range []string{"ses", "xes", "ches", "shes", "zes"} {
		if strings.HasSuffix(lower, suffix) && len(lower) > len(suffix) {
			return true
		}
	}
	return false
}

// endsConsonantY reports whether the lowercase token ends in a
// consonant followed by "y" ("therapy" yes, "assay" no).
func endsConsonantY(lower string) bool {
	n := len(lower)
	if n < 2 || lower[n-1] != 'y' {
		return false
	}
	prev := lower[n-2]
	if prev < 'a' || prev > 'z' {
		return false
	}
	switch prev {
	case 'a', 'e', 'i', 'o', 'u':
		return false
	}
	return true
}
