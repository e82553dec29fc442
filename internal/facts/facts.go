// Package facts pulls lightweight entities out of raw message text: proper
// names and date expressions. Extraction is pure and deterministic; the
// resulting keys back the conversational context injected into prompts.
package facts

import (
	"regexp"
	"sort"
)

const (
	KeyNames = "names"
	KeyDates = "dates"
)

var (
	nameRe = regexp.MustCompile(`\b[A-Z][a-z]*\b`)
	dateRe = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b|\b(hoy|mañana|ayer)\b`)
)

// Extract returns a mapping from fact key to a sorted set of distinct values
// found in message. No matches yields an empty map, never an error.
func Extract(message string) map[string][]string {
	out := map[string][]string{}
	if names := dedupe(nameRe.FindAllString(message, -1)); len(names) > 0 {
		out[KeyNames] = names
	}
	if dates := dedupe(dateRe.FindAllString(message, -1)); len(dates) > 0 {
		out[KeyDates] = dates
	}
	return out
}

func dedupe(matches []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
