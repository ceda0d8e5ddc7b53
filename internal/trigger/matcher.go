package trigger

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// patternMatches reports whether pattern matches the page, by exact match or
// wildcard translation, over both the bare path and path+query. Patterns and
// pages are NFC-normalized before comparison so visually identical URLs
// compare equal regardless of their Unicode composition.
func patternMatches(pattern string, page Page) bool {
	p := norm.NFC.String(pattern)
	path := norm.NFC.String(page.Path)
	full := norm.NFC.String(page.Full())

	if p == path || p == full {
		return true
	}
	if strings.Contains(p, "*") {
		re := wildcardRegexp(p)
		return re.MatchString(path) || re.MatchString(full)
	}
	return false
}

// wildcardRegexp translates a wildcard pattern into an anchored regexp:
// every '*' matches any run of characters, everything else is literal.
func wildcardRegexp(pattern string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(pattern)
	return regexp.MustCompile("^" + strings.ReplaceAll(quoted, `\*`, ".*") + "$")
}

// excluded reports whether any exclude pattern matches the page.
// Exclusions are evaluated before the page pattern.
func excluded(patterns []string, page Page) bool {
	for _, p := range patterns {
		if patternMatches(p, page) {
			return true
		}
	}
	return false
}

// pageMatches reports whether the rule's page pattern admits the page.
// An absent pattern or "*" matches all pages.
func pageMatches(pattern string, page Page) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	return patternMatches(pattern, page)
}
