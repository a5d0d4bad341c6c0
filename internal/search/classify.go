// Package search holds the pure parts of roster user search: classifying a
// term, turning it into a LIKE pattern, and resolving role filters into the
// set of base enrollment types a search may return.
//
// Nothing in this package touches storage or permissions. The service package
// composes these pieces with a repository and a roster authorizer.
package search

import (
	"strconv"
	"strings"
)

// Classification describes the shape of a search term.
//
// There is no "looks like an email" flag: in full-complexity mode
// email channels are always searched, because fragments such as "giver" must
// find "the.giver@example.com".
type Classification struct {
	Raw       string
	IsNumeric bool
	ID        int64 // set only when IsNumeric
}

// Classify inspects term. It is total: every string, "" included, classifies.
func Classify(term string) Classification {
	c := Classification{Raw: term}

	trimmed := strings.TrimSpace(term)
	if trimmed == "" {
		return c
	}
	// ParseInt accepts a leading sign; ids are never negative, so only digits count.
	if trimmed[0] == '+' || trimmed[0] == '-' {
		return c
	}
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return c
	}

	c.IsNumeric = true
	c.ID = id
	return c
}
