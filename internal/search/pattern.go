package search

import "strings"

// LikeEscape is the escape character patterns are built with. Storage
// adapters must pass it as the ESCAPE clause of their LIKE expressions.
const LikeEscape = `\`

var likeEscaper = strings.NewReplacer(
	`\`, `\\`,
	`%`, `\%`,
	`_`, `\_`,
)

// LikePattern builds the case-insensitive pattern for term.
//
// The term is lower-cased and any LIKE metacharacters it contains are escaped,
// so a user typing "50%" searches for the literal text. With substring set the
// pattern matches anywhere in the column ("%word%"); otherwise it is a prefix
// match ("word%").
func LikePattern(term string, substring bool) string {
	body := likeEscaper.Replace(strings.ToLower(term))
	if substring {
		return "%" + body + "%"
	}
	return body + "%"
}

// PrefixPattern is LikePattern without substring mode. SIS identifiers are
// matched on exact value or prefix regardless of configuration.
func PrefixPattern(term string) string {
	return LikePattern(term, false)
}
