package search

// Setting names for the two runtime switches that shape a search.
const (
	SettingFullComplexity = "user_search_with_full_complexity"
	SettingGist           = "user_search_with_gist"
)

// Flags is a point-in-time copy of the search switches. A search takes one
// snapshot up front and uses it throughout, so toggling a switch mid-call
// cannot produce a half-and-half result.
type Flags struct {
	// FullComplexity enables SIS id, email and numeric id matching in
	// addition to display names.
	FullComplexity bool
	// Substring ("gist") matches names and emails anywhere instead of by prefix.
	Substring bool
}

// FlagSource hands out snapshots of the current switches.
type FlagSource interface {
	Flags() Flags
}

// StaticFlags is a FlagSource that never changes. Handy for tools and tests.
type StaticFlags Flags

func (f StaticFlags) Flags() Flags { return Flags(f) }
