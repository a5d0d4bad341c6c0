// Package repository declares the storage interfaces the service layer
// depends on. Implementations live in sub-packages (see repository/sqlite).
package repository

import (
	"context"

	"github.com/sakif/roster-search/internal/model"
)

// RosterRepository is the read side of course rosters used by search.
//
// The Match* methods each run one match channel on its own and return the
// distinct ids of users holding an active enrollment in the course whose
// channel value matches pattern. Patterns come from search.LikePattern and are
// escaped with search.LikeEscape. Callers intersect the ids with the visible
// candidate set and union the channels themselves.
type RosterRepository interface {
	ActiveEnrollments(ctx context.Context, courseID int64) ([]model.Enrollment, error)
	MatchNames(ctx context.Context, courseID int64, pattern string) ([]int64, error)
	MatchSISIDs(ctx context.Context, courseID int64, pattern string) ([]int64, error)
	MatchEmails(ctx context.Context, courseID int64, pattern string) ([]int64, error)
}

// RoleRepository resolves named roles to the base type they are built on.
// It satisfies search.RoleTaxonomy.
type RoleRepository interface {
	BaseRoleFor(ctx context.Context, name string) (string, bool, error)
}

// SettingRepository persists runtime settings as plain strings.
// GetSetting reports ok=false for a setting that was never stored.
type SettingRepository interface {
	GetSetting(ctx context.Context, name string) (value string, ok bool, err error)
	SetSetting(ctx context.Context, name, value string) error
}

// UserRepository loads single users.
type UserRepository interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}
