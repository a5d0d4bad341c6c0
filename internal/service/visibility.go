package service

import (
	"context"
	"fmt"

	"github.com/sakif/roster-search/internal/model"
	"github.com/sakif/roster-search/internal/repository"
)

// RosterAuthorizer decides which enrollees a viewer may observe in a course.
// It receives the course's active enrollments and returns the visible subset.
// permission.RosterPolicy and permission.CanViewFunc implement it.
type RosterAuthorizer interface {
	FilterVisible(ctx context.Context, courseID, viewerID int64, enrollments []model.Enrollment) ([]model.Enrollment, error)
}

// VisibilityScope is the first gate of every search: the set of enrollments a
// viewer is allowed to see in a course. Nothing outside this set can ever be
// returned, however well it matches.
type VisibilityScope struct {
	roster repository.RosterRepository
	authz  RosterAuthorizer
}

// NewVisibilityScope wires the scope to storage and an authorizer.
func NewVisibilityScope(roster repository.RosterRepository, authz RosterAuthorizer) *VisibilityScope {
	return &VisibilityScope{roster: roster, authz: authz}
}

// VisibleEnrollments returns the active enrollments in courseID that viewerID
// may observe. A viewer without rights gets an empty slice and no error.
func (v *VisibilityScope) VisibleEnrollments(ctx context.Context, courseID, viewerID int64) ([]model.Enrollment, error) {
	all, err := v.roster.ActiveEnrollments(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	if len(all) == 0 {
		return nil, nil
	}

	visible, err := v.authz.FilterVisible(ctx, courseID, viewerID, all)
	if err != nil {
		return nil, fmt.Errorf("filtering roster: %w", err)
	}

	// The authorizer only narrows; anything inactive or from another course
	// is dropped here whatever it returned.
	out := make([]model.Enrollment, 0, len(visible))
	for _, e := range visible {
		if e.Active() && e.CourseID == courseID {
			out = append(out, e)
		}
	}
	return out, nil
}
