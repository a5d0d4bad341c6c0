// Package permission adapts roster-visibility decisions for search.
//
// Search never decides on its own who may see whom. It hands the course's
// active enrollments to an authorizer and keeps only what comes back. This
// package provides the default roster policy and an adapter for callers whose
// permission system answers one enrollee at a time.
package permission

import (
	"context"
	"fmt"

	"github.com/sakif/roster-search/internal/model"
)

// RosterPolicy is the default visibility rule set:
//   - account admins see every roster;
//   - anyone holding an active enrollment in the course sees its roster;
//   - everybody else sees nothing.
type RosterPolicy struct {
	admins map[int64]struct{}
}

// NewRosterPolicy builds the policy with the given account admin ids.
func NewRosterPolicy(adminIDs []int64) *RosterPolicy {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &RosterPolicy{admins: admins}
}

// IsAdmin reports whether viewerID is an account admin.
func (p *RosterPolicy) IsAdmin(viewerID int64) bool {
	_, ok := p.admins[viewerID]
	return ok
}

// FilterVisible returns the enrollments viewerID may observe. enrollments must
// be the course's active enrollments; the viewer's own membership is read from
// the same list.
func (p *RosterPolicy) FilterVisible(_ context.Context, courseID, viewerID int64, enrollments []model.Enrollment) ([]model.Enrollment, error) {
	if p.IsAdmin(viewerID) {
		return enrollments, nil
	}
	for _, e := range enrollments {
		if e.UserID == viewerID && e.CourseID == courseID && e.Active() {
			return enrollments, nil
		}
	}
	return nil, nil
}

// CanViewFunc answers whether viewerID may see one enrollee in a course.
//
// It satisfies the same FilterVisible contract as RosterPolicy by asking once
// per enrollment, for permission systems without a bulk call.
type CanViewFunc func(ctx context.Context, viewerID int64, enrollee model.Enrollment) (bool, error)

// FilterVisible calls f for each enrollment and keeps those it allows.
func (f CanViewFunc) FilterVisible(ctx context.Context, _ int64, viewerID int64, enrollments []model.Enrollment) ([]model.Enrollment, error) {
	var visible []model.Enrollment
	for _, e := range enrollments {
		ok, err := f(ctx, viewerID, e)
		if err != nil {
			return nil, fmt.Errorf("checking visibility of enrollment %s: %w", e.ID, err)
		}
		if ok {
			visible = append(visible, e)
		}
	}
	return visible, nil
}
