package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sakif/roster-search/internal/apperror"
	"github.com/sakif/roster-search/internal/model"
)

// Messages carried by role validation errors. Clients match on these.
const (
	MsgInvalidEnrollmentType = "Invalid Enrollment Type"
	MsgInvalidEnrollmentRole = "Invalid Enrollment Role"
)

// enrollmentTypeKeys maps the short keys callers filter by to base types.
var enrollmentTypeKeys = map[string]string{
	"student":  model.StudentEnrollment,
	"teacher":  model.TeacherEnrollment,
	"ta":       model.TaEnrollment,
	"observer": model.ObserverEnrollment,
	"designer": model.DesignerEnrollment,
}

// RoleTaxonomy answers which base type a named role is built on.
// Custom roles are data, so this is a lookup rather than a switch.
type RoleTaxonomy interface {
	BaseRoleFor(ctx context.Context, name string) (baseType string, ok bool, err error)
}

// BuiltinRoles is a RoleTaxonomy that only knows the base types themselves.
type BuiltinRoles struct{}

func (BuiltinRoles) BaseRoleFor(_ context.Context, name string) (string, bool, error) {
	for _, t := range model.BaseEnrollmentTypes {
		if t == name {
			return t, true, nil
		}
	}
	return "", false, nil
}

// RoleFilter is the caller's role restriction. Either list may be empty.
type RoleFilter struct {
	EnrollmentTypes []string // short keys: student, teacher, ta, observer, designer
	EnrollmentRoles []string // role names, built-in or custom
}

// Empty reports whether the filter restricts nothing.
func (f RoleFilter) Empty() bool {
	return len(f.EnrollmentTypes) == 0 && len(f.EnrollmentRoles) == 0
}

// RoleSet is the resolved filter: the base types an enrollment may have.
// The zero value is unrestricted.
type RoleSet struct {
	types map[string]struct{}
}

// Unrestricted reports whether every base type is allowed.
func (s RoleSet) Unrestricted() bool {
	return s.types == nil
}

// Allows reports whether an enrollment of baseType passes the filter.
func (s RoleSet) Allows(baseType string) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[baseType]
	return ok
}

// Types returns the allowed base types sorted, or nil when unrestricted.
func (s RoleSet) Types() []string {
	if s.types == nil {
		return nil
	}
	out := make([]string, 0, len(s.types))
	for t := range s.types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// RoleResolver validates a RoleFilter and expands it into a RoleSet.
type RoleResolver struct {
	taxonomy RoleTaxonomy
}

// NewRoleResolver returns a resolver backed by taxonomy. A nil taxonomy falls
// back to BuiltinRoles.
func NewRoleResolver(taxonomy RoleTaxonomy) *RoleResolver {
	if taxonomy == nil {
		taxonomy = BuiltinRoles{}
	}
	return &RoleResolver{taxonomy: taxonomy}
}

// Resolve turns f into a RoleSet.
//
// Every enrollment type key is checked before any role lookup happens, and a
// single bad value fails the whole call with apperror.ErrInvalidRole. Types and
// roles are additive: the result allows the union of both lists.
func (r *RoleResolver) Resolve(ctx context.Context, f RoleFilter) (RoleSet, error) {
	if f.Empty() {
		return RoleSet{}, nil
	}

	types := make(map[string]struct{}, len(f.EnrollmentTypes)+len(f.EnrollmentRoles))

	for _, key := range f.EnrollmentTypes {
		base, ok := enrollmentTypeKeys[strings.ToLower(strings.TrimSpace(key))]
		if !ok {
			return RoleSet{}, apperror.InvalidRole("enrollment_type", key, MsgInvalidEnrollmentType)
		}
		types[base] = struct{}{}
	}

	for _, name := range f.EnrollmentRoles {
		base, ok, err := r.taxonomy.BaseRoleFor(ctx, strings.TrimSpace(name))
		if err != nil {
			return RoleSet{}, fmt.Errorf("resolving role %q: %w", name, err)
		}
		if !ok {
			return RoleSet{}, apperror.InvalidRole("enrollment_role", name, MsgInvalidEnrollmentRole)
		}
		types[base] = struct{}{}
	}

	return RoleSet{types: types}, nil
}
