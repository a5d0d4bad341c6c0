package model

// Workflow states shared by enrollments, pseudonyms and channels.
// Only StateActive records are considered by search.
const (
	StateActive    = "active"
	StateInvited   = "invited"
	StateCompleted = "completed"
	StateRejected  = "rejected"
	StateDeleted   = "deleted"
)

// Base enrollment types. These form the closed taxonomy every role,
// built-in or custom, is anchored to.
const (
	StudentEnrollment  = "StudentEnrollment"
	TeacherEnrollment  = "TeacherEnrollment"
	TaEnrollment       = "TaEnrollment"
	ObserverEnrollment = "ObserverEnrollment"
	DesignerEnrollment = "DesignerEnrollment"
)

// BaseEnrollmentTypes lists the base types in a stable order.
var BaseEnrollmentTypes = []string{
	StudentEnrollment,
	TeacherEnrollment,
	TaEnrollment,
	ObserverEnrollment,
	DesignerEnrollment,
}

// Course is the scope a search runs in. Search never reads more than its ID.
type Course struct {
	ID   int64  `json:"id"   db:"id"`
	Name string `json:"name" db:"name"`
}

// Role names an enrollment role. Built-in roles share their name with their
// base type ("TeacherEnrollment"); custom roles carry their own name on top of
// one of the base types (a "Mentor" built on ObserverEnrollment).
type Role struct {
	Name     string `json:"name"      db:"name"`
	BaseType string `json:"base_type" db:"base_type"`
}

// Enrollment ties a user to a course under a role.
//
// Type is always a base type; RoleName is the role the enrollment was created
// with and equals Type for built-in roles. UserName is denormalised from the
// users table when enrollments are loaded for search so the candidate set can
// be ordered without a second lookup.
type Enrollment struct {
	ID            string `json:"id"             db:"id"`
	UserID        int64  `json:"user_id"        db:"user_id"`
	CourseID      int64  `json:"course_id"      db:"course_id"`
	Type          string `json:"type"           db:"type"`
	RoleName      string `json:"role"           db:"role_name"`
	WorkflowState string `json:"workflow_state" db:"workflow_state"`
	UserName      string `json:"user_name"      db:"user_name"`
	SortableName  string `json:"-"              db:"sortable_name"`
}

// Active reports whether the enrollment makes its user search-eligible.
func (e Enrollment) Active() bool {
	return e.WorkflowState == StateActive
}
