package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/rs/xid"

	"github.com/sakif/roster-search/internal/apperror"
	"github.com/sakif/roster-search/internal/model"
	"github.com/sakif/roster-search/internal/repository"
)

// compile-time checks for the interfaces implemented in this file
var (
	_ repository.UserRepository = (*DB)(nil)
	_ repository.RoleRepository = (*DB)(nil)
)

// The writers below exist for seeding and tests. Search itself never writes:
// users, courses and enrollments are owned by the systems that create them.

// CreateUser inserts a user and sets user.ID from the generated rowid.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (name, sortable_name) VALUES (?, ?)`,
		user.Name, user.SortableName,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating user %q: %w", user.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading user id: %w", err)
	}
	user.ID = id
	return nil
}

// GetUserByID retrieves a user by id.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, sortable_name FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.SortableName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return &u, nil
}

// CreateCourse inserts a course and sets course.ID.
func (db *DB) CreateCourse(ctx context.Context, course *model.Course) error {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO courses (name) VALUES (?)`, course.Name,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating course %q: %w", course.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading course id: %w", err)
	}
	course.ID = id
	return nil
}

// CreateRole registers a custom role on top of a base type.
func (db *DB) CreateRole(ctx context.Context, role model.Role) error {
	if !isBaseType(role.BaseType) {
		return apperror.ValidationFailed("base_type",
			fmt.Sprintf("%q is not a base enrollment type", role.BaseType))
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO roles (name, base_type) VALUES (?, ?)`, role.Name, role.BaseType,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating role %q: %w", role.Name, err)
	}
	return nil
}

// BaseRoleFor looks up the base type a role is built on.
func (db *DB) BaseRoleFor(ctx context.Context, name string) (string, bool, error) {
	var base string
	err := db.conn.QueryRowContext(ctx,
		`SELECT base_type FROM roles WHERE name = ?`, name,
	).Scan(&base)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("sqlite: looking up role %q: %w", name, err)
	}
	return base, true, nil
}

// Enroll inserts an enrollment. When RoleName is empty the enrollment uses the
// built-in role for its type; otherwise Type is taken from the role so the two
// can never disagree. WorkflowState defaults to active.
func (db *DB) Enroll(ctx context.Context, e *model.Enrollment) error {
	if e.RoleName == "" {
		e.RoleName = e.Type
	}
	base, ok, err := db.BaseRoleFor(ctx, e.RoleName)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.ValidationFailed("role", fmt.Sprintf("unknown role %q", e.RoleName))
	}
	e.Type = base
	if e.WorkflowState == "" {
		e.WorkflowState = model.StateActive
	}
	e.ID = xid.New().String()

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO enrollments (id, user_id, course_id, type, role_name, workflow_state)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.CourseID, e.Type, e.RoleName, e.WorkflowState,
	)
	if err != nil {
		return fmt.Errorf("sqlite: enrolling user %d in course %d: %w", e.UserID, e.CourseID, err)
	}
	return nil
}

// SetEnrollmentState moves an enrollment to another workflow state.
func (db *DB) SetEnrollmentState(ctx context.Context, id, state string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE enrollments SET workflow_state = ? WHERE id = ?`, state, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating enrollment %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("enrollment", id)
	}
	return nil
}

// AddPseudonym attaches a login (and optionally an SIS id) to a user.
func (db *DB) AddPseudonym(ctx context.Context, p *model.Pseudonym) error {
	if p.WorkflowState == "" {
		p.WorkflowState = model.StateActive
	}
	p.ID = xid.New().String()

	var sisID sql.NullString
	if p.SISUserID != "" {
		sisID = sql.NullString{String: p.SISUserID, Valid: true}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO pseudonyms (id, user_id, unique_id, sis_user_id, workflow_state)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.UniqueID, sisID, p.WorkflowState,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding pseudonym for user %d: %w", p.UserID, err)
	}
	return nil
}

// AddCommunicationChannel attaches a contact path to a user.
func (db *DB) AddCommunicationChannel(ctx context.Context, c *model.CommunicationChannel) error {
	if c.PathType == "" {
		c.PathType = model.PathTypeEmail
	}
	if c.WorkflowState == "" {
		c.WorkflowState = model.StateActive
	}
	c.ID = xid.New().String()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO communication_channels (id, user_id, path, path_type, workflow_state)
		 VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Path, c.PathType, c.WorkflowState,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding channel for user %d: %w", c.UserID, err)
	}
	return nil
}

// SetChannelPathType changes the type of an existing channel.
func (db *DB) SetChannelPathType(ctx context.Context, id, pathType string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE communication_channels SET path_type = ? WHERE id = ?`, pathType, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating channel %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("communication channel", id)
	}
	return nil
}

func isBaseType(t string) bool {
	for _, b := range model.BaseEnrollmentTypes {
		if b == t {
			return true
		}
	}
	return false
}
