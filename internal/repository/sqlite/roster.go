package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/roster-search/internal/model"
	"github.com/sakif/roster-search/internal/repository"
)

// compile-time check that *DB implements repository.RosterRepository
var _ repository.RosterRepository = (*DB)(nil)

// ActiveEnrollments returns every active enrollment in the course together with
// the enrolled user's names. A user with two active enrollments appears twice;
// deduplication is the caller's job because each enrollment may pass or fail
// the role filter on its own.
func (db *DB) ActiveEnrollments(ctx context.Context, courseID int64) ([]model.Enrollment, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT e.id, e.user_id, e.course_id, e.type, e.role_name, e.workflow_state,
		        u.name, u.sortable_name
		 FROM enrollments e
		 JOIN users u ON u.id = e.user_id
		 WHERE e.course_id = ? AND e.workflow_state = ?
		 ORDER BY e.user_id, e.id`,
		courseID, model.StateActive,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing enrollments for course %d: %w", courseID, err)
	}
	defer rows.Close()

	var enrollments []model.Enrollment
	for rows.Next() {
		var e model.Enrollment
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.CourseID, &e.Type, &e.RoleName, &e.WorkflowState,
			&e.UserName, &e.SortableName,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning enrollment row: %w", err)
		}
		enrollments = append(enrollments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating enrollments: %w", err)
	}

	return enrollments, nil
}

// MatchNames returns users in the course whose display name matches pattern.
func (db *DB) MatchNames(ctx context.Context, courseID int64, pattern string) ([]int64, error) {
	return db.matchUserIDs(ctx, "names",
		`SELECT DISTINCT u.id
		 FROM users u
		 JOIN enrollments e ON e.user_id = u.id
		 WHERE e.course_id = ? AND e.workflow_state = ?
		   AND fold_case(u.name) LIKE ? ESCAPE '\'
		 ORDER BY u.id`,
		courseID, model.StateActive, pattern,
	)
}

// MatchSISIDs returns users in the course holding an active pseudonym whose
// SIS id matches pattern. Pseudonyms without an SIS id never match.
func (db *DB) MatchSISIDs(ctx context.Context, courseID int64, pattern string) ([]int64, error) {
	return db.matchUserIDs(ctx, "sis ids",
		`SELECT DISTINCT p.user_id
		 FROM pseudonyms p
		 JOIN enrollments e ON e.user_id = p.user_id
		 WHERE e.course_id = ? AND e.workflow_state = ?
		   AND p.workflow_state = ?
		   AND p.sis_user_id IS NOT NULL
		   AND fold_case(p.sis_user_id) LIKE ? ESCAPE '\'
		 ORDER BY p.user_id`,
		courseID, model.StateActive, model.StateActive, pattern,
	)
}

// MatchEmails returns users in the course with an active email channel whose
// path matches pattern. Other path types are ignored.
func (db *DB) MatchEmails(ctx context.Context, courseID int64, pattern string) ([]int64, error) {
	return db.matchUserIDs(ctx, "emails",
		`SELECT DISTINCT c.user_id
		 FROM communication_channels c
		 JOIN enrollments e ON e.user_id = c.user_id
		 WHERE e.course_id = ? AND e.workflow_state = ?
		   AND c.path_type = ? AND c.workflow_state = ?
		   AND fold_case(c.path) LIKE ? ESCAPE '\'
		 ORDER BY c.user_id`,
		courseID, model.StateActive, model.PathTypeEmail, model.StateActive, pattern,
	)
}

// matchUserIDs runs a single-column id query. channel only labels errors.
func (db *DB) matchUserIDs(ctx context.Context, channel, query string, args ...any) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: matching %s: %w", channel, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning %s match: %w", channel, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating %s matches: %w", channel, err)
	}

	return ids, nil
}
