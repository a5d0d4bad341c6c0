package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sakif/roster-search/internal/model"
	"github.com/sakif/roster-search/internal/repository/sqlite"
)

// fixtures is the seed file format. Users and courses are referenced by a
// local key because their database ids are only known after insert.
type fixtures struct {
	Courses []struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"courses"`
	Roles []model.Role `json:"roles"`
	Users []struct {
		Key          string `json:"key"`
		Name         string `json:"name"`
		SortableName string `json:"sortable_name"`
		Logins       []struct {
			UniqueID  string `json:"unique_id"`
			SISUserID string `json:"sis_user_id"`
		} `json:"logins"`
		Channels []struct {
			Path     string `json:"path"`
			PathType string `json:"path_type"`
		} `json:"channels"`
		Enrollments []struct {
			Course string `json:"course"`
			Role   string `json:"role"`
			State  string `json:"state"`
		} `json:"enrollments"`
	} `json:"users"`
}

// seed loads fixtures from r into db and writes the key → id mapping to out.
func seed(ctx context.Context, db *sqlite.DB, r io.Reader, out io.Writer) error {
	var fx fixtures
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fx); err != nil {
		return fmt.Errorf("decoding fixtures: %w", err)
	}

	courses := make(map[string]int64, len(fx.Courses))
	for _, c := range fx.Courses {
		course := &model.Course{Name: c.Name}
		if err := db.CreateCourse(ctx, course); err != nil {
			return err
		}
		courses[c.Key] = course.ID
		fmt.Fprintf(out, "course %s\t%d\n", c.Key, course.ID)
	}

	for _, role := range fx.Roles {
		if err := db.CreateRole(ctx, role); err != nil {
			return err
		}
	}

	for _, u := range fx.Users {
		user := &model.User{Name: u.Name, SortableName: u.SortableName}
		if err := db.CreateUser(ctx, user); err != nil {
			return err
		}
		for _, l := range u.Logins {
			if err := db.AddPseudonym(ctx, &model.Pseudonym{UserID: user.ID, UniqueID: l.UniqueID, SISUserID: l.SISUserID}); err != nil {
				return err
			}
		}
		for _, ch := range u.Channels {
			if err := db.AddCommunicationChannel(ctx, &model.CommunicationChannel{UserID: user.ID, Path: ch.Path, PathType: ch.PathType}); err != nil {
				return err
			}
		}
		for _, e := range u.Enrollments {
			courseID, ok := courses[e.Course]
			if !ok {
				return fmt.Errorf("user %s: unknown course key %q", u.Key, e.Course)
			}
			err := db.Enroll(ctx, &model.Enrollment{
				UserID: user.ID, CourseID: courseID, RoleName: e.Role, WorkflowState: e.State,
			})
			if err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "user %s\t%d\n", u.Key, user.ID)
	}
	return nil
}
