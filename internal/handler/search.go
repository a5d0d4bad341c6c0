package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/roster-search/internal/apperror"
	"github.com/sakif/roster-search/internal/auth"
	"github.com/sakif/roster-search/internal/model"
	"github.com/sakif/roster-search/internal/service"
)

// UserSearcher is the slice of service.UserSearchService the handler needs.
type UserSearcher interface {
	Search(ctx context.Context, term string, courseID, viewerID int64, opts service.SearchOptions) ([]model.User, error)
}

// SearchHandler serves roster search.
type SearchHandler struct {
	searcher UserSearcher
	logger   *slog.Logger
}

// NewSearchHandler creates a SearchHandler.
func NewSearchHandler(searcher UserSearcher, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{searcher: searcher, logger: logger}
}

// UserResponse is one search hit on the wire.
type UserResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	SortableName string `json:"sortable_name"`
}

// HandleSearchUsers finds users in a course.
//
// HTTP: GET /api/v1/courses/{courseID}/search_users
//
// QUERY PARAMETERS:
//   - search_term       free text or an identifier
//   - per_page          result cap, 0..service.MaxLimit; absent means the
//     service default
//   - enrollment_type   repeatable, also accepted as enrollment_type[]
//   - enrollment_role   repeatable, also accepted as enrollment_role[]
//
// The viewer comes from auth.RequireAuth. An unknown role value is a 400 with
// the fixed "Invalid Enrollment Type" / "Invalid Enrollment Role" message.
func (h *SearchHandler) HandleSearchUsers(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := auth.ViewerIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	courseID, err := strconv.ParseInt(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil || courseID <= 0 {
		writeError(w, apperror.ValidationFailed("courseID", "course id must be a positive integer"))
		return
	}

	q := r.URL.Query()
	opts := service.SearchOptions{
		EnrollmentTypes: listParam(q, "enrollment_type"),
		EnrollmentRoles: listParam(q, "enrollment_role"),
	}
	if raw := q.Get("per_page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, apperror.ValidationFailed("per_page", fmt.Sprintf("per_page must be a non-negative integer, got %q", raw)))
			return
		}
		if n > service.MaxLimit {
			writeError(w, apperror.ValidationFailed("per_page", fmt.Sprintf("per_page must be at most %d, got %d", service.MaxLimit, n)))
			return
		}
		opts.Limit = service.Limit(n)
	}

	users, err := h.searcher.Search(r.Context(), q.Get("search_term"), courseID, viewerID, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, UserResponse{ID: u.ID, Name: u.Name, SortableName: u.SortableName})
	}
	writeJSON(w, http.StatusOK, out)
}

// listParam collects name and name[] values, skipping empty ones.
func listParam(q url.Values, name string) []string {
	var out []string
	for _, key := range []string{name, name + "[]"} {
		for _, v := range q[key] {
			if v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
