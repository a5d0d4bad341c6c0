// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// UserSearchService is the orchestrator for roster search. It takes
// interfaces (repository.RosterRepository, RosterAuthorizer,
// search.RoleTaxonomy, search.FlagSource) rather than concrete types, so tests
// swap in fakes and the sqlite package is never imported here.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sakif/roster-search/internal/apperror"
	"github.com/sakif/roster-search/internal/metrics"
	"github.com/sakif/roster-search/internal/model"
	"github.com/sakif/roster-search/internal/repository"
	"github.com/sakif/roster-search/internal/search"
)

const (
	// DefaultLimit applies when the caller does not pass a limit.
	DefaultLimit = 50
	// MaxLimit is the largest page the HTTP layer will ask for.
	MaxLimit = 100
)

// SearchOptions narrows a search. The zero value means: default limit, every role.
type SearchOptions struct {
	// Limit caps the number of users returned. nil means DefaultLimit; a
	// supplied value is honored exactly, and zero or less returns nothing.
	Limit *int
	// EnrollmentTypes restricts results to these short keys (student, teacher,
	// ta, observer, designer).
	EnrollmentTypes []string
	// EnrollmentRoles restricts results to enrollments sharing the base type of
	// these named roles. Combined with EnrollmentTypes by union.
	EnrollmentRoles []string
}

// Limit is a helper for building SearchOptions literals.
func Limit(n int) *int { return &n }

// UserSearchService finds users in a course roster on behalf of a viewer.
//
// It holds no per-search state; one instance serves concurrent searches.
type UserSearchService struct {
	roster  repository.RosterRepository
	scope   *VisibilityScope
	roles   *search.RoleResolver
	flags   search.FlagSource
	metrics *metrics.SearchMetrics
	logger  *slog.Logger
}

// NewUserSearchService creates a UserSearchService. m may be nil.
func NewUserSearchService(
	roster repository.RosterRepository,
	authz RosterAuthorizer,
	roles search.RoleTaxonomy,
	flags search.FlagSource,
	m *metrics.SearchMetrics,
	logger *slog.Logger,
) *UserSearchService {
	return &UserSearchService{
		roster:  roster,
		scope:   NewVisibilityScope(roster, authz),
		roles:   search.NewRoleResolver(roles),
		flags:   flags,
		metrics: m,
		logger:  logger,
	}
}

// LikePattern builds the name pattern for term under the current gist setting.
func (s *UserSearchService) LikePattern(term string) string {
	return search.LikePattern(term, s.flags.Flags().Substring)
}

// Search returns the users enrolled in courseID that match term and that
// viewerID is allowed to see.
//
// ORDER OF WORK:
//  1. Snapshot the switches, so one search sees one configuration.
//  2. Resolve role filters. A bad value fails here with apperror.ErrInvalidRole,
//     before any storage query runs.
//  3. Candidates: the viewer's visible enrollments that pass the role filter.
//  4. Match channels: display name always; SIS id, email and numeric id only
//     with full complexity. Each channel is a separate query, and only ids
//     inside the candidate set count.
//  5. Deduplicate, order by name then id, truncate to the limit.
//
// No visibility, no match and a zero limit all return an empty slice and a nil error.
func (s *UserSearchService) Search(ctx context.Context, term string, courseID, viewerID int64, opts SearchOptions) ([]model.User, error) {
	start := time.Now()
	flags := s.flags.Flags()
	mode := metrics.ModeNameOnly
	if flags.FullComplexity {
		mode = metrics.ModeFull
	}

	users, err := s.search(ctx, term, courseID, viewerID, opts, flags)
	if err != nil {
		if errors.Is(err, apperror.ErrInvalidRole) {
			s.logger.Info("rejected role filter",
				slog.Int64("course_id", courseID),
				slog.String("error", err.Error()),
			)
			s.metrics.Observe(mode, metrics.OutcomeInvalidRole, 0, time.Since(start))
			return nil, err
		}
		s.logger.Error("user search failed",
			slog.Int64("course_id", courseID),
			slog.Int64("viewer_id", viewerID),
			slog.String("error", err.Error()),
		)
		s.metrics.Observe(mode, metrics.OutcomeError, 0, time.Since(start))
		return nil, fmt.Errorf("searching users: %w", err)
	}

	s.logger.Debug("user search",
		slog.Int64("course_id", courseID),
		slog.Int64("viewer_id", viewerID),
		slog.Int("term_length", len(term)),
		slog.String("mode", mode),
		slog.Bool("gist", flags.Substring),
		slog.Int("results", len(users)),
	)
	s.metrics.Observe(mode, metrics.OutcomeOK, len(users), time.Since(start))
	return users, nil
}

func (s *UserSearchService) search(ctx context.Context, term string, courseID, viewerID int64, opts SearchOptions, flags search.Flags) ([]model.User, error) {
	roleSet, err := s.roles.Resolve(ctx, search.RoleFilter{
		EnrollmentTypes: opts.EnrollmentTypes,
		EnrollmentRoles: opts.EnrollmentRoles,
	})
	if err != nil {
		return nil, err
	}

	limit := DefaultLimit
	if opts.Limit != nil {
		limit = *opts.Limit
	}
	if limit <= 0 {
		return []model.User{}, nil
	}

	visible, err := s.scope.VisibleEnrollments(ctx, courseID, viewerID)
	if err != nil {
		return nil, err
	}

	candidates := make(map[int64]model.User, len(visible))
	for _, e := range visible {
		if !roleSet.Allows(e.Type) {
			continue
		}
		candidates[e.UserID] = model.User{ID: e.UserID, Name: e.UserName, SortableName: e.SortableName}
	}
	if len(candidates) == 0 {
		return []model.User{}, nil
	}

	matched := make(map[int64]struct{})
	keep := func(ids []int64) {
		for _, id := range ids {
			if _, ok := candidates[id]; ok {
				matched[id] = struct{}{}
			}
		}
	}

	pattern := search.LikePattern(term, flags.Substring)

	ids, err := s.roster.MatchNames(ctx, courseID, pattern)
	if err != nil {
		return nil, err
	}
	keep(ids)

	if flags.FullComplexity {
		ids, err = s.roster.MatchSISIDs(ctx, courseID, search.PrefixPattern(term))
		if err != nil {
			return nil, err
		}
		keep(ids)

		ids, err = s.roster.MatchEmails(ctx, courseID, pattern)
		if err != nil {
			return nil, err
		}
		keep(ids)

		if c := search.Classify(term); c.IsNumeric {
			keep([]int64{c.ID})
		}
	}

	users := make([]model.User, 0, len(matched))
	for id := range matched {
		users = append(users, candidates[id])
	}
	sortUsers(users)

	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// sortUsers orders by sortable name (falling back to the display name),
// case-insensitively, with the id breaking ties.
func sortUsers(users []model.User) {
	key := func(u model.User) string {
		if u.SortableName != "" {
			return strings.ToLower(u.SortableName)
		}
		return strings.ToLower(u.Name)
	}
	sort.Slice(users, func(i, j int) bool {
		ki, kj := key(users[i]), key(users[j])
		if ki != kj {
			return ki < kj
		}
		return users[i].ID < users[j].ID
	})
}
