package service_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/roster-search/internal/apperror"
	"github.com/sakif/roster-search/internal/metrics"
	"github.com/sakif/roster-search/internal/model"
	"github.com/sakif/roster-search/internal/permission"
	"github.com/sakif/roster-search/internal/repository/sqlite"
	"github.com/sakif/roster-search/internal/search"
	"github.com/sakif/roster-search/internal/service"
)

// =========================================================================
// FIXTURE
// =========================================================================
//
// The roster mirrors a small course: one teacher and seven students. The
// viewer is the last student created, "Stewart Little".

var searchNames = []string{
	"Rose Tyler", "Martha Jones", "Rosemary Giver", "Martha Stewart",
	"Tyler Pickett", "Jon Stewart", "Stewart Little",
}

type fixture struct {
	t      *testing.T
	db     *sqlite.DB
	course *model.Course
	viewer *model.User
	byName map[string]*model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{t: t, db: db, byName: map[string]*model.User{}}

	f.course = &model.Course{Name: "Companions"}
	require.NoError(t, db.CreateCourse(context.Background(), f.course))

	f.enroll(f.user("Tyler Teacher"), model.TeacherEnrollment)
	for _, name := range searchNames {
		f.viewer = f.user(name)
		f.enroll(f.viewer, model.StudentEnrollment)
	}
	return f
}

func (f *fixture) user(name string) *model.User {
	f.t.Helper()
	u := &model.User{Name: name}
	require.NoError(f.t, f.db.CreateUser(context.Background(), u))
	f.byName[name] = u
	return u
}

func (f *fixture) enroll(u *model.User, role string) *model.Enrollment {
	f.t.Helper()
	e := &model.Enrollment{UserID: u.ID, CourseID: f.course.ID, RoleName: role}
	require.NoError(f.t, f.db.Enroll(context.Background(), e))
	return e
}

func (f *fixture) service(flags search.Flags) *service.UserSearchService {
	return f.serviceWith(nil, flags, nil)
}

func (f *fixture) serviceWith(roster *countingRoster, flags search.Flags, m *metrics.SearchMetrics) *service.UserSearchService {
	if roster == nil {
		roster = &countingRoster{DB: f.db}
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return service.NewUserSearchService(roster, permission.NewRosterPolicy(nil), f.db, search.StaticFlags(flags), m, logger)
}

func (f *fixture) search(svc *service.UserSearchService, term string, viewer *model.User, opts service.SearchOptions) []string {
	f.t.Helper()
	users, err := svc.Search(context.Background(), term, f.course.ID, viewer.ID, opts)
	require.NoError(f.t, err)
	return names(users)
}

func names(users []model.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Name)
	}
	return out
}

// countingRoster wraps the sqlite roster and counts storage calls.
type countingRoster struct {
	*sqlite.DB
	calls int
	fail  error
}

func (c *countingRoster) ActiveEnrollments(ctx context.Context, courseID int64) ([]model.Enrollment, error) {
	c.calls++
	return c.DB.ActiveEnrollments(ctx, courseID)
}

func (c *countingRoster) MatchNames(ctx context.Context, courseID int64, pattern string) ([]int64, error) {
	c.calls++
	return c.DB.MatchNames(ctx, courseID, pattern)
}

func (c *countingRoster) MatchSISIDs(ctx context.Context, courseID int64, pattern string) ([]int64, error) {
	c.calls++
	return c.DB.MatchSISIDs(ctx, courseID, pattern)
}

func (c *countingRoster) MatchEmails(ctx context.Context, courseID int64, pattern string) ([]int64, error) {
	c.calls++
	if c.fail != nil {
		return nil, c.fail
	}
	return c.DB.MatchEmails(ctx, courseID, pattern)
}

var (
	fullGist   = search.Flags{FullComplexity: true, Substring: true}
	fullPrefix = search.Flags{FullComplexity: true, Substring: false}
	nameGist   = search.Flags{FullComplexity: false, Substring: true}
)

// =========================================================================
// FULL COMPLEXITY, GIST ENABLED
// =========================================================================

func TestSearch_FullGist_MatchesAnywhere(t *testing.T) {
	f := newFixture(t)

	got := f.search(f.service(fullGist), "Stewart", f.viewer, service.SearchOptions{})
	assert.Len(t, got, 3)
	assert.ElementsMatch(t, []string{"Martha Stewart", "Stewart Little", "Jon Stewart"}, got)
}

func TestSearch_UnauthorizedViewerSeesNothing(t *testing.T) {
	f := newFixture(t)
	stranger := f.user("Unenrolled User")

	for _, term := range []string{"Stewart", "", "Tyler", strconv.FormatInt(f.viewer.ID, 10)} {
		got := f.search(f.service(fullGist), term, stranger, service.SearchOptions{})
		assert.Empty(t, got, "term %q", term)
	}
}

func TestSearch_LimitIsHonoredExactly(t *testing.T) {
	f := newFixture(t)
	svc := f.service(fullGist)

	assert.Len(t, f.search(svc, "Stewart", f.viewer, service.SearchOptions{Limit: service.Limit(2)}), 2)
	assert.Len(t, f.search(svc, "Stewart", f.viewer, service.SearchOptions{Limit: service.Limit(10)}), 3)
	assert.Empty(t, f.search(svc, "Stewart", f.viewer, service.SearchOptions{Limit: service.Limit(0)}))
}

func TestSearch_DefaultLimit(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < service.DefaultLimit+5; i++ {
		f.enroll(f.user("Extra Stewart "+strconv.Itoa(i)), model.StudentEnrollment)
	}

	got := f.search(f.service(fullGist), "Stewart", f.viewer, service.SearchOptions{})
	assert.Len(t, got, service.DefaultLimit)
}

func TestSearch_IgnoresUsersOutsideTheCourse(t *testing.T) {
	f := newFixture(t)
	f.user("Stewart Stewart")

	got := f.search(f.service(fullGist), "Stewart", f.viewer, service.SearchOptions{})
	assert.NotContains(t, got, "Stewart Stewart")
}

func TestSearch_FindsTeachers(t *testing.T) {
	f := newFixture(t)

	got := f.search(f.service(fullGist), "Tyler", f.viewer, service.SearchOptions{})
	assert.Contains(t, got, "Tyler Teacher")
}

func TestSearch_OrderedByName(t *testing.T) {
	f := newFixture(t)

	got := f.search(f.service(fullGist), "Tyler", f.viewer, service.SearchOptions{})
	assert.Equal(t, []string{"Rose Tyler", "Tyler Pickett", "Tyler Teacher"}, got)
}

// =========================================================================
// ROLE FILTERING
// =========================================================================

func TestSearch_SingleEnrollmentType(t *testing.T) {
	f := newFixture(t)

	got := f.search(f.service(fullGist), "Tyler", f.viewer, service.SearchOptions{
		EnrollmentTypes: []string{"student"},
	})
	assert.Contains(t, got, "Rose Tyler")
	assert.Contains(t, got, "Tyler Pickett")
	assert.NotContains(t, got, "Tyler Teacher")
}

func TestSearch_MultipleEnrollmentTypes(t *testing.T) {
	f := newFixture(t)
	f.enroll(f.user("Tyler TA"), model.TaEnrollment)

	got := f.search(f.service(fullGist), "Tyler", f.viewer, service.SearchOptions{
		EnrollmentTypes: []string{"ta", "teacher"},
	})
	assert.Contains(t, got, "Tyler TA")
	assert.Contains(t, got, "Tyler Teacher")
	assert.NotContains(t, got, "Rose Tyler")
}

func TestSearch_EnrollmentRoleIncludesCustomRoles(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.CreateRole(context.Background(), model.Role{Name: "Mentor", BaseType: model.ObserverEnrollment}))
	f.enroll(f.user("Tyler Observer"), model.ObserverEnrollment)
	f.enroll(f.user("Tyler Mentor"), "Mentor")

	got := f.search(f.service(fullGist), "Tyler", f.viewer, service.SearchOptions{
		EnrollmentRoles: []string{"ObserverEnrollment"},
	})
	assert.ElementsMatch(t, []string{"Tyler Observer", "Tyler Mentor"}, got)

	got = f.search(f.service(fullGist), "Tyler", f.viewer, service.SearchOptions{
		EnrollmentRoles: []string{"Mentor"},
	})
	assert.ElementsMatch(t, []string{"Tyler Observer", "Tyler Mentor"}, got)
}

func TestSearch_TypeAndRoleAreAdditive(t *testing.T) {
	f := newFixture(t)
	f.enroll(f.user("Tyler Observer"), model.ObserverEnrollment)

	got := f.search(f.service(fullGist), "Tyler", f.viewer, service.SearchOptions{
		EnrollmentTypes: []string{"teacher"},
		EnrollmentRoles: []string{"ObserverEnrollment"},
	})
	assert.ElementsMatch(t, []string{"Tyler Teacher", "Tyler Observer"}, got)
}

func TestSearch_InvalidEnrollmentTypeFailsFast(t *testing.T) {
	f := newFixture(t)
	roster := &countingRoster{DB: f.db}
	svc := f.serviceWith(roster, fullGist, nil)

	users, err := svc.Search(context.Background(), "Tyler", f.course.ID, f.viewer.ID, service.SearchOptions{
		EnrollmentTypes: []string{"all"},
	})
	require.Error(t, err)
	assert.Nil(t, users)
	assert.True(t, errors.Is(err, apperror.ErrInvalidRole))
	assert.ErrorContains(t, err, search.MsgInvalidEnrollmentType)
	assert.Zero(t, roster.calls, "no roster query may run before role validation passes")
}

func TestSearch_InvalidEnrollmentRole(t *testing.T) {
	f := newFixture(t)

	_, err := f.service(fullGist).Search(context.Background(), "Tyler", f.course.ID, f.viewer.ID, service.SearchOptions{
		EnrollmentRoles: []string{"Dean"},
	})
	assert.True(t, errors.Is(err, apperror.ErrInvalidRole))
}

func TestSearch_InvalidRoleEvenWithZeroLimit(t *testing.T) {
	f := newFixture(t)

	_, err := f.service(fullGist).Search(context.Background(), "Tyler", f.course.ID, f.viewer.ID, service.SearchOptions{
		Limit:           service.Limit(0),
		EnrollmentTypes: []string{"everyone"},
	})
	assert.True(t, errors.Is(err, apperror.ErrInvalidRole))
}

// =========================================================================
// IDENTIFIER CHANNELS
// =========================================================================

func TestSearch_MatchesSISID(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.AddPseudonym(context.Background(), &model.Pseudonym{
		UserID: f.viewer.ID, UniqueID: "SOME_UNIQUE_ID@example.com", SISUserID: "SOME_SIS_ID",
	}))

	got := f.search(f.service(fullGist), "SOME_SIS", f.viewer, service.SearchOptions{})
	assert.Equal(t, []string{"Stewart Little"}, got)
}

func TestSearch_MatchesSISIDAndNameTogether(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.AddPseudonym(context.Background(), &model.Pseudonym{
		UserID: f.viewer.ID, UniqueID: "SOME_UNIQUE_ID@example.com", SISUserID: "MARTHA_SIS_ID",
	}))

	got := f.search(f.service(fullGist), "martha", f.viewer, service.SearchOptions{})
	assert.Contains(t, got, "Stewart Little")
	assert.Contains(t, got, "Martha Stewart")
}

func TestSearch_MatchesEmail(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.AddCommunicationChannel(context.Background(), &model.CommunicationChannel{
		UserID: f.viewer.ID, Path: "the.giver@example.com", PathType: model.PathTypeEmail,
	}))

	got := f.search(f.service(fullGist), "the.giver", f.viewer, service.SearchOptions{})
	assert.Equal(t, []string{"Stewart Little"}, got)
}

func TestSearch_MatchesEmailAndNameTogether(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.AddCommunicationChannel(context.Background(), &model.CommunicationChannel{
		UserID: f.viewer.ID, Path: "the.giver@example.com", PathType: model.PathTypeEmail,
	}))

	got := f.search(f.service(fullGist), "giver", f.viewer, service.SearchOptions{})
	assert.Contains(t, got, "Stewart Little")
	assert.Contains(t, got, "Rosemary Giver")
}

func TestSearch_IgnoresNonEmailChannels(t *testing.T) {
	f := newFixture(t)
	ch := &model.CommunicationChannel{UserID: f.viewer.ID, Path: "the.giver@example.com", PathType: model.PathTypeEmail}
	require.NoError(t, f.db.AddCommunicationChannel(context.Background(), ch))
	require.NoError(t, f.db.SetChannelPathType(context.Background(), ch.ID, model.PathTypeTwitter))

	got := f.search(f.service(fullGist), "the.giver", f.viewer, service.SearchOptions{})
	assert.Empty(t, got)
}

func TestSearch_MatchesNumericID(t *testing.T) {
	f := newFixture(t)

	got := f.search(f.service(fullGist), strconv.FormatInt(f.viewer.ID, 10), f.viewer, service.SearchOptions{})
	assert.Equal(t, []string{"Stewart Little"}, got)
}

func TestSearch_NumericIDOutsideCandidatesIgnored(t *testing.T) {
	f := newFixture(t)
	outsider := f.user("Not Enrolled")

	got := f.search(f.service(fullGist), strconv.FormatInt(outsider.ID, 10), f.viewer, service.SearchOptions{})
	assert.Empty(t, got)
}

func TestSearch_NoDuplicatesAcrossChannels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.AddCommunicationChannel(ctx, &model.CommunicationChannel{
		UserID: f.viewer.ID, Path: "stewart.little@example.com",
	}))
	require.NoError(t, f.db.AddPseudonym(ctx, &model.Pseudonym{
		UserID: f.viewer.ID, UniqueID: "sl", SISUserID: "STEWART-1",
	}))
	f.enroll(f.viewer, model.TaEnrollment)

	got := f.search(f.service(fullGist), "stewart", f.viewer, service.SearchOptions{})
	assert.Len(t, got, 3)
	count := 0
	for _, n := range got {
		if n == "Stewart Little" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestSearch_InactiveEnrollmentExcludes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dropped := f.user("Stewart Dropped")
	e := f.enroll(dropped, model.StudentEnrollment)
	require.NoError(t, f.db.SetEnrollmentState(ctx, e.ID, model.StateDeleted))

	// Same user, second enrollment still active: found through that one.
	twice := f.user("Stewart Twice")
	e = f.enroll(twice, model.StudentEnrollment)
	require.NoError(t, f.db.SetEnrollmentState(ctx, e.ID, model.StateDeleted))
	f.enroll(twice, model.TaEnrollment)

	got := f.search(f.service(fullGist), "Stewart", f.viewer, service.SearchOptions{})
	assert.NotContains(t, got, "Stewart Dropped")
	assert.Contains(t, got, "Stewart Twice")

	got = f.search(f.service(fullGist), "Stewart", f.viewer, service.SearchOptions{EnrollmentTypes: []string{"student"}})
	assert.NotContains(t, got, "Stewart Twice", "only the deleted enrollment was a student one")
}

// =========================================================================
// MODES
// =========================================================================

func TestSearch_FullPrefix_PrefixOnly(t *testing.T) {
	f := newFixture(t)

	got := f.search(f.service(fullPrefix), "Stewart", f.viewer, service.SearchOptions{})
	assert.Equal(t, []string{"Stewart Little"}, got)
}

func TestSearch_NameOnly_MatchesDisplayName(t *testing.T) {
	f := newFixture(t)

	got := f.search(f.service(nameGist), "Stewart", f.viewer, service.SearchOptions{})
	assert.Len(t, got, 3)
}

func TestSearch_NameOnly_IgnoresSISIDs(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.AddPseudonym(context.Background(), &model.Pseudonym{
		UserID: f.viewer.ID, UniqueID: "SOME_UNIQUE_ID@example.com", SISUserID: "SOME_SIS_ID",
	}))

	assert.Empty(t, f.search(f.service(nameGist), "SOME_SIS", f.viewer, service.SearchOptions{}))
}

func TestSearch_NameOnly_IgnoresEmails(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.AddCommunicationChannel(context.Background(), &model.CommunicationChannel{
		UserID: f.viewer.ID, Path: "the.giver@example.com",
	}))

	assert.Empty(t, f.search(f.service(nameGist), "the.giver", f.viewer, service.SearchOptions{}))
}

func TestSearch_NonASCIINamesAreCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.enroll(f.user("Émile Zola"), model.StudentEnrollment)

	for _, flags := range []search.Flags{nameGist, fullPrefix} {
		for _, term := range []string{"Émile", "émile", "ÉMILE"} {
			got := f.search(f.service(flags), term, f.viewer, service.SearchOptions{})
			assert.Equal(t, []string{"Émile Zola"}, got, "term %q, flags %+v", term, flags)
		}
	}
}

func TestSearch_NameOnly_IgnoresNumericID(t *testing.T) {
	f := newFixture(t)

	got := f.search(f.service(nameGist), strconv.FormatInt(f.viewer.ID, 10), f.viewer, service.SearchOptions{})
	assert.Empty(t, got)
}

func TestLikePattern_FollowsGistSetting(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "word%", f.service(fullPrefix).LikePattern("word"))
	assert.Equal(t, "%word%", f.service(fullGist).LikePattern("word"))
	assert.Contains(t, f.service(fullGist).LikePattern("MickyMouse"), "mickymouse")
}

// =========================================================================
// FAILURES AND METRICS
// =========================================================================

func TestSearch_StorageErrorIsWrapped(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("disk on fire")
	svc := f.serviceWith(&countingRoster{DB: f.db, fail: boom}, fullGist, nil)

	_, err := svc.Search(context.Background(), "Stewart", f.course.ID, f.viewer.ID, service.SearchOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.False(t, errors.Is(err, apperror.ErrInvalidRole))
}

func TestSearch_RecordsMetrics(t *testing.T) {
	f := newFixture(t)
	m := metrics.NewSearchMetrics(prometheus.NewRegistry())
	svc := f.serviceWith(nil, fullGist, m)

	f.search(svc, "Stewart", f.viewer, service.SearchOptions{})
	_, _ = svc.Search(context.Background(), "Stewart", f.course.ID, f.viewer.ID, service.SearchOptions{EnrollmentTypes: []string{"all"}})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues(metrics.ModeFull, metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues(metrics.ModeFull, metrics.OutcomeInvalidRole)))
}
