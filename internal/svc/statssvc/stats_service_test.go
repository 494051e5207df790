package statssvc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/practice-tracker/internal/catalog"
	"github.com/mkrupp/practice-tracker/internal/domain"
	http_ "github.com/mkrupp/practice-tracker/internal/infra/transport/http"
	"github.com/mkrupp/practice-tracker/internal/repo/completion"
	"github.com/mkrupp/practice-tracker/internal/repo/sqldb"
	"github.com/mkrupp/practice-tracker/internal/repo/user"
	"github.com/mkrupp/practice-tracker/internal/svc/statssvc"
)

//nolint:gochecknoglobals
var defaultConfig = statssvc.StatsConfig{
	DefaultRange:  "week",
	AllWindowDays: 90,
	MinDays:       7,
	MaxDays:       365,
}

type seedRow struct {
	practice string
	day      string
	count    int
}

func setup(t *testing.T, rows []seedRow) (*statssvc.StatsService, *domain.User) {
	t.Helper()

	ctx := context.Background()

	db, err := sqldb.Open(ctx, sqldb.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "stats.db")})
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Migrate(ctx)
	require.NoError(t, err)

	u, err := user.NewSQLUserRepository(db).CreateUser(ctx, "alice", []byte("hash"))
	require.NoError(t, err)

	repo := completion.NewSQLCompletionRepository(db)

	require.NoError(t, repo.WithTx(ctx, func(s completion.Store) error {
		for _, r := range rows {
			key := domain.CompletionKey{UserID: u.ID, PracticeID: r.practice, DayKey: r.day}
			if _, _, err := s.InsertIfAbsent(ctx, key, r.count, time.Now()); err != nil {
				return err
			}
		}

		return nil
	}))

	svc, err := statssvc.NewStatsService(defaultConfig, repo, catalog.Default(), testClock(t), nil)
	require.NoError(t, err)

	return svc, u
}

//nolint:gochecknoglobals
var fixture = []seedRow{
	{"walk", "2026-01-05", 2},
	{"walk", "2026-01-07", 1},
	{"journal", "2026-01-06", 1},
	{"retired", "2026-01-06", 3},
	{"cold_shower", "2025-12-20", 1},
	{"walk", "2025-09-01", 2},
}

func perPracticeByID(stats *statssvc.Stats) map[string]statssvc.PracticeStats {
	out := make(map[string]statssvc.PracticeStats)
	for _, p := range stats.PerPractice {
		out[p.PracticeID] = p
	}

	return out
}

func TestGetStatsWeek(t *testing.T) {
	t.Parallel()

	svc, u := setup(t, fixture)

	stats, err := svc.GetStats(context.Background(), statssvc.Query{UserID: u.ID})
	require.NoError(t, err)

	assert.Equal(t, statssvc.RangeWeek, stats.Range, "default range")
	assert.Equal(t, "2026-01-07", stats.AsOfDayKey, "defaults to today")
	assert.Equal(t, "2026-01-05", *stats.Bounds.StartDayKey)
	assert.Nil(t, stats.ChartWindow)

	require.Len(t, stats.PerPractice, 3)
	assert.Equal(t, "walk", stats.PerPractice[0].PracticeID)

	byID := perPracticeByID(stats)
	assert.Equal(t, 3, byID["walk"].Count)
	assert.Equal(t, 6, byID["walk"].Points)
	assert.Equal(t, 1, byID["journal"].Count)
	assert.Zero(t, byID["cold_shower"].Count)
	assert.Zero(t, byID["cold_shower"].Points)

	assert.Equal(t, statssvc.Totals{TotalCount: 4, TotalPoints: 7, ActiveDays: 3}, stats.Totals)

	assert.Equal(t, []statssvc.DailyPoint{
		{DayKey: "2026-01-05", TotalCount: 2, TotalPoints: 4},
		{DayKey: "2026-01-06", TotalCount: 1, TotalPoints: 1},
		{DayKey: "2026-01-07", TotalCount: 1, TotalPoints: 2},
	}, stats.DailySeries)
}

func TestGetStatsAll(t *testing.T) {
	t.Parallel()

	svc, u := setup(t, fixture)

	stats, err := svc.GetStats(context.Background(), statssvc.Query{
		UserID: u.ID, Range: statssvc.RangeAll, AsOfDayKey: "2026-01-07", Days: 30,
	})
	require.NoError(t, err)

	assert.Nil(t, stats.Bounds.StartDayKey)
	assert.Nil(t, stats.Bounds.EndDayKey)
	require.NotNil(t, stats.ChartWindow)
	assert.Equal(t, statssvc.ChartWindow{Days: 30, StartDayKey: "2025-12-09", EndDayKey: "2026-01-07"}, *stats.ChartWindow)

	byID := perPracticeByID(stats)
	assert.Equal(t, 5, byID["walk"].Count, "totals are unbounded")
	assert.Equal(t, 1, byID["cold_shower"].Count)
	assert.Equal(t, 5, stats.Totals.ActiveDays)

	require.Len(t, stats.DailySeries, 4, "series limited to the window")
	assert.Equal(t, "2025-12-20", stats.DailySeries[0].DayKey)
}

func TestGetStatsEmptyRangeKeepsCatalog(t *testing.T) {
	t.Parallel()

	svc, u := setup(t, nil)

	stats, err := svc.GetStats(context.Background(), statssvc.Query{UserID: u.ID, Range: statssvc.RangeToday})
	require.NoError(t, err)

	require.Len(t, stats.PerPractice, 3)

	for _, p := range stats.PerPractice {
		assert.Zero(t, p.Count)
		assert.Zero(t, p.Points)
	}

	assert.Equal(t, statssvc.Totals{}, stats.Totals)
	assert.Empty(t, stats.DailySeries)
}

func TestGetStatsInvalidDayKey(t *testing.T) {
	t.Parallel()

	svc, u := setup(t, nil)

	for _, rng := range []statssvc.Range{statssvc.RangeWeek, statssvc.RangeAll} {
		_, err := svc.GetStats(context.Background(), statssvc.Query{UserID: u.ID, Range: rng, AsOfDayKey: "2026-02-30"})
		assert.ErrorIs(t, err, domain.ErrInvalidDayKey)
	}
}

func TestNewStatsServiceRejectsBadDefault(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig
	cfg.DefaultRange = "forever"

	_, err := statssvc.NewStatsService(cfg, nil, catalog.Default(), testClock(t), nil)
	assert.ErrorIs(t, err, statssvc.ErrInvalidRange)
}

type userAuth struct{ user *domain.User }

func (a userAuth) Authenticate(_ context.Context, token string) (*domain.User, error) {
	if token != "tok" {
		return nil, domain.ErrUnauthorized
	}

	return a.user, nil
}

func TestHTTPStats(t *testing.T) {
	t.Parallel()

	svc, u := setup(t, fixture)
	h := statssvc.NewHTTPTransport(svc, userAuth{user: u}, "isha_session")

	get := func(target string, authed bool) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, target, nil)
		if authed {
			r.AddCookie(&http.Cookie{Name: "isha_session", Value: "tok"})
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)

		return rec
	}

	rec := get("/stats?range=today&dayKey=2026-01-05", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats statssvc.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, statssvc.RangeToday, stats.Range)
	assert.Equal(t, 2, perPracticeByID(&stats)["walk"].Count)

	tests := []struct {
		name     string
		target   string
		authed   bool
		wantCode int
		wantErr  http_.ErrorCode
	}{
		{"unauthorized", "/stats", false, http.StatusUnauthorized, http_.CodeUnauthorized},
		{"bad range", "/stats?range=year", true, http.StatusBadRequest, http_.CodeValidation},
		{"days too small", "/stats?range=all&days=3", true, http.StatusBadRequest, http_.CodeValidation},
		{"days too large", "/stats?range=all&days=400", true, http.StatusBadRequest, http_.CodeValidation},
		{"days not a number", "/stats?days=ten", true, http.StatusBadRequest, http_.CodeValidation},
		{"empty range", "/stats?range=", true, http.StatusBadRequest, http_.CodeValidation},
		{"empty days", "/stats?range=all&days=", true, http.StatusBadRequest, http_.CodeValidation},
		{"empty day key", "/stats?range=today&dayKey=", true, http.StatusBadRequest, http_.CodeInvalidDayKey},
		{"bad day key", "/stats?dayKey=2026-13-40", true, http.StatusBadRequest, http_.CodeInvalidDayKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(tt.target, tt.authed)
			require.Equal(t, tt.wantCode, rec.Code)

			var resp http_.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantErr, resp.Error.Code)
		})
	}
}
