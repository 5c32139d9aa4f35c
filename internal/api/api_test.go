package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fithero/planner/internal/achievement"
	"fithero/planner/internal/domain"
	"fithero/planner/internal/generator"
	"fithero/planner/internal/lock"
	"fithero/planner/internal/repository"
	"fithero/planner/internal/repository/memory"
	"fithero/planner/internal/service"
	"fithero/planner/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-jwt-secret"

const planBody = `{
  "daily_workouts": {
    "day_1": {"workout_type": "Strength", "duration": 40, "exercises": [{"name": "Deadlift", "sets": 5}]}
  },
  "monthly_overview": {"focus": "strength"}
}`

type testServer struct {
	router *gin.Engine
	store  repository.Store
	player primitive.ObjectID
	genErr error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{store: memory.New().Repositories()}
	player := &domain.Player{Name: "hero"}
	_, err := ts.store.Players.Create(context.Background(), player)
	require.NoError(t, err)
	ts.player = player.ID

	gen := generator.Func(func(ctx context.Context, req generator.Request) (*generator.Response, error) {
		if ts.genErr != nil {
			return nil, ts.genErr
		}
		return generator.Classify([]byte(planBody)), nil
	})
	plans := service.NewPlanService(ts.store.Plans, gen, lock.NewLocalLocker(time.Second), storage.NewMemoryArchive(),
		service.PlanOptions{ArchivePrefix: "raw"}, nil)
	daily := service.NewDailyService(ts.store.Plans, ts.store.Slices, 0, nil)
	achievements := service.NewAchievementService(ts.store, achievement.NewEngine(time.UTC), nil)
	renewal := service.NewRenewalService(plans, ts.store, service.RenewalOptions{}, nil)

	ts.router = gin.New()
	ts.router.Use(RequestLogger(nil))
	SetupRoutes(ts.router, testSecret, plans, daily, achievements, renewal)
	return ts
}

func signToken(t *testing.T, uid string, role domain.Role, ttl time.Duration) string {
	t.Helper()
	claims := jwtClaims{
		UserID: uid,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (ts *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) playerToken(t *testing.T) string {
	return signToken(t, ts.player.Hex(), domain.RolePlayer, time.Hour)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestPing(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/ping", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, ts.player.Hex(), domain.RolePlayer, -time.Minute), http.StatusUnauthorized},
		{"missing role", "Bearer " + signToken(t, ts.player.Hex(), "", time.Hour), http.StatusUnauthorized},
		{"valid", "Bearer " + ts.playerToken(t), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			ts.router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestAuthMiddleware_BadSubject(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/api/v1/plans/workout", signToken(t, "not-hex", domain.RolePlayer, time.Hour), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateThenServeDaily(t *testing.T) {
	ts := newTestServer(t)
	token := ts.playerToken(t)

	w := ts.do(t, http.MethodPost, "/api/v1/plans/workout/generate", token, `{"month": 8, "year": 2025, "params": {"fitnessLevel": "beginner"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	plan := decode[domain.MonthlyPlan](t, w)
	assert.Equal(t, domain.StatusActive, plan.Status)
	assert.Equal(t, "beginner", plan.Params.FitnessLevel)
	assert.Empty(t, plan.RawResponse)

	w = ts.do(t, http.MethodGet, "/api/v1/plans/workout?month=8&year=2025", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, plan.ID, decode[domain.MonthlyPlan](t, w).ID)

	w = ts.do(t, http.MethodGet, "/api/v1/daily/workout?date=2025-08-01", token, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	slice := decode[domain.DailySlice](t, w)
	require.NotNil(t, slice.Workout)
	assert.Equal(t, "Strength", slice.Workout.WorkoutType)
	assert.Equal(t, plan.ID, slice.SourceMonthlyPlanID)

	w = ts.do(t, http.MethodGet, "/api/v1/daily/workout?date=2025-08-02", token, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/daily?start=2025-08-01&end=2025-08-31", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.DailySlice](t, w), 1)

	w = ts.do(t, http.MethodGet, "/api/v1/daily?date=2025-08-01", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	day := decode[service.DaySlices](t, w)
	assert.NotNil(t, day.Workout)
	assert.Contains(t, day.Errors, domain.PlanTypeMeal)
}

func TestPlanRequestErrors(t *testing.T) {
	ts := newTestServer(t)
	token := ts.playerToken(t)

	w := ts.do(t, http.MethodPost, "/api/v1/plans/yoga/generate", token, `{"month": 8, "year": 2025}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/plans/meal/generate", token, `{"month": 13, "year": 2025}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/plans/meal?month=8&year=2025", token, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/plans/meal?month=august", token, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/daily/workout?date=08/01/2025", token, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/daily?start=2025-08-10&end=2025-08-01", token, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.genErr = errors.New("upstream down")
	w = ts.do(t, http.MethodPost, "/api/v1/plans/meal/generate", token, `{"month": 8, "year": 2025}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAdminRoutesRequireOperator(t *testing.T) {
	ts := newTestServer(t)
	path := "/api/v1/admin/players/" + ts.player.Hex() + "/plans/workout/regenerate"

	w := ts.do(t, http.MethodPost, path, ts.playerToken(t), `{"month": 8, "year": 2025}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	operator := signToken(t, primitive.NewObjectID().Hex(), domain.RoleOperator, time.Hour)
	w = ts.do(t, http.MethodPost, path, operator, `{"month": 8, "year": 2025}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[domain.MonthlyPlan](t, w)

	w = ts.do(t, http.MethodPost, path, operator, `{"month": 8, "year": 2025}`)
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[domain.MonthlyPlan](t, w)
	assert.NotEqual(t, first.ID, second.ID)

	w = ts.do(t, http.MethodGet, "/api/v1/admin/plans/"+second.ID.Hex()+"/raw-url", operator, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.HasPrefix(decode[RawURLResponse](t, w).URL, "memory://raw/"))

	w = ts.do(t, http.MethodGet, "/api/v1/admin/plans/"+primitive.NewObjectID().Hex()+"/raw-url", operator, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/admin/plans/nope/raw-url", operator, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/admin/players/"+ts.player.Hex()+"/daily/regenerate?start=2025-08-01&end=2025-08-03", operator, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[service.RangeResult](t, w).Created)
}

func TestAdminSweeps(t *testing.T) {
	ts := newTestServer(t)
	operator := signToken(t, primitive.NewObjectID().Hex(), domain.RoleOperator, time.Hour)

	w := ts.do(t, http.MethodPost, "/api/v1/admin/plans/renew?month=8&year=2025", ts.playerToken(t), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// planBody carries no meals, so the meal half of the renewal fails.
	w = ts.do(t, http.MethodPost, "/api/v1/admin/plans/renew?month=8&year=2025", operator, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := decode[service.RenewalStats](t, w)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Failed)

	w = ts.do(t, http.MethodGet, "/api/v1/admin/plans/coverage?month=8&year=2025", operator, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cov := decode[service.RenewalCoverage](t, w)
	assert.EqualValues(t, 1, cov.WorkoutPlans)
	assert.EqualValues(t, 1, cov.MealPlans)

	w = ts.do(t, http.MethodPost, "/api/v1/admin/daily/populate?date=2025-08-01", operator, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sweep := decode[service.SweepResult](t, w)
	assert.Equal(t, 1, sweep.Players)
	assert.Equal(t, 1, sweep.Populated)

	w = ts.do(t, http.MethodPost, "/api/v1/admin/plans/renew?month=13", operator, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAchievementRoutes(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	token := ts.playerToken(t)

	_, err := ts.store.Achievements.Create(ctx, &domain.AchievementDefinition{
		Name:        "First Workout",
		Requirement: domain.Requirement{Type: domain.ReqWorkoutCount, Value: 1},
		Points:      25,
	})
	require.NoError(t, err)
	_, err = ts.store.Activity.AddWorkout(ctx, &domain.WorkoutSession{PlayerID: ts.player, Date: time.Now().UTC(), Completed: true})
	require.NoError(t, err)

	w := ts.do(t, http.MethodPost, "/api/v1/achievements/check", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[CheckAchievementsResponse](t, w)
	require.Len(t, res.Unlocked, 1)
	assert.Equal(t, 25, res.Unlocked[0].Points)

	w = ts.do(t, http.MethodPost, "/api/v1/achievements/check", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"unlocked":[]}`, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/v1/achievements", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	sum := decode[service.AchievementSummary](t, w)
	assert.Equal(t, 1, sum.Unlocked)
	assert.Equal(t, 25, sum.Experience)
}
