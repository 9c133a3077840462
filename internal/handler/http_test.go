package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/skysquad-server/internal/catalog"
	"github.com/skysquad-server/internal/config"
	"github.com/skysquad-server/internal/domain"
	"github.com/skysquad-server/internal/events"
	"github.com/skysquad-server/internal/game"
	"github.com/skysquad-server/internal/progression"
	"github.com/skysquad-server/internal/spawner"
	"github.com/skysquad-server/internal/world"
	"github.com/skysquad-server/internal/ws"
)

type memStore struct {
	users map[string]*domain.UserRecord
}

func (s *memStore) GetUser(ctx context.Context, userID string) (*domain.UserRecord, error) {
	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (s *memStore) GetUserByUsername(ctx context.Context, username string) (*domain.UserRecord, error) {
	for _, u := range s.users {
		if u.Username == username {
			return u.Clone(), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *memStore) UpsertUser(ctx context.Context, user *domain.UserRecord) error {
	s.users[user.ID] = user.Clone()
	return nil
}

func (s *memStore) RecordAchievement(ctx context.Context, userID, achievementID string, unlockedAt time.Time) error {
	return nil
}

// fakeLeaderboard records the size requested from TopCollectors.
type fakeLeaderboard struct {
	lastN int
}

func (f *fakeLeaderboard) TopCollectors(ctx context.Context, n int) ([]domain.StarLeaderboardEntry, error) {
	f.lastN = n
	return []domain.StarLeaderboardEntry{}, nil
}

func newTestRouter(t *testing.T, scores StarLeaderboard) http.Handler {
	t.Helper()
	cfg := config.DefaultConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	w := world.New(&cfg.Game)
	store := &memStore{users: make(map[string]*domain.UserRecord)}
	engine := progression.NewEngine(store, &cfg.Challenges, logger)
	sp := spawner.New(w, events.NopPublisher{}, &cfg.Game, logger)
	svc := game.NewService(w, engine, sp, nil, events.NopPublisher{}, &cfg.Game, logger)
	hub := ws.NewHub(logger)

	// PostgreSQL and the token service stay nil: only routes that
	// never touch them are exercised here.
	h := NewHandler(svc, engine, scores, nil, hub, nil, cfg, logger)
	return h.Router()
}

func doGet(t *testing.T, router http.Handler, path string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding %s response: %v", path, err)
	}
	return rec, resp
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t, nil)

	for _, path := range []string{"/health", "/ready"} {
		rec, resp := doGet(t, router, path)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
		if !resp.Success {
			t.Errorf("%s success = false", path)
		}
	}
}

func TestListAchievements(t *testing.T) {
	router := newTestRouter(t, nil)

	rec, resp := doGet(t, router, "/api/v1/achievements")
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d, success = %v", rec.Code, resp.Success)
	}

	items, ok := resp.Data.([]interface{})
	if !ok {
		t.Fatalf("data is %T, want a list", resp.Data)
	}
	if len(items) != catalog.AchievementCount() {
		t.Errorf("got %d achievements, want %d", len(items), catalog.AchievementCount())
	}
}

func TestListChallenges(t *testing.T) {
	router := newTestRouter(t, nil)

	rec, resp := doGet(t, router, "/api/v1/challenges")
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d, success = %v", rec.Code, resp.Success)
	}

	items, ok := resp.Data.([]interface{})
	if !ok {
		t.Fatalf("data is %T, want a list", resp.Data)
	}
	if len(items) == 0 {
		t.Error("no active challenges returned")
	}
}

func TestRegisterRequiresUsername(t *testing.T) {
	router := newTestRouter(t, nil)

	for _, body := range []string{`{}`, `{"username": ""}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/register", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestLeaderboardLimitClamped(t *testing.T) {
	scores := &fakeLeaderboard{}
	router := newTestRouter(t, scores)

	cases := []struct {
		path  string
		wantN int
	}{
		{"/api/v1/leaderboard", defaultLeaderboardLimit},
		{"/api/v1/leaderboard?limit=25", 25},
		{"/api/v1/leaderboard?limit=10000000", maxLeaderboardLimit},
		{"/api/v1/leaderboard?limit=-5", defaultLeaderboardLimit},
		{"/api/v1/leaderboard?limit=abc", defaultLeaderboardLimit},
	}
	for _, tc := range cases {
		rec, resp := doGet(t, router, tc.path)
		if rec.Code != http.StatusOK || !resp.Success {
			t.Fatalf("%s: status = %d, success = %v", tc.path, rec.Code, resp.Success)
		}
		if scores.lastN != tc.wantN {
			t.Errorf("%s: requested %d entries, want %d", tc.path, scores.lastN, tc.wantN)
		}
	}
}

func TestWebSocketStats(t *testing.T) {
	router := newTestRouter(t, nil)

	rec, resp := doGet(t, router, "/api/v1/ws/stats")
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d, success = %v", rec.Code, resp.Success)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data is %T, want an object", resp.Data)
	}
	if got := data["total_connections"]; got != float64(0) {
		t.Errorf("total_connections = %v, want 0", got)
	}
}
