package game

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/skysquad-server/internal/catalog"
	"github.com/skysquad-server/internal/config"
	"github.com/skysquad-server/internal/domain"
	"github.com/skysquad-server/internal/events"
	"github.com/skysquad-server/internal/progression"
	"github.com/skysquad-server/internal/spawner"
	"github.com/skysquad-server/internal/world"
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

type fakeMirror struct {
	globalScore int64
	playerStars map[string]int
}

func (m *fakeMirror) IncrGlobalScore(ctx context.Context, delta int) (int64, error) {
	m.globalScore += int64(delta)
	return m.globalScore, nil
}

func (m *fakeMirror) IncrPlayerStars(ctx context.Context, userID, username string, delta int) error {
	if m.playerStars == nil {
		m.playerStars = make(map[string]int)
	}
	m.playerStars[userID] += delta
	return nil
}

func newTestService(t *testing.T) (*Service, *world.World, *fakeMirror) {
	t.Helper()
	cfg := config.DefaultConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	w := world.New(&cfg.Game)
	store := &memStore{users: make(map[string]*domain.UserRecord)}
	engine := progression.NewEngine(store, &cfg.Challenges, logger)
	sp := spawner.New(w, events.NopPublisher{}, &cfg.Game, logger)
	mirror := &fakeMirror{}

	return NewService(w, engine, sp, mirror, events.NopPublisher{}, &cfg.Game, logger), w, mirror
}

func TestJoinBindsIdentity(t *testing.T) {
	svc, w, _ := newTestService(t)
	ctx := context.Background()

	svc.Enter("conn-1")
	result := svc.Join(ctx, "conn-1", "", "ace")

	if result.UserID == "" {
		t.Fatal("join produced no user id")
	}
	if result.Streak != 1 {
		t.Errorf("first login streak = %d, want 1", result.Streak)
	}
	if len(result.Challenges) == 0 {
		t.Error("join returned no challenges")
	}

	p, err := w.Player("conn-1")
	if err != nil {
		t.Fatalf("Player: %v", err)
	}
	if p.UserID != result.UserID || p.Username != "ace" {
		t.Errorf("player identity = (%q, %q), want (%q, %q)", p.UserID, p.Username, result.UserID, "ace")
	}
}

func TestJoinResumesExistingUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Enter("conn-1")
	first := svc.Join(ctx, "conn-1", "", "ace")
	svc.Leave("conn-1")

	svc.Enter("conn-2")
	second := svc.Join(ctx, "conn-2", "", "ace")

	if second.UserID != first.UserID {
		t.Errorf("same username got a new user id: %s vs %s", second.UserID, first.UserID)
	}
}

func TestCollectStar(t *testing.T) {
	svc, w, mirror := newTestService(t)
	ctx := context.Background()

	svc.Enter("conn-1")
	joined := svc.Join(ctx, "conn-1", "", "ace")
	w.AddStar(domain.Star{ID: "star-1", X: 0.2, Y: -0.3, Value: 1})
	before := w.StarCount()

	result, err := svc.CollectStar(ctx, "conn-1", joined.UserID, "star-1")
	if err != nil {
		t.Fatalf("CollectStar: %v", err)
	}

	if result.Score != 1 {
		t.Errorf("score = %d, want 1", result.Score)
	}
	if result.NewXP != 10 {
		t.Errorf("xp = %d, want 10", result.NewXP)
	}
	found := false
	for _, ach := range result.Unlocked {
		if ach.ID == catalog.AchFirstStar {
			found = true
		}
	}
	if !found {
		t.Errorf("first star badge missing from %v", result.Unlocked)
	}

	// The collected star is gone but a replacement was spawned.
	if _, err := w.Star("star-1"); !errors.Is(err, domain.ErrStarNotFound) {
		t.Error("collected star still in world")
	}
	if w.StarCount() != before {
		t.Errorf("star count = %d, want %d", w.StarCount(), before)
	}

	if mirror.globalScore != 1 {
		t.Errorf("mirrored global score = %d, want 1", mirror.globalScore)
	}
	if mirror.playerStars[joined.UserID] != 1 {
		t.Errorf("mirrored star tally = %d, want 1", mirror.playerStars[joined.UserID])
	}
}

// A special star pays its full value into the score but the XP grant
// per collection is flat.
func TestCollectSpecialStarGrantsFlatXP(t *testing.T) {
	svc, w, _ := newTestService(t)
	ctx := context.Background()

	svc.Enter("conn-1")
	joined := svc.Join(ctx, "conn-1", "", "ace")
	w.AddStar(domain.Star{ID: "star-1", X: 0, Y: 0, Value: 5})

	result, err := svc.CollectStar(ctx, "conn-1", joined.UserID, "star-1")
	if err != nil {
		t.Fatalf("CollectStar: %v", err)
	}

	if result.Score != 5 {
		t.Errorf("score = %d, want 5", result.Score)
	}
	if result.NewXP != 10 {
		t.Errorf("xp = %d, want flat 10", result.NewXP)
	}
}

func TestCollectStarOutOfRange(t *testing.T) {
	svc, w, _ := newTestService(t)
	ctx := context.Background()

	svc.Enter("conn-1")
	w.AddStar(domain.Star{ID: "star-1", X: 3, Y: 3, Value: 1})

	_, err := svc.CollectStar(ctx, "conn-1", "", "star-1")
	if !errors.Is(err, domain.ErrStarOutOfRange) {
		t.Fatalf("err = %v, want ErrStarOutOfRange", err)
	}

	// A failed grab leaves the star and the score alone.
	if _, err := w.Star("star-1"); err != nil {
		t.Error("star vanished after out-of-range attempt")
	}
	if w.Score() != 0 {
		t.Errorf("score = %d, want 0", w.Score())
	}
}

func TestCollectUnknownStar(t *testing.T) {
	svc, _, _ := newTestService(t)

	svc.Enter("conn-1")
	_, err := svc.CollectStar(context.Background(), "conn-1", "", "ghost")
	if !errors.Is(err, domain.ErrStarNotFound) {
		t.Fatalf("err = %v, want ErrStarNotFound", err)
	}
}

func TestCollectStarTwice(t *testing.T) {
	svc, w, _ := newTestService(t)
	ctx := context.Background()

	svc.Enter("conn-1")
	w.AddStar(domain.Star{ID: "star-1", X: 0, Y: 0, Value: 1})

	if _, err := svc.CollectStar(ctx, "conn-1", "", "star-1"); err != nil {
		t.Fatalf("first collect: %v", err)
	}
	if _, err := svc.CollectStar(ctx, "conn-1", "", "star-1"); !errors.Is(err, domain.ErrStarNotFound) {
		t.Fatalf("second collect err = %v, want ErrStarNotFound", err)
	}
}

// A spectator who never joined still scores for the squad, but earns
// no personal progression.
func TestCollectWithoutJoin(t *testing.T) {
	svc, w, mirror := newTestService(t)
	ctx := context.Background()

	svc.Enter("conn-1")
	w.AddStar(domain.Star{ID: "star-1", X: 0, Y: 0, Value: 5})

	result, err := svc.CollectStar(ctx, "conn-1", "", "star-1")
	if err != nil {
		t.Fatalf("CollectStar: %v", err)
	}

	if result.Score != 5 {
		t.Errorf("score = %d, want 5", result.Score)
	}
	if result.NewXP != 0 || len(result.Unlocked) != 0 {
		t.Errorf("anonymous collect granted progression: xp=%d unlocked=%v", result.NewXP, result.Unlocked)
	}
	if len(mirror.playerStars) != 0 {
		t.Errorf("anonymous collect mirrored a player tally: %v", mirror.playerStars)
	}
}

func TestCollectByUnknownConnection(t *testing.T) {
	svc, w, _ := newTestService(t)
	w.AddStar(domain.Star{ID: "star-1", X: 0, Y: 0, Value: 1})

	_, err := svc.CollectStar(context.Background(), "ghost", "", "star-1")
	if !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("err = %v, want ErrPlayerNotFound", err)
	}
}

func TestMoveThenCollect(t *testing.T) {
	svc, w, _ := newTestService(t)
	ctx := context.Background()

	svc.Enter("conn-1")
	w.AddStar(domain.Star{ID: "star-1", X: 0.6, Y: 0, Value: 1})

	// Out of reach from the origin.
	if _, err := svc.CollectStar(ctx, "conn-1", "", "star-1"); !errors.Is(err, domain.ErrStarOutOfRange) {
		t.Fatalf("err = %v, want ErrStarOutOfRange", err)
	}

	// Two steps right brings the star inside the pickup square.
	svc.Move("conn-1", domain.DirectionRight)
	svc.Move("conn-1", domain.DirectionRight)

	if _, err := svc.CollectStar(ctx, "conn-1", "", "star-1"); err != nil {
		t.Fatalf("collect after moving: %v", err)
	}
}
