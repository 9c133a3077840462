package world

import (
	"errors"
	"sync"
	"testing"

	"github.com/skysquad-server/internal/config"
	"github.com/skysquad-server/internal/domain"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	cfg := config.DefaultConfig()
	return New(&cfg.Game)
}

func TestMovePlayer(t *testing.T) {
	tests := []struct {
		dir   domain.Direction
		wantX float64
		wantY float64
	}{
		{domain.DirectionUp, 0, 0.1},
		{domain.DirectionDown, 0, -0.1},
		{domain.DirectionLeft, -0.1, 0},
		{domain.DirectionRight, 0.1, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			w := newTestWorld(t)
			w.AddPlayer("conn-1")
			w.MovePlayer("conn-1", tt.dir)

			p, err := w.Player("conn-1")
			if err != nil {
				t.Fatalf("Player: %v", err)
			}
			if p.X != tt.wantX || p.Y != tt.wantY {
				t.Errorf("got (%v, %v), want (%v, %v)", p.X, p.Y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestMovePlayerUnknownDirection(t *testing.T) {
	w := newTestWorld(t)
	w.AddPlayer("conn-1")
	w.MovePlayer("conn-1", domain.Direction("diagonal"))

	p, err := w.Player("conn-1")
	if err != nil {
		t.Fatalf("Player: %v", err)
	}
	if p.X != 0 || p.Y != 0 {
		t.Errorf("unknown direction moved player to (%v, %v)", p.X, p.Y)
	}
}

func TestMovePlayerUnbounded(t *testing.T) {
	w := newTestWorld(t)
	w.AddPlayer("conn-1")
	for i := 0; i < 200; i++ {
		w.MovePlayer("conn-1", domain.DirectionRight)
	}

	p, _ := w.Player("conn-1")
	if p.X < 19.9 {
		t.Errorf("expected position past any screen edge, got %v", p.X)
	}
}

func TestMoveUnknownPlayerIsNoop(t *testing.T) {
	w := newTestWorld(t)
	w.MovePlayer("ghost", domain.DirectionUp)

	if _, err := w.Player("ghost"); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Errorf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestBindUserSetsIdentityOnce(t *testing.T) {
	w := newTestWorld(t)
	w.AddPlayer("conn-1")
	w.BindUser("conn-1", "user-a", "alice")
	w.BindUser("conn-1", "user-b", "alice2")

	p, err := w.Player("conn-1")
	if err != nil {
		t.Fatalf("Player: %v", err)
	}
	if p.UserID != "user-a" {
		t.Errorf("user id rebound: got %q, want %q", p.UserID, "user-a")
	}
	if p.Username != "alice2" {
		t.Errorf("username not refreshed: got %q", p.Username)
	}
}

func TestCollectRemovesStarAndReturnsValue(t *testing.T) {
	w := newTestWorld(t)
	w.AddStar(domain.Star{ID: "star-1", X: 1, Y: 1, Value: 5})

	value, err := w.Collect("star-1")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if value != 5 {
		t.Errorf("got value %d, want 5", value)
	}
	if _, err := w.Star("star-1"); !errors.Is(err, domain.ErrStarNotFound) {
		t.Errorf("star still present after collect: %v", err)
	}

	if _, err := w.Collect("star-1"); !errors.Is(err, domain.ErrStarNotFound) {
		t.Errorf("second collect succeeded: %v", err)
	}
}

func TestCollectUnknownStarLeavesScore(t *testing.T) {
	w := newTestWorld(t)

	if _, err := w.Collect("nope"); !errors.Is(err, domain.ErrStarNotFound) {
		t.Fatalf("expected ErrStarNotFound, got %v", err)
	}
	if w.Score() != 0 {
		t.Errorf("score changed on failed collect: %d", w.Score())
	}
}

// Only one of N racing collects on the same star may win.
func TestConcurrentCollectSingleWinner(t *testing.T) {
	w := newTestWorld(t)
	w.AddStar(domain.Star{ID: "star-1", X: 0, Y: 0, Value: 1})

	const goroutines = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.Collect("star-1"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("got %d winning collects, want exactly 1", wins)
	}
}

func TestWithinPickup(t *testing.T) {
	w := newTestWorld(t)

	tests := []struct {
		name string
		px   float64
		py   float64
		want bool
	}{
		{"exact overlap", 1.0, 1.0, true},
		{"inside both axes", 1.4, 0.6, true},
		{"boundary is exclusive", 1.5, 1.0, false},
		{"one axis out", 1.0, 2.0, false},
		{"corner of the square zone", 1.49, 1.49, true},
	}

	star := domain.Star{ID: "s", X: 1.0, Y: 1.0, Value: 1}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := domain.Player{X: tt.px, Y: tt.py}
			if got := w.WithinPickup(p, star); got != tt.want {
				t.Errorf("WithinPickup((%v,%v)) = %v, want %v", tt.px, tt.py, got, tt.want)
			}
		})
	}
}

func TestAddScore(t *testing.T) {
	w := newTestWorld(t)

	if got := w.AddScore(1); got != 1 {
		t.Errorf("AddScore(1) = %d, want 1", got)
	}
	if got := w.AddScore(5); got != 6 {
		t.Errorf("AddScore(5) = %d, want 6", got)
	}
	if w.Score() != 6 {
		t.Errorf("Score() = %d, want 6", w.Score())
	}
}

func TestSnapshot(t *testing.T) {
	w := newTestWorld(t)
	w.AddPlayer("conn-1")
	w.BindUser("conn-1", "user-a", "alice")
	w.AddStar(domain.Star{ID: "star-1", X: 2, Y: 3, Value: 1})
	w.AddScore(7)

	snap := w.Snapshot()

	if snap.Score != 7 {
		t.Errorf("snapshot score = %d, want 7", snap.Score)
	}
	if len(snap.Players) != 1 || snap.Players[0].Username != "alice" {
		t.Errorf("unexpected players: %+v", snap.Players)
	}
	if len(snap.Stars) != 1 || snap.Stars[0].ID != "star-1" {
		t.Errorf("unexpected stars: %+v", snap.Stars)
	}

	// Mutating the world after the fact must not alter the snapshot.
	w.MovePlayer("conn-1", domain.DirectionUp)
	if snap.Players[0].Y != 0 {
		t.Error("snapshot aliases live player state")
	}
}

func TestRemovePlayer(t *testing.T) {
	w := newTestWorld(t)
	w.AddPlayer("conn-1")
	w.RemovePlayer("conn-1")
	w.RemovePlayer("conn-1") // second removal is harmless

	if w.PlayerCount() != 0 {
		t.Errorf("PlayerCount = %d, want 0", w.PlayerCount())
	}
}
