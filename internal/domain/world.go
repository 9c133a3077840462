package domain

// Direction represents a movement command from a client
type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Player is the ephemeral per-connection entity in the world.
// It is created when a connection becomes active and destroyed on
// disconnect. UserID stays empty until the first join command.
type Player struct {
	ConnectionID string  `json:"-"`
	UserID       string  `json:"-"`
	Username     string  `json:"username"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
}

// Star is a collectible item with a point value. Value is 1 for a
// regular star and 5 for a special one.
type Star struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value int     `json:"value"`
}

// Special reports whether the star carries a bonus value.
func (s Star) Special() bool {
	return s.Value > 1
}

// WorldSnapshot is a consistent point-in-time view of the world,
// broadcast to every connected client on each tick.
type WorldSnapshot struct {
	Score   int64    `json:"score"`
	Players []Player `json:"players"`
	Stars   []Star   `json:"stars"`
}

// StarLeaderboardEntry is a single row of the star-collection leaderboard.
type StarLeaderboardEntry struct {
	Rank     int64  `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	Stars    int64  `json:"stars"`
}
