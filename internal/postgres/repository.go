// Package postgres persists user progression records. Callers treat
// failures as degradable, never fatal to a session.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skysquad-server/internal/config"
	"github.com/skysquad-server/internal/domain"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			username VARCHAR(255) UNIQUE NOT NULL,
			email VARCHAR(255) DEFAULT '',
			experience INT DEFAULT 0,
			level INT DEFAULT 0,
			total_stars INT DEFAULT 0,
			special_stars INT DEFAULT 0,
			login_streak INT DEFAULT 0,
			last_login TIMESTAMP,
			challenge_progress JSONB DEFAULT '{}',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS user_achievements (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			achievement_id VARCHAR(64) NOT NULL,
			unlocked_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, achievement_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)`,
		`CREATE INDEX IF NOT EXISTS idx_user_achievements_user ON user_achievements(user_id)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// GetUser retrieves a user record with its unlocked achievements.
func (r *Repository) GetUser(ctx context.Context, userID string) (*domain.UserRecord, error) {
	query := `
		SELECT id, username, email, experience, level, total_stars, special_stars,
		       login_streak, last_login, challenge_progress, created_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(ctx, r.pool.QueryRow(ctx, query, userID))
}

// GetUserByUsername retrieves a user record by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.UserRecord, error) {
	query := `
		SELECT id, username, email, experience, level, total_stars, special_stars,
		       login_streak, last_login, challenge_progress, created_at
		FROM users
		WHERE username = $1
	`
	return r.scanUser(ctx, r.pool.QueryRow(ctx, query, username))
}

func (r *Repository) scanUser(ctx context.Context, row pgx.Row) (*domain.UserRecord, error) {
	var user domain.UserRecord
	var lastLogin *time.Time
	var progressJSON []byte

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Experience,
		&user.Level,
		&user.TotalStars,
		&user.SpecialStars,
		&user.LoginStreak,
		&lastLogin,
		&progressJSON,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}

	if lastLogin != nil {
		user.LastLogin = *lastLogin
	}
	user.ChallengeProgress = make(map[string]int)
	if len(progressJSON) > 0 {
		if err := json.Unmarshal(progressJSON, &user.ChallengeProgress); err != nil {
			return nil, fmt.Errorf("decoding challenge progress: %w", err)
		}
	}

	achievements, err := r.userAchievements(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Achievements = achievements

	return &user, nil
}

func (r *Repository) userAchievements(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT achievement_id FROM user_achievements WHERE user_id = $1 ORDER BY unlocked_at`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("getting user achievements: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning achievement: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// UpsertUser inserts or updates a user's progression fields.
// Achievement rows are owned by RecordAchievement, not touched here.
func (r *Repository) UpsertUser(ctx context.Context, user *domain.UserRecord) error {
	progressJSON, err := json.Marshal(user.ChallengeProgress)
	if err != nil {
		return fmt.Errorf("marshaling challenge progress: %w", err)
	}

	var lastLogin *time.Time
	if !user.LastLogin.IsZero() {
		lastLogin = &user.LastLogin
	}

	query := `
		INSERT INTO users (id, username, email, experience, level, total_stars, special_stars,
		                   login_streak, last_login, challenge_progress, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id)
		DO UPDATE SET
			username = $2,
			email = $3,
			experience = $4,
			level = $5,
			total_stars = $6,
			special_stars = $7,
			login_streak = $8,
			last_login = $9,
			challenge_progress = $10
	`
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = r.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.Experience,
		user.Level,
		user.TotalStars,
		user.SpecialStars,
		user.LoginStreak,
		lastLogin,
		progressJSON,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

// RecordAchievement stores an unlock. The unique constraint makes the
// write idempotent, matching the exactly-once unlock guarantee.
func (r *Repository) RecordAchievement(ctx context.Context, userID, achievementID string, unlockedAt time.Time) error {
	query := `
		INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, userID, achievementID, unlockedAt)
	if err != nil {
		return fmt.Errorf("recording achievement: %w", err)
	}
	return nil
}

// UserCount returns the total number of registered users.
func (r *Repository) UserCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}
