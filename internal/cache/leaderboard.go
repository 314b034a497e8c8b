// Package cache — кэш рейтинга классов в Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Spok95/ecoreport-bot/internal/models"
)

const (
	leaderboardKey = "ecoreport:leaderboard"
	DefaultTTL     = time.Minute
)

// Leaderboard хранит готовые строки рейтинга. Ошибки Redis не фатальны:
// промах кэша, запрос уходит в БД. Нулевой *Leaderboard — кэш выключен.
type Leaderboard struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

// Connect разбирает REDIS_URL и проверяет соединение.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewLeaderboard(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Leaderboard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Leaderboard{rdb: rdb, ttl: ttl, log: log}
}

func (c *Leaderboard) Get(ctx context.Context) ([]models.LeaderboardRow, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, leaderboardKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("leaderboard cache get", zap.Error(err))
		}
		return nil, false
	}
	var rows []models.LeaderboardRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		c.log.Warn("leaderboard cache decode", zap.Error(err))
		return nil, false
	}
	return rows, true
}

func (c *Leaderboard) Set(ctx context.Context, rows []models.LeaderboardRow) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, leaderboardKey, raw, c.ttl).Err(); err != nil {
		c.log.Warn("leaderboard cache set", zap.Error(err))
	}
}

// Invalidate — после принятия отчёта рейтинг меняется.
func (c *Leaderboard) Invalidate(ctx context.Context) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, leaderboardKey).Err(); err != nil {
		c.log.Warn("leaderboard cache del", zap.Error(err))
	}
}
