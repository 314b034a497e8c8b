// Package db — хранилище PostgreSQL: пользователи, школы, классы, отчёты, медиа и audit.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/Spok95/ecoreport-bot/internal/ctxutil"
	"github.com/Spok95/ecoreport-bot/internal/db/migrations"
	"github.com/Spok95/ecoreport-bot/internal/metrics"
)

// Store — все запросы бота. Методы Get* возвращают (nil, nil), если строки нет.
type Store struct {
	db *sql.DB
}

func New(database *sql.DB) *Store { return &Store{db: database} }

func (s *Store) DB() *sql.DB { return s.db }

// Open открывает пул через драйвер pgx и проверяет соединение.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	database.SetMaxOpenConns(20)
	database.SetMaxIdleConns(5)
	database.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return database, nil
}

// Migrate накатывает вшитые миграции goose.
func Migrate(ctx context.Context, database *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, database, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Ping — для /healthz, с замером латентности.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	start := time.Now()
	err := s.db.PingContext(ctx)
	metrics.ObserveDBPing(time.Since(start))
	return err
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func noRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
