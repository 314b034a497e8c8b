package ctxutil

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// приватные ключи, чтобы исключить коллизии
type key int

const (
	keyChatID key = iota
	keyOpName
)

// WithChatID /ChatID — прокидываем chatID автора интента в контекст
func WithChatID(ctx context.Context, chatID int64) context.Context {
	return context.WithValue(ctx, keyChatID, chatID)
}

func ChatID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(keyChatID).(int64)
	return id, ok
}

// WithOp /Op — имя операции (для логов)
func WithOp(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyOpName, name)
}

func Op(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(keyOpName).(string)
	return s, ok
}

// Fields — поля контекста для zap.
func Fields(ctx context.Context) []zap.Field {
	var out []zap.Field
	if id, ok := ChatID(ctx); ok {
		out = append(out, zap.Int64("chat_id", id))
	}
	if op, ok := Op(ctx); ok {
		out = append(out, zap.String("op", op))
	}
	return out
}

var DefaultDBTimeout = 5 * time.Second

// WithDBTimeout — стандартный таймаут для БД.
func WithDBTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if dl, ok := parent.Deadline(); ok {
		// если у родителя осталось меньше DefaultDBTimeout — берем остаток
		if time.Until(dl) < DefaultDBTimeout {
			return context.WithDeadline(parent, dl)
		}
	}
	return context.WithTimeout(parent, DefaultDBTimeout)
}
