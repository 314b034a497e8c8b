// Package chat описывает канал общения с пользователем независимо от транспорта:
// входящие интенты и исходящие сообщения.
package chat

import "context"

type Kind int

const (
	KindCommand Kind = iota + 1
	KindText
	KindMedia
	KindButton
)

// Attachment — вложение сообщения. Для фото Telegram присылает несколько
// размеров одного снимка; они лежат в Variants.
type Attachment struct {
	Photo    bool
	Video    bool
	Variants []FileVariant
}

type FileVariant struct {
	FileID   string
	Width    int
	Height   int
	FileSize int
}

// Intent — одно входящее действие пользователя.
type Intent struct {
	ChatID     int64
	ActorID    int64
	Kind       Kind
	Text       string
	Data       string // payload inline-кнопки
	CallbackID string
	MessageID  int
	Media      *Attachment
}

// Option — inline-кнопка с payload.
type Option struct {
	Label string
	Data  string
}

// Channel — всё, что ядру нужно от транспорта.
type Channel interface {
	Send(ctx context.Context, chatID int64, text string) error
	SendChoice(ctx context.Context, chatID int64, text string, rows [][]Option) (messageID int, err error)
	SendMenu(ctx context.Context, chatID int64, text string, rows [][]string) error
	Edit(ctx context.Context, chatID int64, messageID int, text string, rows [][]Option) error
	SendDocument(ctx context.Context, chatID int64, path, filename, caption string) error
	AnswerButton(ctx context.Context, callbackID, text string) error
}

// Column раскладывает варианты по одному в строку.
func Column(opts ...Option) [][]Option {
	rows := make([][]Option, 0, len(opts))
	for _, o := range opts {
		rows = append(rows, []Option{o})
	}
	return rows
}
