// Package chattest — запоминающая реализация chat.Channel для тестов.
package chattest

import (
	"context"
	"os"
	"sync"

	"github.com/Spok95/ecoreport-bot/internal/chat"
)

type Message struct {
	ChatID    int64
	MessageID int
	Text      string
	Rows      [][]chat.Option
	Menu      [][]string
	Edited    bool
}

type Document struct {
	ChatID   int64
	Filename string
	Caption  string
	Content  []byte
	Path     string
}

type Recorder struct {
	mu      sync.Mutex
	nextID  int
	Msgs    []Message
	Docs    []Document
	Answers []string

	// SendErr/DocErr — ошибки, которые вернут Send и SendDocument.
	SendErr error
	DocErr  error
}

func (r *Recorder) Send(_ context.Context, chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.Msgs = append(r.Msgs, Message{ChatID: chatID, MessageID: r.nextID, Text: text})
	return r.SendErr
}

func (r *Recorder) SendChoice(_ context.Context, chatID int64, text string, rows [][]chat.Option) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.Msgs = append(r.Msgs, Message{ChatID: chatID, MessageID: r.nextID, Text: text, Rows: rows})
	return r.nextID, nil
}

func (r *Recorder) SendMenu(_ context.Context, chatID int64, text string, rows [][]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.Msgs = append(r.Msgs, Message{ChatID: chatID, MessageID: r.nextID, Text: text, Menu: rows})
	return nil
}

func (r *Recorder) Edit(_ context.Context, chatID int64, messageID int, text string, rows [][]chat.Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Msgs = append(r.Msgs, Message{ChatID: chatID, MessageID: messageID, Text: text, Rows: rows, Edited: true})
	return nil
}

// SendDocument читает файл сразу: вызывающий удаляет его после отправки.
func (r *Recorder) SendDocument(_ context.Context, chatID int64, path, filename, caption string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.DocErr != nil {
		return r.DocErr
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	r.Docs = append(r.Docs, Document{ChatID: chatID, Filename: filename, Caption: caption, Content: b, Path: path})
	return nil
}

func (r *Recorder) AnswerButton(_ context.Context, _ string, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Answers = append(r.Answers, text)
	return nil
}

// Notify — чтобы Recorder годился и как уведомитель.
func (r *Recorder) Notify(ctx context.Context, chatID int64, text string) error {
	return r.Send(ctx, chatID, text)
}

// To — тексты сообщений в чат chatID по порядку.
func (r *Recorder) To(chatID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.Msgs {
		if m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

// Last — последнее сообщение в чат chatID.
func (r *Recorder) Last(chatID int64) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Msgs) - 1; i >= 0; i-- {
		if r.Msgs[i].ChatID == chatID {
			return r.Msgs[i], true
		}
	}
	return Message{}, false
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Msgs, r.Docs, r.Answers = nil, nil, nil
}
