package models

import "time"

type Role string

const (
	Student       Role = "student"
	Curator       Role = "curator"
	SchoolCurator Role = "school_curator"
	Admin         Role = "admin"
)

// User — участник бота. ChatID — Telegram chat id, не меняется.
type User struct {
	ID        int64     `db:"id"`
	ChatID    int64     `db:"chat_id"`
	Role      Role      `db:"role"`
	ClassID   *int64    `db:"class_id"`
	CreatedAt time.Time `db:"created_at"`
}

type School struct {
	ID            int64  `db:"id"`
	Name          string `db:"name"`
	CuratorChatID *int64 `db:"curator_chat_id"`
}

type Class struct {
	ID            int64  `db:"id"`
	SchoolID      int64  `db:"school_id"`
	Name          string `db:"name"`
	CuratorChatID *int64 `db:"curator_chat_id"`
}
