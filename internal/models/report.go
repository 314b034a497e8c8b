package models

import "time"

type ReportStatus string

const (
	StatusPendingClass  ReportStatus = "pending_class"
	StatusNeedsFix      ReportStatus = "needs_fix"
	StatusPendingSchool ReportStatus = "pending_school"
	StatusAccepted      ReportStatus = "accepted"
	StatusRejected      ReportStatus = "rejected"
)

// Final — принятый или отклонённый отчёт больше не меняется.
func (s ReportStatus) Final() bool {
	return s == StatusAccepted || s == StatusRejected
}

type ReportMeta struct {
	Fractions []string `json:"fractions"`
	Volume    string   `json:"volume"`
}

type Report struct {
	ID        int64        `db:"id"`
	UserID    int64        `db:"user_id"`
	ClassID   int64        `db:"class_id"`
	SchoolID  int64        `db:"school_id"`
	Period    string       `db:"period"`
	Status    ReportStatus `db:"status"`
	Score     int          `db:"score"`
	Meta      ReportMeta   `db:"meta"`
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt time.Time    `db:"updated_at"`
}

type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
)

type Media struct {
	ID       int64     `db:"id"`
	ReportID int64     `db:"report_id"`
	FileRef  string    `db:"file_ref"`
	Type     MediaType `db:"media_type"`
}

type AuditAction string

const (
	ActionSubmit       AuditAction = "submit"
	ActionClassConfirm AuditAction = "class_confirm"
	ActionClassReject  AuditAction = "class_reject"
	ActionSchoolAccept AuditAction = "school_accept"
	ActionSchoolReject AuditAction = "school_reject"
	ActionResubmit     AuditAction = "resubmit"
)

type Audit struct {
	ID       int64       `db:"id"`
	ReportID int64       `db:"report_id"`
	ActorID  int64       `db:"actor_id"`
	Action   AuditAction `db:"action"`
	Note     string      `db:"note"`
	At       time.Time   `db:"ts"`
}

// Transition — одна смена статуса отчёта вместе с записью в audit.
// Score/Meta/Media заполняются только там, где действие их меняет.
type Transition struct {
	ReportID int64
	ActorID  int64
	Action   AuditAction
	From     ReportStatus
	To       ReportStatus
	Score    *int
	Meta     *ReportMeta
	Media    []Media
	Note     string
	At       time.Time
}

type LeaderboardRow struct {
	ClassName  string `db:"class_name"`
	SchoolName string `db:"school_name"`
	Total      int    `db:"total"`
}

type SchoolSummary struct {
	Name    *string `db:"name"`
	Reports int     `db:"reports"`
	Points  int     `db:"points"`
}

type ExportRow struct {
	ID         int64
	UserID     int64
	ClassName  string
	SchoolName string
	Period     string
	Status     ReportStatus
	Score      int
	Meta       string
	CreatedAt  time.Time
}
