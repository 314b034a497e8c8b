package models

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrEmptyPrerequisite = errors.New("empty prerequisite")
	// ErrInvalidTransition — текущий статус отчёта не допускает действие.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConflict — статус изменился между чтением и записью.
	ErrConflict = errors.New("report changed concurrently")
)
