// Package period считает ключ отчётного периода (неделя/месяц/квартал),
// который ставится отчёту один раз при создании.
package period

import (
	"fmt"
	"strings"
	"time"
)

type Granularity string

const (
	Week    Granularity = "week"
	Month   Granularity = "month"
	Quarter Granularity = "quarter"
)

// ParseGranularity: неизвестные значения трактуем как квартал.
func ParseGranularity(s string) Granularity {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case Week:
		return Week
	case Month:
		return Month
	default:
		return Quarter
	}
}

// Key возвращает "2026-W42", "2026-10" или "2026-Q4".
// Недели начинаются с воскресенья: n = ceil((день года + день недели 1 января) / 7).
func Key(t time.Time, g Granularity) string {
	y := t.Year()
	switch g {
	case Week:
		jan1 := time.Date(y, time.January, 1, 0, 0, 0, 0, t.Location())
		n := (t.YearDay() + int(jan1.Weekday()) + 6) / 7
		return fmt.Sprintf("%d-W%d", y, n)
	case Month:
		return fmt.Sprintf("%d-%d", y, int(t.Month()))
	default:
		return fmt.Sprintf("%d-Q%d", y, (int(t.Month())-1)/3+1)
	}
}
