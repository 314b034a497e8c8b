// Package export — выгрузка всех отчётов в CSV и Excel.
package export

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/Spok95/ecoreport-bot/internal/models"
)

// Header — колонки выгрузки, в этом порядке.
var Header = []string{"id", "user_id", "class", "school", "period", "status", "score", "meta", "created_at"}

// WriteReportsCSV пишет заголовок и строки. class, school и meta всегда
// в кавычках, кавычки внутри удваиваются; created_at — Unix-миллисекунды.
func WriteReportsCSV(w io.Writer, rows []models.ExportRow) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(Header, ",") + "\n"); err != nil {
		return err
	}
	for _, r := range rows {
		fields := []string{
			strconv.FormatInt(r.ID, 10),
			strconv.FormatInt(r.UserID, 10),
			quote(r.ClassName),
			quote(r.SchoolName),
			r.Period,
			string(r.Status),
			strconv.Itoa(r.Score),
			quote(r.Meta),
			strconv.FormatInt(r.CreatedAt.UnixMilli(), 10),
		}
		if _, err := bw.WriteString(strings.Join(fields, ",") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
