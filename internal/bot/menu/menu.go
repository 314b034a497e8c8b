package menu

import (
	"strconv"
	"strings"

	"github.com/Spok95/ecoreport-bot/internal/chat"
	"github.com/Spok95/ecoreport-bot/internal/models"
)

// Кнопки reply-клавиатуры
const (
	BtnNewReport    = "Новый отчёт"
	BtnMyReports    = "Мои отчёты"
	BtnRating       = "Рейтинг"
	BtnRules        = "Правила и как считать"
	BtnContact      = "Связь с админом"
	BtnAdminExport  = "Админ: выгрузка"
	BtnAdminSummary = "Админ: итоги"
	BtnAdminExcel   = "Админ: Excel"
)

// Префиксы payload inline-кнопок: "<prefix>:<id>".
const (
	DataSchool       = "school"
	DataClass        = "class"
	DataClassConfirm = "class_confirm"
	DataClassReject  = "class_reject"
	DataSchoolAccept = "school_accept"
	DataSchoolReject = "school_reject"
	DataCancel       = "cancel"
	dataSeparator    = ":"
)

// MainMenu возвращает меню; админам — с дополнительной строкой.
func MainMenu(isAdmin bool) [][]string {
	rows := [][]string{
		{BtnNewReport, BtnMyReports},
		{BtnRating, BtnRules},
		{BtnContact},
	}
	if isAdmin {
		rows = append(rows, []string{BtnAdminExport, BtnAdminSummary, BtnAdminExcel})
	}
	return rows
}

func Data(prefix string, id int64) string {
	return prefix + dataSeparator + strconv.FormatInt(id, 10)
}

// SplitData — "school:12" → ("school", "12"). Без разделителя id пустой.
func SplitData(data string) (prefix, id string) {
	prefix, id, _ = strings.Cut(data, dataSeparator)
	return prefix, id
}

func CancelRow() []chat.Option {
	return []chat.Option{{Label: "❌ Отмена", Data: DataCancel}}
}

func SchoolOptions(schools []models.School) [][]chat.Option {
	rows := make([][]chat.Option, 0, len(schools)+1)
	for _, s := range schools {
		rows = append(rows, []chat.Option{{Label: s.Name, Data: Data(DataSchool, s.ID)}})
	}
	return append(rows, CancelRow())
}

func ClassOptions(classes []models.Class) [][]chat.Option {
	rows := make([][]chat.Option, 0, len(classes)+1)
	for _, c := range classes {
		rows = append(rows, []chat.Option{{Label: c.Name, Data: Data(DataClass, c.ID)}})
	}
	return append(rows, CancelRow())
}

// ClassModeration — кнопки куратора класса.
func ClassModeration(reportID int64) [][]chat.Option {
	return [][]chat.Option{{
		{Label: "✅ Подтвердить", Data: Data(DataClassConfirm, reportID)},
		{Label: "↩️ Вернуть на доработку", Data: Data(DataClassReject, reportID)},
	}}
}

// SchoolModeration — кнопки куратора школы.
func SchoolModeration(reportID int64) [][]chat.Option {
	return [][]chat.Option{{
		{Label: "✅ Принять в зачёт", Data: Data(DataSchoolAccept, reportID)},
		{Label: "❌ Отклонить", Data: Data(DataSchoolReject, reportID)},
	}}
}
