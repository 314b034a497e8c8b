package submission

import (
	"regexp"
	"strings"

	"github.com/Spok95/ecoreport-bot/internal/chat"
)

var (
	volumeMarker = regexp.MustCompile(`(?i)объ|vol`)
	nonDecimalRe = regexp.MustCompile(`[^\d.,]`)
)

// ParseFractions разбирает ответ вида
//
//	пластик, бумага
//	Объём: 12,5 кг
//
// Первая непустая строка — фракции через запятую. Из строки с маркером объёма
// остаются только цифры, точки и запятые, первая запятая становится точкой:
// "1 200 кг" даёт "1200". Нет такой строки — объём пустой. Нечисловой остаток
// Score считает нулём.
func ParseFractions(text string) (fractions []string, volume string) {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return nil, ""
	}
	for _, f := range strings.Split(lines[0], ",") {
		if f = strings.TrimSpace(f); f != "" {
			fractions = append(fractions, f)
		}
	}
	for _, l := range lines {
		if !volumeMarker.MatchString(l) {
			continue
		}
		volume = strings.Replace(nonDecimalRe.ReplaceAllString(l, ""), ",", ".", 1)
		break
	}
	return fractions, volume
}

// PickFile выбирает файл вложения: у фото — самый большой вариант
// (по площади, при равенстве — по размеру файла).
func PickFile(att *chat.Attachment) (string, bool) {
	if att == nil || len(att.Variants) == 0 {
		return "", false
	}
	best := att.Variants[0]
	for _, v := range att.Variants[1:] {
		a, b := v.Width*v.Height, best.Width*best.Height
		if a > b || (a == b && v.FileSize > best.FileSize) {
			best = v
		}
	}
	return best.FileID, best.FileID != ""
}

// IsCancelText — текстовая отмена: "Отмена", "/cancel", "cancel" (регистр/пробелы игнорим).
func IsCancelText(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	return s == "отмена" || s == "/cancel" || s == "cancel"
}
