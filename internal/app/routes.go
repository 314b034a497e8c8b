package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Spok95/ecoreport-bot/internal/bot/menu"
	"github.com/Spok95/ecoreport-bot/internal/models"
)

type CommandKind int

const (
	CmdNone CommandKind = iota
	CmdStart
	CmdCancel
	CmdNewReport
	CmdMyReports
	CmdRating
	CmdRules
	CmdContact
	CmdModerate
	CmdSchoolMod
	CmdResubmit
	CmdExportCSV
	CmdExportXLSX
	CmdSummary
)

// Command — разобранная команда или кнопка главного меню.
type Command struct {
	Kind     CommandKind
	ReportID int64
}

var plainCommands = map[string]CommandKind{
	"/start":       CmdStart,
	"/cancel":      CmdCancel,
	"/new":         CmdNewReport,
	"/my":          CmdMyReports,
	"/rating":      CmdRating,
	"/rules":       CmdRules,
	"/export_csv":  CmdExportCSV,
	"/export_xlsx": CmdExportXLSX,
	"/summary":     CmdSummary,

	menu.BtnNewReport:    CmdNewReport,
	menu.BtnMyReports:    CmdMyReports,
	menu.BtnRating:       CmdRating,
	menu.BtnRules:        CmdRules,
	menu.BtnContact:      CmdContact,
	menu.BtnAdminExport:  CmdExportCSV,
	menu.BtnAdminSummary: CmdSummary,
	menu.BtnAdminExcel:   CmdExportXLSX,
}

var idCommands = map[string]CommandKind{
	"/moderate_":  CmdModerate,
	"/schoolmod_": CmdSchoolMod,
	"/resubmit_":  CmdResubmit,
}

// ParseCommand: CmdNone — текст не команда. Битый id в /moderate_<id> и т.п. — ErrNotFound.
func ParseCommand(text string) (Command, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/") {
		// "/start@EcoBot arg" → "/start"
		if i := strings.IndexAny(text, " \n"); i >= 0 {
			text = text[:i]
		}
		if i := strings.IndexByte(text, '@'); i >= 0 {
			text = text[:i]
		}
		text = strings.ToLower(text)
		for prefix, kind := range idCommands {
			if rest, ok := strings.CutPrefix(text, prefix); ok {
				id, err := parseID(rest)
				if err != nil {
					return Command{}, err
				}
				return Command{Kind: kind, ReportID: id}, nil
			}
		}
	}
	if kind, ok := plainCommands[text]; ok {
		return Command{Kind: kind}, nil
	}
	return Command{Kind: CmdNone}, nil
}

type ButtonKind int

const (
	ButtonUnknown ButtonKind = iota
	ButtonSchool
	ButtonClass
	ButtonClassConfirm
	ButtonClassReject
	ButtonSchoolAccept
	ButtonSchoolReject
	ButtonCancel
)

type Button struct {
	Kind ButtonKind
	ID   int64
}

var buttonKinds = map[string]ButtonKind{
	menu.DataSchool:       ButtonSchool,
	menu.DataClass:        ButtonClass,
	menu.DataClassConfirm: ButtonClassConfirm,
	menu.DataClassReject:  ButtonClassReject,
	menu.DataSchoolAccept: ButtonSchoolAccept,
	menu.DataSchoolReject: ButtonSchoolReject,
}

// ParseButton разбирает payload "<prefix>:<id>".
func ParseButton(data string) (Button, error) {
	if data == menu.DataCancel {
		return Button{Kind: ButtonCancel}, nil
	}
	prefix, rawID := menu.SplitData(data)
	kind, ok := buttonKinds[prefix]
	if !ok {
		return Button{Kind: ButtonUnknown}, nil
	}
	id, err := parseID(rawID)
	if err != nil {
		return Button{}, err
	}
	return Button{Kind: kind, ID: id}, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad id %q: %w", s, models.ErrNotFound)
	}
	return id, nil
}
