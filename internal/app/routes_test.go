package app

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/ecoreport-bot/internal/bot/menu"
	"github.com/Spok95/ecoreport-bot/internal/models"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in   string
		want Command
	}{
		{"/start", Command{Kind: CmdStart}},
		{"/start@EcoReportBot", Command{Kind: CmdStart}},
		{" /cancel ", Command{Kind: CmdCancel}},
		{"/moderate_42", Command{Kind: CmdModerate, ReportID: 42}},
		{"/schoolmod_7@EcoReportBot", Command{Kind: CmdSchoolMod, ReportID: 7}},
		{"/resubmit_3", Command{Kind: CmdResubmit, ReportID: 3}},
		{"/export_csv", Command{Kind: CmdExportCSV}},
		{"/summary", Command{Kind: CmdSummary}},
		{menu.BtnNewReport, Command{Kind: CmdNewReport}},
		{menu.BtnAdminExport, Command{Kind: CmdExportCSV}},
		{menu.BtnAdminSummary, Command{Kind: CmdSummary}},
		{"пластик, бумага", Command{Kind: CmdNone}},
		{"/unknown", Command{Kind: CmdNone}},
	}
	for _, c := range cases {
		got, err := ParseCommand(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseCommand_BadID(t *testing.T) {
	for _, in := range []string{"/moderate_", "/moderate_abc", "/schoolmod_-1", "/resubmit_0"} {
		_, err := ParseCommand(in)
		assert.True(t, errors.Is(err, models.ErrNotFound), in)
	}
}

func TestParseButton(t *testing.T) {
	b, err := ParseButton(menu.Data(menu.DataSchoolAccept, 15))
	require.NoError(t, err)
	assert.Equal(t, Button{Kind: ButtonSchoolAccept, ID: 15}, b)

	b, err = ParseButton(menu.DataCancel)
	require.NoError(t, err)
	assert.Equal(t, ButtonCancel, b.Kind)

	b, err = ParseButton("reg_student")
	require.NoError(t, err)
	assert.Equal(t, ButtonUnknown, b.Kind)

	_, err = ParseButton("class_confirm:x")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}
