package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Spok95/ecoreport-bot/internal/models"
)

var sample = []models.ExportRow{
	{
		ID: 1, UserID: 7, ClassName: `8"В"`, SchoolName: "Школа, №5", Period: "2026-Q4",
		Status: models.StatusAccepted, Score: 26, Meta: `{"fractions":["пластик"],"volume":"12.5"}`,
		CreatedAt: time.UnixMilli(1760860800123),
	},
	{ID: 2, UserID: 8, Period: "2026-Q4", Status: models.StatusPendingClass, Meta: `{"fractions":[],"volume":""}`,
		CreatedAt: time.UnixMilli(1760860900000)},
}

func TestWriteReportsCSV_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReportsCSV(&buf, sample))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, Header, recs[0])
	assert.Equal(t, []string{"1", "7", `8"В"`, "Школа, №5", "2026-Q4", "accepted", "26",
		`{"fractions":["пластик"],"volume":"12.5"}`, "1760860800123"}, recs[1])
	assert.Equal(t, "", recs[2][2])
	assert.Equal(t, "", recs[2][3])
}

func TestWriteReportsCSV_AlwaysQuotes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReportsCSV(&buf, sample[1:]))
	assert.Equal(t,
		"id,user_id,class,school,period,status,score,meta,created_at\n"+
			`2,8,"","",2026-Q4,pending_class,0,"{""fractions"":[],""volume"":""""}",1760860900000`+"\n",
		buf.String())
}

func TestWriteReportsCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReportsCSV(&buf, nil))
	assert.Equal(t, "id,user_id,class,school,period,status,score,meta,created_at\n", buf.String())
}

func TestWriteReportsXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReportsXLSX(&buf, sample, time.UTC))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(reportsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, `8"В"`, rows[1][2])
	assert.Equal(t, "26", rows[1][6])
}

func TestColumnName(t *testing.T) {
	assert.Equal(t, "A", columnName(1))
	assert.Equal(t, "Z", columnName(26))
	assert.Equal(t, "AA", columnName(27))
}
