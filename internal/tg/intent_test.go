package tg

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/ecoreport-bot/internal/chat"
)

func TestIntentFromUpdate_Photo(t *testing.T) {
	u := tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 7,
		Chat:      &tgbotapi.Chat{ID: 42},
		From:      &tgbotapi.User{ID: 42},
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90, Height: 90},
			{FileID: "big", Width: 1280, Height: 960},
		},
	}}
	in, ok := IntentFromUpdate(u)
	require.True(t, ok)
	assert.Equal(t, chat.KindMedia, in.Kind)
	require.NotNil(t, in.Media)
	assert.True(t, in.Media.Photo)
	assert.Len(t, in.Media.Variants, 2)
}

func TestIntentFromUpdate_Command(t *testing.T) {
	u := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 1},
		From:     &tgbotapi.User{ID: 1},
		Text:     "/moderate_15",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 12}},
	}}
	in, ok := IntentFromUpdate(u)
	require.True(t, ok)
	assert.Equal(t, chat.KindCommand, in.Kind)
	assert.Equal(t, "/moderate_15", in.Text)
}

func TestIntentFromUpdate_Callback(t *testing.T) {
	u := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 5},
		Data:    "school:3",
		Message: &tgbotapi.Message{MessageID: 9, Chat: &tgbotapi.Chat{ID: 5}},
	}}
	in, ok := IntentFromUpdate(u)
	require.True(t, ok)
	assert.Equal(t, chat.KindButton, in.Kind)
	assert.Equal(t, "school:3", in.Data)
	assert.Equal(t, 9, in.MessageID)
}

func TestIntentFromUpdate_Ignored(t *testing.T) {
	_, ok := IntentFromUpdate(tgbotapi.Update{})
	assert.False(t, ok)
}

func TestIsSystemErr(t *testing.T) {
	assert.False(t, isSystemErr(nil))
	assert.True(t, isSystemErr(errString("Too Many Requests: retry after 5 (429)")))
	assert.False(t, isSystemErr(errString("Bad Request: chat not found")))
}

type errString string

func (e errString) Error() string { return string(e) }
