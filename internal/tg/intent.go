package tg

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/ecoreport-bot/internal/chat"
)

// IntentFromUpdate переводит апдейт Telegram в chat.Intent.
// ok=false — апдейт нам не интересен (edited message, inline query и т.п.).
func IntentFromUpdate(u tgbotapi.Update) (chat.Intent, bool) {
	if cb := u.CallbackQuery; cb != nil {
		if cb.Message == nil || cb.From == nil {
			return chat.Intent{}, false
		}
		return chat.Intent{
			ChatID:     cb.Message.Chat.ID,
			ActorID:    cb.From.ID,
			Kind:       chat.KindButton,
			Data:       cb.Data,
			CallbackID: cb.ID,
			MessageID:  cb.Message.MessageID,
		}, true
	}

	m := u.Message
	if m == nil || m.Chat == nil {
		return chat.Intent{}, false
	}
	in := chat.Intent{
		ChatID:    m.Chat.ID,
		ActorID:   m.Chat.ID,
		Text:      m.Text,
		MessageID: m.MessageID,
	}
	if m.From != nil {
		in.ActorID = m.From.ID
	}

	switch {
	case len(m.Photo) > 0:
		att := &chat.Attachment{Photo: true}
		for _, p := range m.Photo {
			att.Variants = append(att.Variants, chat.FileVariant{
				FileID: p.FileID, Width: p.Width, Height: p.Height, FileSize: p.FileSize,
			})
		}
		in.Kind = chat.KindMedia
		in.Media = att
		in.Text = m.Caption
	case m.Video != nil:
		in.Kind = chat.KindMedia
		in.Media = &chat.Attachment{Video: true, Variants: []chat.FileVariant{{
			FileID: m.Video.FileID, Width: m.Video.Width, Height: m.Video.Height, FileSize: int(m.Video.FileSize),
		}}}
		in.Text = m.Caption
	case m.IsCommand():
		in.Kind = chat.KindCommand
	default:
		in.Kind = chat.KindText
	}
	return in, true
}
