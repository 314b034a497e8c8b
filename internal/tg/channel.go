package tg

import (
	"context"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/Spok95/ecoreport-bot/internal/chat"
)

// Лимит Telegram — около 30 сообщений в секунду на бота; держим запас.
const sendsPerSecond = 25

// Channel — реализация chat.Channel поверх Bot API.
type Channel struct {
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

func NewChannel(bot *tgbotapi.BotAPI) *Channel {
	return &Channel{bot: bot, limiter: rate.NewLimiter(rate.Limit(sendsPerSecond), 5)}
}

func (c *Channel) send(ctx context.Context, msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, err
	}
	return Send(c.bot, msg)
}

func (c *Channel) Send(ctx context.Context, chatID int64, text string) error {
	_, err := c.send(ctx, tgbotapi.NewMessage(chatID, text))
	return err
}

func (c *Channel) SendChoice(ctx context.Context, chatID int64, text string, rows [][]chat.Option) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if kb := inlineKeyboard(rows); kb != nil {
		msg.ReplyMarkup = *kb
	}
	out, err := c.send(ctx, msg)
	return out.MessageID, err
}

func (c *Channel) SendMenu(ctx context.Context, chatID int64, text string, rows [][]string) error {
	kbRows := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, r := range rows {
		btns := make([]tgbotapi.KeyboardButton, 0, len(r))
		for _, label := range r {
			btns = append(btns, tgbotapi.NewKeyboardButton(label))
		}
		kbRows = append(kbRows, tgbotapi.NewKeyboardButtonRow(btns...))
	}
	kb := tgbotapi.NewReplyKeyboard(kbRows...)
	kb.ResizeKeyboard = true
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	_, err := c.send(ctx, msg)
	return err
}

// Edit меняет текст сообщения; без rows inline-клавиатура снимается (one-shot кнопки).
func (c *Channel) Edit(ctx context.Context, chatID int64, messageID int, text string, rows [][]chat.Option) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ReplyMarkup = inlineKeyboard(rows)
	_, err := c.send(ctx, edit)
	return err
}

func (c *Channel) SendDocument(ctx context.Context, chatID int64, path, filename, caption string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileReader{Name: filename, Reader: f})
	doc.Caption = caption
	_, err = c.send(ctx, doc)
	return err
}

func (c *Channel) AnswerButton(ctx context.Context, callbackID, text string) error {
	if callbackID == "" {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := Request(c.bot, tgbotapi.NewCallback(callbackID, text))
	return err
}

func inlineKeyboard(rows [][]chat.Option) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, r := range rows {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, o := range r {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(o.Label, o.Data))
		}
		kbRows = append(kbRows, tgbotapi.NewInlineKeyboardRow(btns...))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	return &kb
}
