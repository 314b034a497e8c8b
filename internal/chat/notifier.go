package chat

import "context"

// ChannelNotifier — уведомления поверх Channel: просто Send в чат адресата.
type ChannelNotifier struct {
	Channel Channel
}

func (n ChannelNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	return n.Channel.Send(ctx, chatID, text)
}
