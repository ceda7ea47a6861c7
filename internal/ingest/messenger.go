package ingest

import (
	"context"

	"kinohub-bot/internal/tg"
)

// telegramMessenger adapts the Bot API client to the Messenger contract.
type telegramMessenger struct {
	bot *tg.Client
}

func NewTelegramMessenger(bot *tg.Client) Messenger {
	return &telegramMessenger{bot: bot}
}

func (m *telegramMessenger) SendText(ctx context.Context, chatID int64, text string, keyboard any) error {
	return m.bot.SendMessage(ctx, tg.SendMessageRequest{ChatID: chatID, Text: text, ReplyMarkup: keyboard})
}

func (m *telegramMessenger) RelayPhoto(ctx context.Context, channel string, fileID string, caption string) (int, error) {
	return m.bot.SendPhoto(ctx, tg.SendPhotoRequest{ChatID: channel, Photo: fileID, Caption: caption})
}

func (m *telegramMessenger) RelayVideo(ctx context.Context, channel string, fileID string, caption string) (int, error) {
	return m.bot.SendVideo(ctx, tg.SendVideoRequest{ChatID: channel, Video: fileID, Caption: caption})
}

func (m *telegramMessenger) PostAnnouncement(ctx context.Context, channel string, posterFileID string, caption string, buttonText string, buttonURL string) (int, error) {
	kb := tg.NewInlineKeyboardMarkup([][]tg.InlineKeyboardButton{
		{{Text: buttonText, URL: buttonURL}},
	})
	return m.bot.SendPhoto(ctx, tg.SendPhotoRequest{
		ChatID:      channel,
		Photo:       posterFileID,
		Caption:     caption,
		ReplyMarkup: &kb,
	})
}
