package ingest

import "kinohub-bot/internal/tg"

const (
	tokenCancel   = "❌ Cancel"
	tokenSkip     = "skip"
	tokenContinue = "➡️ Continue"
	tokenDone     = "✅ Done"

	menuUploadMovie  = "🎬 Upload movie"
	menuUploadSerial = "📺 Upload series"
	menuAttachVideo  = "📹 Attach video"
	menuAddField     = "➕ Add field"
	menuListFields   = "📋 Fields"
	menuListChannels = "📡 Channels"
	menuAddMandatory = "📢 Add mandatory channel"
	menuAddDatabase  = "💾 Add database channel"
	menuAddAdmin     = "👤 Add admin"
)

func mainMenuKeyboard() *tg.ReplyKeyboardMarkup {
	return tg.NewReplyKeyboard(
		[]string{menuUploadMovie, menuUploadSerial},
		[]string{menuAttachVideo, menuAddField},
		[]string{menuListFields, menuListChannels},
		[]string{menuAddMandatory, menuAddDatabase},
		[]string{menuAddAdmin},
	)
}

func cancelKeyboard() *tg.ReplyKeyboardMarkup {
	return tg.NewReplyKeyboard([]string{tokenCancel})
}

func skipCancelKeyboard() *tg.ReplyKeyboardMarkup {
	return tg.NewReplyKeyboard([]string{tokenSkip}, []string{tokenCancel})
}

func continueDoneKeyboard() *tg.ReplyKeyboardMarkup {
	return tg.NewReplyKeyboard([]string{tokenContinue, tokenDone}, []string{tokenCancel})
}
