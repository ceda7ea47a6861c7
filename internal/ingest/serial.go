package ingest

import (
	"context"
	"fmt"
	"strings"

	"kinohub-bot/internal/session"
)

// Serial creation mirrors movie creation with season and episode-count steps
// before field selection. The code check is a plain duplicate lookup, no
// nearest-free suggestions.
const (
	serialStepCode = iota
	serialStepTitle
	serialStepGenre
	serialStepDescription
	serialStepSeason
	serialStepEpisodes
	serialStepFieldSelect
	serialStepPhoto
	serialStepVideo
)

func (e *Engine) startSerial(ctx context.Context, ownerID, chatID int64) {
	e.deps.Sessions.Create(ownerID, session.StateCreatingSerial)
	e.reply(ctx, chatID,
		"📺 Series upload started.\n\n1️⃣ Enter the series code (digits only):",
		cancelKeyboard())
}

func (e *Engine) serialText(ctx context.Context, ev TextEvent, sess *session.Session, text string) {
	switch sess.Step {
	case serialStepCode:
		code, ok := parsePositiveInt(text)
		if !ok {
			e.reply(ctx, ev.ChatID, "❌ The code must be a positive number. Try again:", cancelKeyboard())
			return
		}
		existing, err := e.deps.Content.FindByCode(ctx, code)
		if err != nil {
			e.deps.Log.Error().Err(err).Int("code", code).Msg("serial code check failed")
			e.reply(ctx, ev.ChatID, "⚠️ Could not check the code, try again.", cancelKeyboard())
			return
		}
		if existing != nil {
			e.reply(ctx, ev.ChatID, "❌ That code is already in use. Enter a different one:", cancelKeyboard())
			return
		}
		e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{Code: code})
		e.deps.Sessions.AdvanceStep(ev.OwnerID)
		e.reply(ctx, ev.ChatID, "2️⃣ Enter the series title:", cancelKeyboard())

	case serialStepTitle:
		if text == "" {
			e.reply(ctx, ev.ChatID, "❌ Title can't be empty. Enter the title:", cancelKeyboard())
			return
		}
		e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{Title: text})
		e.deps.Sessions.AdvanceStep(ev.OwnerID)
		e.reply(ctx, ev.ChatID, "3️⃣ Enter the genre:", cancelKeyboard())

	case serialStepGenre:
		e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{Genre: text})
		e.deps.Sessions.AdvanceStep(ev.OwnerID)
		e.reply(ctx, ev.ChatID, "4️⃣ Enter a description, or send \"skip\":", skipCancelKeyboard())

	case serialStepDescription:
		if !strings.EqualFold(text, tokenSkip) {
			e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{Description: text})
		}
		e.deps.Sessions.AdvanceStep(ev.OwnerID)
		e.reply(ctx, ev.ChatID, "5️⃣ Enter the season number:", cancelKeyboard())

	case serialStepSeason:
		season, ok := parsePositiveInt(text)
		if !ok {
			e.reply(ctx, ev.ChatID, "❌ The season must be a positive number. Try again:", cancelKeyboard())
			return
		}
		e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{Season: season})
		e.deps.Sessions.AdvanceStep(ev.OwnerID)
		e.reply(ctx, ev.ChatID, "6️⃣ Enter the number of episodes:", cancelKeyboard())

	case serialStepEpisodes:
		count, ok := parsePositiveInt(text)
		if !ok {
			e.reply(ctx, ev.ChatID, "❌ The episode count must be a positive number. Try again:", cancelKeyboard())
			return
		}
		e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{EpisodeCount: count})
		e.promptFieldSelection(ctx, ev.OwnerID, ev.ChatID, serialStepFieldSelect)

	case serialStepFieldSelect:
		if !e.selectField(ctx, ev, sess, text) {
			return
		}
		e.deps.Sessions.AdvanceStep(ev.OwnerID)
		e.reply(ctx, ev.ChatID, "7️⃣ Now send the series poster (photo):", cancelKeyboard())

	case serialStepVideo:
		switch text {
		case tokenDone:
			e.finishSerial(ctx, ev.OwnerID, ev.ChatID)
		case tokenContinue:
			next := len(sess.Data.VideoFileIDs) + 1
			e.reply(ctx, ev.ChatID, fmt.Sprintf("Send episode %d:", next), cancelKeyboard())
		default:
			e.reply(ctx, ev.ChatID, "Send an episode video, or \"✅ Done\" to finish.", continueDoneKeyboard())
		}
	}
}

func (e *Engine) serialPhoto(ctx context.Context, ev PhotoEvent, _ *session.Session) {
	e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{PosterFileID: ev.FileID})
	e.deps.Sessions.SetStep(ev.OwnerID, serialStepVideo)
	e.reply(ctx, ev.ChatID, "8️⃣ Send episode 1:", cancelKeyboard())
}

func (e *Engine) serialVideo(ctx context.Context, ev VideoEvent, sess *session.Session) {
	if !e.acceptPartVideo(ctx, ev, sess, sess.Data.Code) {
		return
	}
	// Finish automatically once the announced episode count is reached.
	// The local copy predates the append, hence the +1.
	if sess.Data.EpisodeCount > 0 && len(sess.Data.VideoFileIDs)+1 >= sess.Data.EpisodeCount {
		e.finishSerial(ctx, ev.OwnerID, ev.ChatID)
	}
}
