package ingest

import (
	"context"
	"fmt"
	"strings"

	"kinohub-bot/internal/session"
	"kinohub-bot/internal/storage"
	"kinohub-bot/internal/tg"
)

// The coordinator orders side effects so a success message never lies:
// storage-channel relays happen before the persistence write, and the
// announcement post before the message-id writeback. On any failure the
// session is preserved so the admin retries without re-entering prior steps.
// A record created before a failed announcement is remembered in the draft
// (TargetID), so a retry skips straight to the announcement; an orphaned
// channel post after a failed DB write is not rolled back.

func (e *Engine) finishMovie(ctx context.Context, ownerID, chatID int64) {
	e.finishCreation(ctx, ownerID, chatID, storage.TypeMovie)
}

func (e *Engine) finishSerial(ctx context.Context, ownerID, chatID int64) {
	e.finishCreation(ctx, ownerID, chatID, storage.TypeSerial)
}

func (e *Engine) finishCreation(ctx context.Context, ownerID, chatID int64, contentType string) {
	sess, ok := e.deps.Sessions.Get(ownerID)
	if !ok {
		return
	}
	draft := sess.Data
	if len(draft.VideoFileIDs) == 0 {
		e.reply(ctx, chatID, "❌ Send at least one video before finishing.", cancelKeyboard())
		return
	}

	field, err := e.deps.Fields.FindFieldByID(ctx, draft.SelectedFieldID)
	if err != nil || field == nil {
		e.deps.Log.Error().Err(err).Str("field_id", draft.SelectedFieldID).Msg("field lookup failed")
		e.reply(ctx, chatID, "⚠️ Could not resolve the field, send \"✅ Done\" to retry.", continueDoneKeyboard())
		return
	}

	recordID := draft.TargetID
	if recordID == "" {
		ch, err := e.storageChannelForField(ctx, draft.SelectedFieldID)
		if err != nil {
			e.deps.Log.Error().Err(err).Msg("storage channel lookup failed")
			e.reply(ctx, chatID, "⚠️ Could not resolve the storage channel, send \"✅ Done\" to retry.", continueDoneKeyboard())
			return
		}
		posterMsgID := 0
		if draft.PosterFileID != "" {
			posterMsgID, err = e.deps.Bot.RelayPhoto(ctx, ch.ChannelRef, draft.PosterFileID,
				fmt.Sprintf("🎬 %s\n🆔 Code: %d", draft.Title, draft.Code))
			if err != nil {
				e.reply(ctx, chatID, relayFailureText(err, ch.Name), continueDoneKeyboard())
				return
			}
		}
		rec := &storage.ContentRecord{
			Code:            draft.Code,
			Type:            contentType,
			Title:           draft.Title,
			Genre:           draft.Genre,
			Description:     draft.Description,
			Season:          draft.Season,
			EpisodeCount:    draft.EpisodeCount,
			PosterFileID:    draft.PosterFileID,
			PosterMessageID: posterMsgID,
			FieldID:         field.ID,
			Parts:           draftParts(draft),
			PartsCount:      len(draft.VideoFileIDs),
		}
		recordID, err = e.deps.Content.CreateContent(ctx, rec)
		if err != nil {
			e.deps.Log.Error().Err(err).Int("code", draft.Code).Msg("content insert failed")
			e.reply(ctx, chatID,
				"⚠️ Saving failed; the uploaded media is kept. Send \"✅ Done\" to retry.",
				continueDoneKeyboard())
			return
		}
		// Remember the record so a retry after an announcement failure does
		// not create a duplicate.
		e.deps.Sessions.MergeData(ownerID, session.Draft{TargetID: recordID})
	}

	msgID, err := e.postAnnouncement(ctx, field, contentType, draft.Code, draft.Title, draft.Genre,
		draft.Description, draft.Season, len(draft.VideoFileIDs), draft.PosterFileID)
	if err != nil {
		e.reply(ctx, chatID, relayFailureText(err, field.Name), continueDoneKeyboard())
		return
	}
	if err := e.deps.Content.SetAnnouncement(ctx, recordID, field.ID.Hex(), msgID); err != nil {
		e.deps.Log.Error().Err(err).Str("record_id", recordID).Msg("announcement writeback failed")
		e.reply(ctx, chatID, "⚠️ Published, but saving the post reference failed. Send \"✅ Done\" to retry.", continueDoneKeyboard())
		return
	}

	e.deps.Sessions.Clear(ownerID)
	e.reply(ctx, chatID, fmt.Sprintf(
		"✅ Published!\n\n📁 Field: %s\n🎬 Title: %s\n🆔 Code: %d\n📊 Parts: %d\n🔗 Message ID: %d",
		field.Name, draft.Title, draft.Code, len(draft.VideoFileIDs), msgID,
	), mainMenuKeyboard())
	e.deps.Log.Info().Int64("owner_id", ownerID).Int("code", draft.Code).
		Str("type", contentType).Int("parts", len(draft.VideoFileIDs)).Msg("content published")
}

// finalizeAttachment persists the collected parts onto the existing record
// and moves the session to field (re)selection for the announcement post.
func (e *Engine) finalizeAttachment(ctx context.Context, ownerID, chatID int64) {
	sess, ok := e.deps.Sessions.Get(ownerID)
	if !ok {
		return
	}
	draft := sess.Data
	if len(draft.VideoFileIDs) == 0 {
		e.reply(ctx, chatID, "❌ Send at least one video before finishing.", cancelKeyboard())
		return
	}

	rec, err := e.deps.Content.FindByCode(ctx, draft.TargetCode)
	if err != nil || rec == nil {
		e.deps.Log.Error().Err(err).Int("code", draft.TargetCode).Msg("target record lookup failed")
		e.reply(ctx, chatID, "⚠️ Could not load the record, send \"✅ Done\" to retry.", continueDoneKeyboard())
		return
	}
	// A retry after a partial failure must not append the same part twice:
	// draft entries whose (file id, storage message id) pair is already on
	// the record were persisted by the earlier attempt and are skipped.
	persisted := make(map[string]bool, len(rec.Parts))
	for _, p := range rec.Parts {
		persisted[fmt.Sprintf("%s/%d", p.FileID, p.StorageMessageID)] = true
	}
	base := len(rec.Parts)
	appended := 0
	for i := range draft.VideoFileIDs {
		if persisted[fmt.Sprintf("%s/%d", draft.VideoFileIDs[i], draft.StorageMessageIDs[i])] {
			continue
		}
		part := storage.Part{
			Number:           base + appended + 1,
			FileID:           draft.VideoFileIDs[i],
			StorageMessageID: draft.StorageMessageIDs[i],
		}
		if err := e.deps.Content.AppendPart(ctx, draft.TargetID, part); err != nil {
			e.deps.Log.Error().Err(err).Int("part", part.Number).Msg("part append failed")
			e.reply(ctx, chatID, "⚠️ Saving parts failed, send \"✅ Done\" to retry.", continueDoneKeyboard())
			return
		}
		appended++
	}
	if err := e.deps.Content.UpdatePartsCount(ctx, draft.TargetID, base+appended); err != nil {
		e.deps.Log.Error().Err(err).Msg("parts count update failed")
		e.reply(ctx, chatID, "⚠️ Saving parts failed, send \"✅ Done\" to retry.", continueDoneKeyboard())
		return
	}

	e.promptFieldSelection(ctx, ownerID, chatID, attachStepField)
}

// publishAttachment posts the announcement for an attachment session after
// the field has been (re)selected.
func (e *Engine) publishAttachment(ctx context.Context, ownerID, chatID int64) {
	sess, ok := e.deps.Sessions.Get(ownerID)
	if !ok {
		return
	}
	draft := sess.Data

	rec, err := e.deps.Content.FindByCode(ctx, draft.TargetCode)
	if err != nil || rec == nil {
		e.deps.Log.Error().Err(err).Int("code", draft.TargetCode).Msg("target record lookup failed")
		e.reply(ctx, chatID, "⚠️ Could not load the record, enter the field number to retry.", cancelKeyboard())
		return
	}
	field, err := e.deps.Fields.FindFieldByID(ctx, draft.SelectedFieldID)
	if err != nil || field == nil {
		e.deps.Log.Error().Err(err).Str("field_id", draft.SelectedFieldID).Msg("field lookup failed")
		e.reply(ctx, chatID, "⚠️ Could not resolve the field, enter the field number to retry.", cancelKeyboard())
		return
	}

	msgID, err := e.postAnnouncement(ctx, field, rec.Type, rec.Code, rec.Title, rec.Genre,
		rec.Description, rec.Season, rec.PartsCount, rec.PosterFileID)
	if err != nil {
		e.reply(ctx, chatID, relayFailureText(err, field.Name), cancelKeyboard())
		return
	}
	if err := e.deps.Content.SetAnnouncement(ctx, draft.TargetID, field.ID.Hex(), msgID); err != nil {
		e.deps.Log.Error().Err(err).Str("record_id", draft.TargetID).Msg("announcement writeback failed")
		e.reply(ctx, chatID, "⚠️ Published, but saving the post reference failed. Enter the field number to retry.", cancelKeyboard())
		return
	}

	e.deps.Sessions.Clear(ownerID)
	e.reply(ctx, chatID, fmt.Sprintf(
		"✅ Published!\n\n📁 Field: %s\n🎬 Title: %s\n📊 Parts: %d\n🔗 Message ID: %d",
		field.Name, rec.Title, rec.PartsCount, msgID,
	), mainMenuKeyboard())
	e.deps.Log.Info().Int64("owner_id", ownerID).Int("code", rec.Code).
		Int("parts", rec.PartsCount).Msg("attachment published")
}

func (e *Engine) postAnnouncement(ctx context.Context, field *storage.Field, contentType string,
	code int, title, genre, description string, season, parts int, posterFileID string) (int, error) {
	caption := buildCaption(field.Name, code, title, genre, description, season, parts)
	link := fmt.Sprintf("https://t.me/%s?start=%s_%d", e.deps.BotUsername, contentType, code)
	return e.deps.Bot.PostAnnouncement(ctx, field.ChannelRef, posterFileID, caption, "▶️ Watch", link)
}

func buildCaption(fieldName string, code int, title, genre, description string, season, parts int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s\n\n", code, title)
	if genre != "" {
		fmt.Fprintf(&b, "🎭 Genre: %s\n", genre)
	}
	if season > 0 {
		fmt.Fprintf(&b, "📺 Season: %d\n", season)
	}
	if parts > 1 {
		fmt.Fprintf(&b, "📊 Parts: %d\n", parts)
	}
	fmt.Fprintf(&b, "📁 Field: %s", fieldName)
	if description != "" {
		b.WriteString("\n\n" + description)
	}
	return b.String()
}

func draftParts(draft session.Draft) []storage.Part {
	parts := make([]storage.Part, 0, len(draft.VideoFileIDs))
	for i, fileID := range draft.VideoFileIDs {
		msgID := 0
		if i < len(draft.StorageMessageIDs) {
			msgID = draft.StorageMessageIDs[i]
		}
		parts = append(parts, storage.Part{Number: i + 1, FileID: fileID, StorageMessageID: msgID})
	}
	return parts
}

func relayFailureText(err error, target string) string {
	switch {
	case tg.IsForbidden(err):
		return fmt.Sprintf("❌ The bot can't post to %s. Promote the bot to channel admin and resend.", target)
	case tg.IsNotFound(err):
		return fmt.Sprintf("❌ Channel %s was not found. Check the channel reference.", target)
	default:
		return fmt.Sprintf("⚠️ Sending to %s failed, looks temporary. Resend to retry.", target)
	}
}
