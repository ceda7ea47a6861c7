package ingest

import (
	"context"
	"fmt"

	"kinohub-bot/internal/session"
	"kinohub-bot/internal/storage"
)

// Video attachment adds parts to an already-published record: resolve the
// code, accept videos until the finish token, then reselect the field and
// repost the announcement.
const (
	attachStepCode = iota
	attachStepVideo
	attachStepField
)

func (e *Engine) startAttach(ctx context.Context, ownerID, chatID int64) {
	e.deps.Sessions.Create(ownerID, session.StateAttachingVideo)
	e.reply(ctx, chatID, "📹 Video attachment started.\n\n🔢 Enter the movie code:", cancelKeyboard())
}

func (e *Engine) attachText(ctx context.Context, ev TextEvent, sess *session.Session, text string) {
	if sess.Step == attachStepField && sess.Data.WaitingForField {
		if e.selectField(ctx, ev, sess, text) {
			e.publishAttachment(ctx, ev.OwnerID, ev.ChatID)
		}
		return
	}

	switch text {
	case tokenContinue:
		e.reply(ctx, ev.ChatID, fmt.Sprintf("Send part %d:", len(sess.Data.VideoFileIDs)+1), cancelKeyboard())
		return
	case tokenDone:
		e.finalizeAttachment(ctx, ev.OwnerID, ev.ChatID)
		return
	}

	if sess.Data.TargetCode == 0 {
		e.attachCode(ctx, ev, sess, text)
		return
	}
	e.reply(ctx, ev.ChatID, "Send a video, or \"✅ Done\" to finish.", continueDoneKeyboard())
}

func (e *Engine) attachCode(ctx context.Context, ev TextEvent, sess *session.Session, text string) {
	code, ok := parsePositiveInt(text)
	if !ok {
		e.reply(ctx, ev.ChatID, "❌ The code must be digits only, e.g. 12345. Try again:", cancelKeyboard())
		return
	}
	rec, err := e.deps.Content.FindByCode(ctx, code)
	if err != nil {
		e.deps.Log.Error().Err(err).Int("code", code).Msg("record lookup failed")
		e.reply(ctx, ev.ChatID, "⚠️ Could not check the code, try again.", cancelKeyboard())
		return
	}
	if rec == nil {
		e.reply(ctx, ev.ChatID, fmt.Sprintf("❌ No record with code %d. Enter the correct code:", code), cancelKeyboard())
		return
	}

	e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{
		TargetID:    rec.ID.Hex(),
		TargetCode:  rec.Code,
		TargetTitle: rec.Title,
		PartNumber:  1,
	})
	e.deps.Sessions.AdvanceStep(ev.OwnerID)

	// A video sent before the code was known is uploaded now.
	if sess.Data.PendingVideoID != "" {
		pending := sess.Data.PendingVideoID
		e.deps.Sessions.Mutate(ev.OwnerID, func(s *session.Session) {
			s.Data.PendingVideoID = ""
		})
		e.attachRelay(ctx, ev.OwnerID, ev.ChatID, pending, rec)
		return
	}
	e.reply(ctx, ev.ChatID, fmt.Sprintf("✅ %s found!\n\nSend part 1:", rec.Title), cancelKeyboard())
}

func (e *Engine) attachVideo(ctx context.Context, ev VideoEvent, sess *session.Session) {
	if sess.Data.TargetCode == 0 {
		e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{PendingVideoID: ev.FileID})
		e.reply(ctx, ev.ChatID, "🔢 Enter the movie code:", cancelKeyboard())
		return
	}
	if sess.Step != attachStepVideo {
		return
	}
	rec, err := e.deps.Content.FindByCode(ctx, sess.Data.TargetCode)
	if err != nil || rec == nil {
		e.deps.Log.Error().Err(err).Int("code", sess.Data.TargetCode).Msg("record lookup failed")
		e.reply(ctx, ev.ChatID, "⚠️ Could not load the record, resend the video.", cancelKeyboard())
		return
	}
	e.attachRelay(ctx, ev.OwnerID, ev.ChatID, ev.FileID, rec)
}

// attachRelay uploads one part into the storage channel tied to the record's
// field, falling back to the first database channel when the record has no
// field yet.
func (e *Engine) attachRelay(ctx context.Context, ownerID, chatID int64, fileID string, rec *storage.ContentRecord) {
	ch, err := e.attachStorageChannel(ctx, rec)
	if err != nil {
		e.deps.Log.Error().Err(err).Msg("storage channel lookup failed")
		e.reply(ctx, chatID, "⚠️ No storage channel configured. Add a database channel first.", cancelKeyboard())
		return
	}

	sess, ok := e.deps.Sessions.Get(ownerID)
	if !ok {
		return
	}
	partNumber := len(sess.Data.VideoFileIDs) + 1
	msgID, err := e.deps.Bot.RelayVideo(ctx, ch.ChannelRef, fileID,
		fmt.Sprintf("🎬 Code: %d — part %d", rec.Code, partNumber))
	if err != nil {
		e.reply(ctx, chatID, relayFailureText(err, ch.Name), cancelKeyboard())
		return
	}
	e.deps.Sessions.Mutate(ownerID, func(s *session.Session) {
		s.Data.VideoFileIDs = append(s.Data.VideoFileIDs, fileID)
		s.Data.StorageMessageIDs = append(s.Data.StorageMessageIDs, msgID)
		s.Data.PartNumber = partNumber
	})
	e.reply(ctx, chatID,
		fmt.Sprintf("✅ Part %d uploaded. Continue, or finish?", partNumber),
		continueDoneKeyboard())
}

func (e *Engine) attachStorageChannel(ctx context.Context, rec *storage.ContentRecord) (*storage.Channel, error) {
	if !rec.FieldID.IsZero() {
		ch, err := e.storageChannelForField(ctx, rec.FieldID.Hex())
		if err == nil {
			return ch, nil
		}
	}
	channels, err := e.deps.Channels.ListChannels(ctx, storage.ChannelDatabase)
	if err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("no database channels configured")
	}
	return &channels[0], nil
}
