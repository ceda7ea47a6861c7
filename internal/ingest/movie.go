package ingest

import (
	"context"
	"fmt"
	"strings"

	"kinohub-bot/internal/session"
	"kinohub-bot/internal/storage"
)

// Movie creation walks code → title → genre → description → field → poster →
// video parts. Each step consumes exactly one event of its expected kind.
const (
	movieStepCode = iota
	movieStepTitle
	movieStepGenre
	movieStepDescription
	movieStepFieldSelect
	movieStepPhoto
	movieStepVideo
)

func (e *Engine) startMovie(ctx context.Context, ownerID, chatID int64) {
	e.deps.Sessions.Create(ownerID, session.StateCreatingMovie)
	e.reply(ctx, chatID,
		"🎬 Movie upload started.\n\n1️⃣ Enter the movie code (digits only), e.g. 12345:",
		cancelKeyboard())
}

func (e *Engine) movieText(ctx context.Context, ev TextEvent, sess *session.Session, text string) {
	switch sess.Step {
	case movieStepCode:
		e.movieCode(ctx, ev, text)

	case movieStepTitle:
		if text == "" {
			e.reply(ctx, ev.ChatID, "❌ Title can't be empty. Enter the title:", cancelKeyboard())
			return
		}
		e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{Title: text})
		e.deps.Sessions.AdvanceStep(ev.OwnerID)
		e.reply(ctx, ev.ChatID, "3️⃣ Enter the genre (Action, Drama...):", cancelKeyboard())

	case movieStepGenre:
		e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{Genre: text})
		e.deps.Sessions.AdvanceStep(ev.OwnerID)
		e.reply(ctx, ev.ChatID, "4️⃣ Enter a description, or send \"skip\":", skipCancelKeyboard())

	case movieStepDescription:
		if !strings.EqualFold(text, tokenSkip) {
			e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{Description: text})
		}
		e.promptFieldSelection(ctx, ev.OwnerID, ev.ChatID, movieStepFieldSelect)

	case movieStepFieldSelect:
		if !e.selectField(ctx, ev, sess, text) {
			return
		}
		if sess.Data.PosterFileID != "" {
			// Poster was pre-filled by an unsolicited photo; skip the photo step.
			e.deps.Sessions.SetStep(ev.OwnerID, movieStepVideo)
			e.reply(ctx, ev.ChatID, "6️⃣ Send the video (part 1):", cancelKeyboard())
			return
		}
		e.deps.Sessions.AdvanceStep(ev.OwnerID)
		e.reply(ctx, ev.ChatID, "6️⃣ Now send the movie poster (photo):", cancelKeyboard())

	case movieStepVideo:
		switch text {
		case tokenDone:
			e.finishMovie(ctx, ev.OwnerID, ev.ChatID)
		case tokenContinue:
			next := len(sess.Data.VideoFileIDs) + 1
			e.reply(ctx, ev.ChatID, fmt.Sprintf("Send part %d:", next), cancelKeyboard())
		default:
			e.reply(ctx, ev.ChatID, "Send a video, or \"✅ Done\" to finish.", continueDoneKeyboard())
		}
	}
}

func (e *Engine) movieCode(ctx context.Context, ev TextEvent, text string) {
	code, ok := parsePositiveInt(text)
	if !ok {
		e.reply(ctx, ev.ChatID, "❌ The code must be a positive number, e.g. 12345. Try again:", cancelKeyboard())
		return
	}
	available, err := e.alloc.IsAvailable(ctx, code)
	if err != nil {
		e.deps.Log.Error().Err(err).Int("code", code).Msg("code availability check failed")
		e.reply(ctx, ev.ChatID, "⚠️ Could not check the code, try again.", cancelKeyboard())
		return
	}
	if !available {
		nearest, err := e.alloc.FindNearestAvailable(ctx, code, 5)
		if err != nil && len(nearest) == 0 {
			e.reply(ctx, ev.ChatID, "❌ Code taken and no free codes nearby. Pick a different range:", cancelKeyboard())
			return
		}
		e.reply(ctx, ev.ChatID, fmt.Sprintf("❌ Code taken. Free codes: %s", joinInts(nearest)), cancelKeyboard())
		return
	}
	e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{Code: code})
	e.deps.Sessions.AdvanceStep(ev.OwnerID)
	e.reply(ctx, ev.ChatID, "2️⃣ Enter the movie title:", cancelKeyboard())
}

func (e *Engine) moviePhoto(ctx context.Context, ev PhotoEvent, _ *session.Session) {
	e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{PosterFileID: ev.FileID})
	e.deps.Sessions.SetStep(ev.OwnerID, movieStepVideo)
	e.reply(ctx, ev.ChatID, "7️⃣ Send the video (part 1):", cancelKeyboard())
}

func (e *Engine) movieVideo(ctx context.Context, ev VideoEvent, sess *session.Session) {
	e.acceptPartVideo(ctx, ev, sess, sess.Data.Code)
}

// acceptPartVideo relays one uploaded video into the storage channel of the
// selected field and appends the (file id, channel message id) pair to the
// draft. Shared by movie and serial creation.
func (e *Engine) acceptPartVideo(ctx context.Context, ev VideoEvent, sess *session.Session, code int) bool {
	ch, err := e.storageChannelForField(ctx, sess.Data.SelectedFieldID)
	if err != nil {
		e.deps.Log.Error().Err(err).Msg("storage channel lookup failed")
		e.reply(ctx, ev.ChatID, "⚠️ Could not resolve the storage channel, try again.", cancelKeyboard())
		return false
	}
	partNumber := len(sess.Data.VideoFileIDs) + 1
	msgID, err := e.deps.Bot.RelayVideo(ctx, ch.ChannelRef, ev.FileID,
		fmt.Sprintf("🎬 Code: %d — part %d", code, partNumber))
	if err != nil {
		e.reply(ctx, ev.ChatID, relayFailureText(err, ch.Name), cancelKeyboard())
		return false
	}
	e.deps.Sessions.Mutate(ev.OwnerID, func(s *session.Session) {
		s.Data.VideoFileIDs = append(s.Data.VideoFileIDs, ev.FileID)
		s.Data.StorageMessageIDs = append(s.Data.StorageMessageIDs, msgID)
		s.Data.PartNumber = partNumber
	})
	e.reply(ctx, ev.ChatID,
		fmt.Sprintf("✅ Part %d uploaded. Continue, or finish?", partNumber),
		continueDoneKeyboard())
	return true
}

// promptFieldSelection freezes the current field list into the draft and asks
// for a 1-based index. The session stays on its current step when no fields
// exist yet, so the admin can cancel or create one first.
func (e *Engine) promptFieldSelection(ctx context.Context, ownerID, chatID int64, step int) {
	fields, err := e.deps.Fields.ListFields(ctx)
	if err != nil {
		e.deps.Log.Error().Err(err).Msg("field list failed")
		e.reply(ctx, chatID, "⚠️ Could not load fields, try again.", cancelKeyboard())
		return
	}
	if len(fields) == 0 {
		e.reply(ctx, chatID, "❌ No fields exist yet. Create a field first.", cancelKeyboard())
		return
	}
	opts := make([]session.FieldOption, 0, len(fields))
	var b strings.Builder
	b.WriteString("📁 Which field should this go to?\n\n")
	for i, f := range fields {
		opts = append(opts, session.FieldOption{ID: f.ID.Hex(), Name: f.Name})
		fmt.Fprintf(&b, "%d. %s\n", i+1, f.Name)
	}
	b.WriteString("\nEnter the number (e.g. 1):")
	e.deps.Sessions.MergeData(ownerID, session.Draft{Fields: opts, WaitingForField: true})
	e.deps.Sessions.SetStep(ownerID, step)
	e.reply(ctx, chatID, b.String(), cancelKeyboard())
}

// selectField resolves a field-selection reply. An out-of-range or
// non-numeric index re-prompts and leaves step and selection untouched.
func (e *Engine) selectField(ctx context.Context, ev TextEvent, sess *session.Session, text string) bool {
	if !sess.Data.WaitingForField || len(sess.Data.Fields) == 0 {
		return false
	}
	idx, ok := parsePositiveInt(text)
	if !ok || idx > len(sess.Data.Fields) {
		e.reply(ctx, ev.ChatID, "❌ Not a valid number. Enter the field number again:", cancelKeyboard())
		return false
	}
	chosen := sess.Data.Fields[idx-1]
	e.deps.Sessions.Mutate(ev.OwnerID, func(s *session.Session) {
		s.Data.SelectedFieldID = chosen.ID
		s.Data.WaitingForField = false
	})
	sess.Data.SelectedFieldID = chosen.ID
	sess.Data.WaitingForField = false
	return true
}

func (e *Engine) storageChannelForField(ctx context.Context, fieldID string) (*storage.Channel, error) {
	field, err := e.deps.Fields.FindFieldByID(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	if field == nil {
		return nil, fmt.Errorf("field %s not found", fieldID)
	}
	ch, err := e.deps.Channels.FindChannelByID(ctx, field.DatabaseChannelID.Hex())
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, fmt.Errorf("storage channel for field %s not found", fieldID)
	}
	return ch, nil
}

func joinInts(ns []int) string {
	parts := make([]string, 0, len(ns))
	for _, n := range ns {
		parts = append(parts, fmt.Sprintf("%d", n))
	}
	return strings.Join(parts, ", ")
}
