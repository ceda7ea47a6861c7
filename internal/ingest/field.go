package ingest

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"kinohub-bot/internal/session"
	"kinohub-bot/internal/storage"
)

// Field creation: name → announcement channel reference → storage channel
// selection.
const (
	fieldStepName = iota
	fieldStepChannel
	fieldStepDatabase
)

func (e *Engine) startFieldCreation(ctx context.Context, ownerID, chatID int64) {
	e.deps.Sessions.Create(ownerID, session.StateCreatingField)
	e.reply(ctx, chatID, "📝 Enter the field name, e.g. New releases:", cancelKeyboard())
}

func (e *Engine) fieldText(ctx context.Context, ev TextEvent, sess *session.Session, text string) {
	switch sess.Step {
	case fieldStepName:
		if text == "" {
			e.reply(ctx, ev.ChatID, "❌ Name can't be empty. Enter the field name:", cancelKeyboard())
			return
		}
		e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{Name: text})
		e.deps.Sessions.AdvanceStep(ev.OwnerID)
		e.reply(ctx, ev.ChatID,
			"📝 Enter the channel ID or username:\ne.g. @channel_username or -1001234567890",
			cancelKeyboard())

	case fieldStepChannel:
		draft := session.Draft{ChannelRef: text}
		if name, ok := strings.CutPrefix(text, "@"); ok {
			draft.ChannelLink = "https://t.me/" + name
		}
		e.deps.Sessions.MergeData(ev.OwnerID, draft)

		channels, err := e.deps.Channels.ListChannels(ctx, storage.ChannelDatabase)
		if err != nil {
			e.deps.Log.Error().Err(err).Msg("database channel list failed")
			e.reply(ctx, ev.ChatID, "⚠️ Could not load storage channels, try again.", cancelKeyboard())
			return
		}
		if len(channels) == 0 {
			e.reply(ctx, ev.ChatID, "❌ No database channels exist. Add one first.", cancelKeyboard())
			return
		}
		opts := make([]session.ChannelOption, 0, len(channels))
		var b strings.Builder
		b.WriteString("📦 Pick the storage channel:\n\n")
		for i, c := range channels {
			opts = append(opts, session.ChannelOption{ID: c.ID.Hex(), Name: c.Name})
			fmt.Fprintf(&b, "%d. %s\n", i+1, c.Name)
		}
		b.WriteString("\nEnter the number:")
		e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{Channels: opts})
		e.deps.Sessions.AdvanceStep(ev.OwnerID)
		e.reply(ctx, ev.ChatID, b.String(), cancelKeyboard())

	case fieldStepDatabase:
		idx, ok := parsePositiveInt(text)
		if !ok || idx > len(sess.Data.Channels) {
			e.reply(ctx, ev.ChatID, "❌ Not a valid number. Enter it again:", cancelKeyboard())
			return
		}
		chosen := sess.Data.Channels[idx-1]
		dbChannelID, err := primitive.ObjectIDFromHex(chosen.ID)
		if err != nil {
			e.deps.Log.Error().Err(err).Str("channel_id", chosen.ID).Msg("bad channel id in draft")
			e.reply(ctx, ev.ChatID, "⚠️ Something went wrong, start over.", mainMenuKeyboard())
			e.deps.Sessions.Clear(ev.OwnerID)
			return
		}
		_, err = e.deps.Fields.CreateField(ctx, &storage.Field{
			Name:              sess.Data.Name,
			ChannelRef:        sess.Data.ChannelRef,
			ChannelLink:       sess.Data.ChannelLink,
			DatabaseChannelID: dbChannelID,
		})
		if err != nil {
			e.deps.Log.Error().Err(err).Msg("field insert failed")
			e.reply(ctx, ev.ChatID, "⚠️ Saving failed, enter the number to retry.", cancelKeyboard())
			return
		}
		e.deps.Sessions.Clear(ev.OwnerID)
		e.reply(ctx, ev.ChatID, fmt.Sprintf("✅ Field %q created.", sess.Data.Name), mainMenuKeyboard())
	}
}

// deleteFieldByIndex removes the nth field of the current listing order.
// Records already published into the field keep their announcement.
func (e *Engine) deleteFieldByIndex(ctx context.Context, chatID int64, idxText string) {
	idx, ok := parsePositiveInt(idxText)
	if !ok {
		e.reply(ctx, chatID, "Usage: /delfield <number> (see 📋 Fields)", nil)
		return
	}
	fields, err := e.deps.Fields.ListFields(ctx)
	if err != nil {
		e.deps.Log.Error().Err(err).Msg("field list failed")
		e.reply(ctx, chatID, "⚠️ Could not load fields, try again.", nil)
		return
	}
	if idx > len(fields) {
		e.reply(ctx, chatID, fmt.Sprintf("❌ There is no field %d. There are %d fields.", idx, len(fields)), nil)
		return
	}
	target := fields[idx-1]
	if err := e.deps.Fields.DeleteField(ctx, target.ID.Hex()); err != nil {
		e.deps.Log.Error().Err(err).Str("field_id", target.ID.Hex()).Msg("field delete failed")
		e.reply(ctx, chatID, "⚠️ Deleting failed, try again.", nil)
		return
	}
	e.reply(ctx, chatID, fmt.Sprintf("🗑 Field %q deleted.", target.Name), nil)
}

func (e *Engine) listFields(ctx context.Context, chatID int64) {
	fields, err := e.deps.Fields.ListFields(ctx)
	if err != nil {
		e.deps.Log.Error().Err(err).Msg("field list failed")
		e.reply(ctx, chatID, "⚠️ Could not load fields, try again.", nil)
		return
	}
	if len(fields) == 0 {
		e.reply(ctx, chatID, "📂 No fields yet.", nil)
		return
	}
	var b strings.Builder
	b.WriteString("📋 Fields:\n\n")
	for i, f := range fields {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f.Name)
		fmt.Fprintf(&b, "   channel: %s\n", f.ChannelRef)
		if f.ChannelLink != "" {
			fmt.Fprintf(&b, "   link: %s\n", f.ChannelLink)
		}
	}
	e.reply(ctx, chatID, strings.TrimRight(b.String(), "\n"), nil)
}
