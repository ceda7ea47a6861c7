package ingest

import (
	"context"
	"fmt"
	"strings"

	"kinohub-bot/internal/session"
	"kinohub-bot/internal/storage"
)

// Channel add flows (mandatory subscription channels and database/storage
// channels) share two steps: reference, then display name.
const (
	channelStepRef = iota
	channelStepName
)

func (e *Engine) startChannelAdd(ctx context.Context, ownerID, chatID int64, state session.State) {
	e.deps.Sessions.Create(ownerID, state)
	kind := "mandatory"
	if state == session.StateAddingDatabaseChannel {
		kind = "database"
	}
	e.reply(ctx, chatID,
		fmt.Sprintf("📝 Adding a %s channel.\n\nEnter the channel ID or username:\ne.g. @channel_username or -1001234567890", kind),
		cancelKeyboard())
}

func (e *Engine) channelText(ctx context.Context, ev TextEvent, sess *session.Session, text string) {
	switch sess.Step {
	case channelStepRef:
		if text == "" {
			e.reply(ctx, ev.ChatID, "❌ Enter the channel ID or username:", cancelKeyboard())
			return
		}
		draft := session.Draft{ChannelRef: text}
		if name, ok := strings.CutPrefix(text, "@"); ok {
			draft.ChannelLink = "https://t.me/" + name
		}
		e.deps.Sessions.MergeData(ev.OwnerID, draft)
		e.deps.Sessions.AdvanceStep(ev.OwnerID)
		e.reply(ctx, ev.ChatID, "📝 Enter a display name for the channel:", cancelKeyboard())

	case channelStepName:
		if text == "" {
			e.reply(ctx, ev.ChatID, "❌ Name can't be empty. Enter the name:", cancelKeyboard())
			return
		}
		kind := storage.ChannelMandatory
		if sess.State == session.StateAddingDatabaseChannel {
			kind = storage.ChannelDatabase
		}
		_, err := e.deps.Channels.CreateChannel(ctx, &storage.Channel{
			Kind:       kind,
			Name:       text,
			ChannelRef: sess.Data.ChannelRef,
			Link:       sess.Data.ChannelLink,
		})
		if err != nil {
			e.deps.Log.Error().Err(err).Msg("channel insert failed")
			e.reply(ctx, ev.ChatID, "⚠️ Saving failed, enter the name to retry.", cancelKeyboard())
			return
		}
		e.deps.Sessions.Clear(ev.OwnerID)
		e.reply(ctx, ev.ChatID, fmt.Sprintf("✅ Channel %q added.", text), mainMenuKeyboard())
	}
}

func (e *Engine) listChannels(ctx context.Context, chatID int64) {
	mandatory, err := e.deps.Channels.ListChannels(ctx, storage.ChannelMandatory)
	if err != nil {
		e.deps.Log.Error().Err(err).Msg("channel list failed")
		e.reply(ctx, chatID, "⚠️ Could not load channels, try again.", nil)
		return
	}
	database, err := e.deps.Channels.ListChannels(ctx, storage.ChannelDatabase)
	if err != nil {
		e.deps.Log.Error().Err(err).Msg("channel list failed")
		e.reply(ctx, chatID, "⚠️ Could not load channels, try again.", nil)
		return
	}
	if len(mandatory) == 0 && len(database) == 0 {
		e.reply(ctx, chatID, "📡 No channels yet.", nil)
		return
	}
	var b strings.Builder
	b.WriteString("📡 Channels:\n")
	if len(mandatory) > 0 {
		b.WriteString("\n📢 Mandatory:\n")
		for i, c := range mandatory {
			fmt.Fprintf(&b, "%d. %s\n   channel: %s\n", i+1, c.Name, c.ChannelRef)
		}
	}
	if len(database) > 0 {
		b.WriteString("\n💾 Database:\n")
		for i, c := range database {
			fmt.Fprintf(&b, "%d. %s\n   channel: %s\n", i+1, c.Name, c.ChannelRef)
		}
	}
	e.reply(ctx, chatID, strings.TrimRight(b.String(), "\n"), nil)
}

const (
	adminStepID = iota
	adminStepName
)

func (e *Engine) startAdminAdd(ctx context.Context, ownerID, chatID int64) {
	e.deps.Sessions.Create(ownerID, session.StateAddingAdmin)
	e.reply(ctx, chatID, "👤 Enter the Telegram user ID of the new admin:", cancelKeyboard())
}

func (e *Engine) adminText(ctx context.Context, ev TextEvent, sess *session.Session, text string) {
	switch sess.Step {
	case adminStepID:
		id, ok := parsePositiveInt(text)
		if !ok {
			e.reply(ctx, ev.ChatID, "❌ The user ID must be a positive number. Try again:", cancelKeyboard())
			return
		}
		e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{TargetCode: id})
		e.deps.Sessions.AdvanceStep(ev.OwnerID)
		e.reply(ctx, ev.ChatID, "📝 Enter a name for the new admin:", cancelKeyboard())

	case adminStepName:
		if text == "" {
			e.reply(ctx, ev.ChatID, "❌ Name can't be empty. Enter the name:", cancelKeyboard())
			return
		}
		if err := e.deps.Admins.AddAdmin(ctx, int64(sess.Data.TargetCode), text, ev.OwnerID); err != nil {
			e.deps.Log.Error().Err(err).Msg("admin insert failed")
			e.reply(ctx, ev.ChatID, "⚠️ Saving failed, enter the name to retry.", cancelKeyboard())
			return
		}
		e.deps.Sessions.Clear(ev.OwnerID)
		e.reply(ctx, ev.ChatID, fmt.Sprintf("✅ Admin %q added.", text), mainMenuKeyboard())
	}
}
