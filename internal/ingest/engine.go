// Package ingest implements the admin content-ingestion session engine: the
// multi-step conversational workflows that build movie/serial records, attach
// multi-part video uploads, and publish finished records to a channel.
package ingest

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"kinohub-bot/internal/session"
	"kinohub-bot/internal/storage"
)

// ContentRepo is the persistence contract for movie/serial records.
type ContentRepo interface {
	FindByCode(ctx context.Context, code int) (*storage.ContentRecord, error)
	CodeInUse(ctx context.Context, code int) (bool, error)
	CreateContent(ctx context.Context, rec *storage.ContentRecord) (string, error)
	AppendPart(ctx context.Context, recordID string, part storage.Part) error
	ListRecentContent(ctx context.Context, limit int) ([]storage.ContentRecord, error)
	UpdatePartsCount(ctx context.Context, recordID string, count int) error
	SetAnnouncement(ctx context.Context, recordID string, fieldID string, messageID int) error
}

type FieldRepo interface {
	ListFields(ctx context.Context) ([]storage.Field, error)
	FindFieldByID(ctx context.Context, id string) (*storage.Field, error)
	CreateField(ctx context.Context, f *storage.Field) (string, error)
	DeleteField(ctx context.Context, id string) error
}

type ChannelRepo interface {
	ListChannels(ctx context.Context, kind string) ([]storage.Channel, error)
	FindChannelByID(ctx context.Context, id string) (*storage.Channel, error)
	CreateChannel(ctx context.Context, c *storage.Channel) (string, error)
}

type AdminRepo interface {
	IsAdmin(ctx context.Context, telegramID int64) (bool, error)
	AddAdmin(ctx context.Context, telegramID int64, name string, addedBy int64) error
}

// Messenger is the outbound messaging contract. Channel parameters are chat
// references (numeric id or @username); results are channel message ids.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, keyboard any) error
	RelayPhoto(ctx context.Context, channel string, fileID string, caption string) (int, error)
	RelayVideo(ctx context.Context, channel string, fileID string, caption string) (int, error)
	PostAnnouncement(ctx context.Context, channel string, posterFileID string, caption string, buttonText string, buttonURL string) (int, error)
}

type Deps struct {
	Sessions    session.Store
	Content     ContentRepo
	Fields      FieldRepo
	Channels    ChannelRepo
	Admins      AdminRepo
	Bot         Messenger
	BotUsername string
	Log         zerolog.Logger
}

type Engine struct {
	deps  Deps
	alloc *CodeAllocator

	// Per-owner lock: two events from the same admin must never interleave
	// on the session's read-modify-write.
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func New(deps Deps) *Engine {
	return &Engine{
		deps:  deps,
		alloc: NewCodeAllocator(deps.Content),
		locks: make(map[int64]*sync.Mutex),
	}
}

func (e *Engine) ownerLock(ownerID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[ownerID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[ownerID] = l
	}
	return l
}

type TextEvent struct {
	OwnerID int64
	ChatID  int64
	Text    string
}

type PhotoEvent struct {
	OwnerID int64
	ChatID  int64
	FileID  string
}

type VideoEvent struct {
	OwnerID int64
	ChatID  int64
	FileID  string
}

// HandleText routes a text message from an admin. Cancellation is recognized
// before any state-specific parsing; menu keywords fire whether or not a
// session exists and overwrite any in-flight one.
func (e *Engine) HandleText(ctx context.Context, ev TextEvent) {
	l := e.ownerLock(ev.OwnerID)
	l.Lock()
	defer l.Unlock()

	text := strings.TrimSpace(ev.Text)

	if text == tokenCancel {
		if _, ok := e.deps.Sessions.Get(ev.OwnerID); ok {
			e.deps.Sessions.Clear(ev.OwnerID)
		}
		e.reply(ctx, ev.ChatID, "❌ Cancelled.", mainMenuKeyboard())
		return
	}

	switch text {
	case "/start", "/menu":
		e.reply(ctx, ev.ChatID, "Admin panel. Pick an action.", mainMenuKeyboard())
		return
	case menuUploadMovie:
		e.startMovie(ctx, ev.OwnerID, ev.ChatID)
		return
	case menuUploadSerial:
		e.startSerial(ctx, ev.OwnerID, ev.ChatID)
		return
	case menuAttachVideo:
		e.startAttach(ctx, ev.OwnerID, ev.ChatID)
		return
	case menuAddField:
		e.startFieldCreation(ctx, ev.OwnerID, ev.ChatID)
		return
	case menuListFields:
		e.listFields(ctx, ev.ChatID)
		return
	case menuListChannels:
		e.listChannels(ctx, ev.ChatID)
		return
	case menuAddMandatory:
		e.startChannelAdd(ctx, ev.OwnerID, ev.ChatID, session.StateAddingMandatoryChannel)
		return
	case menuAddDatabase:
		e.startChannelAdd(ctx, ev.OwnerID, ev.ChatID, session.StateAddingDatabaseChannel)
		return
	case menuAddAdmin:
		e.startAdminAdd(ctx, ev.OwnerID, ev.ChatID)
		return
	}
	if code, ok := strings.CutPrefix(text, "/info "); ok {
		e.showContentInfo(ctx, ev.ChatID, strings.TrimSpace(code))
		return
	}
	if text == "/recent" {
		e.showRecentContent(ctx, ev.ChatID)
		return
	}
	if idx, ok := strings.CutPrefix(text, "/delfield "); ok {
		e.deleteFieldByIndex(ctx, ev.ChatID, strings.TrimSpace(idx))
		return
	}

	sess, ok := e.deps.Sessions.Get(ev.OwnerID)
	if !ok {
		// No session: plain text outside the menu is not ours to handle.
		return
	}

	switch sess.State {
	case session.StateCreatingMovie:
		e.movieText(ctx, ev, sess, text)
	case session.StateCreatingSerial:
		e.serialText(ctx, ev, sess, text)
	case session.StateAttachingVideo:
		e.attachText(ctx, ev, sess, text)
	case session.StateCreatingField:
		e.fieldText(ctx, ev, sess, text)
	case session.StateAddingMandatoryChannel, session.StateAddingDatabaseChannel:
		e.channelText(ctx, ev, sess, text)
	case session.StateAddingAdmin:
		e.adminText(ctx, ev, sess, text)
	default:
		e.deps.Log.Warn().Str("state", string(sess.State)).Msg("no text handler for state")
	}
}

// HandlePhoto routes a photo from an admin. An unsolicited photo starts movie
// creation with the poster pre-filled. A photo arriving at a step that does
// not expect one is ignored.
func (e *Engine) HandlePhoto(ctx context.Context, ev PhotoEvent) {
	l := e.ownerLock(ev.OwnerID)
	l.Lock()
	defer l.Unlock()

	sess, ok := e.deps.Sessions.Get(ev.OwnerID)
	if !ok {
		e.deps.Sessions.Create(ev.OwnerID, session.StateCreatingMovie)
		e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{PosterFileID: ev.FileID})
		e.reply(ctx, ev.ChatID,
			"🎬 Poster received, starting a movie upload.\n\n1️⃣ Enter the movie code (digits only), e.g. 12345:",
			cancelKeyboard())
		return
	}

	switch {
	case sess.State == session.StateCreatingMovie && sess.Step == movieStepPhoto:
		e.moviePhoto(ctx, ev, sess)
	case sess.State == session.StateCreatingSerial && sess.Step == serialStepPhoto:
		e.serialPhoto(ctx, ev, sess)
	default:
		// Wrong event kind for the current step; leave it unclaimed.
	}
}

// HandleVideo routes a video from an admin. An unsolicited video starts the
// attachment flow with the video held pending until a code is entered.
func (e *Engine) HandleVideo(ctx context.Context, ev VideoEvent) {
	l := e.ownerLock(ev.OwnerID)
	l.Lock()
	defer l.Unlock()

	sess, ok := e.deps.Sessions.Get(ev.OwnerID)
	if !ok {
		e.deps.Sessions.Create(ev.OwnerID, session.StateAttachingVideo)
		e.deps.Sessions.MergeData(ev.OwnerID, session.Draft{PendingVideoID: ev.FileID})
		e.reply(ctx, ev.ChatID, "📹 Video received.\n\n🔢 Enter the movie code:", cancelKeyboard())
		return
	}

	switch {
	case sess.State == session.StateAttachingVideo:
		e.attachVideo(ctx, ev, sess)
	case sess.State == session.StateCreatingMovie && sess.Step == movieStepVideo:
		e.movieVideo(ctx, ev, sess)
	case sess.State == session.StateCreatingSerial && sess.Step == serialStepVideo:
		e.serialVideo(ctx, ev, sess)
	default:
	}
}

func (e *Engine) reply(ctx context.Context, chatID int64, text string, keyboard any) {
	if err := e.deps.Bot.SendText(ctx, chatID, text, keyboard); err != nil {
		e.deps.Log.Error().Err(err).Int64("chat_id", chatID).Msg("reply failed")
	}
}

// parsePositiveInt accepts the input only if the whole trimmed string is a
// positive integer; nothing is silently coerced.
func parsePositiveInt(text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (e *Engine) showContentInfo(ctx context.Context, chatID int64, codeText string) {
	code, ok := parsePositiveInt(codeText)
	if !ok {
		e.reply(ctx, chatID, "Usage: /info <code>", nil)
		return
	}
	rec, err := e.deps.Content.FindByCode(ctx, code)
	if err != nil {
		e.deps.Log.Error().Err(err).Int("code", code).Msg("content lookup failed")
		e.reply(ctx, chatID, "⚠️ Lookup failed, try again.", nil)
		return
	}
	if rec == nil {
		e.reply(ctx, chatID, "Not found.", nil)
		return
	}
	var b strings.Builder
	b.WriteString("#" + strconv.Itoa(rec.Code) + " " + rec.Title + "\n")
	b.WriteString("type: " + rec.Type + "\n")
	if rec.Genre != "" {
		b.WriteString("genre: " + rec.Genre + "\n")
	}
	b.WriteString("parts: " + strconv.Itoa(rec.PartsCount) + "\n")
	b.WriteString("views: " + strconv.FormatInt(rec.Views, 10))
	if rec.AnnouncementMessageID != 0 {
		b.WriteString("\nannouncement: " + strconv.Itoa(rec.AnnouncementMessageID))
	}
	e.reply(ctx, chatID, b.String(), nil)
}

func (e *Engine) showRecentContent(ctx context.Context, chatID int64) {
	items, err := e.deps.Content.ListRecentContent(ctx, 10)
	if err != nil {
		e.deps.Log.Error().Err(err).Msg("recent content list failed")
		e.reply(ctx, chatID, "⚠️ Lookup failed, try again.", nil)
		return
	}
	if len(items) == 0 {
		e.reply(ctx, chatID, "📂 Nothing uploaded yet.", nil)
		return
	}
	var b strings.Builder
	b.WriteString("🗂 Recent uploads:\n\n")
	for _, it := range items {
		b.WriteString("#" + strconv.Itoa(it.Code) + " " + it.Title +
			" (" + it.Type + ", " + strconv.Itoa(it.PartsCount) + " parts)\n")
	}
	e.reply(ctx, chatID, strings.TrimRight(b.String(), "\n"), nil)
}
