package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"kinohub-bot/internal/session"
	"kinohub-bot/internal/storage"
	"kinohub-bot/internal/tg"
)

type fakeContent struct {
	records       map[string]*storage.ContentRecord
	taken         map[int]bool
	takenAll      bool
	createErr     error
	partsCountErr error
	createCalls   int
}

func newFakeContent() *fakeContent {
	return &fakeContent{
		records: make(map[string]*storage.ContentRecord),
		taken:   make(map[int]bool),
	}
}

func (f *fakeContent) FindByCode(_ context.Context, code int) (*storage.ContentRecord, error) {
	for _, rec := range f.records {
		if rec.Code == code {
			out := *rec
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeContent) CodeInUse(_ context.Context, code int) (bool, error) {
	if f.takenAll || f.taken[code] {
		return true, nil
	}
	for _, rec := range f.records {
		if rec.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeContent) CreateContent(_ context.Context, rec *storage.ContentRecord) (string, error) {
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	rec.ID = primitive.NewObjectID()
	stored := *rec
	f.records[rec.ID.Hex()] = &stored
	return rec.ID.Hex(), nil
}

func (f *fakeContent) AppendPart(_ context.Context, recordID string, part storage.Part) error {
	rec, ok := f.records[recordID]
	if !ok {
		return fmt.Errorf("record %s not found", recordID)
	}
	rec.Parts = append(rec.Parts, part)
	return nil
}

func (f *fakeContent) UpdatePartsCount(_ context.Context, recordID string, count int) error {
	if f.partsCountErr != nil {
		return f.partsCountErr
	}
	rec, ok := f.records[recordID]
	if !ok {
		return fmt.Errorf("record %s not found", recordID)
	}
	rec.PartsCount = count
	return nil
}

func (f *fakeContent) ListRecentContent(_ context.Context, limit int) ([]storage.ContentRecord, error) {
	var out []storage.ContentRecord
	for _, rec := range f.records {
		if len(out) == limit {
			break
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (f *fakeContent) SetAnnouncement(_ context.Context, recordID string, fieldID string, messageID int) error {
	rec, ok := f.records[recordID]
	if !ok {
		return fmt.Errorf("record %s not found", recordID)
	}
	rec.AnnouncementMessageID = messageID
	if oid, err := primitive.ObjectIDFromHex(fieldID); err == nil {
		rec.FieldID = oid
	}
	return nil
}

func (f *fakeContent) onlyRecord(t *testing.T) *storage.ContentRecord {
	t.Helper()
	if len(f.records) != 1 {
		t.Fatalf("records = %d, want 1", len(f.records))
	}
	for _, rec := range f.records {
		return rec
	}
	return nil
}

type fakeFields struct {
	fields []storage.Field
}

func (f *fakeFields) ListFields(context.Context) ([]storage.Field, error) {
	return f.fields, nil
}

func (f *fakeFields) FindFieldByID(_ context.Context, id string) (*storage.Field, error) {
	for i := range f.fields {
		if f.fields[i].ID.Hex() == id {
			out := f.fields[i]
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeFields) CreateField(_ context.Context, fl *storage.Field) (string, error) {
	fl.ID = primitive.NewObjectID()
	f.fields = append(f.fields, *fl)
	return fl.ID.Hex(), nil
}

func (f *fakeFields) DeleteField(_ context.Context, id string) error {
	for i := range f.fields {
		if f.fields[i].ID.Hex() == id {
			f.fields = append(f.fields[:i], f.fields[i+1:]...)
			return nil
		}
	}
	return nil
}

type fakeChannels struct {
	channels []storage.Channel
}

func (f *fakeChannels) ListChannels(_ context.Context, kind string) ([]storage.Channel, error) {
	var out []storage.Channel
	for _, ch := range f.channels {
		if ch.Kind == kind {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *fakeChannels) FindChannelByID(_ context.Context, id string) (*storage.Channel, error) {
	for i := range f.channels {
		if f.channels[i].ID.Hex() == id {
			out := f.channels[i]
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeChannels) CreateChannel(_ context.Context, ch *storage.Channel) (string, error) {
	ch.ID = primitive.NewObjectID()
	f.channels = append(f.channels, *ch)
	return ch.ID.Hex(), nil
}

type fakeAdmins struct {
	admins map[int64]string
}

func (f *fakeAdmins) IsAdmin(_ context.Context, id int64) (bool, error) {
	_, ok := f.admins[id]
	return ok, nil
}

func (f *fakeAdmins) AddAdmin(_ context.Context, id int64, name string, _ int64) error {
	if f.admins == nil {
		f.admins = make(map[int64]string)
	}
	f.admins[id] = name
	return nil
}

type relay struct {
	channel string
	fileID  string
	caption string
}

type announce struct {
	channel   string
	poster    string
	caption   string
	buttonURL string
}

type fakeMessenger struct {
	texts         []string
	videos        []relay
	photos        []relay
	announcements []announce
	videoErr      error
	photoErr      error
	announceErr   error
	nextMsgID     int
}

func (f *fakeMessenger) SendText(_ context.Context, _ int64, text string, _ any) error {
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeMessenger) RelayPhoto(_ context.Context, channel, fileID, caption string) (int, error) {
	if f.photoErr != nil {
		return 0, f.photoErr
	}
	f.photos = append(f.photos, relay{channel, fileID, caption})
	f.nextMsgID++
	return f.nextMsgID, nil
}

func (f *fakeMessenger) RelayVideo(_ context.Context, channel, fileID, caption string) (int, error) {
	if f.videoErr != nil {
		return 0, f.videoErr
	}
	f.videos = append(f.videos, relay{channel, fileID, caption})
	f.nextMsgID++
	return f.nextMsgID, nil
}

func (f *fakeMessenger) PostAnnouncement(_ context.Context, channel, poster, caption, _, buttonURL string) (int, error) {
	if f.announceErr != nil {
		return 0, f.announceErr
	}
	f.announcements = append(f.announcements, announce{channel, poster, caption, buttonURL})
	f.nextMsgID++
	return f.nextMsgID, nil
}

func (f *fakeMessenger) lastText(t *testing.T) string {
	t.Helper()
	if len(f.texts) == 0 {
		t.Fatal("no messages sent")
	}
	return f.texts[len(f.texts)-1]
}

type fixture struct {
	engine   *Engine
	store    *session.MemoryStore
	content  *fakeContent
	fields   *fakeFields
	channels *fakeChannels
	bot      *fakeMessenger
}

func newFixture() *fixture {
	storageCh := storage.Channel{
		ID:         primitive.NewObjectID(),
		Kind:       storage.ChannelDatabase,
		Name:       "Storage",
		ChannelRef: "@storage",
		Active:     true,
	}
	field := storage.Field{
		ID:                primitive.NewObjectID(),
		Name:              "Movies",
		ChannelRef:        "@movies",
		DatabaseChannelID: storageCh.ID,
	}

	f := &fixture{
		store:    session.NewMemoryStore(),
		content:  newFakeContent(),
		fields:   &fakeFields{fields: []storage.Field{field}},
		channels: &fakeChannels{channels: []storage.Channel{storageCh}},
		bot:      &fakeMessenger{},
	}
	f.engine = New(Deps{
		Sessions:    f.store,
		Content:     f.content,
		Fields:      f.fields,
		Channels:    f.channels,
		Admins:      &fakeAdmins{},
		Bot:         f.bot,
		BotUsername: "kinohub_bot",
		Log:         zerolog.Nop(),
	})
	return f
}

func (f *fixture) text(owner int64, text string) {
	f.engine.HandleText(context.Background(), TextEvent{OwnerID: owner, ChatID: owner, Text: text})
}

func (f *fixture) photo(owner int64, fileID string) {
	f.engine.HandlePhoto(context.Background(), PhotoEvent{OwnerID: owner, ChatID: owner, FileID: fileID})
}

func (f *fixture) video(owner int64, fileID string) {
	f.engine.HandleVideo(context.Background(), VideoEvent{OwnerID: owner, ChatID: owner, FileID: fileID})
}

func TestMovieFlowPublishes(t *testing.T) {
	f := newFixture()

	f.text(1, menuUploadMovie)
	f.text(1, "777")
	f.text(1, "Test Movie")
	f.text(1, "Drama")
	f.text(1, "skip")
	f.text(1, "1")
	f.photo(1, "poster-file")
	f.video(1, "video-file")
	f.text(1, tokenDone)

	rec := f.content.onlyRecord(t)
	if rec.Code != 777 || rec.Title != "Test Movie" || rec.Genre != "Drama" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Type != storage.TypeMovie {
		t.Errorf("Type = %q", rec.Type)
	}
	if rec.PartsCount != 1 || len(rec.Parts) != 1 || rec.Parts[0].Number != 1 {
		t.Errorf("parts = %+v count %d", rec.Parts, rec.PartsCount)
	}
	if rec.AnnouncementMessageID == 0 {
		t.Error("announcement message id not recorded")
	}

	if len(f.bot.videos) != 1 || f.bot.videos[0].channel != "@storage" {
		t.Errorf("videos = %+v", f.bot.videos)
	}
	if len(f.bot.announcements) != 1 {
		t.Fatalf("announcements = %d, want 1", len(f.bot.announcements))
	}
	ann := f.bot.announcements[0]
	if ann.channel != "@movies" {
		t.Errorf("announcement channel = %q", ann.channel)
	}
	if !strings.Contains(ann.caption, "#777 Test Movie") || !strings.Contains(ann.caption, "Movies") {
		t.Errorf("caption = %q", ann.caption)
	}
	if ann.buttonURL != "https://t.me/kinohub_bot?start=movie_777" {
		t.Errorf("buttonURL = %q", ann.buttonURL)
	}

	if _, ok := f.store.Get(1); ok {
		t.Error("session not cleared after publishing")
	}
}

func TestCancelClearsSession(t *testing.T) {
	f := newFixture()
	f.text(1, menuUploadMovie)
	f.text(1, "777")
	f.text(1, tokenCancel)

	if _, ok := f.store.Get(1); ok {
		t.Error("session survived cancel")
	}
	if !strings.Contains(f.bot.lastText(t), "Cancelled") {
		t.Errorf("last reply = %q", f.bot.lastText(t))
	}

	// Cancel with no session still answers.
	f.text(2, tokenCancel)
	if !strings.Contains(f.bot.lastText(t), "Cancelled") {
		t.Errorf("last reply = %q", f.bot.lastText(t))
	}
}

func TestMovieCodeCollisionSuggests(t *testing.T) {
	f := newFixture()
	f.content.taken[777] = true
	f.content.taken[778] = true

	f.text(1, menuUploadMovie)
	f.text(1, "777")

	reply := f.bot.lastText(t)
	if !strings.Contains(reply, "779, 780, 781, 782, 783") {
		t.Errorf("suggestions missing from %q", reply)
	}
	sess, _ := f.store.Get(1)
	if sess.Step != movieStepCode {
		t.Errorf("step = %d, want %d", sess.Step, movieStepCode)
	}

	// A suggested code is accepted.
	f.text(1, "779")
	sess, _ = f.store.Get(1)
	if sess.Step != movieStepTitle || sess.Data.Code != 779 {
		t.Errorf("step %d code %d after retry", sess.Step, sess.Data.Code)
	}
}

func TestMovieCodeRejectsNonNumeric(t *testing.T) {
	f := newFixture()
	f.text(1, menuUploadMovie)
	for _, bad := range []string{"abc", "12abc", "-5", "0", "1.5"} {
		f.text(1, bad)
		sess, _ := f.store.Get(1)
		if sess.Step != movieStepCode || sess.Data.Code != 0 {
			t.Errorf("input %q advanced the session: %+v", bad, sess.Data)
		}
	}
}

func TestFieldSelectionOutOfRange(t *testing.T) {
	f := newFixture()
	f.text(1, menuUploadMovie)
	f.text(1, "777")
	f.text(1, "Test")
	f.text(1, "Drama")
	f.text(1, "skip")

	f.text(1, "5")
	sess, _ := f.store.Get(1)
	if !sess.Data.WaitingForField || sess.Data.SelectedFieldID != "" {
		t.Errorf("out-of-range index changed selection: %+v", sess.Data)
	}
	if sess.Step != movieStepFieldSelect {
		t.Errorf("step = %d", sess.Step)
	}

	f.text(1, "1")
	sess, _ = f.store.Get(1)
	if sess.Data.SelectedFieldID != f.fields.fields[0].ID.Hex() {
		t.Errorf("SelectedFieldID = %q", sess.Data.SelectedFieldID)
	}
	if sess.Step != movieStepPhoto {
		t.Errorf("step = %d, want %d", sess.Step, movieStepPhoto)
	}
}

func TestRelayFailureKeepsSession(t *testing.T) {
	f := newFixture()
	f.text(1, menuUploadMovie)
	f.text(1, "777")
	f.text(1, "Test")
	f.text(1, "Drama")
	f.text(1, "skip")
	f.text(1, "1")
	f.photo(1, "poster")

	f.bot.videoErr = &tg.APIError{Method: "/sendVideo", Status: 403, Code: 403}
	f.video(1, "video-a")

	if !strings.Contains(f.bot.lastText(t), "Promote the bot") {
		t.Errorf("reply = %q", f.bot.lastText(t))
	}
	sess, ok := f.store.Get(1)
	if !ok {
		t.Fatal("session dropped on relay failure")
	}
	if len(sess.Data.VideoFileIDs) != 0 {
		t.Errorf("failed relay recorded a part: %v", sess.Data.VideoFileIDs)
	}

	// The same video works after the channel is fixed.
	f.bot.videoErr = nil
	f.video(1, "video-a")
	sess, _ = f.store.Get(1)
	if len(sess.Data.VideoFileIDs) != 1 {
		t.Errorf("VideoFileIDs = %v", sess.Data.VideoFileIDs)
	}
}

func TestAnnouncementRetrySkipsDuplicateCreate(t *testing.T) {
	f := newFixture()
	f.text(1, menuUploadMovie)
	f.text(1, "777")
	f.text(1, "Test")
	f.text(1, "Drama")
	f.text(1, "skip")
	f.text(1, "1")
	f.photo(1, "poster")
	f.video(1, "video-a")

	f.bot.announceErr = &tg.APIError{Method: "/sendPhoto", Status: 500}
	f.text(1, tokenDone)

	if _, ok := f.store.Get(1); !ok {
		t.Fatal("session dropped on announcement failure")
	}
	if f.content.createCalls != 1 {
		t.Fatalf("createCalls = %d after first finish", f.content.createCalls)
	}

	f.bot.announceErr = nil
	f.text(1, tokenDone)

	if f.content.createCalls != 1 {
		t.Errorf("createCalls = %d, retry recreated the record", f.content.createCalls)
	}
	rec := f.content.onlyRecord(t)
	if rec.AnnouncementMessageID == 0 {
		t.Error("announcement not recorded after retry")
	}
	if _, ok := f.store.Get(1); ok {
		t.Error("session not cleared after successful retry")
	}
}

func TestPartsNumberedSequentially(t *testing.T) {
	f := newFixture()
	f.text(1, menuUploadMovie)
	f.text(1, "777")
	f.text(1, "Test")
	f.text(1, "Drama")
	f.text(1, "skip")
	f.text(1, "1")
	f.photo(1, "poster")

	for _, id := range []string{"video-a", "video-b", "video-c"} {
		f.video(1, id)
	}
	f.text(1, tokenDone)

	rec := f.content.onlyRecord(t)
	if rec.PartsCount != 3 {
		t.Fatalf("PartsCount = %d", rec.PartsCount)
	}
	for i, part := range rec.Parts {
		if part.Number != i+1 {
			t.Errorf("part[%d].Number = %d", i, part.Number)
		}
	}
	if rec.Parts[1].FileID != "video-b" {
		t.Errorf("part order wrong: %+v", rec.Parts)
	}
	for i, v := range f.bot.videos {
		want := fmt.Sprintf("part %d", i+1)
		if !strings.Contains(v.caption, want) {
			t.Errorf("caption %q missing %q", v.caption, want)
		}
	}
}

func TestOwnersDoNotInterleave(t *testing.T) {
	f := newFixture()
	f.text(1, menuUploadMovie)
	f.text(1, "777")

	f.text(2, menuUploadSerial)
	f.text(2, "888")

	a, _ := f.store.Get(1)
	b, _ := f.store.Get(2)
	if a.State != session.StateCreatingMovie || a.Data.Code != 777 {
		t.Errorf("owner 1 session = %+v", a)
	}
	if b.State != session.StateCreatingSerial || b.Data.Code != 888 {
		t.Errorf("owner 2 session = %+v", b)
	}
}

func TestWrongKindEventIgnored(t *testing.T) {
	f := newFixture()
	f.text(1, menuUploadMovie)
	f.text(1, "777")

	sent := len(f.bot.texts)
	f.photo(1, "unexpected-photo")
	f.video(1, "unexpected-video")

	sess, _ := f.store.Get(1)
	if sess.Step != movieStepTitle {
		t.Errorf("step = %d, wrong-kind event advanced the session", sess.Step)
	}
	if sess.Data.PosterFileID != "" || len(sess.Data.VideoFileIDs) != 0 {
		t.Errorf("wrong-kind event claimed: %+v", sess.Data)
	}
	if len(f.bot.texts) != sent {
		t.Errorf("wrong-kind event produced replies: %v", f.bot.texts[sent:])
	}
}

func TestUnsolicitedPhotoStartsMovie(t *testing.T) {
	f := newFixture()
	f.photo(1, "poster-file")

	sess, ok := f.store.Get(1)
	if !ok || sess.State != session.StateCreatingMovie {
		t.Fatalf("session = %+v", sess)
	}
	if sess.Data.PosterFileID != "poster-file" {
		t.Errorf("PosterFileID = %q", sess.Data.PosterFileID)
	}

	// With the poster pre-filled, field selection leads straight to video.
	f.text(1, "777")
	f.text(1, "Test")
	f.text(1, "Drama")
	f.text(1, "skip")
	f.text(1, "1")
	sess, _ = f.store.Get(1)
	if sess.Step != movieStepVideo {
		t.Errorf("step = %d, want %d", sess.Step, movieStepVideo)
	}
}

func TestUnsolicitedVideoAttachesToRecord(t *testing.T) {
	f := newFixture()
	existingID := primitive.NewObjectID()
	f.content.records[existingID.Hex()] = &storage.ContentRecord{
		ID:         existingID,
		Code:       555,
		Type:       storage.TypeMovie,
		Title:      "Existing",
		FieldID:    f.fields.fields[0].ID,
		Parts:      []storage.Part{{Number: 1, FileID: "old-1"}, {Number: 2, FileID: "old-2"}},
		PartsCount: 2,
	}

	f.video(1, "new-part")
	sess, ok := f.store.Get(1)
	if !ok || sess.State != session.StateAttachingVideo {
		t.Fatalf("session = %+v", sess)
	}
	if sess.Data.PendingVideoID != "new-part" {
		t.Errorf("PendingVideoID = %q", sess.Data.PendingVideoID)
	}

	// Entering the code uploads the held video.
	f.text(1, "555")
	if len(f.bot.videos) != 1 || f.bot.videos[0].fileID != "new-part" {
		t.Fatalf("videos = %+v", f.bot.videos)
	}
	sess, _ = f.store.Get(1)
	if sess.Data.PendingVideoID != "" {
		t.Error("pending video not cleared after upload")
	}

	// Finishing numbers the new part after the existing ones.
	f.text(1, tokenDone)
	rec := f.content.records[existingID.Hex()]
	if len(rec.Parts) != 3 || rec.Parts[2].Number != 3 {
		t.Errorf("parts = %+v", rec.Parts)
	}
	if rec.PartsCount != 3 {
		t.Errorf("PartsCount = %d", rec.PartsCount)
	}

	// Field reselection publishes the announcement.
	f.text(1, "1")
	if len(f.bot.announcements) != 1 {
		t.Fatalf("announcements = %d", len(f.bot.announcements))
	}
	if _, ok := f.store.Get(1); ok {
		t.Error("session not cleared after attachment publish")
	}
}

func TestAttachUnknownCodeReprompts(t *testing.T) {
	f := newFixture()
	f.text(1, menuAttachVideo)
	f.text(1, "999")

	if !strings.Contains(f.bot.lastText(t), "No record with code 999") {
		t.Errorf("reply = %q", f.bot.lastText(t))
	}
	sess, _ := f.store.Get(1)
	if sess.Data.TargetCode != 0 {
		t.Errorf("TargetCode = %d", sess.Data.TargetCode)
	}
}

func TestSerialAutoFinishesAtEpisodeCount(t *testing.T) {
	f := newFixture()
	f.text(1, menuUploadSerial)
	f.text(1, "888")
	f.text(1, "Test Series")
	f.text(1, "Drama")
	f.text(1, "skip")
	f.text(1, "2")
	f.text(1, "2")
	f.text(1, "1")
	f.photo(1, "poster")

	f.video(1, "ep-1")
	if _, ok := f.store.Get(1); !ok {
		t.Fatal("session gone before episode count reached")
	}
	if len(f.content.records) != 0 {
		t.Fatal("published before episode count reached")
	}

	f.video(1, "ep-2")
	rec := f.content.onlyRecord(t)
	if rec.Type != storage.TypeSerial || rec.Season != 2 || rec.PartsCount != 2 {
		t.Errorf("record = %+v", rec)
	}
	if len(f.bot.announcements) != 1 {
		t.Errorf("announcements = %d", len(f.bot.announcements))
	}
	if _, ok := f.store.Get(1); ok {
		t.Error("session not cleared after auto finish")
	}
}

func TestFinishWithoutVideosRefused(t *testing.T) {
	f := newFixture()
	f.text(1, menuUploadMovie)
	f.text(1, "777")
	f.text(1, "Test")
	f.text(1, "Drama")
	f.text(1, "skip")
	f.text(1, "1")
	f.photo(1, "poster")

	f.text(1, tokenDone)
	if len(f.content.records) != 0 {
		t.Error("record created with no videos")
	}
	if _, ok := f.store.Get(1); !ok {
		t.Error("session dropped")
	}
}

func TestMenuOverridesSession(t *testing.T) {
	f := newFixture()
	f.text(1, menuUploadMovie)
	f.text(1, "777")

	f.text(1, menuUploadSerial)
	sess, _ := f.store.Get(1)
	if sess.State != session.StateCreatingSerial || sess.Data.Code != 0 {
		t.Errorf("menu did not restart the session: %+v", sess)
	}
}

func TestInfoCommand(t *testing.T) {
	f := newFixture()
	id := primitive.NewObjectID()
	f.content.records[id.Hex()] = &storage.ContentRecord{
		ID: id, Code: 777, Type: storage.TypeMovie, Title: "Known", PartsCount: 2, Views: 41,
	}

	f.text(1, "/info 777")
	reply := f.bot.lastText(t)
	if !strings.Contains(reply, "#777 Known") || !strings.Contains(reply, "views: 41") {
		t.Errorf("reply = %q", reply)
	}

	f.text(1, "/info 12345")
	if f.bot.lastText(t) != "Not found." {
		t.Errorf("reply = %q", f.bot.lastText(t))
	}

	f.text(1, "/info abc")
	if !strings.Contains(f.bot.lastText(t), "Usage") {
		t.Errorf("reply = %q", f.bot.lastText(t))
	}
}

func TestRecentCommand(t *testing.T) {
	f := newFixture()
	f.text(1, "/recent")
	if !strings.Contains(f.bot.lastText(t), "Nothing uploaded yet") {
		t.Errorf("reply = %q", f.bot.lastText(t))
	}

	id := primitive.NewObjectID()
	f.content.records[id.Hex()] = &storage.ContentRecord{
		ID: id, Code: 777, Type: storage.TypeMovie, Title: "Known", PartsCount: 2,
	}
	f.text(1, "/recent")
	if !strings.Contains(f.bot.lastText(t), "#777 Known") {
		t.Errorf("reply = %q", f.bot.lastText(t))
	}
}

func TestAttachmentFinishRetriesWithoutDuplicates(t *testing.T) {
	f := newFixture()
	existingID := primitive.NewObjectID()
	f.content.records[existingID.Hex()] = &storage.ContentRecord{
		ID:      existingID,
		Code:    555,
		Type:    storage.TypeMovie,
		Title:   "Existing",
		FieldID: f.fields.fields[0].ID,
	}

	f.text(1, menuAttachVideo)
	f.text(1, "555")
	f.video(1, "only-video")

	// The parts append succeeds but the count writeback fails once; the bot
	// tells the admin to finish again.
	f.content.partsCountErr = errors.New("transient")
	f.text(1, tokenDone)
	if _, ok := f.store.Get(1); !ok {
		t.Fatal("session dropped on parts-count failure")
	}

	f.content.partsCountErr = nil
	f.text(1, tokenDone)

	rec := f.content.records[existingID.Hex()]
	if len(rec.Parts) != 1 {
		t.Fatalf("parts = %+v, retry duplicated the append", rec.Parts)
	}
	if rec.Parts[0].Number != 1 || rec.Parts[0].FileID != "only-video" {
		t.Errorf("part = %+v", rec.Parts[0])
	}
	if rec.PartsCount != 1 {
		t.Errorf("PartsCount = %d, want 1", rec.PartsCount)
	}
}

func TestAttachStrayTextReprompts(t *testing.T) {
	f := newFixture()
	existingID := primitive.NewObjectID()
	f.content.records[existingID.Hex()] = &storage.ContentRecord{
		ID:      existingID,
		Code:    555,
		Type:    storage.TypeMovie,
		Title:   "Existing",
		FieldID: f.fields.fields[0].ID,
	}

	f.text(1, menuAttachVideo)
	f.text(1, "555")

	f.text(1, "hello")
	if !strings.Contains(f.bot.lastText(t), "Send a video") {
		t.Errorf("reply = %q", f.bot.lastText(t))
	}
	sess, _ := f.store.Get(1)
	if len(sess.Data.VideoFileIDs) != 0 || sess.Step != attachStepVideo {
		t.Errorf("stray text mutated the session: %+v", sess)
	}
}

func TestListChannelsCommand(t *testing.T) {
	f := newFixture()
	f.channels.channels = append(f.channels.channels, storage.Channel{
		ID:         primitive.NewObjectID(),
		Kind:       storage.ChannelMandatory,
		Name:       "News",
		ChannelRef: "@news",
		Active:     true,
	})

	f.text(1, menuListChannels)
	reply := f.bot.lastText(t)
	if !strings.Contains(reply, "Mandatory") || !strings.Contains(reply, "@news") {
		t.Errorf("reply = %q", reply)
	}
	if !strings.Contains(reply, "Database") || !strings.Contains(reply, "@storage") {
		t.Errorf("reply = %q", reply)
	}

	f.channels.channels = nil
	f.text(1, menuListChannels)
	if !strings.Contains(f.bot.lastText(t), "No channels yet") {
		t.Errorf("reply = %q", f.bot.lastText(t))
	}
}

func TestSameOwnerEventsSerialized(t *testing.T) {
	f := newFixture()
	f.text(1, menuUploadMovie)
	f.text(1, "777")
	f.text(1, "Test")
	f.text(1, "Drama")
	f.text(1, "skip")
	f.text(1, "1")
	f.photo(1, "poster")

	var wg sync.WaitGroup
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				f.video(1, fmt.Sprintf("video-%d-%d", g, i))
			}
		}(g)
	}
	wg.Wait()

	sess, _ := f.store.Get(1)
	if len(sess.Data.VideoFileIDs) != 50 || len(sess.Data.StorageMessageIDs) != 50 {
		t.Fatalf("videos = %d, message ids = %d, want 50 each",
			len(sess.Data.VideoFileIDs), len(sess.Data.StorageMessageIDs))
	}
	seen := make(map[int]bool, 50)
	for _, id := range sess.Data.StorageMessageIDs {
		if seen[id] {
			t.Fatalf("message id %d recorded twice, lost update", id)
		}
		seen[id] = true
	}
}

func TestDeleteFieldCommand(t *testing.T) {
	f := newFixture()

	f.text(1, "/delfield 2")
	if !strings.Contains(f.bot.lastText(t), "no field 2") {
		t.Errorf("reply = %q", f.bot.lastText(t))
	}
	if len(f.fields.fields) != 1 {
		t.Fatalf("fields = %d", len(f.fields.fields))
	}

	f.text(1, "/delfield 1")
	if len(f.fields.fields) != 0 {
		t.Errorf("field not deleted: %+v", f.fields.fields)
	}

	f.text(1, "/delfield x")
	if !strings.Contains(f.bot.lastText(t), "Usage") {
		t.Errorf("reply = %q", f.bot.lastText(t))
	}
}
