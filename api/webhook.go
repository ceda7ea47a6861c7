package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"kinohub-bot/internal/config"
	"kinohub-bot/internal/ingest"
	"kinohub-bot/internal/session"
	"kinohub-bot/internal/storage"
	"kinohub-bot/internal/tg"
)

type update struct {
	UpdateID int      `json:"update_id"`
	Message  *message `json:"message"`
}

type user struct {
	ID int64 `json:"id"`
}

type chat struct {
	ID int64 `json:"id"`
}

type photoSize struct {
	FileID string `json:"file_id"`
	Width  int    `json:"width"`
}

type video struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"`
}

type message struct {
	MessageID int         `json:"message_id"`
	Chat      chat        `json:"chat"`
	From      *user       `json:"from"`
	Text      string      `json:"text"`
	Caption   string      `json:"caption"`
	Photo     []photoSize `json:"photo"`
	Video     *video      `json:"video"`
}

type app struct {
	cfg    *config.Config
	db     *storage.Mongo
	engine *ingest.Engine
}

var (
	appOnce sync.Once
	theApp  *app
	appErr  error
)

// getApp builds the process-wide application once. The session store must
// outlive a single request, so unlike most of the wiring it cannot be
// constructed per call.
func getApp() (*app, error) {
	appOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			appErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 9*time.Second)
		defer cancel()
		db, err := storage.NewMongo(ctx, cfg.MongoURI)
		if err != nil {
			appErr = err
			return
		}

		var sessions session.Store
		if cfg.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			sessions = session.NewRedisStore(rdb, cfg.SessionTTL, log.Logger)
		} else {
			mem := session.NewMemoryStore()
			sessions = mem
			bot := tg.NewClient(cfg.BotToken)
			mem.StartSweeper(context.Background(), cfg.SessionTTL, time.Minute, func(ownerID int64) {
				ctx, cancel := context.WithTimeout(context.Background(), 9*time.Second)
				defer cancel()
				_ = bot.SendMessage(ctx, tg.SendMessageRequest{
					ChatID: ownerID,
					Text:   "⏰ Your upload session expired after inactivity and was cancelled.",
				})
			})
		}

		theApp = &app{
			cfg: cfg,
			db:  db,
			engine: ingest.New(ingest.Deps{
				Sessions:    sessions,
				Content:     db,
				Fields:      db,
				Channels:    db,
				Admins:      db,
				Bot:         ingest.NewTelegramMessenger(tg.NewClient(cfg.BotToken)),
				BotUsername: cfg.BotUsername,
				Log:         log.Logger,
			}),
		}
	})
	return theApp, appErr
}

func IndexHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Handler receives Telegram webhook updates. Replies are always 200 so
// Telegram does not redeliver updates we chose to ignore.
func Handler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 2<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var upd update
	if err := json.Unmarshal(body, &upd); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if upd.Message == nil || upd.Message.From == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	a, err := getApp()
	if err != nil {
		log.Error().Err(err).Msg("app init failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 25*time.Second)
	defer cancel()

	msg := upd.Message
	ownerID := msg.From.ID
	if !a.isAdmin(ctx, ownerID) {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch {
	case len(msg.Photo) > 0:
		a.engine.HandlePhoto(ctx, ingest.PhotoEvent{
			OwnerID: ownerID,
			ChatID:  msg.Chat.ID,
			FileID:  largestPhoto(msg.Photo),
		})
	case msg.Video != nil:
		a.engine.HandleVideo(ctx, ingest.VideoEvent{
			OwnerID: ownerID,
			ChatID:  msg.Chat.ID,
			FileID:  msg.Video.FileID,
		})
	case msg.Text != "":
		a.engine.HandleText(ctx, ingest.TextEvent{
			OwnerID: ownerID,
			ChatID:  msg.Chat.ID,
			Text:    msg.Text,
		})
	}
	w.WriteHeader(http.StatusOK)
}

func (a *app) isAdmin(ctx context.Context, userID int64) bool {
	if a.cfg.OwnerID != 0 && userID == a.cfg.OwnerID {
		return true
	}
	ok, err := a.db.IsAdmin(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("admin check failed")
		return false
	}
	return ok
}

func largestPhoto(sizes []photoSize) string {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width > best.Width {
			best = s
		}
	}
	return best.FileID
}
