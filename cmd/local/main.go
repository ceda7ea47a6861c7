package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	handler "kinohub-bot/api"
	"kinohub-bot/internal/logging"
)

// Local runner: drains updates with long polling and feeds them through the
// same webhook handler the deployed server uses.
func main() {
	_ = godotenv.Load()
	logging.Init(os.Getenv("LOG_LEVEL"))

	token := strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	if token == "" {
		log.Fatal().Msg("BOT_TOKEN is empty")
	}

	base := fmt.Sprintf("https://api.telegram.org/bot%s", token)
	deleteWebhook(base)
	log.Info().Msg("polling started")

	offset := 0
	client := &http.Client{Timeout: 45 * time.Second}

	for {
		u := fmt.Sprintf("%s/getUpdates?timeout=30&allowed_updates=%s&offset=%d", base, allowedUpdates(), offset)
		resp, err := client.Get(u)
		if err != nil {
			log.Error().Err(err).Msg("polling error")
			time.Sleep(2 * time.Second)
			continue
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		_ = resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			log.Error().Int("status", resp.StatusCode).Str("body", string(b)).Msg("polling status")
			time.Sleep(2 * time.Second)
			continue
		}

		var out struct {
			OK     bool              `json:"ok"`
			Result []json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal(b, &out); err != nil {
			log.Error().Err(err).Msg("polling decode error")
			time.Sleep(2 * time.Second)
			continue
		}
		for _, raw := range out.Result {
			var upd struct {
				UpdateID int `json:"update_id"`
			}
			_ = json.Unmarshal(raw, &upd)
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}

			r := httptest.NewRequest(http.MethodPost, "http://localhost/api/webhook", bytes.NewReader(raw))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			handler.Handler(w, r)
			if w.Code != http.StatusOK {
				log.Warn().Int("status", w.Code).Int("update_id", upd.UpdateID).Msg("handler status")
			}
		}
	}
}

func deleteWebhook(base string) {
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Get(base + "/deleteWebhook?drop_pending_updates=true")
	if err != nil {
		log.Error().Err(err).Msg("deleteWebhook error")
		return
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	log.Info().Int("status", resp.StatusCode).Str("body", strings.TrimSpace(string(body))).Msg("deleteWebhook")
}

func allowedUpdates() string {
	// url-encoded ["message"]; the engine only consumes plain messages
	return "%5B%22message%22%5D"
}
