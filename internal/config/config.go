package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	BotToken    string
	BotUsername string
	MongoURI    string
	RedisAddr   string
	SessionTTL  time.Duration

	// OwnerID is always treated as an admin, so the first real admin can be
	// added through the bot itself.
	OwnerID int64
}

func Load() (*Config, error) {
	cfg := &Config{
		BotToken:    strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		BotUsername: strings.TrimSpace(os.Getenv("BOT_USERNAME")),
		MongoURI:    strings.TrimSpace(os.Getenv("MONGODB_URI")),
		RedisAddr:   strings.TrimSpace(os.Getenv("REDIS_ADDR")),
	}
	if cfg.BotToken == "" {
		return nil, errors.New("BOT_TOKEN is required")
	}
	cfg.SessionTTL = 6 * time.Hour
	if v := strings.TrimSpace(os.Getenv("SESSION_TTL_MINUTES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTTL = time.Duration(n) * time.Minute
		}
	}
	if v := strings.TrimSpace(os.Getenv("OWNER_USER_ID")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.OwnerID = n
		}
	}
	return cfg, nil
}
