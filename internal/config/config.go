// Package config loads process configuration from the environment.
package config

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/google/uuid"

	"github.com/nsong/lingotalk/internal/model/chat"
)

// Config aggregates every section of the service configuration.
type Config struct {
	Server      Server
	Client      Client
	Translation Translation

	Debug bool `env:"LINGOTALK_DEBUG" envDefault:"false"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Server configures the room server binary.
type Server struct {
	Addr string `env:"LINGOTALK_ADDR" envDefault:":8080"`
}

// Client configures the chat client binary.
type Client struct {
	ServerURL      string `env:"LINGOTALK_SERVER_URL" envDefault:"http://localhost:8080"`
	RoomCode       string `env:"LINGOTALK_ROOM"`
	UserID         int64  `env:"LINGOTALK_USER_ID"`
	Nickname       string `env:"LINGOTALK_NICKNAME" envDefault:"guest"`
	AvatarURL      string `env:"LINGOTALK_AVATAR"`
	Language       string `env:"LINGOTALK_LANGUAGE"`
	ShowTranslated bool   `env:"LINGOTALK_SHOW_TRANSLATED" envDefault:"true"`
	HistoryPath    string `env:"LINGOTALK_HISTORY_PATH" envDefault:".lingotalk/history"`
}

// ViewerLanguage resolves the viewer's language: explicit configuration
// wins, otherwise the process locale decides.
func (c Client) ViewerLanguage() chat.Language {
	if c.Language == "" {
		return chat.LocaleLanguage()
	}
	return chat.ParseLanguage(c.Language)
}

// Viewer materializes the local participant identity. Without a
// configured user id a random positive one is derived per process.
func (c Client) Viewer() chat.User {
	id := c.UserID
	if id == 0 {
		id = randomUserID()
	}
	return chat.User{
		ID:        id,
		Nickname:  c.Nickname,
		AvatarURL: c.AvatarURL,
		Language:  c.ViewerLanguage(),
	}
}

func randomUserID() int64 {
	u := uuid.New()
	id := int64(binary.BigEndian.Uint64(u[:8]) & (1<<62 - 1))
	if id == 0 {
		id = 1
	}
	return id
}

// Translation configures the Ark-backed machine translator.
type Translation struct {
	APIKey    string `env:"ARK_API_KEY"`
	AccessKey string `env:"ARK_ACCESS_KEY"`
	SecretKey string `env:"ARK_SECRET_KEY"`
	Model     string `env:"ARK_MODEL"`
	BaseURL   string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region    string `env:"ARK_REGION" envDefault:"cn-beijing"`
}

// Enabled reports whether the required credentials are present.
func (c Translation) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds the Ark model instance used for translation.
func (c Translation) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("translation credentials or model missing: set ARK_MODEL plus ARK_API_KEY or the AK/SK pair")
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
	})
}
