package telegramimpl

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/orgball2608/xhs-likes-manager/internal/telegram"
	"github.com/orgball2608/xhs-likes-manager/pkg/config"
	"github.com/orgball2608/xhs-likes-manager/pkg/formatter"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

// New returns a no-op notifier when no bot token is configured.
func New(opts Opts) telegram.Notifier {
	log := opts.Logger.WithComponent("Telegram")
	if opts.Config.Telegram.Token == "" {
		return Nop{}
	}
	return NewBot(opts.Config.Telegram.Token, opts.Config.Telegram.ChatID, tgbotapi.APIEndpoint, http.DefaultClient, log)
}

// Bot connects on first use, so commands that never notify never reach
// the Telegram API.
type Bot struct {
	token    string
	chatID   int64
	endpoint string
	client   *http.Client
	logger   logger.Logger

	mu  sync.Mutex
	api *tgbotapi.BotAPI
}

var _ telegram.Notifier = (*Bot)(nil)

func NewBot(token string, chatID int64, endpoint string, client *http.Client, log logger.Logger) *Bot {
	return &Bot{
		token:    token,
		chatID:   chatID,
		endpoint: endpoint,
		client:   client,
		logger:   log,
	}
}

func (b *Bot) connect() (*tgbotapi.BotAPI, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.api != nil {
		return b.api, nil
	}
	api, err := tgbotapi.NewBotAPIWithClient(b.token, b.endpoint, b.client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	b.api = api
	b.logger.Debug("Connected to telegram", "bot", api.Self.UserName)
	return api, nil
}

func (b *Bot) Notify(ctx context.Context, msg telegram.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	api, err := b.connect()
	if err != nil {
		return err
	}

	out := tgbotapi.NewMessage(b.chatID, Render(msg))
	out.ParseMode = tgbotapi.ModeMarkdownV2
	out.DisableWebPagePreview = true

	sent, err := api.Send(out)
	if err != nil {
		b.logger.Error("Error sending message", "chatID", b.chatID, "error", err)
		return fmt.Errorf("failed to send message: %w", err)
	}
	b.logger.Info("Message sent", "chatID", b.chatID, "messageID", sent.MessageID)
	return nil
}

// Render formats msg as MarkdownV2.
func Render(msg telegram.Message) string {
	var sb strings.Builder
	if msg.Title != "" {
		sb.WriteString("*" + formatter.EscapeMarkdownV2(msg.Title) + "*")
	}
	for _, line := range msg.Lines {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(formatter.EscapeMarkdownV2(line))
	}
	return sb.String()
}

type Nop struct{}

var _ telegram.Notifier = Nop{}

func (Nop) Notify(context.Context, telegram.Message) error { return nil }
