package notify

import (
	"context"
	"fmt"

	gobot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"equity-quant-lab/internal/domain"
)

// Telegram sends events through the Telegram Bot API. Trades and
// summaries go to the trade chat, alerts to the guardian chat. When
// the guardian chat is zero, alerts fall back to the trade chat.
type Telegram struct {
	bot            *gobot.BotAPI
	tradeChatID    int64
	guardianChatID int64
}

var _ Notifier = (*Telegram)(nil)

// NewTelegram connects the bot and verifies the token.
func NewTelegram(token string, tradeChatID, guardianChatID int64) (*Telegram, error) {
	bot, err := gobot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	bot.Debug = false

	return &Telegram{
		bot:            bot,
		tradeChatID:    tradeChatID,
		guardianChatID: guardianChatID,
	}, nil
}

// NewTelegramWithEndpoint connects against a custom Bot API endpoint.
func NewTelegramWithEndpoint(token, endpoint string, tradeChatID, guardianChatID int64) (*Telegram, error) {
	bot, err := gobot.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	bot.Debug = false

	return &Telegram{
		bot:            bot,
		tradeChatID:    tradeChatID,
		guardianChatID: guardianChatID,
	}, nil
}

// Trade reports one executed trade to the trade channel.
func (t *Telegram) Trade(ctx context.Context, tr *domain.TradeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text := fmt.Sprintf("%s %s\n%s @ %.2f x %d\n%s",
		tr.Action, tr.Symbol,
		tr.Side, tr.Price, tr.Shares,
		tr.Date.Format("2006-01-02"),
	)
	return t.send(t.tradeChatID, text)
}

// Summary posts a free-form report to the trade channel.
func (t *Telegram) Summary(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.send(t.tradeChatID, text)
}

// Alert posts an operational warning to the guardian channel.
func (t *Telegram) Alert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chatID := t.guardianChatID
	if chatID == 0 {
		chatID = t.tradeChatID
	}
	return t.send(chatID, "⚠ "+text)
}

func (t *Telegram) send(chatID int64, text string) error {
	msg := gobot.NewMessage(chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
