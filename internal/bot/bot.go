package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"wehabit/internal/service"
)

// sender is the part of tgbotapi.BotAPI the bot needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot delivers notifications to Telegram chats and answers the few chat commands.
type Bot struct {
	api          *tgbotapi.BotAPI
	sender       sender
	users        *service.UserService
	achievements *service.AchievementService
	appURL       string
	log          *log.Logger
}

func New(token string, users *service.UserService, achievements *service.AchievementService, appURL string, l *log.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	l.Info("bot authorized", "account", api.Self.UserName)

	b := newBot(api, users, achievements, appURL, l)
	b.api = api
	return b, nil
}

func newBot(s sender, users *service.UserService, achievements *service.AchievementService, appURL string, l *log.Logger) *Bot {
	return &Bot{sender: s, users: users, achievements: achievements, appURL: appURL, log: l}
}

// Deliver sends an HTML message with an optional link button.
// Rate limits, server errors and network failures wrap service.ErrDelivery.
func (b *Bot) Deliver(ctx context.Context, chatID int64, text string, button *service.LinkButton) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", service.ErrDelivery, err)
	}
	if chatID == 0 {
		return fmt.Errorf("no chat for recipient")
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if button != nil && button.URL != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(button.Text, button.URL)),
		)
	}
	if _, err := b.sender.Send(msg); err != nil {
		return classify(err)
	}
	return nil
}

// classify separates failures worth retrying from rejected messages.
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", service.ErrDelivery, err)
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests, apiErr.Code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: telegram %d: %s", service.ErrDelivery, apiErr.Code, apiErr.Message)
	default:
		return fmt.Errorf("telegram %d: %s", apiErr.Code, apiErr.Message)
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.api == nil {
		return fmt.Errorf("bot api is not configured")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil || update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			continue
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.log.Error("handle message", "chat", update.Message.Chat.ID, "err", err)
		}
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !msg.IsCommand() {
		return b.send(msg.Chat.ID, "Отмечать привычки удобнее в приложении. Набери /help для списка команд.")
	}
	b.log.Debug("command", "from", msg.From.ID, "command", msg.Command())
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.send(msg.Chat.ID, helpText)
	case "achievements":
		return b.handleAchievements(ctx, msg)
	default:
		return b.send(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

const helpText = "ℹ️ <b>Подсказки</b>\n" +
	"• /start — открыть приложение\n" +
	"• /achievements — мои достижения\n" +
	"• /help — подсказки"

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.users.Register(ctx, msg.From.ID, msg.From.FirstName, msg.From.LastName, msg.From.UserName); err != nil {
		return err
	}
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}
	text := fmt.Sprintf(
		"👋 Привет, %s!\n<b>Выполняй привычки вместе с друзьями.</b>\n\n"+
			"Я напомню о привычках и расскажу, как дела у друзей.",
		html.EscapeString(name),
	)
	var button *service.LinkButton
	if b.appURL != "" {
		button = &service.LinkButton{Text: "Открыть приложение", URL: b.appURL}
	}
	return b.Deliver(ctx, msg.Chat.ID, text, button)
}

func (b *Bot) handleAchievements(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.users.Register(ctx, msg.From.ID, msg.From.FirstName, msg.From.LastName, msg.From.UserName)
	if err != nil {
		return err
	}
	list, err := b.achievements.List(ctx, user.ID)
	if err != nil {
		return b.send(msg.Chat.ID, fmt.Sprintf("Не удалось получить достижения: %s", html.EscapeString(err.Error())))
	}
	if len(list) == 0 {
		return b.send(msg.Chat.ID, "🏆 Пока нет достижений. Всё впереди!")
	}
	table := b.achievements.Table()
	var sb strings.Builder
	sb.WriteString("🏆 <b>Достижения</b>\n")
	for _, a := range list {
		sb.WriteString(fmt.Sprintf("%s %s\n", service.Badge(a.Tier), html.EscapeString(table.Title(a.Type))))
	}
	return b.send(msg.Chat.ID, strings.TrimSpace(sb.String()))
}

func (b *Bot) send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.sender.Send(msg)
	return err
}
