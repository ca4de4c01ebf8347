// Package telegram is the conversational transport: it turns Telegram
// updates into ledger commands and renders the results back.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"finbot/internal/conversation"
	"finbot/internal/core"
	"finbot/internal/log"
	"finbot/internal/ratelimit"
	"finbot/internal/report"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

const (
	queueSize = 64
	// Telegram rejects photo captions longer than this.
	captionLimit = 1024
)

// Sender delivers outgoing messages. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Registrar interface {
	RegisterUser(ctx context.Context, u core.NewUser) error
}

type Reports interface {
	Stats(ctx context.Context, userID int64) (report.StatsReport, error)
	Export(ctx context.Context, userID int64) ([]byte, int, error)
	Locale(ctx context.Context, userID int64) report.Locale
}

type ChartRenderer interface {
	Render(title string, totals core.CategoryTotals) ([]byte, error)
}

// Deps are the collaborators of a Bot. Limiter and Chart are optional.
type Deps struct {
	Sender       Sender
	Users        Registrar
	Reports      Reports
	Conversation *conversation.Manager
	Chart        ChartRenderer
	Limiter      *ratelimit.Limiter
	// Currency is used to format amounts in confirmations.
	Currency string
}

type Bot struct {
	Deps
	workers int
	logger  *log.Logger
}

func New(deps Deps, workers int) *Bot {
	if workers <= 0 {
		workers = 1
	}
	if deps.Currency == "" {
		deps.Currency = core.DefaultCurrency
	}
	return &Bot{
		Deps:    deps,
		workers: workers,
		logger:  log.ForComponent(nil, log.ComponentBot),
	}
}

// Run dispatches updates until ctx is done or updates is closed. Updates of
// one user always land on the same worker, so they are handled in arrival
// order; different users are served concurrently.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	g, gctx := errgroup.WithContext(ctx)

	queues := make([]chan tgbotapi.Update, b.workers)
	for i := range queues {
		q := make(chan tgbotapi.Update, queueSize)
		queues[i] = q
		g.Go(func() error {
			for u := range q {
				b.HandleUpdate(gctx, u)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		for {
			select {
			case <-gctx.Done():
				return nil
			case u, ok := <-updates:
				if !ok {
					return nil
				}
				id := senderID(u)
				if id == 0 {
					continue
				}
				select {
				case queues[shard(id, b.workers)] <- u:
				case <-gctx.Done():
					return nil
				}
			}
		}
	})

	b.logger.InfoContext(ctx, "Bot dispatcher started", "workers", b.workers)
	return g.Wait()
}

func shard(userID int64, n int) int {
	return int(uint64(userID) % uint64(n))
}

func senderID(u tgbotapi.Update) int64 {
	if u.Message == nil || u.Message.From == nil {
		return 0
	}
	return u.Message.From.ID
}

// HandleUpdate processes a single update synchronously.
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	msg := u.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	userID, chatID := msg.From.ID, msg.Chat.ID
	logger := b.logger.With(log.FieldUserID, userID)
	ctx = log.WithContext(ctx, logger)
	loc := b.Reports.Locale(ctx, userID)

	if b.Limiter != nil && !b.Limiter.Allow(userID) {
		logger.WarnContext(ctx, "Message dropped by rate limiter")
		b.send(ctx, tgbotapi.NewMessage(chatID, loc.RateLimited))
		return
	}

	text := strings.TrimSpace(msg.Text)
	command := ""
	if msg.IsCommand() {
		command = msg.Command()
	} else if text == loc.CancelButton {
		command = "cancel"
	}

	switch command {
	case "":
		b.handleText(ctx, chatID, userID, text, loc)
	case "start":
		b.handleStart(ctx, chatID, msg.From, loc)
	case "expense":
		b.reply(ctx, chatID, b.Conversation.StartExpense(ctx, userID), loc)
	case "income":
		b.reply(ctx, chatID, b.Conversation.StartIncome(ctx, userID), loc)
	case "stats":
		b.handleStats(ctx, chatID, userID, loc)
	case "export":
		b.handleExport(ctx, chatID, userID, loc)
	case "cancel":
		b.reply(ctx, chatID, b.Conversation.Cancel(ctx, userID), loc)
	default:
		logger.DebugContext(ctx, "Unknown command", log.FieldCommand, command)
		b.send(ctx, tgbotapi.NewMessage(chatID, loc.NoSession))
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64, from *tgbotapi.User, loc report.Locale) {
	err := b.Users.RegisterUser(ctx, core.NewUser{
		ID:        from.ID,
		FirstName: from.FirstName,
		Username:  from.UserName,
		Lang:      report.MatchLang(from.LanguageCode),
	})
	if err != nil {
		b.fail(ctx, chatID, "start", err, loc)
		return
	}
	// A first registration may have chosen a different catalogue.
	loc = b.Reports.Locale(ctx, from.ID)
	b.send(ctx, tgbotapi.NewMessage(chatID, fmt.Sprintf(loc.Welcome, from.FirstName)))
}

func (b *Bot) handleText(ctx context.Context, chatID, userID int64, text string, loc report.Locale) {
	r, err := b.Conversation.HandleText(ctx, userID, text)
	if err != nil {
		b.fail(ctx, chatID, "record", err, loc)
		return
	}
	b.reply(ctx, chatID, r, loc)
}

func (b *Bot) handleStats(ctx context.Context, chatID, userID int64, loc report.Locale) {
	r, err := b.Reports.Stats(ctx, userID)
	if err != nil {
		b.fail(ctx, chatID, "stats", err, loc)
		return
	}
	text := report.RenderStats(r, loc)
	if r.Empty() {
		b.send(ctx, tgbotapi.NewMessage(chatID, text))
		return
	}

	if r.HasChart() && b.Chart != nil {
		png, err := b.Chart.Render(loc.ChartTitle, r.Chart)
		if err == nil {
			photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "stats.png", Bytes: png})
			if utf8.RuneCountInString(text) <= captionLimit {
				photo.Caption = text
				photo.ParseMode = tgbotapi.ModeHTML
				b.send(ctx, photo)
				return
			}
			b.send(ctx, photo)
		} else {
			log.FromContext(ctx).ErrorContext(ctx, "Failed to render chart", log.FieldError, err)
		}
	}

	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeHTML
	b.send(ctx, m)
}

func (b *Bot) handleExport(ctx context.Context, chatID, userID int64, loc report.Locale) {
	data, rows, err := b.Reports.Export(ctx, userID)
	if err != nil {
		b.fail(ctx, chatID, "export", err, loc)
		return
	}
	if rows == 0 {
		b.send(ctx, tgbotapi.NewMessage(chatID, loc.NoExport))
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: loc.ExportFile, Bytes: data})
	doc.Caption = loc.ExportCaption
	b.send(ctx, doc)
}

// reply renders a conversation outcome. The cancel keyboard is shown while
// a session waits for input.
func (b *Bot) reply(ctx context.Context, chatID int64, r conversation.Reply, loc report.Locale) {
	m := tgbotapi.NewMessage(chatID, b.replyText(r, loc))
	switch r.State {
	case conversation.StateAwaitingAmount, conversation.StateAwaitingCategory:
		kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(loc.CancelButton)))
		kb.ResizeKeyboard = true
		m.ReplyMarkup = kb
	default:
		m.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}
	b.send(ctx, m)
}

func (b *Bot) replyText(r conversation.Reply, loc report.Locale) string {
	switch r.Kind {
	case conversation.ReplyAskAmount:
		if r.IsIncome {
			return loc.AskIncomeAmount
		}
		return loc.AskExpenseAmount
	case conversation.ReplyInvalidAmount:
		return loc.InvalidAmount
	case conversation.ReplyAskCategory:
		return loc.AskCategory
	case conversation.ReplySaved:
		amount := core.FormatAmount(r.Amount, b.Currency)
		if r.IsIncome {
			return fmt.Sprintf(loc.IncomeSaved, amount)
		}
		return fmt.Sprintf(loc.ExpenseSaved, amount, r.Category.String())
	case conversation.ReplyCancelled:
		return loc.Cancelled
	default:
		return loc.NoSession
	}
}

func (b *Bot) fail(ctx context.Context, chatID int64, command string, err error, loc report.Locale) {
	logger := log.FromContext(ctx)
	if errors.Is(err, core.ErrUnknownUser) {
		logger.WarnContext(ctx, "Command from unregistered user", log.FieldCommand, command)
		m := tgbotapi.NewMessage(chatID, loc.NotRegistered)
		m.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
		b.send(ctx, m)
		return
	}
	logger.ErrorContext(ctx, "Command failed", log.FieldCommand, command, log.FieldError, err)
	b.send(ctx, tgbotapi.NewMessage(chatID, loc.Failure))
}

func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) {
	if _, err := b.Sender.Send(c); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to send message", log.FieldError, err)
	}
}
