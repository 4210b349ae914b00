// Package telegram runs the conversational booking flow over a Telegram
// webhook.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"glowgo/internal/booking"
	"glowgo/internal/config"
	"glowgo/internal/conversation"
	"glowgo/internal/logger"
	"glowgo/internal/matching"
	"glowgo/internal/metrics"
	"glowgo/internal/provider"
	"glowgo/internal/user"
)

// Bot wraps the Telegram API around the booking agent.
type Bot struct {
	api          *tgbotapi.BotAPI
	agent        *conversation.Agent
	users        *user.Repository
	providers    *provider.Repository
	bookings     *booking.Repository
	metricsStore *metrics.Store
	cfg          *config.Config
	log          logger.Logger

	// lastMatches remembers each chat's latest ranked options so the inline
	// "book" buttons can refer to them by index.
	mu          sync.Mutex
	lastMatches map[int64]*matching.Result
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(
	cfg *config.Config,
	agent *conversation.Agent,
	users *user.Repository,
	providers *provider.Repository,
	bookings *booking.Repository,
	metricsStore *metrics.Store,
	log logger.Logger,
) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Info("telegram bot authorized", map[string]interface{}{"account": bot.Self.UserName})

	wh, _ := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	resp, err := bot.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	log.Info("webhook set", map[string]interface{}{"response": resp.Description})

	return &Bot{
		api:          bot,
		agent:        agent,
		users:        users,
		providers:    providers,
		bookings:     bookings,
		metricsStore: metricsStore,
		cfg:          cfg,
		log:          log,
		lastMatches:  make(map[int64]*matching.Result),
	}, nil
}

// RegisterHandlers registers the webhook handler with the default HTTP mux.
func (b *Bot) RegisterHandlers() {
	http.HandleFunc("/webhook", b.handleWebhook)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		b.log.WithError(err).Warn("error parsing update", nil)
		return
	}

	if update.CallbackQuery != nil {
		go b.handleCallbackQuery(update.CallbackQuery)
		return
	}
	if update.Message == nil {
		return
	}

	go b.processMessage(update.Message)
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	switch {
	case msg.Text == "/start":
		b.send(msg.Chat.ID,
			"💅 *Welcome to GlowGo!*\nTell me what you need, like:\n_\"I need a haircut under $50 next thursday 3 pm\"_")
		return
	case msg.Text == "/metrics":
		b.handleMetricsRequest(msg)
		return
	case msg.Text == "/bookings":
		b.handleBookingsList(msg)
		return
	case msg.Text == "/reset":
		b.handleReset(msg)
		return
	}

	b.handleConversation(msg)
}

func (b *Bot) handleConversation(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	u, err := b.users.GetOrCreateByTelegramID(ctx, msg.From.ID, displayName(msg))
	if err != nil {
		b.log.WithError(err).Error("user lookup failed", nil)
		b.send(msg.Chat.ID, "❌ Something went wrong, please try again.")
		return
	}

	reply, err := b.agent.HandleMessage(ctx, u.ID, msg.Text)
	if err != nil {
		b.log.WithError(err).Error("agent turn failed", nil)
		safeErr := strings.ReplaceAll(err.Error(), "`", "'")
		b.send(msg.Chat.ID, fmt.Sprintf("❌ *Error:*\n```\n%v\n```", safeErr))
		return
	}

	if reply.Ready && reply.MatchResult != nil && len(reply.MatchResult.Ranked) > 0 {
		b.mu.Lock()
		b.lastMatches[msg.Chat.ID] = reply.MatchResult
		b.mu.Unlock()
		out := tgbotapi.NewMessage(msg.Chat.ID, reply.Text)
		out.ParseMode = "Markdown"
		out.ReplyMarkup = bookingKeyboard(reply.MatchResult)
		b.api.Send(out)
		return
	}

	b.send(msg.Chat.ID, reply.Text)
}

func (b *Bot) handleReset(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	u, err := b.users.GetOrCreateByTelegramID(ctx, msg.From.ID, displayName(msg))
	if err != nil {
		b.log.WithError(err).Error("user lookup failed", nil)
		b.send(msg.Chat.ID, "❌ Something went wrong, please try again.")
		return
	}
	if err := b.agent.Reset(ctx, u.ID); err != nil {
		b.log.WithError(err).Error("session reset failed", nil)
		b.send(msg.Chat.ID, "❌ Could not reset your session, please try again.")
		return
	}
	b.mu.Lock()
	delete(b.lastMatches, msg.Chat.ID)
	b.mu.Unlock()
	b.send(msg.Chat.ID, "🔄 Fresh start! What are you looking for?")
}

// bookingKeyboard builds one "Book" button per ranked option, capped at three.
// Callback data carries only the option index to fit Telegram's 64-byte limit.
func bookingKeyboard(result *matching.Result) tgbotapi.InlineKeyboardMarkup {
	n := len(result.Ranked)
	if n > 3 {
		n = 3
	}
	row := make([]tgbotapi.InlineKeyboardButton, 0, n)
	for i := 0; i < n; i++ {
		label := fmt.Sprintf("Book #%d", i+1)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("book|%d", i+1)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(row...))
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	// Answer callback to remove spinner
	b.api.Request(tgbotapi.NewCallback(query.ID, ""))

	parts := strings.Split(query.Data, "|")
	if len(parts) != 2 || parts[0] != "book" {
		return
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil || idx < 1 {
		return
	}

	chatID := query.Message.Chat.ID
	b.mu.Lock()
	result := b.lastMatches[chatID]
	b.mu.Unlock()
	if result == nil || idx > len(result.Ranked) {
		b.send(chatID, "That offer has expired. Ask me again and I'll find fresh options!")
		return
	}
	candidate := result.Ranked[idx-1].Candidate

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	u, err := b.users.GetOrCreateByTelegramID(ctx, query.From.ID, query.From.FirstName)
	if err != nil {
		b.log.WithError(err).Error("user lookup failed", nil)
		return
	}

	bk, slot, err := b.bookCandidate(ctx, u.ID, candidate)
	if err != nil {
		b.log.WithError(err).Error("booking failed", map[string]interface{}{"provider": candidate.Name})
		b.send(chatID, fmt.Sprintf("❌ Couldn't book %s: %v", candidate.Name, err))
		return
	}

	b.send(chatID, fmt.Sprintf(
		"✅ *Booked!*\n\n*%s*\n🗓 %s\n💵 $%.0f\n\nBooking ID: `%s`",
		candidate.Name, slot.StartsAt.Format("Monday, January 2 at 3:04 PM"), bk.Price, bk.ID))
}

// bookCandidate reserves the provider's next open slot and records the
// booking against it.
func (b *Bot) bookCandidate(ctx context.Context, userID string, c matching.Candidate) (*booking.Booking, *provider.Slot, error) {
	offerings, err := b.providers.ListOfferings(ctx, "")
	if err != nil {
		return nil, nil, fmt.Errorf("load offerings: %w", err)
	}
	var svc *provider.Service
	for _, o := range offerings {
		if o.Provider.ID == c.ProviderID && o.Service.BasePrice == c.Price {
			s := o.Service
			svc = &s
			break
		}
	}
	if svc == nil {
		return nil, nil, fmt.Errorf("service no longer offered")
	}

	now := time.Now()
	slots, err := b.providers.OpenSlots(ctx, c.ProviderID, now, now.AddDate(0, 0, 7))
	if err != nil {
		return nil, nil, fmt.Errorf("load slots: %w", err)
	}

	for i := range slots {
		taken, err := b.providers.MarkSlotBooked(ctx, slots[i].ID)
		if err != nil {
			return nil, nil, err
		}
		if !taken {
			continue
		}
		bk, err := b.bookings.Create(ctx, booking.Booking{
			UserID:     userID,
			MerchantID: c.ProviderID,
			ServiceID:  svc.ID,
			SlotID:     &slots[i].ID,
			Status:     booking.StatusConfirmed,
			Price:      c.Price,
		})
		if err != nil {
			return nil, nil, err
		}
		return &bk, &slots[i], nil
	}
	return nil, nil, fmt.Errorf("no open slots in the next week")
}

func (b *Bot) handleBookingsList(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	u, err := b.users.GetOrCreateByTelegramID(ctx, msg.From.ID, displayName(msg))
	if err != nil {
		b.send(msg.Chat.ID, "❌ Something went wrong, please try again.")
		return
	}
	items, err := b.bookings.ListByUser(ctx, u.ID)
	if err != nil {
		b.log.WithError(err).Error("list bookings failed", nil)
		b.send(msg.Chat.ID, "❌ Couldn't load your bookings.")
		return
	}

	b.send(msg.Chat.ID, formatBookingsMarkdown(items))
}

func formatBookingsMarkdown(items []booking.Booking) string {
	if len(items) == 0 {
		return "📭 You have no bookings yet. Tell me what you need!"
	}
	var sb strings.Builder
	sb.WriteString("🗓 *Your Bookings*\n\n")
	for _, bk := range items {
		sb.WriteString(fmt.Sprintf("• `%s` — %s, $%.0f (%s)\n",
			bk.ID[:8], bk.CreatedAt.Format("Jan 2"), bk.Price, bk.Status))
	}
	return sb.String()
}

func (b *Bot) handleMetricsRequest(msg *tgbotapi.Message) {
	if msg.From.ID != b.cfg.TelegramAdminUserID {
		b.send(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
		return
	}
	b.handleMetricsCommand(msg.Chat.ID)
}

func (b *Bot) handleMetricsCommand(chatID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	usage, err := b.metricsStore.GetDailyUsage(ctx, 7)
	if err != nil {
		b.send(chatID, "❌ Error fetching metrics.")
		return
	}

	health := metrics.GetSysHealth(b.cfg.DataPath)

	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d tokens (%d execs)\n",
			d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", health.DataDiskSize))

	b.send(chatID, sb.String())
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	b.api.Send(msg)
}

func displayName(msg *tgbotapi.Message) string {
	name := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	if name == "" {
		name = msg.From.UserName
	}
	return name
}
