// Package telegramintake implements component J (spec §4.J): long-polls
// the Telegram API for updates, upserts a Recipient row per distinct chat
// seen, and answers a small set of direct commands. The recipient cache
// uses patrickmn/go-cache as a TTL-evicting substitute for the spec's
// "in-memory LRU" (see DESIGN.md) — grounded on the teacher's
// internal/bothandler session-TTL pattern.
package telegramintake

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/meetsmatch/notifyengine/internal/apperr"
	"github.com/meetsmatch/notifyengine/internal/models"
	"github.com/meetsmatch/notifyengine/internal/telemetry"
)

const (
	longPollTimeoutSeconds = 30
	transientBackoff       = 10 * time.Second
	cacheTTL               = 10 * time.Minute
	cacheCleanupInterval   = 20 * time.Minute
)

// RecipientStore is the minimal recipient persistence this component
// needs. Satisfied by *store.RecipientStore.
type RecipientStore interface {
	ByAddress(ctx context.Context, notificationType models.NotificationType, toAddress string) (*models.Recipient, error)
	Upsert(ctx context.Context, r models.Recipient) error
}

// UpdatesClient is the subset of *bot.Bot the intake loop needs.
type UpdatesClient interface {
	GetUpdates(ctx context.Context, params *tgbot.GetUpdatesParams) ([]*tgmodels.Update, error)
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*tgmodels.Message, error)
}

// Intake runs the long-poll loop and chat-upsert logic.
type Intake struct {
	client       UpdatesClient
	recipients   RecipientStore
	cache        *gocache.Cache
	lastUpdateID int64
}

func New(client UpdatesClient, recipients RecipientStore) *Intake {
	return &Intake{
		client:     client,
		recipients: recipients,
		cache:      gocache.New(cacheTTL, cacheCleanupInterval),
	}
}

// Run blocks, long-polling until ctx is cancelled (spec §4.J).
func (in *Intake) Run(ctx context.Context) {
	logger := telemetry.ForComponent(ctx, "telegram_intake")
	logger.Info("telegram intake started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("telegram intake stopping")
			return
		default:
		}

		updates, err := in.client.GetUpdates(ctx, &tgbot.GetUpdatesParams{
			Offset:  int(in.lastUpdateID + 1),
			Timeout: longPollTimeoutSeconds,
		})
		if err != nil {
			logger.WithError(err).Warn("get updates failed, backing off")
			select {
			case <-ctx.Done():
				return
			case <-time.After(transientBackoff):
			}
			continue
		}

		for _, update := range updates {
			in.handleUpdate(ctx, update)
			if int64(update.ID) > in.lastUpdateID {
				in.lastUpdateID = int64(update.ID)
			}
		}
	}
}

// HandleWebhook is the gin handler for the Telegram webhook endpoint used
// when the engine runs in webhook mode instead of long-polling, following
// the teacher's bothandler.HandleWebhook route wiring.
func (in *Intake) HandleWebhook(c *gin.Context) {
	var update tgmodels.Update
	if err := json.NewDecoder(c.Request.Body).Decode(&update); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	in.handleUpdate(c.Request.Context(), &update)
	c.Status(http.StatusOK)
}

func (in *Intake) handleUpdate(ctx context.Context, update *tgmodels.Update) {
	logger := telemetry.ForComponent(ctx, "telegram_intake")
	if update.Message == nil || update.Message.Chat.ID == 0 {
		return
	}

	chat := update.Message.Chat
	chatID := strconv.FormatInt(chat.ID, 10)
	name := chatDisplayName(chat)

	if err := in.upsertChat(ctx, chatID, name); err != nil {
		logger.WithField("chat_id", chatID).WithError(err).Warn("upsert recipient failed")
	}

	text := strings.TrimSpace(update.Message.Text)
	switch {
	case text == "/hello" || text == "/chat":
		in.reply(ctx, chat.ID, fmt.Sprintf("Your chat id is %s", chatID))
	case text == "/help":
		in.reply(ctx, chat.ID, helpText)
	}
}

const helpText = "Commands:\n/hello, /chat - show this chat's id\n/help - show this message"

func (in *Intake) reply(ctx context.Context, chatID int64, text string) {
	logger := telemetry.ForComponent(ctx, "telegram_intake")
	if _, err := in.client.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		logger.WithField("chat_id", chatID).WithError(err).Warn("reply failed")
	}
}

// upsertChat implements spec §4.J's chat-upsert rule using the TTL cache
// to avoid a database round trip for chats seen recently.
func (in *Intake) upsertChat(ctx context.Context, chatID, name string) error {
	if cached, ok := in.cache.Get(chatID); ok {
		if rec, ok := cached.(models.Recipient); ok && rec.Name == name {
			return nil
		}
	}

	existing, err := in.recipients.ByAddress(ctx, models.NotificationTelegram, chatID)
	if err != nil {
		return apperr.NewDatabaseError("lookup telegram recipient", err)
	}

	rec := models.Recipient{
		Name:             name,
		NotificationType: models.NotificationTelegram,
		ToAddress:        chatID,
	}
	if existing != nil {
		rec.ID = existing.ID
		if existing.Name == name {
			in.cache.Set(chatID, rec, gocache.DefaultExpiration)
			return nil
		}
	} else {
		rec.ID = uuid.NewString()
	}

	if err := in.recipients.Upsert(ctx, rec); err != nil {
		return err
	}
	in.cache.Set(chatID, rec, gocache.DefaultExpiration)
	return nil
}

func chatDisplayName(chat tgmodels.Chat) string {
	if chat.Title != "" {
		return chat.Title
	}
	name := strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	if name != "" {
		return name
	}
	return chat.Username
}
