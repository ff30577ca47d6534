package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/allenheltondev/momento-bag-of-tricks/internal/chat"
	"github.com/allenheltondev/momento-bag-of-tricks/internal/llm"
	"github.com/allenheltondev/momento-bag-of-tricks/internal/objects"
)

const (
	exportCmd = "/export"
	recapCmd  = "/recap"
)

// Converser is the conversation surface the bot drives.
type Converser interface {
	Converse(ctx context.Context, message string, opts ...chat.ConverseOption) (string, error)
	History(ctx context.Context, chatID string) ([]llm.Turn, error)
}

// Archiver persists and reads back exported transcripts.
type Archiver interface {
	Save(ctx context.Context, key string, value any, opts objects.SaveOptions) error
	LoadJSON(ctx context.Context, key string) (map[string]any, error)
}

type Bot struct {
	api          *tgbotapi.BotAPI
	s            sender
	chat         Converser
	archive      Archiver
	systemPrompt string
	log          *logrus.Logger
}

func New(botToken string, svc Converser, archive Archiver, systemPrompt string, log *logrus.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:          api,
		s:            botAPISender{api: api},
		chat:         svc,
		archive:      archive,
		systemPrompt: systemPrompt,
		log:          log,
	}, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message != nil {
			b.handleIncomingMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Text == "" {
		return
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	b.log.WithFields(logrus.Fields{"chat_id": chatID, "user": msg.From.UserName}).
		Info("incoming message")

	switch msg.Text {
	case exportCmd:
		b.handleExport(ctx, msg.Chat.ID, chatID)
		return
	case recapCmd:
		b.handleRecap(ctx, msg.Chat.ID, chatID)
		return
	}

	answer, err := b.chat.Converse(ctx, msg.Text,
		chat.WithChatID(chatID),
		chat.WithSystemMessage(b.systemPrompt),
	)
	if err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Error("converse failed")
		b.sendMessage(msg.Chat.ID, "Sorry, something went wrong.")
		return
	}

	b.sendMessage(msg.Chat.ID, answer)
}

// handleExport writes the stored conversation to the object store as a JSON
// transcript.
func (b *Bot) handleExport(ctx context.Context, replyTo int64, chatID string) {
	turns, err := b.chat.History(ctx, chatID)
	if err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Error("history read failed")
		b.sendMessage(replyTo, "Could not read the conversation history.")
		return
	}
	if len(turns) == 0 {
		b.sendMessage(replyTo, "Nothing to export yet.")
		return
	}

	transcript := map[string]any{
		"chat_id":     chatID,
		"exported_at": time.Now().UTC().Format(time.RFC3339),
		"turns":       turns,
	}
	if err := b.archive.Save(ctx, transcriptKey(chatID), transcript, objects.SaveOptions{}); err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Error("transcript export failed")
		b.sendMessage(replyTo, "Could not export the transcript.")
		return
	}

	b.sendMessage(replyTo, fmt.Sprintf("Exported %d turns.", len(turns)))
}

func (b *Bot) handleRecap(ctx context.Context, replyTo int64, chatID string) {
	doc, err := b.archive.LoadJSON(ctx, transcriptKey(chatID))
	if err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Error("transcript read failed")
		b.sendMessage(replyTo, "Could not read the transcript.")
		return
	}
	if len(doc) == 0 {
		b.sendMessage(replyTo, "No transcript exported yet.")
		return
	}

	count := 0
	if turns, ok := doc["turns"].([]any); ok {
		count = len(turns)
	}
	b.sendMessage(replyTo, fmt.Sprintf("Transcript from %v with %d turns.", doc["exported_at"], count))
}

func transcriptKey(chatID string) string {
	return "transcripts/" + chatID + ".json"
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.s.Send(msg); err != nil {
		b.log.WithError(err).Error("failed to send message")
	}
}
