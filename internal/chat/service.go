// Package chat runs single turns of a conversation against an LLM backend,
// persisting the transcript in the cache service keyed by chat ID.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/allenheltondev/momento-bag-of-tricks/internal/llm"
)

// HistoryStore is the slice of the cache service the orchestrator needs.
// Stored records are JSON-serialized llm.Turn values in conversation order.
type HistoryStore interface {
	GetList(ctx context.Context, key string) ([]string, bool, error)
	AppendList(ctx context.Context, key string, values ...string) error
}

type Service struct {
	llm     llm.Client
	history HistoryStore
	log     *logrus.Logger
}

func NewService(client llm.Client, history HistoryStore, log *logrus.Logger) *Service {
	return &Service{llm: client, history: history, log: log}
}

type converseConfig struct {
	chatID        string
	systemMessage string
}

type ConverseOption func(*converseConfig)

// WithChatID keys the conversation history. Without it the call is
// stateless and the history store is never touched.
func WithChatID(id string) ConverseOption {
	return func(c *converseConfig) { c.chatID = id }
}

// WithSystemMessage steers the inference call. An empty value is ignored.
func WithSystemMessage(msg string) ConverseOption {
	return func(c *converseConfig) { c.systemMessage = msg }
}

// Converse sends message plus any stored history to the LLM and returns the
// answer text. When a chat ID is set, the user turn and the full assistant
// turn are appended to the stored history afterwards. History reads and
// writes can never fail the call; they degrade to "no history" and "answer
// not saved" respectively. Inference failures propagate.
func (s *Service) Converse(ctx context.Context, message string, opts ...ConverseOption) (string, error) {
	if message == "" {
		return "", errors.New("message must not be empty")
	}

	var cfg converseConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	turns := s.loadHistory(ctx, cfg.chatID)
	userTurn := llm.UserTurn(message)
	turns = append(turns, userTurn)

	resp, err := s.llm.Invoke(ctx, turns, cfg.systemMessage)
	if err != nil {
		return "", fmt.Errorf("inference failed: %w", err)
	}

	if cfg.chatID != "" {
		assistantTurn := llm.Turn{Role: llm.RoleAssistant, Content: resp.Content}
		s.persistTurns(ctx, cfg.chatID, userTurn, assistantTurn)
	}

	return resp.Text(), nil
}

// History returns the stored turn sequence for chatID, oldest first. A
// missing conversation yields a nil slice and no error.
func (s *Service) History(ctx context.Context, chatID string) ([]llm.Turn, error) {
	records, ok, err := s.history.GetList(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("history read for %q: %w", chatID, err)
	}
	if !ok {
		return nil, nil
	}

	turns := make([]llm.Turn, 0, len(records))
	for _, rec := range records {
		var t llm.Turn
		if err := json.Unmarshal([]byte(rec), &t); err != nil {
			return nil, fmt.Errorf("decode history record for %q: %w", chatID, err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *Service) loadHistory(ctx context.Context, chatID string) []llm.Turn {
	if chatID == "" {
		return nil
	}
	turns, err := s.History(ctx, chatID)
	if err != nil {
		s.log.WithError(err).WithField("chat_id", chatID).
			Warn("history unavailable, continuing without it")
		return nil
	}
	return turns
}

// persistTurns appends the serialized turns to the stored conversation in
// one call, so the pair lands together.
func (s *Service) persistTurns(ctx context.Context, chatID string, turns ...llm.Turn) {
	records := make([]string, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			s.log.WithError(err).WithField("chat_id", chatID).
				Warn("failed to serialize turn, history not saved")
			return
		}
		records = append(records, string(b))
	}
	if err := s.history.AppendList(ctx, chatID, records...); err != nil {
		s.log.WithError(err).WithField("chat_id", chatID).
			Warn("failed to append history, answer not saved")
	}
}
