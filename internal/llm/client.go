package llm

import (
	"context"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentBlock is one piece of a turn's content. User turns carry a single
// text block; assistant turns carry whatever block sequence the backend
// returned.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Turn is one message of a conversation. A Turn is never mutated after
// construction.
type Turn struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// UserTurn builds a user turn with a single text block.
func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Content: []ContentBlock{{Type: "text", Text: text}}}
}

type Response struct {
	Content          []ContentBlock
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Text returns the text of the first content block, or "" when the backend
// returned no content.
func (r Response) Text() string {
	if len(r.Content) == 0 {
		return ""
	}
	return r.Content[0].Text
}

// Client is a single-turn completion backend. Invoke is one blocking
// round-trip; implementations do not retry or stream.
type Client interface {
	Invoke(ctx context.Context, turns []Turn, systemMessage string) (Response, error)
}

// turnText flattens a turn's text blocks into a single string for backends
// whose wire format carries plain message content.
func turnText(t Turn) string {
	var parts []string
	for _, b := range t.Content {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}
