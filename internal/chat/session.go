// Package chat manages the multi-session conversation state for the
// assistant: independently addressable sessions with persisted history,
// replay, and synchronization with the remote endpoint.
package chat

import (
	"strings"
	"time"

	"github.com/john-mcenroe/landos/internal/api"
)

// TitleBudget is the character budget for a derived session title.
const TitleBudget = 48

// Message is one turn in a session. Assistant turns store the raw
// structured response JSON so replay can re-parse it.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is one persisted conversation thread.
type Session struct {
	ID          string             `json:"id"`
	Title       string             `json:"title,omitempty"` // empty until the first user message
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Messages    []Message          `json:"messages"`
	LastResults []api.RankedResult `json:"last_results,omitempty"`
}

// DeriveTitle builds a session's display title from its first user message,
// truncated to the budget with an ellipsis marker. Set once, never changed.
func DeriveTitle(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= TitleBudget {
		return text
	}
	return string(runes[:TitleBudget-1]) + "…"
}
