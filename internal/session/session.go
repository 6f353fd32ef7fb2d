// Package session persists conversation sessions and their messages in
// sqlite. Message content is stored as a JSON-encoded slice of genkit
// parts, so tool requests and responses survive a round trip through the
// database unchanged.
package session

import (
	"time"

	"github.com/firebase/genkit/go/ai"
)

// Role values stored in the messages table.
const (
	RoleUser  = "user"
	RoleModel = "model"
	RoleTool  = "tool"
)

// Session is one conversation.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	ModelName string    `json:"model_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single stored conversation message.
type Message struct {
	ID             int64      `json:"id"`
	SessionID      string     `json:"session_id"`
	Role           string     `json:"role"`
	Content        []*ai.Part `json:"content"`
	SequenceNumber int        `json:"sequence_number"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Text returns the concatenated text parts of the message.
func (m *Message) Text() string {
	var out string
	for _, p := range m.Content {
		if p.Kind == ai.PartText {
			out += p.Text
		}
	}
	return out
}
