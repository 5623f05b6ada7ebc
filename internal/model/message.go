package model

import (
	"time"

	"github.com/capitalize-ai/talkbridge/pkg/talk"
)

// Message is the gateway view of a chat message.
type Message struct {
	ID               int            `json:"id"`
	Room             string         `json:"room"`
	ActorType        string         `json:"actor_type"`
	ActorID          string         `json:"actor_id"`
	ActorDisplayName string         `json:"actor_display_name"`
	Content          string         `json:"content"`
	Type             string         `json:"type"`
	SystemMessage    string         `json:"system_message,omitempty"`
	Parameters       map[string]any `json:"parameters,omitempty"`
	ParentID         int            `json:"parent_id,omitempty"`
	ReferenceID      string         `json:"reference_id,omitempty"`
	Deleted          bool           `json:"deleted,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// MessageFromTalk converts a library message.
func MessageFromTalk(token string, m *talk.Message) Message {
	out := Message{
		ID:               m.ID,
		Room:             token,
		ActorType:        m.ActorType,
		ActorID:          m.ActorID,
		ActorDisplayName: m.ActorDisplayName,
		Content:          m.Message,
		Type:             string(m.MessageType),
		SystemMessage:    m.SystemMessage,
		ReferenceID:      m.ReferenceID,
		Deleted:          m.Deleted(),
		CreatedAt:        m.Time().UTC(),
	}
	if len(m.MessageParameters) > 0 {
		out.Parameters = m.MessageParameters
	}
	if parent, ok := m.Parent(); ok {
		out.ParentID = parent.ID
	}
	return out
}

// SendMessageRequest is the request to post a message.
type SendMessageRequest struct {
	Content string `json:"content"`
	ReplyTo int    `json:"reply_to,omitempty"`
	Silent  bool   `json:"silent,omitempty"`
}

// SendMessageResponse is the response after posting a message.
type SendMessageResponse struct {
	Message *Message `json:"message,omitempty"`
}

// ListMessagesResponse is one page of history. LastGiven is the cursor for
// the next page.
type ListMessagesResponse struct {
	Messages  []Message `json:"messages"`
	LastGiven int       `json:"last_given,omitempty"`
	HasMore   bool      `json:"has_more"`
}

// ShareRequest posts a rich object.
type ShareRequest struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	CallType  string `json:"call_type,omitempty"`
	Latitude  string `json:"latitude,omitempty"`
	Longitude string `json:"longitude,omitempty"`
}

// ErrorEvent is sent on a stream when polling fails.
type ErrorEvent struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// HeartbeatEvent keeps idle streams open.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
