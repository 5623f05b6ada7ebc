package talk

import (
	"context"
	"strings"
	"time"
)

// RichObjectPlaceholder is the body of a message that only carries a rich
// object.
const RichObjectPlaceholder = "{object}"

// Message is one chat entry.
type Message struct {
	ID                  int            `mapstructure:"id"`
	Token               string         `mapstructure:"token"`
	ActorType           string         `mapstructure:"actorType"`
	ActorID             string         `mapstructure:"actorId"`
	ActorDisplayName    string         `mapstructure:"actorDisplayName"`
	Timestamp           int64          `mapstructure:"timestamp"`
	Message             string         `mapstructure:"message"`
	MessageParameters   map[string]any `mapstructure:"messageParameters"`
	SystemMessage       string         `mapstructure:"systemMessage"`
	MessageType         MessageType    `mapstructure:"messageType"`
	IsReplyable         bool           `mapstructure:"isReplyable"`
	ReferenceID         string         `mapstructure:"referenceId"`
	ExpirationTimestamp int64          `mapstructure:"expirationTimestamp"`
	Reactions           map[string]any `mapstructure:"reactions"`
	// RawParent is the decoded parent message of a reply.
	RawParent map[string]any `mapstructure:"parent"`

	Extra map[string]any `mapstructure:",remain"`

	chat    *Chat
	deleted bool
}

func newMessage(data map[string]any, ch *Chat) (*Message, error) {
	m := &Message{}
	if err := decodeInto(data, m); err != nil {
		return nil, err
	}
	m.chat = ch
	return m, nil
}

// Chat returns the stream the message was read from.
func (m *Message) Chat() *Chat {
	return m.chat
}

// Time returns the message timestamp.
func (m *Message) Time() time.Time {
	return time.Unix(m.Timestamp, 0)
}

// IsRichObject reports whether the body is the rich-object placeholder.
func (m *Message) IsRichObject() bool {
	return m.Message == RichObjectPlaceholder
}

// Deleted reports whether the message was deleted, by this client or
// before it was fetched.
func (m *Message) Deleted() bool {
	return m.deleted || m.MessageType == MessageCommentDeleted
}

// Parent returns the message this one replies to.
func (m *Message) Parent() (*Message, bool) {
	if len(m.RawParent) == 0 {
		return nil, false
	}
	p, err := newMessage(m.RawParent, m.chat)
	if err != nil {
		return nil, false
	}
	return p, true
}

// Mentions reports whether the message mentions actorID.
func (m *Message) Mentions(actorID string) bool {
	for key, raw := range m.MessageParameters {
		if !strings.HasPrefix(key, "mention-") {
			continue
		}
		param, ok := asMap(raw)
		if !ok {
			continue
		}
		if scalarString(param["id"]) == actorID {
			return true
		}
	}
	return false
}

// Delete removes the message. A rich-object message needs the
// rich-object-delete feature, anything else delete-messages. The returned
// message is the system notice the server posts in its place, if any.
func (m *Message) Delete(ctx context.Context) (*Message, error) {
	feature := FeatureDeleteMessages
	if m.IsRichObject() {
		feature = FeatureRichObjectDelete
	}
	if err := m.chat.client.require(ctx, feature); err != nil {
		return nil, err
	}

	notice, err := m.chat.deleteMessage(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	m.deleted = true
	return notice, nil
}

// MarkRead moves the read marker to this message.
func (m *Message) MarkRead(ctx context.Context) error {
	return m.chat.SetReadMarker(ctx, m.ID)
}

// MarkUnread moves the read marker back.
func (m *Message) MarkUnread(ctx context.Context) error {
	return m.chat.MarkUnread(ctx)
}
