package talk

import (
	"fmt"
	"strings"
)

// ConversationType is the kind of a room.
type ConversationType int

const (
	OneToOne  ConversationType = 1
	Group     ConversationType = 2
	Public    ConversationType = 3
	Changelog ConversationType = 4
)

var conversationTypeNames = map[ConversationType]string{
	OneToOne:  "one_to_one",
	Group:     "group",
	Public:    "public",
	Changelog: "changelog",
}

func (t ConversationType) String() string {
	if name, ok := conversationTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ConversationType(%d)", int(t))
}

// Valid reports whether t is a known conversation type.
func (t ConversationType) Valid() bool {
	_, ok := conversationTypeNames[t]
	return ok
}

// ParseConversationType accepts a type name such as "group".
func ParseConversationType(name string) (ConversationType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range conversationTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, invalidArgument("unknown conversation type %q", name)
}

// NotificationLevel controls chat notifications for the current user.
type NotificationLevel int

const (
	NotifyDefault NotificationLevel = 0
	NotifyAlways  NotificationLevel = 1
	NotifyMention NotificationLevel = 2
	NotifyNever   NotificationLevel = 3
)

func (l NotificationLevel) valid() bool {
	return l >= NotifyDefault && l <= NotifyNever
}

// CallNotificationLevel controls call notifications.
type CallNotificationLevel int

const (
	CallNotifyOff CallNotificationLevel = 0
	CallNotifyOn  CallNotificationLevel = 1
)

// ListableScope controls who can find a room in the open conversation list.
type ListableScope int

const (
	ListableParticipants ListableScope = 0
	ListableUsers        ListableScope = 1
	ListableEveryone     ListableScope = 2
)

func (s ListableScope) valid() bool {
	return s >= ListableParticipants && s <= ListableEveryone
}

// ReadOnlyState locks or unlocks a room.
type ReadOnlyState int

const (
	ReadWrite ReadOnlyState = 0
	ReadOnly  ReadOnlyState = 1
)

// ParticipantType is the role of an attendee.
type ParticipantType int

const (
	Owner          ParticipantType = 1
	Moderator      ParticipantType = 2
	User           ParticipantType = 3
	Guest          ParticipantType = 4
	UserSelfJoined ParticipantType = 5
	GuestModerator ParticipantType = 6
)

var participantTypeNames = map[ParticipantType]string{
	Owner:          "owner",
	Moderator:      "moderator",
	User:           "user",
	Guest:          "guest",
	UserSelfJoined: "user_self_joined",
	GuestModerator: "guest_moderator",
}

func (t ParticipantType) String() string {
	if name, ok := participantTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ParticipantType(%d)", int(t))
}

// PermissionMode selects how a permission update combines with the
// current value.
type PermissionMode string

const (
	PermissionSet    PermissionMode = "set"
	PermissionAdd    PermissionMode = "add"
	PermissionRemove PermissionMode = "remove"
)

func (m PermissionMode) valid() bool {
	switch m {
	case PermissionSet, PermissionAdd, PermissionRemove:
		return true
	}
	return false
}

// PermissionScope selects which room permission set is updated.
type PermissionScope string

const (
	ScopeDefault PermissionScope = "default"
	ScopeCall    PermissionScope = "call"
)

// MessageType is the kind of a chat entry.
type MessageType string

const (
	MessageComment        MessageType = "comment"
	MessageCommentDeleted MessageType = "comment_deleted"
	MessageSystem         MessageType = "system"
	MessageCommand        MessageType = "command"
)

// Actor types used in messages and participant lists.
const (
	ActorUsers   = "users"
	ActorGuests  = "guests"
	ActorBots    = "bots"
	ActorGroups  = "groups"
	ActorEmails  = "emails"
	ActorCircles = "circles"
)
