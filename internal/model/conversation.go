// Package model defines the JSON shapes served by the bridge gateway.
package model

import (
	"time"

	"github.com/capitalize-ai/talkbridge/pkg/talk"
)

// Room is the gateway view of a Talk conversation.
type Room struct {
	Token             string    `json:"token"`
	Type              string    `json:"type"`
	Name              string    `json:"name"`
	DisplayName       string    `json:"display_name"`
	Description       string    `json:"description,omitempty"`
	ReadOnly          bool      `json:"read_only"`
	HasPassword       bool      `json:"has_password"`
	IsFavorite        bool      `json:"is_favorite"`
	UnreadMessages    int       `json:"unread_messages"`
	UnreadMention     bool      `json:"unread_mention"`
	ParticipantType   string    `json:"participant_type"`
	Permissions       string    `json:"permissions"`
	LastActivity      time.Time `json:"last_activity,omitempty"`
	LastReadMessageID int       `json:"last_read_message_id,omitempty"`
}

// RoomFromConversation converts a library snapshot.
func RoomFromConversation(c *talk.Conversation) Room {
	r := Room{
		Token:             c.Token,
		Type:              c.Type.String(),
		Name:              c.Name,
		DisplayName:       c.DisplayName,
		Description:       c.Description,
		ReadOnly:          c.ReadOnly == talk.ReadOnly,
		HasPassword:       c.HasPassword,
		IsFavorite:        c.IsFavorite,
		UnreadMessages:    c.UnreadMessages,
		UnreadMention:     c.UnreadMention,
		ParticipantType:   c.ParticipantType.String(),
		Permissions:       c.Permissions.String(),
		LastReadMessageID: c.LastReadMessage,
	}
	if c.LastActivity > 0 {
		r.LastActivity = time.Unix(c.LastActivity, 0).UTC()
	}
	return r
}

// CreateRoomRequest is the request to create a room.
type CreateRoomRequest struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Invite string `json:"invite,omitempty"`
	Source string `json:"source,omitempty"`
}

// ListRoomsResponse is the response for listing rooms.
type ListRoomsResponse struct {
	Rooms []Room `json:"rooms"`
	Total int    `json:"total"`
}

// Participant is the gateway view of a room attendee.
type Participant struct {
	AttendeeID  int    `json:"attendee_id"`
	ActorType   string `json:"actor_type"`
	ActorID     string `json:"actor_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Moderator   bool   `json:"moderator"`
	Permissions string `json:"permissions"`
}

// ParticipantFromTalk converts a library participant.
func ParticipantFromTalk(p *talk.Participant) Participant {
	return Participant{
		AttendeeID:  p.AttendeeID,
		ActorType:   p.ActorType,
		ActorID:     p.ActorID,
		DisplayName: p.DisplayName,
		Role:        p.ParticipantType.String(),
		Moderator:   p.IsModerator(),
		Permissions: p.Permissions.String(),
	}
}

// ListParticipantsResponse is the response for listing participants.
type ListParticipantsResponse struct {
	Participants []Participant `json:"participants"`
}
