package talk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Participant is an attendee of a room.
type Participant struct {
	AttendeeID          int             `mapstructure:"attendeeId"`
	ActorType           string          `mapstructure:"actorType"`
	ActorID             string          `mapstructure:"actorId"`
	DisplayName         string          `mapstructure:"displayName"`
	ParticipantType     ParticipantType `mapstructure:"participantType"`
	Permissions         Permissions     `mapstructure:"permissions"`
	AttendeePermissions Permissions     `mapstructure:"attendeePermissions"`
	InCall              int             `mapstructure:"inCall"`
	LastPing            int64           `mapstructure:"lastPing"`
	Status              string          `mapstructure:"status"`
	StatusMessage       string          `mapstructure:"statusMessage"`

	Extra map[string]any `mapstructure:",remain"`

	conv *Conversation
}

func newParticipant(data map[string]any, conv *Conversation) (*Participant, error) {
	p := &Participant{}
	if err := decodeInto(data, p); err != nil {
		return nil, err
	}
	p.conv = conv
	return p, nil
}

func (p *Participant) String() string {
	return p.DisplayName + " (" + p.ActorType + "/" + p.ActorID + ")"
}

// Conversation returns the room the participant was listed in.
func (p *Participant) Conversation() *Conversation {
	return p.conv
}

// IsModerator reports whether the participant can moderate the room.
func (p *Participant) IsModerator() bool {
	switch p.ParticipantType {
	case Owner, Moderator, GuestModerator:
		return true
	}
	return false
}

// Remove removes the participant from the room.
func (p *Participant) Remove(ctx context.Context) error {
	params := url.Values{"attendeeId": {strconv.Itoa(p.AttendeeID)}}
	_, err := p.conv.call(ctx, "participant.remove", http.MethodDelete, "/attendees", params)
	return err
}

// Promote makes the participant a moderator.
func (p *Participant) Promote(ctx context.Context) error {
	params := url.Values{"attendeeId": {strconv.Itoa(p.AttendeeID)}}
	if _, err := p.conv.call(ctx, "participant.promote", http.MethodPost, "/moderators", params); err != nil {
		return err
	}
	if p.ParticipantType == Guest {
		p.ParticipantType = GuestModerator
	} else {
		p.ParticipantType = Moderator
	}
	return nil
}

// Demote takes moderator rights away.
func (p *Participant) Demote(ctx context.Context) error {
	params := url.Values{"attendeeId": {strconv.Itoa(p.AttendeeID)}}
	if _, err := p.conv.call(ctx, "participant.demote", http.MethodDelete, "/moderators", params); err != nil {
		return err
	}
	if p.ParticipantType == GuestModerator {
		p.ParticipantType = Guest
	} else {
		p.ParticipantType = User
	}
	return nil
}

// SetPermissions changes the attendee permissions.
func (p *Participant) SetPermissions(ctx context.Context, mode PermissionMode, perms Permissions) error {
	if !mode.valid() {
		return invalidArgument("unknown permission mode %q", mode)
	}
	value, err := perms.wireValue()
	if err != nil {
		return err
	}
	params := url.Values{
		"attendeeId":  {strconv.Itoa(p.AttendeeID)},
		"mode":        {string(mode)},
		"permissions": {value},
	}
	_, err = p.conv.call(ctx, "participant.permissions", http.MethodPut, "/attendees/permissions", params)
	return err
}
