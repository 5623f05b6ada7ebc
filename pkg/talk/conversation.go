package talk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/capitalize-ai/talkbridge/pkg/talk/richobject"
)

// ConversationAPI lists, creates and fetches rooms.
type ConversationAPI struct {
	client *Client
}

// ListOptions tunes List.
type ListOptions struct {
	// KeepAlive refreshes the caller's "online" status.
	KeepAlive bool
	// IncludeStatus loads user status for one-to-one rooms.
	IncludeStatus bool
}

// CreateOptions describes a new room.
type CreateOptions struct {
	Type ConversationType
	// Invite is a user id (one-to-one) or a group/circle id.
	Invite string
	// Source is the invite source: users, groups or circles.
	Source string
	Name   string
}

// List returns the rooms of the current user.
func (a *ConversationAPI) List(ctx context.Context, opts ListOptions) ([]*Conversation, error) {
	params := url.Values{}
	params.Set("noStatusUpdate", boolInt(!opts.KeepAlive))
	params.Set("includeStatus", strconv.FormatBool(opts.IncludeStatus))

	res, err := a.query(ctx, "conversation.list", http.MethodGet, "/room", params)
	if err != nil {
		return nil, err
	}
	return a.wrapAll(res)
}

// Listed returns the open rooms the current user can join. search filters
// by name.
func (a *ConversationAPI) Listed(ctx context.Context, search string) ([]*Conversation, error) {
	params := url.Values{}
	if search != "" {
		params.Set("searchTerm", search)
	}

	res, err := a.query(ctx, "conversation.listed", http.MethodGet, "/listed-room", params)
	if err != nil {
		return nil, err
	}
	return a.wrapAll(res)
}

// New creates a room. The type is validated before anything is sent.
func (a *ConversationAPI) New(ctx context.Context, opts CreateOptions) (*Conversation, error) {
	if !opts.Type.Valid() {
		return nil, invalidArgument("unknown conversation type %d", int(opts.Type))
	}

	params := url.Values{}
	params.Set("roomType", strconv.Itoa(int(opts.Type)))
	params.Set("invite", opts.Invite)
	params.Set("source", opts.Source)
	params.Set("roomName", opts.Name)

	res, err := a.query(ctx, "conversation.create", http.MethodPost, "/room", params)
	if err != nil {
		return nil, err
	}
	return a.wrapOne(res)
}

// Get fetches one room by token.
func (a *ConversationAPI) Get(ctx context.Context, token string) (*Conversation, error) {
	res, err := a.query(ctx, "conversation.get", http.MethodGet, "/room/"+url.PathEscape(token), nil)
	if err != nil {
		return nil, err
	}
	return a.wrapOne(res)
}

// NewConversation builds a Conversation from a decoded room mapping.
func (a *ConversationAPI) NewConversation(data map[string]any) (*Conversation, error) {
	conv := &Conversation{}
	if err := decodeInto(data, conv); err != nil {
		return nil, err
	}
	if conv.Token == "" {
		return nil, &StructureError{Path: "token"}
	}
	conv.api = a
	conv.chat = newChat(a.client, conv)
	return conv, nil
}

func (a *ConversationAPI) query(ctx context.Context, op, method, path string, params url.Values) (*Result, error) {
	return a.client.Query(ctx, Call{
		Op:     op,
		Method: method,
		Root:   ConversationRoot,
		Path:   path,
		Params: params,
	})
}

func (a *ConversationAPI) wrapAll(res *Result) ([]*Conversation, error) {
	elements, err := res.Elements()
	if err != nil {
		return nil, err
	}
	rooms := make([]*Conversation, 0, len(elements))
	for _, el := range elements {
		conv, err := a.NewConversation(el)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, conv)
	}
	return rooms, nil
}

func (a *ConversationAPI) wrapOne(res *Result) (*Conversation, error) {
	data, err := res.Object()
	if err != nil {
		return nil, err
	}
	return a.NewConversation(data)
}

// Conversation is a snapshot of a room. Setters update the local fields on
// success but never re-read the server. Reads may be concurrent; a setter
// must not run alongside other access to the same snapshot.
type Conversation struct {
	ID              int              `mapstructure:"id"`
	Token           string           `mapstructure:"token"`
	Type            ConversationType `mapstructure:"type"`
	Name            string           `mapstructure:"name"`
	DisplayName     string           `mapstructure:"displayName"`
	Description     string           `mapstructure:"description"`
	ObjectType      string           `mapstructure:"objectType"`
	ObjectID        string           `mapstructure:"objectId"`
	ParticipantType ParticipantType  `mapstructure:"participantType"`
	AttendeeID      int              `mapstructure:"attendeeId"`
	ActorType       string           `mapstructure:"actorType"`
	ActorID         string           `mapstructure:"actorId"`

	Permissions         Permissions `mapstructure:"permissions"`
	AttendeePermissions Permissions `mapstructure:"attendeePermissions"`
	DefaultPermissions  Permissions `mapstructure:"defaultPermissions"`
	CallPermissions     Permissions `mapstructure:"callPermissions"`

	ReadOnly              ReadOnlyState         `mapstructure:"readOnly"`
	Listable              ListableScope         `mapstructure:"listable"`
	LobbyState            int                   `mapstructure:"lobbyState"`
	LobbyTimer            int64                 `mapstructure:"lobbyTimer"`
	HasPassword           bool                  `mapstructure:"hasPassword"`
	HasCall               bool                  `mapstructure:"hasCall"`
	IsFavorite            bool                  `mapstructure:"isFavorite"`
	NotificationLevel     NotificationLevel     `mapstructure:"notificationLevel"`
	NotificationCalls     CallNotificationLevel `mapstructure:"notificationCalls"`
	UnreadMessages        int                   `mapstructure:"unreadMessages"`
	UnreadMention         bool                  `mapstructure:"unreadMention"`
	LastActivity          int64                 `mapstructure:"lastActivity"`
	LastReadMessage       int                   `mapstructure:"lastReadMessage"`
	LastCommonReadMessage int                   `mapstructure:"lastCommonReadMessage"`
	CanStartCall          bool                  `mapstructure:"canStartCall"`
	CanLeaveConversation  bool                  `mapstructure:"canLeaveConversation"`
	CanDeleteConversation bool                  `mapstructure:"canDeleteConversation"`

	// Extra holds server fields not modelled above, such as lastMessage.
	Extra map[string]any `mapstructure:",remain"`

	api  *ConversationAPI
	chat *Chat
}

func (c *Conversation) String() string {
	return c.DisplayName + " (" + c.Token + ")"
}

// Chat returns the message stream of this room.
func (c *Conversation) Chat() *Chat {
	return c.chat
}

// Rename changes the room name.
func (c *Conversation) Rename(ctx context.Context, name string) error {
	params := url.Values{"roomName": {name}}
	if _, err := c.call(ctx, "conversation.rename", http.MethodPut, "", params); err != nil {
		return err
	}
	c.Name = name
	c.DisplayName = name
	return nil
}

// Delete removes the room for everyone. The snapshot stays usable but
// later calls fail with ErrNotFound from the server.
func (c *Conversation) Delete(ctx context.Context) error {
	_, err := c.call(ctx, "conversation.delete", http.MethodDelete, "", nil)
	return err
}

// SetDescription changes the room description.
func (c *Conversation) SetDescription(ctx context.Context, description string) error {
	if err := c.api.client.require(ctx, FeatureRoomDescription); err != nil {
		return err
	}
	params := url.Values{"description": {description}}
	if _, err := c.call(ctx, "conversation.description", http.MethodPut, "/description", params); err != nil {
		return err
	}
	c.Description = description
	return nil
}

// AllowGuests makes the room public or turns it back into a group room.
func (c *Conversation) AllowGuests(ctx context.Context, allow bool) error {
	method := http.MethodDelete
	if allow {
		method = http.MethodPost
	}
	if _, err := c.call(ctx, "conversation.public", method, "/public", nil); err != nil {
		return err
	}
	if allow {
		c.Type = Public
	} else {
		c.Type = Group
	}
	return nil
}

// SetReadOnly locks or unlocks the room.
func (c *Conversation) SetReadOnly(ctx context.Context, state ReadOnlyState) error {
	if err := c.api.client.require(ctx, FeatureReadOnlyRooms); err != nil {
		return err
	}
	if state != ReadWrite && state != ReadOnly {
		return invalidArgument("unknown read-only state %d", int(state))
	}
	params := url.Values{"state": {strconv.Itoa(int(state))}}
	if _, err := c.call(ctx, "conversation.read_only", http.MethodPut, "/read-only", params); err != nil {
		return err
	}
	c.ReadOnly = state
	return nil
}

// SetPassword sets the guest password of a public room. An empty password
// removes it.
func (c *Conversation) SetPassword(ctx context.Context, password string) error {
	params := url.Values{"password": {password}}
	if _, err := c.call(ctx, "conversation.password", http.MethodPut, "/password", params); err != nil {
		return err
	}
	c.HasPassword = password != ""
	return nil
}

// AddToFavorites marks the room as favorite for the current user.
func (c *Conversation) AddToFavorites(ctx context.Context) error {
	if err := c.api.client.require(ctx, FeatureFavorites); err != nil {
		return err
	}
	if _, err := c.call(ctx, "conversation.favorite", http.MethodPost, "/favorite", nil); err != nil {
		return err
	}
	c.IsFavorite = true
	return nil
}

// RemoveFromFavorites clears the favorite mark.
func (c *Conversation) RemoveFromFavorites(ctx context.Context) error {
	if err := c.api.client.require(ctx, FeatureFavorites); err != nil {
		return err
	}
	if _, err := c.call(ctx, "conversation.unfavorite", http.MethodDelete, "/favorite", nil); err != nil {
		return err
	}
	c.IsFavorite = false
	return nil
}

// SetNotificationLevel changes chat notifications for the current user.
func (c *Conversation) SetNotificationLevel(ctx context.Context, level NotificationLevel) error {
	if err := c.api.client.require(ctx, FeatureNotificationLevels); err != nil {
		return err
	}
	if !level.valid() {
		return invalidArgument("unknown notification level %d", int(level))
	}
	params := url.Values{"level": {strconv.Itoa(int(level))}}
	if _, err := c.call(ctx, "conversation.notify", http.MethodPost, "/notify", params); err != nil {
		return err
	}
	c.NotificationLevel = level
	return nil
}

// SetCallNotificationLevel turns call notifications on or off.
func (c *Conversation) SetCallNotificationLevel(ctx context.Context, level CallNotificationLevel) error {
	if err := c.api.client.require(ctx, FeatureNotificationCalls); err != nil {
		return err
	}
	if level != CallNotifyOff && level != CallNotifyOn {
		return invalidArgument("unknown call notification level %d", int(level))
	}
	params := url.Values{"level": {strconv.Itoa(int(level))}}
	if _, err := c.call(ctx, "conversation.notify_calls", http.MethodPost, "/notify-calls", params); err != nil {
		return err
	}
	c.NotificationCalls = level
	return nil
}

// SetPermissions replaces the default or call permissions of the room.
func (c *Conversation) SetPermissions(ctx context.Context, scope PermissionScope, perms Permissions) error {
	if scope != ScopeDefault && scope != ScopeCall {
		return invalidArgument("unknown permission scope %q", scope)
	}
	value, err := perms.wireValue()
	if err != nil {
		return err
	}
	params := url.Values{"permissions": {value}}
	if _, err := c.call(ctx, "conversation.permissions", http.MethodPut, "/permissions/"+string(scope), params); err != nil {
		return err
	}
	if scope == ScopeDefault {
		c.DefaultPermissions = perms.Normalize()
	} else {
		c.CallPermissions = perms.Normalize()
	}
	return nil
}

// SetPermissionsForAll updates the permissions of every attendee.
func (c *Conversation) SetPermissionsForAll(ctx context.Context, mode PermissionMode, perms Permissions) error {
	if !mode.valid() {
		return invalidArgument("unknown permission mode %q", mode)
	}
	value, err := perms.wireValue()
	if err != nil {
		return err
	}
	params := url.Values{"mode": {string(mode)}, "permissions": {value}}
	_, err = c.call(ctx, "conversation.permissions_all", http.MethodPut, "/attendees/permissions/all", params)
	return err
}

// Join starts a session in the room. force ends a session the user already
// has elsewhere instead of failing with ErrConflict.
func (c *Conversation) Join(ctx context.Context, password string, force bool) error {
	params := url.Values{"force": {strconv.FormatBool(force)}}
	if password != "" {
		params.Set("password", password)
	}
	_, err := c.call(ctx, "conversation.join", http.MethodPost, "/participants/active", params)
	return err
}

// Leave ends the current session in the room.
func (c *Conversation) Leave(ctx context.Context) error {
	_, err := c.call(ctx, "conversation.leave", http.MethodDelete, "/participants/active", nil)
	return err
}

// RemoveSelf removes the current user from the room.
func (c *Conversation) RemoveSelf(ctx context.Context) error {
	_, err := c.call(ctx, "conversation.remove_self", http.MethodDelete, "/participants/self", nil)
	return err
}

// Invite adds a user, group, email or circle. When the room type changes
// as a result, the new type is returned.
func (c *Conversation) Invite(ctx context.Context, invitee, source string) (ConversationType, error) {
	if source == "" {
		source = ActorUsers
	}
	params := url.Values{"newParticipant": {invitee}, "source": {source}}
	res, err := c.call(ctx, "conversation.invite", http.MethodPost, "/participants", params)
	if err != nil {
		return 0, err
	}
	data, err := res.Object()
	if err != nil {
		return 0, err
	}
	if raw, ok := data["type"]; ok {
		t, err := strconv.Atoi(scalarString(raw))
		if err == nil && ConversationType(t).Valid() {
			c.Type = ConversationType(t)
			return c.Type, nil
		}
	}
	return c.Type, nil
}

// Participants fetches the attendee list. Each call goes to the server.
func (c *Conversation) Participants(ctx context.Context, includeStatus bool) ([]*Participant, error) {
	params := url.Values{"includeStatus": {strconv.FormatBool(includeStatus)}}
	res, err := c.call(ctx, "conversation.participants", http.MethodGet, "/participants", params)
	if err != nil {
		return nil, err
	}
	elements, err := res.Elements()
	if err != nil {
		return nil, err
	}
	out := make([]*Participant, 0, len(elements))
	for _, el := range elements {
		p, err := newParticipant(el, c)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ChangeListingScope controls who can find the room in the open list.
func (c *Conversation) ChangeListingScope(ctx context.Context, scope ListableScope) error {
	if err := c.api.client.require(ctx, FeatureListableRooms); err != nil {
		return err
	}
	if !scope.valid() {
		return invalidArgument("unknown listable scope %d", int(scope))
	}
	params := url.Values{"scope": {strconv.Itoa(int(scope))}}
	if _, err := c.call(ctx, "conversation.listable", http.MethodPut, "/listable", params); err != nil {
		return err
	}
	c.Listable = scope
	return nil
}

// SetGuestDisplayName sets the name of the calling guest. Only guests may
// call it.
func (c *Conversation) SetGuestDisplayName(ctx context.Context, name string) error {
	client := c.api.client
	_, err := client.Query(ctx, Call{
		Op:     "conversation.guest_name",
		Method: http.MethodPost,
		URL:    client.baseURL + ChatRoot + "/guest/" + url.PathEscape(c.Token) + "/name",
		Params: url.Values{"displayName": {name}},
	})
	return err
}

// ShareFile shares a file from the user's storage into the room. The
// optional messageType is "comment" or "voice-message".
func (c *Conversation) ShareFile(ctx context.Context, path, referenceID, messageType string) error {
	params := url.Values{
		"shareType": {"10"},
		"shareWith": {c.Token},
		"path":      {path},
	}
	if referenceID != "" {
		params.Set("referenceId", referenceID)
	}
	if messageType != "" {
		meta, err := json.Marshal(map[string]string{"messageType": messageType})
		if err != nil {
			return err
		}
		params.Set("talkMetaData", string(meta))
	}

	client := c.api.client
	_, err := client.Query(ctx, Call{
		Op:     "conversation.share_file",
		Method: http.MethodPost,
		URL:    client.baseURL + SharingRoot + "/shares",
		Params: params,
	})
	return err
}

// Send posts a message to the room chat.
func (c *Conversation) Send(ctx context.Context, text string, opts SendOptions) (*Message, error) {
	return c.chat.Send(ctx, text, opts)
}

// Receive fetches messages from the room chat.
func (c *Conversation) Receive(ctx context.Context, opts ReceiveOptions) ([]*Message, error) {
	return c.chat.Receive(ctx, opts)
}

// ShareRichObject posts a rich object to the room chat.
func (c *Conversation) ShareRichObject(ctx context.Context, obj richobject.Object, opts SendOptions) (*Message, error) {
	return c.chat.ShareRichObject(ctx, obj, opts)
}

// ClearHistory deletes every message in the room.
func (c *Conversation) ClearHistory(ctx context.Context) error {
	return c.chat.ClearHistory(ctx)
}

// Mentions suggests actors to mention in the room.
func (c *Conversation) Mentions(ctx context.Context, search string, limit int, includeStatus bool) ([]Suggestion, error) {
	return c.chat.Mentions(ctx, search, limit, includeStatus)
}

func (c *Conversation) call(ctx context.Context, op, method, sub string, params url.Values) (*Result, error) {
	return c.api.query(ctx, op, method, "/room/"+url.PathEscape(c.Token)+sub, params)
}

func boolInt(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
