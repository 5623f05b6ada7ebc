package talk

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/talkbridge/internal/ocstest"
)

func conversationAPI(t *testing.T, srv *ocsServer) *ConversationAPI {
	t.Helper()
	api, err := srv.client().Conversations(context.Background())
	require.NoError(t, err)
	return api
}

func TestList(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		tokens []string
	}{
		{"no rooms", "", nil},
		{"one room", ocstest.Elements(ocstest.RoomXML("a", 2, "A")), []string{"a"}},
		{"three rooms", ocstest.Elements(ocstest.RoomXML("a", 2, "A"), ocstest.RoomXML("b", 3, "B"), ocstest.RoomXML("c", 1, "C")), []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newOCSServer(t, FeatureConversationV4)
			srv.Reply(http.MethodGet, ConversationRoot+"/room", http.StatusOK, ocstest.OKXML(tt.data), nil)

			rooms, err := conversationAPI(t, srv).List(context.Background(), ListOptions{})
			require.NoError(t, err)
			require.Len(t, rooms, len(tt.tokens))
			for i, token := range tt.tokens {
				assert.Equal(t, token, rooms[i].Token)
				assert.Equal(t, token, rooms[i].Chat().Token())
			}

			req := srv.Last(http.MethodGet, ConversationRoot+"/room")
			assert.Equal(t, "1", req.Query.Get("noStatusUpdate"))
			assert.Equal(t, "false", req.Query.Get("includeStatus"))
		})
	}
}

func TestListed(t *testing.T) {
	srv := newOCSServer(t, FeatureConversationV4)
	srv.Reply(http.MethodGet, ConversationRoot+"/listed-room", http.StatusOK, ocstest.OKXML(ocstest.Elements(ocstest.RoomXML("open", 3, "Open"))), nil)

	rooms, err := conversationAPI(t, srv).Listed(context.Background(), "op")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, Public, rooms[0].Type)
	assert.Equal(t, "op", srv.Last(http.MethodGet, ConversationRoot+"/listed-room").Query.Get("searchTerm"))
}

func TestNew_CreatesGroupRoom(t *testing.T) {
	srv := newOCSServer(t, FeatureConversationV4)
	srv.Reply(http.MethodPost, ConversationRoot+"/room", http.StatusCreated, ocstest.OKXML(ocstest.RoomXML("newtok", 2, "Test")), nil)

	roomType, err := ParseConversationType("group")
	require.NoError(t, err)

	conv, err := conversationAPI(t, srv).New(context.Background(), CreateOptions{Type: roomType, Name: "Test"})
	require.NoError(t, err)
	assert.Equal(t, "newtok", conv.Token)
	assert.Equal(t, Group, conv.Type)

	assert.Equal(t, 1, srv.Calls(http.MethodPost, ConversationRoot+"/room"))
	req := srv.Last(http.MethodPost, ConversationRoot+"/room")
	assert.Equal(t, "2", req.Form.Get("roomType"))
	assert.Equal(t, "Test", req.Form.Get("roomName"))
}

func TestNew_RejectsUnknownType(t *testing.T) {
	srv := newOCSServer(t, FeatureConversationV4)
	api := conversationAPI(t, srv)

	_, err := api.New(context.Background(), CreateOptions{Type: ConversationType(9), Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Zero(t, srv.Calls(http.MethodPost, ConversationRoot+"/room"))

	_, err = ParseConversationType("lobby")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewConversation_RoundTrip(t *testing.T) {
	api := &ConversationAPI{client: &Client{}}
	data := map[string]any{
		"token":       "tok123",
		"type":        "3",
		"displayName": "Planning",
		"isFavorite":  "1",
		"hasPassword": "",
		"permissions": "35",
		"lastMessage": map[string]any{"id": "5"},
	}

	conv, err := api.NewConversation(data)
	require.NoError(t, err)
	assert.Equal(t, "tok123", conv.Token)
	assert.Equal(t, Public, conv.Type)
	assert.Equal(t, "Planning", conv.DisplayName)
	assert.True(t, conv.IsFavorite)
	assert.False(t, conv.HasPassword)
	assert.True(t, conv.Permissions.Has(PermCustom|PermStartCall|PermPublishVideo))
	assert.Equal(t, map[string]any{"id": "5"}, conv.Extra["lastMessage"])
	assert.Same(t, conv, conv.Chat().Conversation())
}

func TestNewConversation_MissingToken(t *testing.T) {
	api := &ConversationAPI{client: &Client{}}
	_, err := api.NewConversation(map[string]any{"displayName": "x"})
	assert.ErrorIs(t, err, ErrStructure)
}

func TestGet_NotFound(t *testing.T) {
	srv := newOCSServer(t, FeatureConversationV4)
	srv.Reply(http.MethodGet, ConversationRoot+"/room/gone", http.StatusNotFound, ocstest.FailureXML(404, "Room not found"), nil)

	_, err := conversationAPI(t, srv).Get(context.Background(), "gone")
	require.ErrorIs(t, err, ErrNotFound)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "Room not found", svcErr.Message)
	assert.Equal(t, http.StatusNotFound, svcErr.HTTPStatus)
}

func newRoom(t *testing.T, features ...string) (*ocsServer, *Conversation) {
	t.Helper()
	srv := newOCSServer(t, features...)
	srv.Reply(http.MethodGet, ConversationRoot+"/room/room1", http.StatusOK, ocstest.OKXML(ocstest.RoomXML("room1", 2, "Team")), nil)
	conv, err := conversationAPI(t, srv).Get(context.Background(), "room1")
	require.NoError(t, err)
	return srv, conv
}

func TestConversation_Setters(t *testing.T) {
	srv, conv := newRoom(t, allFeatures...)
	ctx := context.Background()
	room := ConversationRoot + "/room/room1"

	srv.Reply(http.MethodPut, room, http.StatusOK, ocstest.OKXML(""), nil)
	require.NoError(t, conv.Rename(ctx, "Renamed"))
	assert.Equal(t, "Renamed", srv.Last(http.MethodPut, room).Form.Get("roomName"))
	assert.Equal(t, "Renamed", conv.DisplayName)

	srv.Reply(http.MethodPut, room+"/description", http.StatusOK, ocstest.OKXML(""), nil)
	require.NoError(t, conv.SetDescription(ctx, "About"))
	assert.Equal(t, "About", conv.Description)

	srv.Reply(http.MethodPost, room+"/public", http.StatusOK, ocstest.OKXML(""), nil)
	require.NoError(t, conv.AllowGuests(ctx, true))
	assert.Equal(t, Public, conv.Type)

	srv.Reply(http.MethodPut, room+"/read-only", http.StatusOK, ocstest.OKXML(""), nil)
	require.NoError(t, conv.SetReadOnly(ctx, ReadOnly))
	assert.Equal(t, "1", srv.Last(http.MethodPut, room+"/read-only").Form.Get("state"))

	srv.Reply(http.MethodPost, room+"/favorite", http.StatusOK, ocstest.OKXML(""), nil)
	srv.Reply(http.MethodDelete, room+"/favorite", http.StatusOK, ocstest.OKXML(""), nil)
	require.NoError(t, conv.AddToFavorites(ctx))
	assert.True(t, conv.IsFavorite)
	require.NoError(t, conv.RemoveFromFavorites(ctx))
	assert.False(t, conv.IsFavorite)

	srv.Reply(http.MethodPost, room+"/notify", http.StatusOK, ocstest.OKXML(""), nil)
	require.NoError(t, conv.SetNotificationLevel(ctx, NotifyMention))
	assert.Equal(t, "2", srv.Last(http.MethodPost, room+"/notify").Form.Get("level"))
	assert.ErrorIs(t, conv.SetNotificationLevel(ctx, NotificationLevel(7)), ErrInvalidArgument)

	srv.Reply(http.MethodPut, room+"/listable", http.StatusOK, ocstest.OKXML(""), nil)
	require.NoError(t, conv.ChangeListingScope(ctx, ListableEveryone))
	assert.Equal(t, "2", srv.Last(http.MethodPut, room+"/listable").Form.Get("scope"))
}

func TestConversation_SetPermissionsForcesCustomBit(t *testing.T) {
	srv, conv := newRoom(t, FeatureConversationV4)
	room := ConversationRoot + "/room/room1"
	srv.Reply(http.MethodPut, room+"/permissions/default", http.StatusOK, ocstest.OKXML(""), nil)
	srv.Reply(http.MethodPut, room+"/attendees/permissions/all", http.StatusOK, ocstest.OKXML(""), nil)
	ctx := context.Background()

	require.NoError(t, conv.SetPermissions(ctx, ScopeDefault, PermStartCall|PermJoinCall))
	assert.Equal(t, "7", srv.Last(http.MethodPut, room+"/permissions/default").Form.Get("permissions"))
	assert.Equal(t, PermCustom|PermStartCall|PermJoinCall, conv.DefaultPermissions)

	require.NoError(t, conv.SetPermissions(ctx, ScopeDefault, PermDefault))
	assert.Equal(t, "0", srv.Last(http.MethodPut, room+"/permissions/default").Form.Get("permissions"))

	require.NoError(t, conv.SetPermissionsForAll(ctx, PermissionAdd, PermPublishAudio))
	req := srv.Last(http.MethodPut, room+"/attendees/permissions/all")
	assert.Equal(t, "add", req.Form.Get("mode"))
	assert.Equal(t, "17", req.Form.Get("permissions"))

	assert.ErrorIs(t, conv.SetPermissions(ctx, ScopeDefault, Permissions(256)), ErrInvalidArgument)
	assert.ErrorIs(t, conv.SetPermissionsForAll(ctx, PermissionMode("toggle"), PermJoinCall), ErrInvalidArgument)
}

func TestConversation_JoinConflict(t *testing.T) {
	srv, conv := newRoom(t, FeatureConversationV4)
	srv.Reply(http.MethodPost, ConversationRoot+"/room/room1/participants/active", http.StatusConflict,
		ocstest.FailureXML(409, "Session already active"), nil)

	err := conv.Join(context.Background(), "", false)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestConversation_Participants(t *testing.T) {
	srv, conv := newRoom(t, FeatureConversationV4)
	path := ConversationRoot + "/room/room1/participants"
	srv.Reply(http.MethodGet, path, http.StatusOK, ocstest.OKXML(ocstest.Elements(
		`<attendeeId>1</attendeeId><actorType>users</actorType><actorId>alice</actorId><displayName>Alice</displayName><participantType>1</participantType><permissions>254</permissions>`,
		`<attendeeId>2</attendeeId><actorType>guests</actorType><actorId>g1</actorId><displayName>Guest</displayName><participantType>4</participantType><permissions>0</permissions>`,
	)), nil)
	srv.Reply(http.MethodPost, ConversationRoot+"/room/room1/moderators", http.StatusOK, ocstest.OKXML(""), nil)
	srv.Reply(http.MethodPut, ConversationRoot+"/room/room1/attendees/permissions", http.StatusOK, ocstest.OKXML(""), nil)
	srv.Reply(http.MethodDelete, ConversationRoot+"/room/room1/attendees", http.StatusOK, ocstest.OKXML(""), nil)
	ctx := context.Background()

	people, err := conv.Participants(ctx, true)
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, "true", srv.Last(http.MethodGet, path).Query.Get("includeStatus"))

	alice, guest := people[0], people[1]
	assert.True(t, alice.IsModerator())
	assert.False(t, guest.IsModerator())
	assert.Same(t, conv, guest.Conversation())

	require.NoError(t, guest.Promote(ctx))
	assert.Equal(t, GuestModerator, guest.ParticipantType)
	assert.Equal(t, "2", srv.Last(http.MethodPost, ConversationRoot+"/room/room1/moderators").Form.Get("attendeeId"))

	require.NoError(t, guest.SetPermissions(ctx, PermissionSet, PermJoinCall))
	req := srv.Last(http.MethodPut, ConversationRoot+"/room/room1/attendees/permissions")
	assert.Equal(t, "5", req.Form.Get("permissions"))
	assert.Equal(t, "set", req.Form.Get("mode"))

	require.NoError(t, guest.Remove(ctx))
	assert.Equal(t, "2", srv.Last(http.MethodDelete, ConversationRoot+"/room/room1/attendees").Form.Get("attendeeId"))

	// Every access refetches.
	_, err = conv.Participants(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls(http.MethodGet, path))
}

func TestConversation_InviteReportsTypeChange(t *testing.T) {
	srv, conv := newRoom(t, FeatureConversationV4)
	srv.Reply(http.MethodPost, ConversationRoot+"/room/room1/participants", http.StatusOK, ocstest.OKXML("<type>2</type>"), nil)

	got, err := conv.Invite(context.Background(), "bob", "")
	require.NoError(t, err)
	assert.Equal(t, Group, got)

	req := srv.Last(http.MethodPost, ConversationRoot+"/room/room1/participants")
	assert.Equal(t, "bob", req.Form.Get("newParticipant"))
	assert.Equal(t, "users", req.Form.Get("source"))
}

func TestConversation_DeletedRoomSurfacesNotFound(t *testing.T) {
	srv, conv := newRoom(t, FeatureConversationV4)
	room := ConversationRoot + "/room/room1"
	srv.Reply(http.MethodDelete, room, http.StatusOK, ocstest.OKXML(""), nil)
	ctx := context.Background()

	require.NoError(t, conv.Delete(ctx))

	srv.Reply(http.MethodPut, room, http.StatusNotFound, ocstest.FailureXML(404, ""), nil)
	assert.ErrorIs(t, conv.Rename(ctx, "again"), ErrNotFound)
	assert.Equal(t, 1, srv.Calls(http.MethodPut, room))
}

func TestConversation_GuestNameAndShareFile(t *testing.T) {
	srv, conv := newRoom(t, FeatureConversationV4)
	srv.Reply(http.MethodPost, ChatRoot+"/guest/room1/name", http.StatusOK, ocstest.OKXML(""), nil)
	srv.Reply(http.MethodPost, SharingRoot+"/shares", http.StatusOK, ocstest.OKXML("<id>9</id>"), nil)
	ctx := context.Background()

	require.NoError(t, conv.SetGuestDisplayName(ctx, "Visitor"))
	assert.Equal(t, "Visitor", srv.Last(http.MethodPost, ChatRoot+"/guest/room1/name").Form.Get("displayName"))

	require.NoError(t, conv.ShareFile(ctx, "/Documents/a.pdf", "ref1", "voice-message"))
	req := srv.Last(http.MethodPost, SharingRoot+"/shares")
	assert.Equal(t, "10", req.Form.Get("shareType"))
	assert.Equal(t, "room1", req.Form.Get("shareWith"))
	assert.Equal(t, "/Documents/a.pdf", req.Form.Get("path"))
	assert.JSONEq(t, `{"messageType":"voice-message"}`, req.Form.Get("talkMetaData"))
}

func TestConversation_CallNotificationsAndMembership(t *testing.T) {
	srv, conv := newRoom(t, allFeatures...)
	ctx := context.Background()
	room := ConversationRoot + "/room/room1"

	srv.Reply(http.MethodPost, room+"/notify-calls", http.StatusOK, ocstest.OKXML(""), nil)
	require.NoError(t, conv.SetCallNotificationLevel(ctx, CallNotifyOff))
	assert.Equal(t, "0", srv.Last(http.MethodPost, room+"/notify-calls").Form.Get("level"))
	assert.Equal(t, CallNotifyOff, conv.NotificationCalls)
	assert.ErrorIs(t, conv.SetCallNotificationLevel(ctx, CallNotificationLevel(5)), ErrInvalidArgument)
	assert.Equal(t, 1, srv.Calls(http.MethodPost, room+"/notify-calls"))

	srv.Reply(http.MethodPut, room+"/password", http.StatusOK, ocstest.OKXML(""), nil)
	require.NoError(t, conv.SetPassword(ctx, "s3cret"))
	assert.Equal(t, "s3cret", srv.Last(http.MethodPut, room+"/password").Form.Get("password"))
	assert.True(t, conv.HasPassword)
	require.NoError(t, conv.SetPassword(ctx, ""))
	assert.False(t, conv.HasPassword)

	srv.Reply(http.MethodDelete, room+"/participants/active", http.StatusOK, ocstest.OKXML(""), nil)
	require.NoError(t, conv.Leave(ctx))
	assert.Equal(t, 1, srv.Calls(http.MethodDelete, room+"/participants/active"))

	srv.Reply(http.MethodDelete, room+"/participants/self", http.StatusOK, ocstest.OKXML(""), nil)
	require.NoError(t, conv.RemoveSelf(ctx))
	assert.Equal(t, 1, srv.Calls(http.MethodDelete, room+"/participants/self"))
}

func TestConversation_CallNotificationsNeedFeature(t *testing.T) {
	srv, conv := newRoom(t, FeatureConversationV4)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := conv.SetCallNotificationLevel(ctx, CallNotifyOn)
		require.ErrorIs(t, err, ErrNotCapable)
		var capErr *CapabilityError
		require.ErrorAs(t, err, &capErr)
		assert.Equal(t, FeatureNotificationCalls, capErr.Feature)
	}
	assert.Zero(t, srv.Calls(http.MethodPost, ConversationRoot+"/room/room1/notify-calls"))
}

func TestParticipant_Demote(t *testing.T) {
	srv, conv := newRoom(t, FeatureConversationV4)
	path := ConversationRoot + "/room/room1/moderators"
	srv.Reply(http.MethodDelete, path, http.StatusOK, ocstest.OKXML(""), nil)
	ctx := context.Background()

	guest, err := newParticipant(map[string]any{"attendeeId": "9", "participantType": "6"}, conv)
	require.NoError(t, err)
	require.Equal(t, GuestModerator, guest.ParticipantType)

	require.NoError(t, guest.Demote(ctx))
	assert.Equal(t, Guest, guest.ParticipantType)
	assert.Equal(t, "9", srv.Last(http.MethodDelete, path).Form.Get("attendeeId"))

	mod, err := newParticipant(map[string]any{"attendeeId": "3", "participantType": "2"}, conv)
	require.NoError(t, err)
	require.NoError(t, mod.Demote(ctx))
	assert.Equal(t, User, mod.ParticipantType)
	assert.Equal(t, 2, srv.Calls(http.MethodDelete, path))
}
