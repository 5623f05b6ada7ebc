package talk

import (
	"context"
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/talkbridge/internal/ocstest"
	"github.com/capitalize-ai/talkbridge/pkg/talk/richobject"
)

const chatPath = ChatRoot + "/chat/room1"

func TestReceive_UpdatesCursorHeaders(t *testing.T) {
	srv, conv := newRoom(t, allFeatures...)
	chat := conv.Chat()
	ctx := context.Background()

	_, ok := chat.LastGiven()
	assert.False(t, ok)

	srv.Reply(http.MethodGet, chatPath, http.StatusOK,
		ocstest.OKXML(ocstest.Elements(ocstest.MessageXML(ocstest.Message{ID: 10, Text: "first", Type: "comment"}))),
		map[string]string{HeaderLastGiven: "10", HeaderLastCommonRead: "8"})
	msgs, err := chat.Receive(ctx, ReceiveOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	given, ok := chat.LastGiven()
	require.True(t, ok)
	assert.Equal(t, "10", given)

	srv.Reply(http.MethodGet, chatPath, http.StatusOK,
		ocstest.OKXML(ocstest.Elements(ocstest.MessageXML(ocstest.Message{ID: 11, Text: "a", Type: "comment"}), ocstest.MessageXML(ocstest.Message{ID: 12, Text: "b", Type: "comment"}))),
		map[string]string{HeaderLastGiven: "12", HeaderLastCommonRead: "9"})
	msgs, err = chat.Receive(ctx, ReceiveOptions{LookIntoFuture: true, LastKnownMessageID: 10})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	given, ok = chat.LastGiven()
	require.True(t, ok)
	assert.Equal(t, "12", given)
	id, ok := chat.LastGivenID()
	require.True(t, ok)
	assert.Equal(t, 12, id)
	read, ok := chat.LastCommonRead()
	require.True(t, ok)
	assert.Equal(t, "9", read)

	req := srv.Last(http.MethodGet, chatPath)
	assert.Equal(t, "1", req.Query.Get("lookIntoFuture"))
	assert.Equal(t, "10", req.Query.Get("lastKnownMessageId"))
	assert.Equal(t, "30", req.Query.Get("timeout"))
	assert.Equal(t, "100", req.Query.Get("limit"))
	assert.Equal(t, "1", req.Query.Get("setReadMarker"))
}

func TestReceivePage_ReturnsHeaders(t *testing.T) {
	srv, conv := newRoom(t, allFeatures...)
	srv.Reply(http.MethodGet, chatPath, http.StatusOK,
		ocstest.OKXML(ocstest.Elements(ocstest.MessageXML(ocstest.Message{ID: 7, Text: "x", Type: "comment"}))),
		map[string]string{HeaderLastGiven: "7"})

	page, err := conv.Chat().ReceivePage(context.Background(), ReceiveOptions{})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, 7, page.LastGiven)
	assert.Zero(t, page.LastCommonRead)
}

func TestReceive_ClampsLimits(t *testing.T) {
	srv, conv := newRoom(t, allFeatures...)
	srv.Reply(http.MethodGet, chatPath, http.StatusOK, ocstest.OKXML(""), nil)

	_, err := conv.Receive(context.Background(), ReceiveOptions{
		LookIntoFuture: true,
		Limit:          1000,
		Timeout:        5 * time.Minute,
		KeepUnread:     true,
	})
	require.NoError(t, err)

	req := srv.Last(http.MethodGet, chatPath)
	assert.Equal(t, "200", req.Query.Get("limit"))
	assert.Equal(t, "60", req.Query.Get("timeout"))
	assert.Equal(t, "0", req.Query.Get("setReadMarker"))
}

func TestReceive_PollTimeout(t *testing.T) {
	srv, conv := newRoom(t, allFeatures...)
	srv.Reply(http.MethodGet, chatPath, http.StatusNotModified, "", nil)

	msgs, err := conv.Receive(context.Background(), ReceiveOptions{LookIntoFuture: true, LastKnownMessageID: 5})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestReceive_RequiresChatV2(t *testing.T) {
	srv, conv := newRoom(t, FeatureConversationV4)

	_, err := conv.Receive(context.Background(), ReceiveOptions{})
	assert.ErrorIs(t, err, ErrNotCapable)
	assert.Zero(t, srv.Calls(http.MethodGet, chatPath))
}

func TestSend(t *testing.T) {
	srv, conv := newRoom(t, allFeatures...)
	srv.Reply(http.MethodPost, chatPath, http.StatusCreated, ocstest.OKXML(ocstest.MessageXML(ocstest.Message{ID: 20, Text: "hello", Type: "comment"})),
		map[string]string{HeaderLastCommonRead: "19"})

	msg, err := conv.Send(context.Background(), "hello", SendOptions{ReplyTo: 3})
	require.NoError(t, err)
	assert.Equal(t, 20, msg.ID)
	assert.Equal(t, "hello", msg.Message)
	assert.Equal(t, MessageComment, msg.MessageType)
	assert.Same(t, conv.Chat(), msg.Chat())

	req := srv.Last(http.MethodPost, chatPath)
	assert.Equal(t, "hello", req.Form.Get("message"))
	assert.Equal(t, "3", req.Form.Get("replyTo"))
	ref := req.Form.Get("referenceId")
	assert.Len(t, ref, 64)
	_, err = hex.DecodeString(ref)
	assert.NoError(t, err)

	read, ok := conv.Chat().LastCommonRead()
	require.True(t, ok)
	assert.Equal(t, "19", read)
}

func TestSend_KeepsReceiveCursor(t *testing.T) {
	srv, conv := newRoom(t, allFeatures...)
	chat := conv.Chat()
	ctx := context.Background()

	srv.Reply(http.MethodGet, chatPath, http.StatusOK,
		ocstest.OKXML(ocstest.Elements(ocstest.MessageXML(ocstest.Message{ID: 10, Text: "first", Type: "comment"}))),
		map[string]string{HeaderLastGiven: "10", HeaderLastCommonRead: "8"})
	_, err := chat.Receive(ctx, ReceiveOptions{})
	require.NoError(t, err)

	srv.Reply(http.MethodPost, chatPath, http.StatusCreated, ocstest.OKXML(ocstest.MessageXML(ocstest.Message{ID: 11, Text: "hi", Type: "comment"})),
		map[string]string{HeaderLastCommonRead: "11"})
	_, err = chat.Send(ctx, "hi", SendOptions{})
	require.NoError(t, err)

	given, ok := chat.LastGiven()
	require.True(t, ok)
	assert.Equal(t, "10", given)
	read, ok := chat.LastCommonRead()
	require.True(t, ok)
	assert.Equal(t, "11", read)

	srv.Reply(http.MethodDelete, chatPath, http.StatusOK, ocstest.OKXML(""), nil)
	require.NoError(t, chat.ClearHistory(ctx))

	given, ok = chat.LastGiven()
	require.True(t, ok)
	assert.Equal(t, "10", given)
	_, ok = chat.LastCommonRead()
	assert.False(t, ok)
}

func TestSend_SilentNeedsFeature(t *testing.T) {
	srv, conv := newRoom(t, FeatureConversationV4, FeatureChatV2)

	_, err := conv.Send(context.Background(), "psst", SendOptions{Silent: true})
	assert.ErrorIs(t, err, ErrNotCapable)
	assert.Zero(t, srv.Calls(http.MethodPost, chatPath))
}

func TestShareRichObject(t *testing.T) {
	srv, conv := newRoom(t, allFeatures...)
	srv.Reply(http.MethodPost, chatPath+"/share", http.StatusCreated, ocstest.OKXML(""), nil)

	obj := richobject.NewGeoLocation("Spot", "1.23", "4.56")
	msg, err := conv.ShareRichObject(context.Background(), obj, SendOptions{ReferenceID: "ref"})
	require.NoError(t, err)
	assert.Nil(t, msg)

	req := srv.Last(http.MethodPost, chatPath+"/share")
	assert.Equal(t, "geo-location", req.Form.Get("objectType"))
	assert.Equal(t, "geo:1.23,4.56", req.Form.Get("objectId"))
	assert.Equal(t, "ref", req.Form.Get("referenceId"))
	assert.JSONEq(t, `{"id":"geo:1.23,4.56","name":"Spot","latitude":"1.23","longitude":"4.56"}`, req.Form.Get("metaData"))
}

func TestShareRichObject_NeedsFeature(t *testing.T) {
	srv, conv := newRoom(t, FeatureConversationV4, FeatureChatV2)

	_, err := conv.ShareRichObject(context.Background(), richobject.User{Base: richobject.Base{ID: "bob", Name: "Bob"}}, SendOptions{})
	assert.ErrorIs(t, err, ErrNotCapable)
	assert.Zero(t, srv.Calls(http.MethodPost, chatPath+"/share"))
}

func TestClearHistory(t *testing.T) {
	srv, conv := newRoom(t, FeatureConversationV4, FeatureChatV2)
	ctx := context.Background()

	assert.ErrorIs(t, conv.ClearHistory(ctx), ErrNotCapable)
	assert.Zero(t, srv.Calls(http.MethodDelete, chatPath))

	srv2, conv2 := newRoom(t, allFeatures...)
	srv2.Reply(http.MethodDelete, chatPath, http.StatusOK, ocstest.OKXML(ocstest.MessageXML(ocstest.Message{ID: 30, Text: "You cleared the history", Type: "system"})), nil)
	require.NoError(t, conv2.ClearHistory(ctx))
	assert.Equal(t, 1, srv2.Calls(http.MethodDelete, chatPath))
}

func TestReadMarker(t *testing.T) {
	srv, conv := newRoom(t, allFeatures...)
	srv.Reply(http.MethodPost, chatPath+"/read", http.StatusOK, ocstest.OKXML(""), map[string]string{HeaderLastCommonRead: "41"})
	srv.Reply(http.MethodDelete, chatPath+"/read", http.StatusOK, ocstest.OKXML(""), nil)
	srv.Reply(http.MethodGet, chatPath, http.StatusOK, ocstest.OKXML(ocstest.Elements(ocstest.MessageXML(ocstest.Message{ID: 42, Text: "x", Type: "comment"}))), nil)
	ctx := context.Background()

	msgs, err := conv.Receive(ctx, ReceiveOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	require.NoError(t, msgs[0].MarkRead(ctx))
	assert.Equal(t, "42", srv.Last(http.MethodPost, chatPath+"/read").Form.Get("lastReadMessage"))
	read, ok := conv.Chat().LastCommonRead()
	require.True(t, ok)
	assert.Equal(t, "41", read)

	require.NoError(t, msgs[0].MarkUnread(ctx))
	assert.Equal(t, 1, srv.Calls(http.MethodDelete, chatPath+"/read"))
}

func TestMentions(t *testing.T) {
	srv, conv := newRoom(t, allFeatures...)
	srv.Reply(http.MethodGet, chatPath+"/mentions", http.StatusOK, ocstest.OKXML(ocstest.Elements(
		`<id>alice</id><label>Alice</label><source>users</source>`,
	)), nil)

	got, err := conv.Mentions(context.Background(), "ali", 5, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].ID)
	assert.Equal(t, "Alice", got[0].Label)
	assert.Equal(t, "5", srv.Last(http.MethodGet, chatPath+"/mentions").Query.Get("limit"))
}

func TestMessageDelete_RichObjectNeedsFeature(t *testing.T) {
	features := []string{FeatureConversationV4, FeatureChatV2, FeatureDeleteMessages}
	srv, conv := newRoom(t, features...)
	srv.Reply(http.MethodGet, chatPath, http.StatusOK, ocstest.OKXML(ocstest.Elements(ocstest.MessageXML(ocstest.Message{ID: 42, Text: RichObjectPlaceholder, Type: "comment"}))), nil)
	ctx := context.Background()

	msgs, err := conv.Receive(ctx, ReceiveOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.True(t, msgs[0].IsRichObject())

	_, err = msgs[0].Delete(ctx)
	var capErr *CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, FeatureRichObjectDelete, capErr.Feature)
	assert.Zero(t, srv.Calls(http.MethodDelete, chatPath+"/42"))
	assert.False(t, msgs[0].Deleted())
}

func TestMessageDelete(t *testing.T) {
	srv, conv := newRoom(t, allFeatures...)
	srv.Reply(http.MethodGet, chatPath, http.StatusOK, ocstest.OKXML(ocstest.Elements(ocstest.MessageXML(ocstest.Message{ID: 42, Text: "oops", Type: "comment"}))), nil)
	srv.Reply(http.MethodDelete, chatPath+"/42", http.StatusOK,
		ocstest.OKXML(ocstest.MessageXML(ocstest.Message{ID: 43, Text: "You deleted a message", Type: "system"})+
			"<parent>"+ocstest.MessageXML(ocstest.Message{ID: 42, Text: "Message deleted by you", Type: "comment_deleted"})+"</parent>"),
		map[string]string{HeaderLastGiven: "43"})
	ctx := context.Background()

	msgs, err := conv.Receive(ctx, ReceiveOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	notice, err := msgs[0].Delete(ctx)
	require.NoError(t, err)
	assert.True(t, msgs[0].Deleted())
	assert.Equal(t, MessageSystem, notice.MessageType)

	parent, ok := notice.Parent()
	require.True(t, ok)
	assert.Equal(t, 42, parent.ID)
	assert.True(t, parent.Deleted())

	given, _ := conv.Chat().LastGiven()
	assert.Equal(t, "43", given)
}

func TestMessage_Mentions(t *testing.T) {
	m := &Message{MessageParameters: map[string]any{
		"mention-user1": map[string]any{"type": "user", "id": "bot", "name": "Bot"},
		"file":          map[string]any{"type": "file", "id": "bot"},
	}}
	assert.True(t, m.Mentions("bot"))
	assert.False(t, m.Mentions("alice"))
}
