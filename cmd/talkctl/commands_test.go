package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/capitalize-ai/talkbridge/internal/model"
	"github.com/capitalize-ai/talkbridge/internal/ocstest"
	"github.com/capitalize-ai/talkbridge/internal/talktest"
	"github.com/capitalize-ai/talkbridge/pkg/talk"
)

func run(t *testing.T, srv *talktest.Server, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}

	argv := append([]string{"talkctl", "--url", srv.URL(), "--user", talktest.BotUser, "--password", "pw"}, args...)
	err := app.RunContext(context.Background(), argv)
	return out.String(), err
}

func TestRoomsList_JSON(t *testing.T) {
	srv := talktest.NewServer(t, talktest.AllFeatures...)
	srv.Reply(http.MethodGet, talk.ConversationRoot+"/room", http.StatusOK,
		ocstest.OKXML(ocstest.Elements(ocstest.RoomXML("abc", 2, "Team"), ocstest.RoomXML("def", 3, "Public"))), nil)

	out, err := run(t, srv, "--json", "rooms", "list")
	require.NoError(t, err)

	var rooms []model.Room
	require.NoError(t, json.Unmarshal([]byte(out), &rooms))
	require.Len(t, rooms, 2)
	assert.Equal(t, "abc", rooms[0].Token)
	assert.Equal(t, "Public", rooms[1].DisplayName)
}

func TestRoomsGet_Table(t *testing.T) {
	srv := talktest.NewServer(t, talktest.AllFeatures...)
	srv.Reply(http.MethodGet, talktest.RoomPath("abc"), http.StatusOK,
		ocstest.OKXML(ocstest.RoomXML("abc", 2, "Team")), nil)

	out, err := run(t, srv, "rooms", "get", "abc")
	require.NoError(t, err)
	assert.Contains(t, out, "TOKEN")
	assert.Contains(t, out, "Team")
}

func TestSend(t *testing.T) {
	srv := talktest.NewServer(t, talktest.AllFeatures...)
	srv.Reply(http.MethodGet, talktest.RoomPath("abc"), http.StatusOK,
		ocstest.OKXML(ocstest.RoomXML("abc", 2, "Team")), nil)
	srv.Reply(http.MethodPost, talktest.ChatPath("abc"), http.StatusCreated,
		ocstest.OKXML(ocstest.MessageXML(ocstest.Message{ID: 42, Token: "abc", Actor: talktest.BotUser, Text: "hello there"})), nil)

	out, err := run(t, srv, "send", "--reply-to", "7", "abc", "hello", "there")
	require.NoError(t, err)
	assert.Contains(t, out, "[42]")

	req := srv.Last(http.MethodPost, talktest.ChatPath("abc"))
	assert.Equal(t, "hello there", req.Form.Get("message"))
	assert.Equal(t, "7", req.Form.Get("replyTo"))
}

func TestSend_MissingMessage(t *testing.T) {
	srv := talktest.NewServer(t, talktest.AllFeatures...)

	_, err := run(t, srv, "send", "abc")
	require.Error(t, err)
	assert.Zero(t, srv.Calls(http.MethodPost, talktest.ChatPath("abc")))
}

func TestShare_GeoLocation(t *testing.T) {
	srv := talktest.NewServer(t, talktest.AllFeatures...)
	srv.Reply(http.MethodGet, talktest.RoomPath("abc"), http.StatusOK,
		ocstest.OKXML(ocstest.RoomXML("abc", 2, "Team")), nil)
	srv.Reply(http.MethodPost, talktest.ChatPath("abc")+"/share", http.StatusCreated, ocstest.OKXML(""), nil)

	_, err := run(t, srv, "share", "abc", "geo-location", "geo:52.5,13.4", "Office")
	require.NoError(t, err)

	req := srv.Last(http.MethodPost, talktest.ChatPath("abc")+"/share")
	assert.Equal(t, "geo-location", req.Form.Get("objectType"))
	assert.Equal(t, "geo:52.5,13.4", req.Form.Get("objectId"))
	assert.Contains(t, req.Form.Get("metaData"), `"latitude":"52.5"`)
}

func TestShare_UnknownType(t *testing.T) {
	srv := talktest.NewServer(t, talktest.AllFeatures...)

	_, err := run(t, srv, "share", "abc", "hologram", "1")
	require.Error(t, err)
	assert.Zero(t, srv.Calls(http.MethodGet, talktest.RoomPath("abc")))
}

func TestRoomsGet_NotFound(t *testing.T) {
	srv := talktest.NewServer(t, talktest.AllFeatures...)

	_, err := run(t, srv, "rooms", "get", "nope")
	require.ErrorIs(t, err, talk.ErrNotFound)
}
