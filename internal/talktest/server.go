// Package talktest provides a fake Talk server for tests of code built on
// pkg/talk.
package talktest

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/talkbridge/internal/ocstest"
	"github.com/capitalize-ai/talkbridge/pkg/logger"
	"github.com/capitalize-ai/talkbridge/pkg/talk"
)

// BotUser is the user the fake server's clients log in as.
const BotUser = "bot"

// AllFeatures is every feature flag the library checks.
var AllFeatures = []string{
	talk.FeatureConversationV4, talk.FeatureChatV2, talk.FeatureFavorites, talk.FeatureListableRooms,
	talk.FeatureReadOnlyRooms, talk.FeatureNotificationLevels, talk.FeatureNotificationCalls,
	talk.FeatureRoomDescription, talk.FeatureClearHistory, talk.FeatureRichObjectSharing,
	talk.FeatureRichObjectDelete, talk.FeatureDeleteMessages, talk.FeatureChatReadMarker,
	talk.FeatureChatUnread, talk.FeatureSilentSend,
}

// Server is an OCS server that advertises Talk features.
type Server struct {
	*ocstest.Server
	t *testing.T
}

// NewServer starts a server advertising features. It is closed when the
// test ends.
func NewServer(t *testing.T, features ...string) *Server {
	t.Helper()
	s := &Server{Server: ocstest.NewServer(t), t: t}
	s.Reply(http.MethodGet, talk.CapabilitiesRoot+"/capabilities", http.StatusOK,
		ocstest.CapabilitiesXML(features...), nil)
	return s
}

// Client returns a library client logged in as BotUser.
func (s *Server) Client() *talk.Client {
	s.t.Helper()
	c, err := talk.New(talk.Config{
		BaseURL: s.URL(),
		Session: talk.NewHTTPSession(talk.HTTPSessionConfig{
			Username:   BotUser,
			Password:   "app-password",
			HTTPClient: s.HTTPClient(),
		}),
		Logger: logger.Nop(),
	})
	require.NoError(s.t, err)
	return c
}

// RoomPath returns the conversation path of token.
func RoomPath(token string) string {
	return talk.ConversationRoot + "/room/" + token
}

// ChatPath returns the chat path of token.
func ChatPath(token string) string {
	return talk.ChatRoot + "/chat/" + token
}
