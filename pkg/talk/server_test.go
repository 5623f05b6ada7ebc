package talk

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/talkbridge/internal/ocstest"
	"github.com/capitalize-ai/talkbridge/pkg/logger"
)

// ocsServer is a fake Talk server answering with canned XML envelopes.
type ocsServer struct {
	*ocstest.Server
	t *testing.T
}

func newOCSServer(t *testing.T, features ...string) *ocsServer {
	t.Helper()
	s := &ocsServer{Server: ocstest.NewServer(t), t: t}
	s.Reply(http.MethodGet, CapabilitiesRoot+"/capabilities", http.StatusOK, ocstest.CapabilitiesXML(features...), nil)
	return s
}

func (s *ocsServer) client() *Client {
	s.t.Helper()
	c, err := New(Config{
		BaseURL: s.URL(),
		Session: NewHTTPSession(HTTPSessionConfig{
			Username:   "bot",
			Password:   "app-password",
			HTTPClient: s.HTTPClient(),
		}),
		Logger: logger.Nop(),
	})
	require.NoError(s.t, err)
	return c
}

var allFeatures = []string{
	FeatureConversationV4, FeatureChatV2, FeatureFavorites, FeatureListableRooms,
	FeatureReadOnlyRooms, FeatureNotificationLevels, FeatureNotificationCalls,
	FeatureRoomDescription, FeatureClearHistory, FeatureRichObjectSharing,
	FeatureRichObjectDelete, FeatureDeleteMessages, FeatureChatReadMarker, FeatureChatUnread,
}
