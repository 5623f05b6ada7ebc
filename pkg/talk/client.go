// Package talk is a client for the Nextcloud Talk OCS API.
//
// A Client wraps an authenticated Session and decodes the XML response
// envelope of every call. Server features are discovered once per Client
// and gate the operations that depend on them: when a feature is missing the
// operation fails with ErrNotCapable before anything is sent.
//
//	sess := talk.NewHTTPSession(talk.HTTPSessionConfig{Username: "bot", Password: appPassword})
//	client, err := talk.New(talk.Config{BaseURL: "https://cloud.example.com", Session: sess})
//	if err != nil {
//	    return err
//	}
//	rooms, err := client.Conversations(ctx)
//	...
package talk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/talkbridge/pkg/logger"
	"github.com/capitalize-ai/talkbridge/pkg/metrics"
)

// API roots relative to the server base URL.
const (
	CapabilitiesRoot = "/ocs/v1.php/cloud"
	ConversationRoot = "/ocs/v2.php/apps/spreed/api/v4"
	ChatRoot         = "/ocs/v2.php/apps/spreed/api/v1"
	SharingRoot      = "/ocs/v2.php/apps/files_sharing/api/v1"
)

// Features the client gates on.
const (
	FeatureConversationV4     = "conversation-v4"
	FeatureChatV2             = "chat-v2"
	FeatureFavorites          = "favorites"
	FeatureListableRooms      = "listable-rooms"
	FeatureReadOnlyRooms      = "read-only-rooms"
	FeatureNotificationLevels = "notification-levels"
	FeatureNotificationCalls  = "notification-calls"
	FeatureRoomDescription    = "room-description"
	FeatureClearHistory       = "clear-history"
	FeatureRichObjectSharing  = "rich-object-sharing"
	FeatureRichObjectDelete   = "rich-object-delete"
	FeatureDeleteMessages     = "delete-messages"
	FeatureChatReadMarker     = "chat-read-marker"
	FeatureChatUnread         = "chat-unread"
	FeatureSilentSend         = "silent-send"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the server root, e.g. https://cloud.example.com.
	BaseURL string
	// Session performs the HTTP exchanges. Required.
	Session Session
	// Decoder parses response bodies. Defaults to XMLDecoder.
	Decoder Decoder
	// Logger defaults to the process-global logger.
	Logger *logger.Logger
}

// Client is the per-connection context: session, base URL and the
// capability cache.
type Client struct {
	baseURL string
	session Session
	decoder Decoder
	logger  *logger.Logger
	tracer  trace.Tracer

	capMu        sync.Mutex
	populated    bool
	capabilities []string
	serverConfig map[string]any
	version      string
}

// New creates a Client. Nothing is fetched until the first call.
func New(cfg Config) (*Client, error) {
	if cfg.Session == nil {
		return nil, invalidArgument("session is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, invalidArgument("base URL %q must be absolute", cfg.BaseURL)
	}

	dec := cfg.Decoder
	if dec == nil {
		dec = XMLDecoder{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Global()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		session: cfg.Session,
		decoder: dec,
		logger:  log.Named("talk"),
		tracer:  otel.Tracer("github.com/capitalize-ai/talkbridge/pkg/talk"),
	}, nil
}

// BaseURL returns the server root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Capabilities returns the feature flags advertised by the server.
func (c *Client) Capabilities(ctx context.Context) ([]string, error) {
	if err := c.populate(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(c.capabilities), nil
}

// ServerConfig returns the Talk configuration block of the capability
// response.
func (c *Client) ServerConfig(ctx context.Context) (map[string]any, error) {
	if err := c.populate(ctx); err != nil {
		return nil, err
	}
	return c.serverConfig, nil
}

// ServerVersion returns the server version string.
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	if err := c.populate(ctx); err != nil {
		return "", err
	}
	return c.version, nil
}

// HasCapability reports whether the server advertises feature.
func (c *Client) HasCapability(ctx context.Context, feature string) (bool, error) {
	if err := c.populate(ctx); err != nil {
		return false, err
	}
	return slices.Contains(c.capabilities, feature), nil
}

// require fails with a *CapabilityError when feature is not advertised.
func (c *Client) require(ctx context.Context, feature string) error {
	ok, err := c.HasCapability(ctx, feature)
	if err != nil {
		return err
	}
	if !ok {
		metrics.CapabilityDenialsTotal.WithLabelValues(feature).Inc()
		c.logger.Debug("operation refused", zap.String("feature", feature))
		return &CapabilityError{Feature: feature}
	}
	return nil
}

// populate fetches capabilities, config and version together, once.
// A failed fetch leaves the cache empty so a later call can retry.
func (c *Client) populate(ctx context.Context) error {
	c.capMu.Lock()
	defer c.capMu.Unlock()

	if c.populated {
		return nil
	}

	res, err := c.Query(ctx, Call{
		Op:     "capabilities",
		Method: http.MethodGet,
		Root:   CapabilitiesRoot,
		Path:   "/capabilities",
	})
	if err != nil {
		metrics.CapabilityFetchesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("capability discovery: %w", err)
	}

	caps, cfg, version, err := parseCapabilities(res.Data)
	if err != nil {
		metrics.CapabilityFetchesTotal.WithLabelValues("malformed").Inc()
		return fmt.Errorf("capability discovery: %w", err)
	}

	c.capabilities = caps
	c.serverConfig = cfg
	c.version = version
	c.populated = true
	metrics.CapabilityFetchesTotal.WithLabelValues("ok").Inc()

	c.logger.Info("capabilities discovered",
		zap.String("server_version", version),
		zap.Int("features", len(caps)),
	)
	return nil
}

func parseCapabilities(data any) ([]string, map[string]any, string, error) {
	root, ok := asMap(data)
	if !ok {
		return nil, nil, "", &StructureError{Path: "data"}
	}

	features, ok := lookup(root, "capabilities.spreed.features")
	if !ok {
		return nil, nil, "", &StructureError{Path: "capabilities.spreed.features.element"}
	}
	if fm, ok := asMap(features); !ok || fm["element"] == nil {
		return nil, nil, "", &StructureError{Path: "capabilities.spreed.features.element"}
	}
	caps, err := Strings(features)
	if err != nil {
		return nil, nil, "", err
	}

	rawCfg, ok := lookup(root, "capabilities.spreed.config")
	if !ok {
		return nil, nil, "", &StructureError{Path: "capabilities.spreed.config"}
	}
	cfg, ok := asMap(rawCfg)
	if !ok {
		if !isEmpty(rawCfg) {
			return nil, nil, "", &StructureError{Path: "capabilities.spreed.config", Reason: fmt.Sprintf("unexpected %T", rawCfg)}
		}
		cfg = map[string]any{}
	}

	rawVersion, ok := lookup(root, "version.string")
	if !ok {
		return nil, nil, "", &StructureError{Path: "version.string"}
	}

	return caps, cfg, scalarString(rawVersion), nil
}

// Conversations returns the conversation API. The server must support
// conversation-v4.
func (c *Client) Conversations(ctx context.Context) (*ConversationAPI, error) {
	if err := c.require(ctx, FeatureConversationV4); err != nil {
		return nil, err
	}
	return &ConversationAPI{client: c}, nil
}
