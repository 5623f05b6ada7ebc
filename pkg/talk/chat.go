package talk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/talkbridge/pkg/talk/richobject"
)

// Receive limits enforced by the server.
const (
	DefaultReceiveLimit   = 100
	MaxReceiveLimit       = 200
	DefaultReceiveTimeout = 30 * time.Second
	MaxReceiveTimeout     = 60 * time.Second
)

// Chat is the message stream of one room. It remembers the cursor headers
// of the last call that returned them.
type Chat struct {
	client *Client
	conv   *Conversation
	token  string

	mu             sync.Mutex
	lastGiven      *string
	lastCommonRead *string
}

func newChat(client *Client, conv *Conversation) *Chat {
	return &Chat{client: client, conv: conv, token: conv.Token}
}

// Token returns the room token.
func (ch *Chat) Token() string {
	return ch.token
}

// Conversation returns the owning room.
func (ch *Chat) Conversation() *Conversation {
	return ch.conv
}

// ReceiveOptions selects history or polling mode.
type ReceiveOptions struct {
	// LookIntoFuture waits for messages newer than LastKnownMessageID
	// instead of returning older ones.
	LookIntoFuture bool
	// Limit defaults to 100 and is capped at 200.
	Limit int
	// LastKnownMessageID is the paging cursor; zero starts at the newest
	// (history) or the read marker (polling).
	LastKnownMessageID int
	// LastCommonReadID lets a poll return early when the common read
	// marker moved.
	LastCommonReadID int
	// Timeout bounds a poll; defaults to 30s and is capped at 60s.
	Timeout time.Duration
	// KeepUnread leaves the read marker where it is.
	KeepUnread bool
	// IncludeLastKnown also returns the message at the cursor.
	IncludeLastKnown bool
}

// Page is one Receive result together with the cursor headers returned
// with it. Zero means the header was absent.
type Page struct {
	Messages       []*Message
	LastGiven      int
	LastCommonRead int
}

// Receive fetches one page of messages. A poll that times out returns no
// messages and no error.
func (ch *Chat) Receive(ctx context.Context, opts ReceiveOptions) ([]*Message, error) {
	page, err := ch.ReceivePage(ctx, opts)
	if err != nil {
		return nil, err
	}
	return page.Messages, nil
}

// ReceivePage is Receive returning the cursor headers of this call. Use it
// when several goroutines share the Chat.
func (ch *Chat) ReceivePage(ctx context.Context, opts ReceiveOptions) (*Page, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultReceiveLimit
	}
	if limit > MaxReceiveLimit {
		limit = MaxReceiveLimit
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultReceiveTimeout
	}
	if timeout > MaxReceiveTimeout {
		timeout = MaxReceiveTimeout
	}

	params := url.Values{}
	params.Set("lookIntoFuture", boolInt(opts.LookIntoFuture))
	params.Set("limit", strconv.Itoa(limit))
	if opts.LastKnownMessageID > 0 {
		params.Set("lastKnownMessageId", strconv.Itoa(opts.LastKnownMessageID))
	}
	if opts.LastCommonReadID > 0 {
		params.Set("lastCommonReadId", strconv.Itoa(opts.LastCommonReadID))
	}
	if opts.LookIntoFuture {
		params.Set("timeout", strconv.Itoa(int(timeout/time.Second)))
	}
	params.Set("setReadMarker", boolInt(!opts.KeepUnread))
	params.Set("includeLastKnown", boolInt(opts.IncludeLastKnown))

	res, err := ch.query(ctx, Call{
		Op:             "chat.receive",
		Method:         http.MethodGet,
		Params:         params,
		CaptureHeaders: []string{HeaderLastGiven, HeaderLastCommonRead},
	})
	if err != nil {
		return nil, err
	}
	msgs, err := ch.messages(res)
	if err != nil {
		return nil, err
	}
	return &Page{
		Messages:       msgs,
		LastGiven:      headerInt(res, HeaderLastGiven),
		LastCommonRead: headerInt(res, HeaderLastCommonRead),
	}, nil
}

// SendOptions tunes Send and ShareRichObject.
type SendOptions struct {
	// ReplyTo is the id of the parent message.
	ReplyTo int
	// ActorDisplayName names a guest sender.
	ActorDisplayName string
	// ReferenceID deduplicates retries. One is generated when empty.
	ReferenceID string
	// Silent sends without triggering notifications.
	Silent bool
}

// Send posts a text message and returns it as stored by the server.
func (ch *Chat) Send(ctx context.Context, text string, opts SendOptions) (*Message, error) {
	if opts.Silent {
		if err := ch.client.require(ctx, FeatureSilentSend); err != nil {
			return nil, err
		}
	}

	params := url.Values{}
	params.Set("message", text)
	params.Set("referenceId", referenceID(opts.ReferenceID))
	if opts.ActorDisplayName != "" {
		params.Set("actorDisplayName", opts.ActorDisplayName)
	}
	if opts.ReplyTo > 0 {
		params.Set("replyTo", strconv.Itoa(opts.ReplyTo))
	}
	if opts.Silent {
		params.Set("silent", "true")
	}

	res, err := ch.call(ctx, "chat.send", http.MethodPost, "", params)
	if err != nil {
		return nil, err
	}
	return ch.single(res)
}

// ShareRichObject posts a rich object. The returned message is nil when
// the server does not echo it.
func (ch *Chat) ShareRichObject(ctx context.Context, obj richobject.Object, opts SendOptions) (*Message, error) {
	if err := ch.client.require(ctx, FeatureRichObjectSharing); err != nil {
		return nil, err
	}
	meta, err := richobject.EncodeMetadata(obj)
	if err != nil {
		return nil, invalidArgument("rich object metadata: %v", err)
	}

	params := url.Values{}
	params.Set("objectType", obj.Type())
	params.Set("objectId", obj.ObjectID())
	params.Set("metaData", meta)
	params.Set("referenceId", referenceID(opts.ReferenceID))
	if opts.ActorDisplayName != "" {
		params.Set("actorDisplayName", opts.ActorDisplayName)
	}

	res, err := ch.call(ctx, "chat.share", http.MethodPost, "/share", params)
	if err != nil {
		return nil, err
	}
	if isEmpty(res.Data) {
		return nil, nil
	}
	return ch.single(res)
}

// ClearHistory deletes every message in the room.
func (ch *Chat) ClearHistory(ctx context.Context) error {
	if err := ch.client.require(ctx, FeatureClearHistory); err != nil {
		return err
	}
	_, err := ch.call(ctx, "chat.clear", http.MethodDelete, "", nil)
	return err
}

// SetReadMarker moves the read marker to lastRead.
func (ch *Chat) SetReadMarker(ctx context.Context, lastRead int) error {
	if err := ch.client.require(ctx, FeatureChatReadMarker); err != nil {
		return err
	}
	params := url.Values{"lastReadMessage": {strconv.Itoa(lastRead)}}
	_, err := ch.call(ctx, "chat.read", http.MethodPost, "/read", params)
	return err
}

// MarkUnread moves the read marker back to before the last message.
func (ch *Chat) MarkUnread(ctx context.Context) error {
	if err := ch.client.require(ctx, FeatureChatUnread); err != nil {
		return err
	}
	_, err := ch.call(ctx, "chat.unread", http.MethodDelete, "/read", nil)
	return err
}

// Suggestion is one mention autocomplete result.
type Suggestion struct {
	ID            string         `mapstructure:"id"`
	Label         string         `mapstructure:"label"`
	Source        string         `mapstructure:"source"`
	MentionID     string         `mapstructure:"mentionId"`
	Status        string         `mapstructure:"status"`
	StatusIcon    string         `mapstructure:"statusIcon"`
	StatusMessage string         `mapstructure:"statusMessage"`
	Extra         map[string]any `mapstructure:",remain"`
}

// Mentions suggests actors matching search.
func (ch *Chat) Mentions(ctx context.Context, search string, limit int, includeStatus bool) ([]Suggestion, error) {
	if limit <= 0 {
		limit = 20
	}
	params := url.Values{
		"search":        {search},
		"limit":         {strconv.Itoa(limit)},
		"includeStatus": {strconv.FormatBool(includeStatus)},
	}
	res, err := ch.query(ctx, Call{
		Op:     "chat.mentions",
		Method: http.MethodGet,
		Path:   "/mentions",
		Params: params,
	})
	if err != nil {
		return nil, err
	}
	elements, err := res.Elements()
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion, 0, len(elements))
	for _, el := range elements {
		var s Suggestion
		if err := decodeInto(el, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// LastGiven returns the X-Chat-Last-Given value of the last call that
// requested it.
func (ch *Chat) LastGiven() (string, bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return deref(ch.lastGiven)
}

// LastGivenID is LastGiven parsed as a message id.
func (ch *Chat) LastGivenID() (int, bool) {
	v, ok := ch.LastGiven()
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return id, true
}

// LastCommonRead returns the X-Chat-Last-Common-Read value of the last
// call that requested it.
func (ch *Chat) LastCommonRead() (string, bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return deref(ch.lastCommonRead)
}

func (ch *Chat) deleteMessage(ctx context.Context, id int) (*Message, error) {
	res, err := ch.call(ctx, "chat.delete", http.MethodDelete, "/"+strconv.Itoa(id), nil)
	if err != nil {
		return nil, err
	}
	if isEmpty(res.Data) {
		return nil, nil
	}
	return ch.single(res)
}

// call issues a chat call that captures X-Chat-Last-Common-Read. Only
// receive calls carry X-Chat-Last-Given.
func (ch *Chat) call(ctx context.Context, op, method, sub string, params url.Values) (*Result, error) {
	return ch.query(ctx, Call{
		Op:             op,
		Method:         method,
		Path:           sub,
		Params:         params,
		CaptureHeaders: []string{HeaderLastCommonRead},
	})
}

func (ch *Chat) query(ctx context.Context, call Call) (*Result, error) {
	if err := ch.client.require(ctx, FeatureChatV2); err != nil {
		return nil, err
	}
	call.Root = ChatRoot
	call.Path = "/chat/" + url.PathEscape(ch.token) + call.Path

	res, err := ch.client.Query(ctx, call)
	if err != nil {
		return nil, err
	}
	// Requested headers overwrite the cache, absent ones with nil. Headers
	// the call did not ask for keep their previous value.
	ch.mu.Lock()
	for _, name := range call.CaptureHeaders {
		v := res.Headers[http.CanonicalHeaderKey(name)]
		switch http.CanonicalHeaderKey(name) {
		case HeaderLastGiven:
			ch.lastGiven = v
		case HeaderLastCommonRead:
			ch.lastCommonRead = v
		}
	}
	ch.mu.Unlock()
	return res, nil
}

func (ch *Chat) messages(res *Result) ([]*Message, error) {
	elements, err := res.Elements()
	if err != nil {
		return nil, err
	}
	out := make([]*Message, 0, len(elements))
	for _, el := range elements {
		m, err := newMessage(el, ch)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (ch *Chat) single(res *Result) (*Message, error) {
	data, err := res.Object()
	if err != nil {
		return nil, err
	}
	return newMessage(data, ch)
}

// referenceID returns ref or a fresh random 64-character hex id.
func referenceID(ref string) string {
	if ref != "" {
		return ref
	}
	sum := sha256.Sum256([]byte(uuid.NewString()))
	return hex.EncodeToString(sum[:])
}

func headerInt(res *Result, name string) int {
	v, ok := res.Header(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func deref(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	return *v, true
}
