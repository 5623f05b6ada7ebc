// Package ocstest provides a fake OCS server and builders for the XML
// envelopes Nextcloud answers with. It does not depend on pkg/talk, so the
// library's own tests can use it.
package ocstest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// Request is one request seen by the server.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	Header http.Header
}

// Server answers installed routes with canned responses. Unknown routes
// get an OCS 404.
type Server struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []Request
}

// NewServer starts a server with no routes. It is closed when the test
// ends.
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{t: t, routes: make(map[string]http.HandlerFunc)}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the base URL of the server.
func (s *Server) URL() string {
	return s.srv.URL
}

// HTTPClient returns a client configured for the server.
func (s *Server) HTTPClient() *http.Client {
	return s.srv.Client()
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	form, _ := url.ParseQuery(string(body))

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Form:   form,
		Header: r.Header.Clone(),
	})
	h, ok := s.routes[r.Method+" "+r.URL.Path]
	s.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, FailureXML(http.StatusNotFound, "no route"))
		return
	}
	h(w, r)
}

// Handle installs h for method and path.
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[method+" "+path] = h
}

// Reply installs a canned response.
func (s *Server) Reply(method, path string, status int, body string, header map[string]string) {
	s.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		for k, v := range header {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

// Calls counts requests to method and path.
func (s *Server) Calls(method, path string) int {
	return len(s.Requests(method, path))
}

// Requests returns every request to method and path in arrival order.
func (s *Server) Requests(method, path string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Last returns the latest request to method and path and fails the test
// when there is none.
func (s *Server) Last(method, path string) Request {
	s.t.Helper()
	reqs := s.Requests(method, path)
	if len(reqs) == 0 {
		s.t.Fatalf("no request %s %s", method, path)
	}
	return reqs[len(reqs)-1]
}

// OKXML wraps data in a success envelope.
func OKXML(data string) string {
	return `<?xml version="1.0"?>` +
		`<ocs><meta><status>ok</status><statuscode>200</statuscode><message>OK</message></meta>` +
		`<data>` + data + `</data></ocs>`
}

// FailureXML builds a failure envelope.
func FailureXML(code int, message string) string {
	return fmt.Sprintf(`<?xml version="1.0"?>`+
		`<ocs><meta><status>failure</status><statuscode>%d</statuscode><message>%s</message></meta>`+
		`<data/></ocs>`, code, message)
}

// CapabilitiesXML builds a capability document listing features.
func CapabilitiesXML(features ...string) string {
	return `<?xml version="1.0"?>` +
		`<ocs><meta><status>ok</status><statuscode>100</statuscode><message>OK</message></meta><data>` +
		`<version><major>27</major><string>27.1.3</string></version>` +
		`<capabilities><spreed><features>` + Elements(features...) + `</features>` +
		`<config><chat><max-length>32000</max-length></chat></config></spreed></capabilities>` +
		`</data></ocs>`
}

// RoomXML builds the fields of one room.
func RoomXML(token string, roomType int, name string) string {
	return fmt.Sprintf(`<token>%s</token><type>%d</type><name>%s</name><displayName>%s</displayName>`+
		`<attendeeId>7</attendeeId><participantType>1</participantType><readOnly>0</readOnly>`+
		`<permissions>126</permissions><unreadMessages>0</unreadMessages>`+
		`<lastMessage><id>1</id><message>hi</message></lastMessage>`,
		token, roomType, name, name)
}

// Message describes a message for MessageXML.
type Message struct {
	ID      int
	Token   string
	Actor   string
	Text    string
	Type    string
	Mention string
}

// MessageXML builds the fields of one message. Actor defaults to alice,
// Type to comment and Token to room1. A non-empty Mention adds a user
// mention parameter.
func MessageXML(m Message) string {
	if m.Actor == "" {
		m.Actor = "alice"
	}
	if m.Type == "" {
		m.Type = "comment"
	}
	if m.Token == "" {
		m.Token = "room1"
	}
	params := "<messageParameters/>"
	if m.Mention != "" {
		params = fmt.Sprintf(`<messageParameters><mention-user1><type>user</type><id>%s</id><name>%s</name>`+
			`</mention-user1></messageParameters>`, m.Mention, m.Mention)
	}
	return fmt.Sprintf(`<id>%d</id><token>%s</token><actorType>users</actorType><actorId>%s</actorId>`+
		`<actorDisplayName>%s</actorDisplayName><timestamp>1700000000</timestamp>`+
		`<message>%s</message>%s<messageType>%s</messageType><isReplyable>1</isReplyable>`,
		m.ID, m.Token, m.Actor, strings.ToUpper(m.Actor[:1])+m.Actor[1:], m.Text, params, m.Type)
}

// Elements wraps each item in an element node.
func Elements(items ...string) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString("<element>" + it + "</element>")
	}
	return b.String()
}
