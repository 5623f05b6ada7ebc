// Package richobject describes the typed references that can be shared
// into a chat: files, users, locations, calendar events and so on.
//
// Every variant reports its object type and the metadata the server expects
// for it. Most variants only carry an id and a name:
//
//	obj := richobject.File{Base: richobject.Base{ID: "1234", Name: "report.pdf"}}
//	loc := richobject.NewGeoLocation("Spot", "1.23", "4.56")
package richobject

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Object types.
const (
	TypeAddressBook        = "addressbook"
	TypeAddressBookContact = "addressbook-contact"
	TypeAnnouncement       = "announcement"
	TypeCalendar           = "calendar"
	TypeCalendarEvent      = "calendar-event"
	TypeCall               = "call"
	TypeCircle             = "circle"
	TypeDeckBoard          = "deck-board"
	TypeDeckCard           = "deck-card"
	TypeEmail              = "email"
	TypeFile               = "file"
	TypeForm               = "forms-form"
	TypeGeoLocation        = "geo-location"
	TypeTalkAttachment     = "talk-attachment"
	TypeUser               = "user"
	TypeUserGroup          = "user-group"
)

// Object is a shareable rich object. The set of implementations is closed.
type Object interface {
	// Type is the object type tag sent as objectType.
	Type() string
	// ObjectID is sent as objectId.
	ObjectID() string
	// Metadata is the field set sent, JSON encoded, as metaData.
	Metadata() map[string]string

	sealed()
}

// Base carries the fields every object has.
type Base struct {
	ID   string
	Name string
}

// ObjectID returns the id.
func (b Base) ObjectID() string { return b.ID }

// Metadata returns id and name.
func (b Base) Metadata() map[string]string {
	return map[string]string{"id": b.ID, "name": b.Name}
}

func (Base) sealed() {}

type (
	AddressBook        struct{ Base }
	AddressBookContact struct{ Base }
	Announcement       struct{ Base }
	Calendar           struct{ Base }
	CalendarEvent      struct{ Base }
	Circle             struct{ Base }
	DeckBoard          struct{ Base }
	DeckCard           struct{ Base }
	Email              struct{ Base }
	File               struct{ Base }
	Form               struct{ Base }
	TalkAttachment     struct{ Base }
	User               struct{ Base }
	UserGroup          struct{ Base }
)

func (AddressBook) Type() string        { return TypeAddressBook }
func (AddressBookContact) Type() string { return TypeAddressBookContact }
func (Announcement) Type() string       { return TypeAnnouncement }
func (Calendar) Type() string           { return TypeCalendar }
func (CalendarEvent) Type() string      { return TypeCalendarEvent }
func (Circle) Type() string             { return TypeCircle }
func (DeckBoard) Type() string          { return TypeDeckBoard }
func (DeckCard) Type() string           { return TypeDeckCard }
func (Email) Type() string              { return TypeEmail }
func (File) Type() string               { return TypeFile }
func (Form) Type() string               { return TypeForm }
func (TalkAttachment) Type() string     { return TypeTalkAttachment }
func (User) Type() string               { return TypeUser }
func (UserGroup) Type() string          { return TypeUserGroup }

// Call references a call; CallType is one_to_one, group or public.
type Call struct {
	Base
	CallType string
}

func (Call) Type() string { return TypeCall }

// Metadata adds call-type.
func (c Call) Metadata() map[string]string {
	m := c.Base.Metadata()
	m["call-type"] = c.CallType
	return m
}

// GeoLocation is a point on the map. Its id is derived from the
// coordinates.
type GeoLocation struct {
	Name      string
	Latitude  string
	Longitude string
}

// NewGeoLocation builds a GeoLocation.
func NewGeoLocation(name, latitude, longitude string) GeoLocation {
	return GeoLocation{Name: name, Latitude: latitude, Longitude: longitude}
}

func (GeoLocation) Type() string { return TypeGeoLocation }

// ObjectID returns "geo:<lat>,<lon>".
func (g GeoLocation) ObjectID() string {
	return "geo:" + g.Latitude + "," + g.Longitude
}

// Metadata returns id, name, latitude and longitude.
func (g GeoLocation) Metadata() map[string]string {
	return map[string]string{
		"id":        g.ObjectID(),
		"name":      g.Name,
		"latitude":  g.Latitude,
		"longitude": g.Longitude,
	}
}

func (GeoLocation) sealed() {}

var registry = map[string]func(id, name string) (Object, error){
	TypeAddressBook:        simple(func(b Base) Object { return AddressBook{b} }),
	TypeAddressBookContact: simple(func(b Base) Object { return AddressBookContact{b} }),
	TypeAnnouncement:       simple(func(b Base) Object { return Announcement{b} }),
	TypeCalendar:           simple(func(b Base) Object { return Calendar{b} }),
	TypeCalendarEvent:      simple(func(b Base) Object { return CalendarEvent{b} }),
	TypeCall:               simple(func(b Base) Object { return Call{Base: b} }),
	TypeCircle:             simple(func(b Base) Object { return Circle{b} }),
	TypeDeckBoard:          simple(func(b Base) Object { return DeckBoard{b} }),
	TypeDeckCard:           simple(func(b Base) Object { return DeckCard{b} }),
	TypeEmail:              simple(func(b Base) Object { return Email{b} }),
	TypeFile:               simple(func(b Base) Object { return File{b} }),
	TypeForm:               simple(func(b Base) Object { return Form{b} }),
	TypeGeoLocation:        newGeoLocationFromID,
	TypeTalkAttachment:     simple(func(b Base) Object { return TalkAttachment{b} }),
	TypeUser:               simple(func(b Base) Object { return User{b} }),
	TypeUserGroup:          simple(func(b Base) Object { return UserGroup{b} }),
}

func simple(build func(Base) Object) func(id, name string) (Object, error) {
	return func(id, name string) (Object, error) {
		return build(Base{ID: id, Name: name}), nil
	}
}

func newGeoLocationFromID(id, name string) (Object, error) {
	coords, ok := strings.CutPrefix(id, "geo:")
	if !ok {
		return nil, fmt.Errorf("geo-location id %q must start with geo:", id)
	}
	lat, lon, ok := strings.Cut(coords, ",")
	if !ok || lat == "" || lon == "" {
		return nil, fmt.Errorf("geo-location id %q must be geo:<lat>,<lon>", id)
	}
	return NewGeoLocation(name, lat, lon), nil
}

// New builds an object by type tag. A geo-location id must have the form
// geo:<lat>,<lon>.
func New(objectType, id, name string) (Object, error) {
	build, ok := registry[objectType]
	if !ok {
		return nil, fmt.Errorf("unknown rich object type %q", objectType)
	}
	return build(id, name)
}

// Types returns the known type tags, sorted.
func Types() []string {
	out := make([]string, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// EncodeMetadata JSON-encodes the object metadata for the wire.
func EncodeMetadata(obj Object) (string, error) {
	data, err := json.Marshal(obj.Metadata())
	if err != nil {
		return "", err
	}
	return string(data), nil
}
