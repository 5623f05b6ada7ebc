package talk

import (
	"strconv"
	"strings"
)

// Permissions is the attendee permission bitset. PermDefault means the
// value is inherited; any other value must include PermCustom.
type Permissions int

const (
	PermDefault        Permissions = 0
	PermCustom         Permissions = 1
	PermStartCall      Permissions = 2
	PermJoinCall       Permissions = 4
	PermCanIgnoreLobby Permissions = 8
	PermPublishAudio   Permissions = 16
	PermPublishVideo   Permissions = 32
	PermPublishScreen  Permissions = 64

	permAll = PermCustom | PermStartCall | PermJoinCall | PermCanIgnoreLobby |
		PermPublishAudio | PermPublishVideo | PermPublishScreen
)

var permissionNames = []struct {
	bit  Permissions
	name string
}{
	{PermCustom, "custom"},
	{PermStartCall, "start_call"},
	{PermJoinCall, "join_call"},
	{PermCanIgnoreLobby, "can_ignore_lobby"},
	{PermPublishAudio, "publish_audio"},
	{PermPublishVideo, "publish_video"},
	{PermPublishScreen, "publish_screen"},
}

// Has reports whether every bit of other is set in p.
func (p Permissions) Has(other Permissions) bool {
	return p&other == other
}

// Normalize sets PermCustom on any non-default value.
func (p Permissions) Normalize() Permissions {
	if p == PermDefault {
		return p
	}
	return p | PermCustom
}

// Validate rejects bits outside the known set.
func (p Permissions) Validate() error {
	if p < 0 || p&^permAll != 0 {
		return invalidArgument("unknown permission bits in %d", int(p))
	}
	return nil
}

func (p Permissions) String() string {
	if p == PermDefault {
		return "default"
	}
	var names []string
	for _, pn := range permissionNames {
		if p&pn.bit != 0 {
			names = append(names, pn.name)
		}
	}
	return strings.Join(names, "|")
}

// ParsePermissions reads a "|"-separated list of permission names.
func ParsePermissions(s string) (Permissions, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "default" {
		return PermDefault, nil
	}
	var p Permissions
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		found := false
		for _, pn := range permissionNames {
			if pn.name == part {
				p |= pn.bit
				found = true
				break
			}
		}
		if !found {
			return 0, invalidArgument("unknown permission %q", part)
		}
	}
	return p.Normalize(), nil
}

// wireValue validates p and returns the integer sent to the server.
func (p Permissions) wireValue() (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	return strconv.Itoa(int(p.Normalize())), nil
}
