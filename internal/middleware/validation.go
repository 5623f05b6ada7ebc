package middleware

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the default Talk chat limit in characters.
const MaxMessageLength = 32000

var roomTokenPattern = regexp.MustCompile(`^[a-zA-Z0-9]{1,64}$`)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content cannot be empty")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return errors.New("content exceeds maximum length")
	}
	return nil
}

// ValidateRoomToken validates a Talk room token.
func ValidateRoomToken(token string) error {
	if !roomTokenPattern.MatchString(token) {
		return errors.New("invalid room token format")
	}
	return nil
}

// ValidateRoomName validates a room name.
func ValidateRoomName(name string) error {
	if len(name) > 255 {
		return errors.New("name exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return errors.New("name must be valid UTF-8")
	}
	return nil
}
