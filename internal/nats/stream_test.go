package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/capitalize-ai/talkbridge/internal/model"
)

func TestMessageSubject(t *testing.T) {
	assert.Equal(t, "talk.abc123.msg.message", MessageSubject("abc123", model.EventTypeMessage))
	assert.Equal(t, "talk.abc123.msg.deleted", MessageSubject("abc123", model.EventTypeDeleted))
}

func TestRoomFilter(t *testing.T) {
	assert.Equal(t, "talk.abc123.>", RoomFilter("abc123"))
}

func TestSubjectTokenEscapesSeparators(t *testing.T) {
	assert.Equal(t, "talk.a_b_c.msg.system", MessageSubject("a.b*c", model.EventTypeSystem))
}
