package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusFromAck(t *testing.T) {
	testCases := []struct {
		name     string
		code     int
		expected MessageStatus
	}{
		{"clock", 0, StatusClock},
		{"sent", 1, StatusSent},
		{"delivered", 2, StatusDelivered},
		{"read", 3, StatusRead},
		{"unmapped positive", 7, StatusUnknown},
		{"unmapped negative", -1, StatusUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, StatusFromAck(tc.code))
		})
	}
}

func TestNewMessage(t *testing.T) {
	before := time.Now().UTC()
	msg := NewMessage("ext-1", "123@c.us", "hello", true, false, StatusSent)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "ext-1", msg.ExternalID)
	assert.Equal(t, "123@c.us", msg.Sender)
	assert.True(t, msg.FromMe)
	assert.Equal(t, "hello", msg.Body)
	assert.Equal(t, StatusSent, msg.Status)
	assert.False(t, msg.CreatedAt.Before(before))

	other := NewMessage("ext-2", "123@c.us", "hello again", false, false, StatusPublished)
	assert.NotEqual(t, msg.ID, other.ID, "local ids must be unique per record")
}
