package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhoneNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"international", "+1234567890", "+******7890"},
		{"bare digits", "1234567890", "******7890"},
		{"short with plus", "+123", "+***"},
		{"short bare", "123", "***"},
		{"exactly four", "1234", "****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaskPhoneNumber(tt.input))
		})
	}
}

func TestMaskChatID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"whatsapp address", "1234567890@c.us", "******7890@c.us"},
		{"no suffix", "1234567890", "******7890"},
		{"group address", "123456789012345@g.us", "***********2345@g.us"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaskChatID(tt.input))
		})
	}
}

func TestMaskMessageID(t *testing.T) {
	assert.Equal(t, "short", MaskMessageID("short"))
	assert.Equal(t, "12345678", MaskMessageID("12345678"))
	assert.Equal(t, "...FGHIJKLM", MaskMessageID("wamid.ABCDEFGHIJKLM"))
}
