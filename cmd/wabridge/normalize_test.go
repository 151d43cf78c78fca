package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"wabridge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCloudMediaMessage(t *testing.T) {
	body := []byte(`{
		"entry": [{"changes": [{"value": {"messages": [{
			"id": "wamid.img",
			"from": "15551234567",
			"type": "image",
			"image": {"id": "media-1", "mime_type": "image/jpeg", "caption": "the leak"}
		}]}}]}]
	}`)

	updates, err := normalizeCloudPayload(body)
	require.NoError(t, err)
	require.Len(t, updates, 1)

	update := updates[0]
	assert.Equal(t, models.KindImage, update.Kind)
	assert.Equal(t, "media-1", update.MediaID)
	assert.Equal(t, "image/jpeg", update.MimeType)
	assert.Equal(t, "the leak", update.Caption)
}

func TestNormalizeCloudLocationAndContact(t *testing.T) {
	body := []byte(`{
		"entry": [{"changes": [{"value": {"messages": [
			{"id": "wamid.loc", "from": "1555", "type": "location",
			 "location": {"latitude": 52.52, "longitude": 13.405}},
			{"id": "wamid.con", "from": "1555", "type": "contacts",
			 "contacts": [{"name": {"formatted_name": "Ada Lovelace"}, "phones": [{"phone": "+44123"}]}]}
		]}}]}]
	}`)

	updates, err := normalizeCloudPayload(body)
	require.NoError(t, err)
	require.Len(t, updates, 2)

	require.NotNil(t, updates[0].Location)
	assert.Equal(t, 52.52, updates[0].Location.Latitude)

	require.NotNil(t, updates[1].Contact)
	assert.Equal(t, "Ada Lovelace", updates[1].Contact.Name)
	assert.Equal(t, "+44123", updates[1].Contact.Phone)
}

func TestNormalizeCloudStatuses(t *testing.T) {
	body := []byte(`{
		"entry": [{"changes": [{"value": {"statuses": [
			{"id": "wamid.5", "status": "delivered"}
		]}}]}]
	}`)

	updates, err := normalizeCloudPayload(body)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, models.KindStatus, updates[0].Kind)
}

func TestNormalizeCloudUnknownType(t *testing.T) {
	body := []byte(`{
		"entry": [{"changes": [{"value": {"messages": [
			{"id": "wamid.x", "from": "1555", "type": "order"}
		]}}]}]
	}`)

	updates, err := normalizeCloudPayload(body)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, models.KindUnknown, updates[0].Kind)
}

func TestNormalizeWahaMediaKinds(t *testing.T) {
	tests := []struct {
		mimeType string
		expected models.MessageKind
	}{
		{"image/jpeg", models.KindImage},
		{"image/webp", models.KindSticker},
		{"video/mp4", models.KindVideo},
		{"audio/ogg; codecs=opus", models.KindAudio},
		{"application/pdf", models.KindDocument},
	}

	for _, tt := range tests {
		t.Run(tt.mimeType, func(t *testing.T) {
			assert.Equal(t, tt.expected, wahaMediaKind(tt.mimeType))
		})
	}
}

func TestNormalizeWahaMediaMessage(t *testing.T) {
	body := []byte(`{
		"event": "message",
		"payload": {
			"id": "false_12345@c.us_MED",
			"from": "12345@c.us",
			"fromMe": false,
			"body": "see photo",
			"hasMedia": true,
			"media": {"url": "http://waha:3000/api/files/abc.jpg", "mimetype": "image/jpeg", "filename": "abc.jpg"}
		}
	}`)

	update, err := normalizeWahaPayload(body)
	require.NoError(t, err)
	require.NotNil(t, update)

	assert.Equal(t, models.KindImage, update.Kind)
	assert.Equal(t, "http://waha:3000/api/files/abc.jpg", update.MediaID)
	assert.Equal(t, "see photo", update.Caption)
	assert.Equal(t, "abc.jpg", update.Filename)
}

func TestNormalizeWahaVCard(t *testing.T) {
	body := []byte(`{
		"event": "message",
		"payload": {
			"id": "false_12345@c.us_VC",
			"from": "12345@c.us",
			"fromMe": false,
			"vCards": ["BEGIN:VCARD\nVERSION:3.0\nFN:Grace Hopper\nTEL;TYPE=CELL:+1555987\nEND:VCARD"]
		}
	}`)

	update, err := normalizeWahaPayload(body)
	require.NoError(t, err)
	require.NotNil(t, update)

	assert.Equal(t, models.KindContact, update.Kind)
	require.NotNil(t, update.Contact)
	assert.Equal(t, "Grace Hopper", update.Contact.Name)
	assert.Equal(t, "+1555987", update.Contact.Phone)
}

func TestNormalizeTelegramPhotoPicksLargest(t *testing.T) {
	body := []byte(`{
		"update_id": 1,
		"message": {
			"message_id": 910,
			"message_thread_id": 42,
			"caption": "site plan",
			"photo": [
				{"file_id": "small", "file_size": 1000},
				{"file_id": "medium", "file_size": 20000},
				{"file_id": "large", "file_size": 90000}
			]
		}
	}`)

	post, err := normalizeTelegramPayload(bytes.NewReader(body))
	require.NoError(t, err)
	require.NotNil(t, post)

	assert.Equal(t, models.KindImage, post.Kind)
	assert.Equal(t, "large", post.FileID)
	assert.Equal(t, "site plan", post.Caption)
}

func TestNormalizeTelegramSticker(t *testing.T) {
	body := []byte(`{
		"update_id": 2,
		"message": {
			"message_id": 911,
			"message_thread_id": 42,
			"sticker": {"file_id": "stk", "emoji": "👍"}
		}
	}`)

	post, err := normalizeTelegramPayload(bytes.NewReader(body))
	require.NoError(t, err)
	require.NotNil(t, post)

	assert.Equal(t, models.KindSticker, post.Kind)
	assert.Equal(t, "👍", post.Emoji)
}

func TestNormalizeTelegramContactJoinsName(t *testing.T) {
	body := []byte(`{
		"update_id": 3,
		"message": {
			"message_id": 912,
			"message_thread_id": 42,
			"contact": {"phone_number": "+1555", "first_name": "Alan", "last_name": "Turing"}
		}
	}`)

	post, err := normalizeTelegramPayload(bytes.NewReader(body))
	require.NoError(t, err)
	require.NotNil(t, post)

	assert.Equal(t, models.KindContact, post.Kind)
	require.NotNil(t, post.Contact)
	assert.Equal(t, "Alan Turing", post.Contact.Name)
	assert.Equal(t, "+1555", post.Contact.Phone)
}

func TestNormalizeTelegramNonMessageUpdate(t *testing.T) {
	body := []byte(`{"update_id": 4, "callback_query": {"id": "cb1"}}`)

	post, err := normalizeTelegramPayload(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Nil(t, post)
}

func newSignedRequest(t *testing.T, body []byte, headers map[string]string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/waha", bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestVerifyWahaSignature(t *testing.T) {
	t.Run("valid signature accepted", func(t *testing.T) {
		body := []byte(`{"event":"message"}`)
		mac := hmac.New(sha512.New, []byte("secret"))
		mac.Write(body)
		req := newSignedRequest(t, body, map[string]string{
			"X-Webhook-Hmac": hex.EncodeToString(mac.Sum(nil)),
		})

		verified, err := verifyWahaSignature(req, "secret")
		require.NoError(t, err)
		assert.Equal(t, body, verified)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		req := newSignedRequest(t, []byte(`{}`), nil)
		_, err := verifyWahaSignature(req, "secret")
		assert.Error(t, err)
	})

	t.Run("bad signature rejected", func(t *testing.T) {
		req := newSignedRequest(t, []byte(`{}`), map[string]string{"X-Webhook-Hmac": "deadbeef"})
		_, err := verifyWahaSignature(req, "secret")
		assert.Error(t, err)
	})

	t.Run("empty secret passes outside production", func(t *testing.T) {
		req := newSignedRequest(t, []byte(`{"event":"message"}`), nil)
		body, err := verifyWahaSignature(req, "")
		require.NoError(t, err)
		assert.JSONEq(t, `{"event":"message"}`, string(body))
	})
}
