package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WahaProvider talks to a self-hosted WAHA instance.
type WahaProvider struct {
	baseURL   string
	apiKey    string
	basicAuth string
	session   string
	client    *http.Client
}

func NewWahaProvider(settings WahaSettings, timeout time.Duration) *WahaProvider {
	return &WahaProvider{
		baseURL:   strings.TrimRight(settings.BaseURL, "/"),
		apiKey:    settings.APIKey,
		basicAuth: settings.BasicAuth,
		session:   settings.Session,
		client:    &http.Client{Timeout: timeout},
	}
}

func (p *WahaProvider) Name() string {
	return "waha"
}

func (p *WahaProvider) Send(ctx context.Context, msg *Outbound) (*DeliveryResult, error) {
	payload, err := p.buildPayload(msg)
	if err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+p.sendEndpoint(msg.Kind), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return &DeliveryResult{
			Status:  StatusTransportFailure,
			Message: err.Error(),
		}, nil
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&raw)

	status := classifyStatus(resp.StatusCode)
	if status == StatusSent {
		return &DeliveryResult{Status: StatusSent, MessageID: parseWahaMessageID(raw)}, nil
	}

	return &DeliveryResult{
		Status:    status,
		ErrorType: wahaRejectionKind(resp.StatusCode),
		Message:   fmt.Sprintf("request failed with status %d: %s", resp.StatusCode, parseWahaError(raw)),
	}, nil
}

// wahaRejectionKind normalizes a WAHA error status to a recognized permanent
// rejection kind where the status is unambiguous. Other statuses return an
// empty kind and the delivery job retries.
func wahaRejectionKind(code int) string {
	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return RejectionInvalidPayload
	case http.StatusNotFound:
		return RejectionInvalidRecipient
	}
	return ""
}

func (p *WahaProvider) sendEndpoint(kind string) string {
	switch kind {
	case KindImage:
		return "/api/sendImage"
	case KindDocument:
		return "/api/sendFile"
	case KindAudio:
		return "/api/sendVoice"
	case KindVideo:
		return "/api/sendVideo"
	case KindLocation:
		return "/api/sendLocation"
	default:
		return "/api/sendText"
	}
}

func (p *WahaProvider) buildPayload(msg *Outbound) (map[string]interface{}, error) {
	payload := map[string]interface{}{
		"session": p.session,
		"chatId":  p.chatID(msg.To),
	}

	switch msg.Kind {
	case KindText:
		payload["text"] = msg.Text
	case KindImage, KindVideo, KindDocument:
		file, err := p.fileField(msg)
		if err != nil {
			return nil, err
		}
		payload["file"] = file
		if msg.Caption != "" {
			payload["caption"] = msg.Caption
		}
	case KindAudio:
		file, err := p.fileField(msg)
		if err != nil {
			return nil, err
		}
		payload["file"] = file
	case KindLocation:
		payload["latitude"] = msg.Latitude
		payload["longitude"] = msg.Longitude
	}

	return payload, nil
}

// fileField inlines the media as base64. WAHA accepts files in the payload
// itself, no separate upload step exists.
func (p *WahaProvider) fileField(msg *Outbound) (map[string]interface{}, error) {
	data, err := os.ReadFile(msg.MediaPath) // #nosec G304 - path validated by media handler
	if err != nil {
		return nil, fmt.Errorf("failed to read media file: %w", err)
	}

	filename := msg.Filename
	if filename == "" {
		filename = filepath.Base(msg.MediaPath)
	}

	return map[string]interface{}{
		"mimetype": msg.MimeType,
		"filename": filename,
		"data":     base64.StdEncoding.EncodeToString(data),
	}, nil
}

// UploadMedia is a no-op: WAHA takes media inline in the send payload.
func (p *WahaProvider) UploadMedia(ctx context.Context, filePath, mimeType string) (string, error) {
	return "", nil
}

func (p *WahaProvider) MarkRead(ctx context.Context, messageID string) error {
	payload := map[string]interface{}{
		"session": p.session,
		"chatId":  ExtractChatID(messageID),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/sendSeen", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to mark as read: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mark as read failed with status %d", resp.StatusCode)
	}
	return nil
}

// MediaURL points at WAHA's file endpoint; no lookup round trip is needed.
// Webhook payloads sometimes carry a fully qualified file URL already, in
// which case it is used as is.
func (p *WahaProvider) MediaURL(ctx context.Context, mediaID string) (string, error) {
	if strings.HasPrefix(mediaID, "http://") || strings.HasPrefix(mediaID, "https://") {
		return mediaID, nil
	}
	return p.baseURL + "/api/files/" + mediaID, nil
}

func (p *WahaProvider) AuthHeaders() map[string]string {
	headers := map[string]string{}
	if p.apiKey != "" {
		headers["X-Api-Key"] = p.apiKey
	}
	if p.basicAuth != "" {
		headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(p.basicAuth))
	}
	return headers
}

func (p *WahaProvider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("X-Api-Key", p.apiKey)
	}
	if p.basicAuth != "" {
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(p.basicAuth)))
	}
}

func (p *WahaProvider) chatID(to string) string {
	if strings.Contains(to, "@") {
		return to
	}
	return to + "@c.us"
}

// parseWahaMessageID digs the serialized message ID out of the send
// response. WAHA has shipped both a flat string and a nested object.
func parseWahaMessageID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var nested struct {
		ID struct {
			Serialized string `json:"_serialized"`
		} `json:"id"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && nested.ID.Serialized != "" {
		return nested.ID.Serialized
	}

	var flat struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat.ID
	}
	return ""
}

func parseWahaError(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "empty response"
	}

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return string(raw)
}
