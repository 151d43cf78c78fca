package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const defaultGraphBaseURL = "https://graph.facebook.com"

// CloudProvider talks to the WhatsApp Cloud API (Graph API).
type CloudProvider struct {
	token         string
	phoneNumberID string
	apiVersion    string
	baseURL       string
	client        *http.Client
}

func NewCloudProvider(settings CloudSettings, timeout time.Duration) *CloudProvider {
	return &CloudProvider{
		token:         settings.Token,
		phoneNumberID: settings.PhoneNumberID,
		apiVersion:    settings.APIVersion,
		baseURL:       defaultGraphBaseURL,
		client:        &http.Client{Timeout: timeout},
	}
}

func (p *CloudProvider) Name() string {
	return "cloud"
}

type cloudError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

type cloudSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *cloudError `json:"error"`
}

func (p *CloudProvider) Send(ctx context.Context, msg *Outbound) (*DeliveryResult, error) {
	payload := p.buildPayload(msg)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.messagesURL(), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return &DeliveryResult{
			Status:  StatusTransportFailure,
			Message: err.Error(),
		}, nil
	}
	defer resp.Body.Close()

	var result cloudSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil && resp.StatusCode < 300 {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	status := classifyStatus(resp.StatusCode)
	if status == StatusSent {
		if len(result.Messages) == 0 {
			return &DeliveryResult{
				Status:  StatusTransportFailure,
				Message: "response carried no message ID",
			}, nil
		}
		return &DeliveryResult{Status: StatusSent, MessageID: result.Messages[0].ID}, nil
	}

	out := &DeliveryResult{Status: status}
	if result.Error != nil {
		out.ErrorType = cloudRejectionKind(result.Error.Code, result.Error.Type)
		out.Message = result.Error.Message
	} else {
		out.Message = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}
	return out, nil
}

// cloudRejectionKind normalizes a Graph API error code to one of the
// recognized permanent rejection kinds. Unknown codes keep the raw error
// type, which the delivery job treats as retryable.
func cloudRejectionKind(code int, errType string) string {
	switch code {
	case 100, 131008, 131009, 131051:
		// Invalid parameter, missing required parameter, parameter value
		// not valid, unsupported message type.
		return RejectionInvalidPayload
	case 131026:
		// Message undeliverable: recipient cannot receive this message.
		return RejectionInvalidRecipient
	case 131021:
		// Sender and recipient are the same, or recipient unavailable.
		return RejectionRecipientBlocked
	}
	return errType
}

func (p *CloudProvider) buildPayload(msg *Outbound) map[string]interface{} {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                msg.To,
		"type":              msg.Kind,
	}

	media := func() map[string]interface{} {
		m := map[string]interface{}{"id": msg.MediaID}
		if msg.Caption != "" {
			m["caption"] = msg.Caption
		}
		return m
	}

	switch msg.Kind {
	case KindText:
		payload["text"] = map[string]interface{}{"body": msg.Text}
	case KindImage:
		payload["image"] = media()
	case KindVideo:
		payload["video"] = media()
	case KindDocument:
		doc := media()
		if msg.Filename != "" {
			doc["filename"] = msg.Filename
		}
		payload["document"] = doc
	case KindAudio:
		payload["audio"] = map[string]interface{}{"id": msg.MediaID}
	case KindLocation:
		payload["location"] = map[string]interface{}{
			"latitude":  msg.Latitude,
			"longitude": msg.Longitude,
		}
	}

	return payload
}

// UploadMedia pushes a local file to Graph and returns the media ID for the
// subsequent send.
func (p *CloudProvider) UploadMedia(ctx context.Context, filePath, mimeType string) (string, error) {
	file, err := os.Open(filePath) // #nosec G304 - path validated by media handler
	if err != nil {
		return "", fmt.Errorf("failed to open media file: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to copy file content: %w", err)
	}

	_ = writer.WriteField("messaging_product", "whatsapp")
	_ = writer.WriteField("type", mimeType)

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/media", p.baseURL, p.apiVersion, p.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		ID    string      `json:"id"`
		Error *cloudError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || result.ID == "" {
		msg := "unknown error"
		if result.Error != nil {
			msg = result.Error.Message
		}
		return "", fmt.Errorf("media upload failed with status %d: %s", resp.StatusCode, msg)
	}

	return result.ID, nil
}

func (p *CloudProvider) MarkRead(ctx context.Context, messageID string) error {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.messagesURL(), bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to mark as read: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mark as read failed with status %d", resp.StatusCode)
	}
	return nil
}

// MediaURL resolves an inbound media ID to a short-lived download URL.
func (p *CloudProvider) MediaURL(ctx context.Context, mediaID string) (string, error) {
	url := fmt.Sprintf("%s/%s/%s", p.baseURL, p.apiVersion, mediaID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to resolve media URL: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || result.URL == "" {
		return "", fmt.Errorf("media URL lookup failed with status %d", resp.StatusCode)
	}
	return result.URL, nil
}

func (p *CloudProvider) AuthHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.token}
}

func (p *CloudProvider) messagesURL() string {
	return fmt.Sprintf("%s/%s/%s/messages", p.baseURL, p.apiVersion, p.phoneNumberID)
}
