package telegram

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
	"strconv"
	"time"
)

const defaultAPIBaseURL = "https://api.telegram.org"

// Client is a minimal Bot API client covering what the relay needs: forum
// topic management and per-kind message sends into topics.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewClient(token string, timeout time.Duration) *Client {
	return &Client{
		token:   token,
		baseURL: defaultAPIBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, payload interface{}, result interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.methodURL(method), bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()

	return c.decodeResponse(resp, method, result)
}

func (c *Client) decodeResponse(resp *http.Response, method string, result interface{}) error {
	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	if !body.OK {
		return &APIError{Code: body.ErrorCode, Description: body.Description}
	}

	if result != nil {
		if err := json.Unmarshal(body.Result, result); err != nil {
			return fmt.Errorf("failed to unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// SendMessage posts text into a forum topic. A zero topicID targets the
// group's general thread.
func (c *Client) SendMessage(ctx context.Context, chatID, topicID int64, text string) (*Message, error) {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if topicID != 0 {
		payload["message_thread_id"] = topicID
	}

	var msg Message
	if err := c.call(ctx, "sendMessage", payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) SendLocation(ctx context.Context, chatID, topicID int64, latitude, longitude float64) (*Message, error) {
	payload := map[string]interface{}{
		"chat_id":   chatID,
		"latitude":  latitude,
		"longitude": longitude,
	}
	if topicID != 0 {
		payload["message_thread_id"] = topicID
	}

	var msg Message
	if err := c.call(ctx, "sendLocation", payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) SendContact(ctx context.Context, chatID, topicID int64, phoneNumber, firstName string) (*Message, error) {
	payload := map[string]interface{}{
		"chat_id":      chatID,
		"phone_number": phoneNumber,
		"first_name":   firstName,
	}
	if topicID != 0 {
		payload["message_thread_id"] = topicID
	}

	var msg Message
	if err := c.call(ctx, "sendContact", payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendPhoto uploads a local file into a forum topic.
func (c *Client) SendPhoto(ctx context.Context, chatID, topicID int64, filePath, caption string) (*Message, error) {
	return c.sendFile(ctx, "sendPhoto", "photo", chatID, topicID, filePath, caption)
}

func (c *Client) SendVideo(ctx context.Context, chatID, topicID int64, filePath, caption string) (*Message, error) {
	return c.sendFile(ctx, "sendVideo", "video", chatID, topicID, filePath, caption)
}

func (c *Client) SendDocument(ctx context.Context, chatID, topicID int64, filePath, caption string) (*Message, error) {
	return c.sendFile(ctx, "sendDocument", "document", chatID, topicID, filePath, caption)
}

func (c *Client) SendVoice(ctx context.Context, chatID, topicID int64, filePath string) (*Message, error) {
	return c.sendFile(ctx, "sendVoice", "voice", chatID, topicID, filePath, "")
}

func (c *Client) SendSticker(ctx context.Context, chatID, topicID int64, filePath string) (*Message, error) {
	return c.sendFile(ctx, "sendSticker", "sticker", chatID, topicID, filePath, "")
}

func (c *Client) sendFile(ctx context.Context, method, field string, chatID, topicID int64, filePath, caption string) (*Message, error) {
	file, err := os.Open(filePath) // #nosec G304 - path validated by media handler
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(field, filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy file content: %w", err)
	}

	_ = writer.WriteField("chat_id", strconv.FormatInt(chatID, 10))
	if topicID != 0 {
		_ = writer.WriteField("message_thread_id", strconv.FormatInt(topicID, 10))
	}
	if caption != "" {
		_ = writer.WriteField("caption", caption)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.methodURL(method), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var msg Message
	if err := c.decodeResponse(resp, method, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// CreateForumTopic opens a new thread in the team group and returns its
// thread ID.
func (c *Client) CreateForumTopic(ctx context.Context, chatID int64, name, iconCustomEmojiID string) (*ForumTopic, error) {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"name":    name,
	}
	if iconCustomEmojiID != "" {
		payload["icon_custom_emoji_id"] = iconCustomEmojiID
	}

	var topic ForumTopic
	if err := c.call(ctx, "createForumTopic", payload, &topic); err != nil {
		return nil, err
	}
	return &topic, nil
}

// EditForumTopic updates the icon of an existing thread. Used to flip a
// thread's icon between the unread and read markers.
func (c *Client) EditForumTopic(ctx context.Context, chatID, topicID int64, iconCustomEmojiID string) error {
	payload := map[string]interface{}{
		"chat_id":              chatID,
		"message_thread_id":    topicID,
		"icon_custom_emoji_id": iconCustomEmojiID,
	}

	return c.call(ctx, "editForumTopic", payload, nil)
}

// GetFile resolves a file ID to a server-side path for download.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	payload := map[string]interface{}{"file_id": fileID}

	var file File
	if err := c.call(ctx, "getFile", payload, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// FileURL builds the download URL for a path returned by GetFile.
func (c *Client) FileURL(filePath string) string {
	return fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, filePath)
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}
