package telegram

import (
	"errors"
	"fmt"
	"strings"
)

// Message is the subset of a Bot API message the relay reads back.
type Message struct {
	MessageID int64 `json:"message_id"`
}

// ForumTopic is the result of createForumTopic.
type ForumTopic struct {
	MessageThreadID int64  `json:"message_thread_id"`
	Name            string `json:"name"`
}

// File is the result of getFile.
type File struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	FilePath string `json:"file_path"`
}

// APIError is a Bot API level failure: ok=false with a description.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error %d: %s", e.Code, e.Description)
}

// IsTopicNotFound reports whether the error means the forum topic no longer
// exists. Deliveries hitting this must re-provision the thread.
func IsTopicNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	desc := strings.ToUpper(apiErr.Description)
	return strings.Contains(desc, "MESSAGE THREAD NOT FOUND") ||
		strings.Contains(desc, "TOPIC_NOT_FOUND") ||
		strings.Contains(desc, "TOPIC_DELETED")
}

// IsTopicNotModified reports the benign edit outcome where the topic already
// had the requested attributes.
func IsTopicNotModified(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.Contains(strings.ToUpper(apiErr.Description), "TOPIC_NOT_MODIFIED")
}

// IsRetryable reports whether the failure may clear up on a later attempt.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	// Transport level failures (timeouts, refused connections) are retryable.
	return err != nil
}
