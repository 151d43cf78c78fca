package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

func productionMode() bool {
	return os.Getenv("WABRIDGE_ENV") == "production"
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewBuffer(body))
	return body, nil
}

// verifyCloudSignature checks the Cloud API X-Hub-Signature-256 header, an
// HMAC-SHA256 of the raw body keyed with the app secret.
func verifyCloudSignature(r *http.Request, appSecret string) ([]byte, error) {
	body, err := readBody(r)
	if err != nil {
		return nil, err
	}

	if appSecret == "" {
		if productionMode() {
			return nil, fmt.Errorf("cloud webhook app secret is required in production mode")
		}
		return body, nil
	}

	header := r.Header.Get("X-Hub-Signature-256")
	if header == "" {
		return nil, fmt.Errorf("missing X-Hub-Signature-256 header")
	}

	scheme, provided, found := strings.Cut(header, "=")
	if !found || strings.ToLower(scheme) != "sha256" {
		return nil, fmt.Errorf("invalid signature format in X-Hub-Signature-256")
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(provided)) {
		return nil, fmt.Errorf("signature mismatch")
	}

	return body, nil
}

// verifyWahaSignature checks the WAHA X-Webhook-Hmac header, an HMAC-SHA512
// of the raw body keyed with the gateway's webhook secret.
func verifyWahaSignature(r *http.Request, secret string) ([]byte, error) {
	body, err := readBody(r)
	if err != nil {
		return nil, err
	}

	if secret == "" {
		if productionMode() {
			return nil, fmt.Errorf("waha webhook secret is required in production mode")
		}
		return body, nil
	}

	provided := r.Header.Get("X-Webhook-Hmac")
	if provided == "" {
		return nil, fmt.Errorf("missing X-Webhook-Hmac header")
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(provided)) {
		return nil, fmt.Errorf("signature mismatch")
	}

	return body, nil
}

// verifyTelegramSecret compares the Bot API secret token header set via
// setWebhook.
func verifyTelegramSecret(r *http.Request, secret string) error {
	if secret == "" {
		if productionMode() {
			return fmt.Errorf("telegram webhook secret is required in production mode")
		}
		return nil
	}

	provided := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
		return fmt.Errorf("secret token mismatch")
	}
	return nil
}
