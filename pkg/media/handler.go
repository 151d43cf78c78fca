package media

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wabridge/internal/models"
	"wabridge/internal/security"
)

// Handler moves media files between the two sides of the bridge through a
// local content-addressed cache. Files are cached by hash so a retried
// delivery never downloads the same payload twice.
type Handler interface {
	Fetch(ctx context.Context, mediaURL string, headers map[string]string) (string, error)
	Store(path string) (string, error)
	CleanupOldFiles(maxAge time.Duration) error
}

type handler struct {
	cacheDir   string
	config     models.MediaConfig
	httpClient *http.Client
}

func NewHandler(cacheDir string, config models.MediaConfig) (Handler, error) {
	if err := os.MkdirAll(cacheDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &handler{
		cacheDir:   cacheDir,
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Fetch downloads a remote media file into the cache and returns the cached
// path. Extra headers carry provider auth (Bearer token, X-Api-Key).
func (h *handler) Fetch(ctx context.Context, mediaURL string, headers map[string]string) (string, error) {
	if err := validateDownloadURL(mediaURL); err != nil {
		return "", err
	}

	tempPath, ext, err := h.download(ctx, mediaURL, headers)
	if err != nil {
		return "", fmt.Errorf("failed to download media: %w", err)
	}
	defer os.Remove(tempPath)

	info, err := os.Stat(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat downloaded file: %w", err)
	}

	if err := h.validateMedia(ext, info.Size()); err != nil {
		return "", err
	}

	return h.cacheFile(tempPath, ext)
}

// Store copies a local file into the cache after validation.
func (h *handler) Store(path string) (string, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return "", fmt.Errorf("invalid media path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if err := h.validateMedia(ext, info.Size()); err != nil {
		return "", err
	}

	return h.cacheFile(path, ext)
}

func (h *handler) cacheFile(path, ext string) (string, error) {
	file, err := os.Open(path) // #nosec G304 - path validated by caller
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("failed to calculate hash: %w", err)
	}

	hashStr := fmt.Sprintf("%x", hash.Sum(nil))
	cachedPath := filepath.Join(h.cacheDir, hashStr+"."+ext)

	if _, err := os.Stat(cachedPath); err == nil {
		return cachedPath, nil
	}

	if err := os.Link(path, cachedPath); err != nil {
		if err := copyFile(path, cachedPath); err != nil {
			return "", fmt.Errorf("failed to copy file to cache: %w", err)
		}
	}

	return cachedPath, nil
}

func (h *handler) validateMedia(ext string, size int64) error {
	var maxSizeMB int
	var mediaType string

	lookup := []struct {
		exts  []string
		limit int
		name  string
	}{
		{h.config.AllowedTypes.Image, h.config.MaxSizeMB.Image, "image"},
		{h.config.AllowedTypes.Video, h.config.MaxSizeMB.Video, "video"},
		{h.config.AllowedTypes.Document, h.config.MaxSizeMB.Document, "document"},
		{h.config.AllowedTypes.Voice, h.config.MaxSizeMB.Voice, "voice"},
	}

	for _, group := range lookup {
		for _, allowedExt := range group.exts {
			if ext == allowedExt {
				maxSizeMB = group.limit
				mediaType = group.name
			}
		}
		if maxSizeMB != 0 {
			break
		}
	}

	if maxSizeMB == 0 {
		return fmt.Errorf("file type .%s is not allowed", ext)
	}

	maxSizeBytes := int64(maxSizeMB) * 1024 * 1024
	if size > maxSizeBytes {
		return fmt.Errorf("%s too large: %d > %d bytes", mediaType, size, maxSizeBytes)
	}

	return nil
}

func (h *handler) CleanupOldFiles(maxAge time.Duration) error {
	entries, err := os.ReadDir(h.cacheDir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	now := time.Now()
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info: %w", err)
		}

		age := now.Sub(info.ModTime())
		if age > maxAge {
			path := filepath.Join(h.cacheDir, info.Name())
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove old file: %w", err)
			}
		}
	}

	return nil
}

func (h *handler) download(ctx context.Context, mediaURL string, headers map[string]string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", mediaURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	ext := fileExtensionFromResponse(resp, mediaURL)

	tempFile, err := os.CreateTemp(h.cacheDir, "download_*"+ext)
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tempFile.Close()

	if _, err := io.Copy(tempFile, resp.Body); err != nil {
		os.Remove(tempFile.Name())
		return "", "", fmt.Errorf("failed to save downloaded file: %w", err)
	}

	return tempFile.Name(), strings.TrimPrefix(ext, "."), nil
}

func validateDownloadURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid media URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("media URL missing host")
	}
	return nil
}

func fileExtensionFromResponse(resp *http.Response, mediaURL string) string {
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}

	if ext := filepath.Ext(mediaURL); ext != "" {
		return ext
	}

	return ".bin"
}

func copyFile(src, dst string) error {
	if err := security.ValidateFilePath(src); err != nil {
		return fmt.Errorf("invalid source path: %w", err)
	}

	srcFile, err := os.Open(src) // #nosec G304 - path validated above
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst) // #nosec G304 - destination inside cache dir
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}
