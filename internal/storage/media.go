package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileMediaStore writes fetched image binaries to the local filesystem.
// Files are named after the source URL's filename component, so refetching
// the same resource overwrites in place.
type FileMediaStore struct {
	baseDir string
	maxSize int64
}

// NewFileMediaStore constructs a filesystem-backed media store, creating the
// base directory when missing. maxSize <= 0 disables the payload size cap.
func NewFileMediaStore(baseDir string, maxSize int64) (*FileMediaStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory must be provided")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &FileMediaStore{baseDir: baseDir, maxSize: maxSize}, nil
}

// Save persists the image bytes and returns the full local path. When the
// source URL carries no usable filename, a content hash names the file.
func (s *FileMediaStore) Save(sourceURL, contentType string, data []byte) (string, error) {
	if s == nil {
		return "", fmt.Errorf("media store not initialised")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty image payload for %s", sourceURL)
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return "", fmt.Errorf("image payload %d bytes exceeds limit %d for %s", len(data), s.maxSize, sourceURL)
	}

	name := filenameFromURL(sourceURL)
	if name == "" {
		sum := sha256.Sum256(data)
		name = hex.EncodeToString(sum[:16]) + extensionFor(contentType)
	}

	fullPath := filepath.Join(s.baseDir, name)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}
	return fullPath, nil
}

func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return ""
	}
	// Keep only the final path element; reject anything path-like.
	if strings.ContainsAny(name, `/\`) {
		return ""
	}
	return name
}

func extensionFor(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	if ct == "" {
		return ""
	}
	if exts, err := mime.ExtensionsByType(ct); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
