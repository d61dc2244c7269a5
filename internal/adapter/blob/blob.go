// Package blob stores recording photos and returns their public URLs.
package blob

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"
)

// Store uploads a photo for a user and returns its URL.
type Store interface {
	Upload(ctx context.Context, userID string, r io.Reader, contentType string) (string, error)
}

// ObjectKey names a photo object as {user}/{unixMillis}-{random}.{ext}.
func ObjectKey(userID string, now time.Time, contentType string) (string, error) {
	if userID == "" || strings.ContainsAny(userID, `/\`) || userID == "." || userID == ".." {
		return "", fmt.Errorf("invalid user id for object key")
	}
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("random suffix: %w", err)
	}
	return fmt.Sprintf("%s/%d-%s.%s", userID, now.UnixMilli(), hex.EncodeToString(buf[:]), extensionFor(contentType)), nil
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/heic":
		return "heic"
	default:
		return "jpg"
	}
}

func normalizeContentType(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return "image/jpeg"
	}
	return contentType
}
