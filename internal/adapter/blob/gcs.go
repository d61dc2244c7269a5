package blob

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/xiaot623/dailymission/internal/logger"
)

// GCSStore writes photos to a Google Cloud Storage bucket.
type GCSStore struct {
	log           *logger.Logger
	client        *storage.Client
	bucket        string
	publicBaseURL string
	now           func() time.Time
}

// NewGCSStore creates a storage client. credentialsFile may be empty to use
// application default credentials.
func NewGCSStore(ctx context.Context, log *logger.Logger, bucket, publicBaseURL, credentialsFile string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs store needs a bucket")
	}
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	if publicBaseURL == "" {
		publicBaseURL = "https://storage.googleapis.com/" + bucket
	}
	log = log.With("component", "GCSStore")
	log.Info("object storage initialized", "bucket", bucket, "public_base_url", publicBaseURL)
	return &GCSStore{
		log:           log,
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           time.Now,
	}, nil
}

// Ensure GCSStore implements Store interface.
var _ Store = (*GCSStore)(nil)

// Upload streams r into the bucket and returns the public URL.
func (s *GCSStore) Upload(ctx context.Context, userID string, r io.Reader, contentType string) (string, error) {
	contentType = normalizeContentType(contentType)
	key, err := ObjectKey(userID, s.now(), contentType)
	if err != nil {
		return "", err
	}

	// Cancelling the writer's context aborts the upload without finalizing
	// a partial object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(wctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000"
	if err := copyObject(w, r, cancel); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", key, err)
	}
	s.log.Debug("photo uploaded", "key", key, "user_id", userID)
	return s.publicBaseURL + "/" + key, nil
}

// copyObject streams r into w. On a read or write error it calls abort and
// leaves w unclosed.
func copyObject(w io.Writer, r io.Reader, abort context.CancelFunc) error {
	if _, err := io.Copy(w, r); err != nil {
		abort()
		return err
	}
	return nil
}

// Close releases the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
