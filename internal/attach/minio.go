package attach

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"resumark/api/internal/util"
)

// Upload is one incoming attachment stream.
type Upload struct {
	Filename string
	MimeType string
	Size     int64
	Reader   io.Reader
}

// Storage stores and serves note attachments.
type Storage interface {
	// Put validates and stores the upload, returning the object key to
	// persist alongside the note.
	Put(ctx context.Context, noteID string, up Upload) (string, error)
	// URL resolves an object key to a time-limited download URL.
	URL(ctx context.Context, key string) (string, error)
	// Remove deletes the object; missing objects are not an error.
	Remove(ctx context.Context, key string) error
}

// MinioStorage keeps attachments in a MinIO (or any S3-compatible) bucket.
type MinioStorage struct {
	client    *minio.Client
	bucket    string
	urlExpiry time.Duration
}

func NewMinioStorage(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &MinioStorage{
		client:    client,
		bucket:    bucket,
		urlExpiry: time.Hour,
	}, nil
}

func (s *MinioStorage) Put(ctx context.Context, noteID string, up Upload) (string, error) {
	if err := Validate(up.MimeType, up.Size); err != nil {
		return "", err
	}

	key := fmt.Sprintf("notes/%s/%s-%s", noteID, util.NewID(""), sanitizeObjectName(up.Filename))
	_, err := s.client.PutObject(ctx, s.bucket, key, up.Reader, up.Size,
		minio.PutObjectOptions{ContentType: up.MimeType})
	if err != nil {
		return "", fmt.Errorf("upload attachment %s: %w", key, err)
	}
	return key, nil
}

func (s *MinioStorage) URL(ctx context.Context, key string) (string, error) {
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.urlExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign attachment %s: %w", key, err)
	}
	return presigned.String(), nil
}

func (s *MinioStorage) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove attachment %s: %w", key, err)
	}
	return nil
}

// sanitizeObjectName strips path separators and control characters out of a
// user-supplied filename.
func sanitizeObjectName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "attachment"
	}
	return b.String()
}
