package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// FileStorage keeps post pictures in a MinIO bucket. Clients send and receive
// pictures as base64; the bucket holds the decoded bytes.
type FileStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewFileStorage(endpoint, publicURL, accessKey, secretKey, bucketName string) (*FileStorage, error) {
	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := minioClient.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucketName, err)
	}
	if !exists {
		if err := minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			// may already exist under another owner; uploads will tell
			zap.L().Warn("failed to create bucket", zap.String("bucket", bucketName), zap.Error(err))
		} else {
			zap.L().Info("bucket created", zap.String("bucket", bucketName))
		}
	}

	return &FileStorage{
		client:    minioClient,
		bucket:    bucketName,
		publicURL: publicURL,
	}, nil
}

// PutBase64 decodes payload and stores it under a fresh object name, which it
// returns.
func (s *FileStorage) PutBase64(ctx context.Context, payload string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode media: %w", err)
	}

	contentType := http.DetectContentType(data)
	name := ObjectName(contentType)
	_, err = s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return name, nil
}

// GetBase64 reads an object back in the wire encoding.
func (s *FileStorage) GetBase64(ctx context.Context, name string) (string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return "", err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// URL is where a browser can fetch the object directly, or "" without a
// public URL configured.
func (s *FileStorage) URL(name string) string {
	if s.publicURL == "" {
		return ""
	}
	// path.Join would collapse the scheme's double slash
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.publicURL, "/"), s.bucket, name)
}

// ObjectName picks a unique name with an extension matching contentType.
func ObjectName(contentType string) string {
	ext := ".bin"
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/gif":
		ext = ".gif"
	case "image/webp":
		ext = ".webp"
	}
	return "posts/" + uuid.NewString() + ext
}

// MediaStore is what the api server needs from object storage.
type MediaStore interface {
	PutBase64(ctx context.Context, payload string) (string, error)
	GetBase64(ctx context.Context, name string) (string, error)
	URL(name string) string
}

var _ MediaStore = (*FileStorage)(nil)
