package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	maxAvatarSize    = 5 * 1024 * 1024
	presignedURLTTL  = 15 * time.Minute
	avatarPathPrefix = "avatars"
)

var (
	ErrFileTooBig         = errors.New("file size exceeds 5MB limit")
	ErrInvalidFileType    = errors.New("invalid file type, only JPEG and PNG images are allowed")
	ErrBucketUnavailable  = errors.New("storage bucket unavailable")
	ErrUploadFailed       = errors.New("failed to upload file")
	ErrDeleteFailed       = errors.New("failed to delete file")
	ErrURLGeneration      = errors.New("failed to generate presigned URL")
	ErrUnauthorizedObject = errors.New("object does not belong to subject")

	allowedAvatarTypes = map[string]struct{}{
		"image/jpeg": {},
		"image/png":  {},
	}
)

type StorageService interface {
	UploadAvatar(ctx context.Context, userID uint, file io.Reader, fileSize int64, contentType string) (string, error)
	// DeleteAvatar removes an object after checking the key sits in the
	// subject's namespace.
	DeleteAvatar(ctx context.Context, userID uint, objectKey string) error
	GenerateAvatarURL(ctx context.Context, objectKey string) (string, error)
}

// MinIOStorage keeps avatars in an S3-compatible bucket. Bucket creation is
// deferred to first use so startup never blocks on the object store.
type MinIOStorage struct {
	client   *minio.Client
	bucket   string
	initOnce sync.Once
	initErr  error
}

func NewMinIOStorage(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinIOStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOStorage{client: client, bucket: bucket}, nil
}

func (s *MinIOStorage) lazyInit(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = fmt.Errorf("%w: %v", ErrBucketUnavailable, err)
			return
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
				s.initErr = fmt.Errorf("%w: %v", ErrBucketUnavailable, err)
			}
		}
	})
	return s.initErr
}

func (s *MinIOStorage) UploadAvatar(ctx context.Context, userID uint, file io.Reader, fileSize int64, contentType string) (string, error) {
	if fileSize > maxAvatarSize {
		return "", ErrFileTooBig
	}

	// Sniff the real content type from the bytes; the client-supplied
	// Content-Type header is untrusted.
	buf := make([]byte, 512)
	n, err := io.ReadFull(file, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("%w: read for content detection: %v", ErrUploadFailed, err)
	}
	buf = buf[:n]
	detected := strings.ToLower(strings.TrimSpace(http.DetectContentType(buf)))
	if _, ok := allowedAvatarTypes[detected]; !ok {
		return "", ErrInvalidFileType
	}

	if err := s.lazyInit(ctx); err != nil {
		return "", err
	}

	body := io.MultiReader(bytes.NewReader(buf), file)
	objectKey := fmt.Sprintf("%s/user-%d/%s%s", avatarPathPrefix, userID, uuid.New().String(), extensionFor(detected))

	_, err = s.client.PutObject(ctx, s.bucket, objectKey, body, fileSize, minio.PutObjectOptions{
		ContentType: detected,
		UserMetadata: map[string]string{
			"User-ID":     fmt.Sprintf("%d", userID),
			"Uploaded-At": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return objectKey, nil
}

func (s *MinIOStorage) DeleteAvatar(ctx context.Context, userID uint, objectKey string) error {
	if strings.TrimSpace(objectKey) == "" {
		return nil
	}
	if strings.Contains(objectKey, "..") {
		return ErrUnauthorizedObject
	}
	ownPrefix := fmt.Sprintf("%s/user-%d/", avatarPathPrefix, userID)
	if !strings.HasPrefix(objectKey, ownPrefix) {
		return ErrUnauthorizedObject
	}
	if err := s.lazyInit(ctx); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

func (s *MinIOStorage) GenerateAvatarURL(ctx context.Context, objectKey string) (string, error) {
	if strings.TrimSpace(objectKey) == "" {
		return "", fmt.Errorf("%w: empty object key", ErrURLGeneration)
	}
	if err := s.lazyInit(ctx); err != nil {
		return "", err
	}
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, presignedURLTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrURLGeneration, err)
	}
	return presigned.String(), nil
}

// DevStorage holds avatars in process memory for local development. Objects
// do not survive a restart and the returned URLs are only meaningful as
// placeholders.
type DevStorage struct {
	baseURL string

	mu      sync.Mutex
	objects map[string][]byte
}

func NewDevStorage(baseURL string) *DevStorage {
	return &DevStorage{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: map[string][]byte{},
	}
}

func (s *DevStorage) UploadAvatar(_ context.Context, userID uint, file io.Reader, fileSize int64, _ string) (string, error) {
	if fileSize > maxAvatarSize {
		return "", ErrFileTooBig
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	detected := strings.ToLower(strings.TrimSpace(http.DetectContentType(data)))
	if _, ok := allowedAvatarTypes[detected]; !ok {
		return "", ErrInvalidFileType
	}
	objectKey := fmt.Sprintf("%s/user-%d/%s%s", avatarPathPrefix, userID, uuid.New().String(), extensionFor(detected))
	s.mu.Lock()
	s.objects[objectKey] = data
	s.mu.Unlock()
	return objectKey, nil
}

func (s *DevStorage) DeleteAvatar(_ context.Context, userID uint, objectKey string) error {
	if strings.TrimSpace(objectKey) == "" {
		return nil
	}
	ownPrefix := fmt.Sprintf("%s/user-%d/", avatarPathPrefix, userID)
	if strings.Contains(objectKey, "..") || !strings.HasPrefix(objectKey, ownPrefix) {
		return ErrUnauthorizedObject
	}
	s.mu.Lock()
	delete(s.objects, objectKey)
	s.mu.Unlock()
	return nil
}

func (s *DevStorage) GenerateAvatarURL(_ context.Context, objectKey string) (string, error) {
	if strings.TrimSpace(objectKey) == "" {
		return "", fmt.Errorf("%w: empty object key", ErrURLGeneration)
	}
	return s.baseURL + "/dev-objects/" + objectKey, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ""
	}
}
