// Package storage keeps uploaded images and documents in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MaxUploadSize is the largest accepted upload in bytes.
const MaxUploadSize = 5 << 20

var (
	ErrUnsupportedType = errors.New("only jpeg, jpg, png, gif and pdf files are allowed")
	ErrTooLarge        = errors.New("file exceeds the 5 MB upload limit")
	ErrInvalidName     = errors.New("invalid object name")
)

var allowedTypes = map[string]string{
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
}

// Object is a stored upload.
type Object struct {
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

type Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
	now       func() time.Time
}

// New connects to the bucket, creating it when missing.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		now:       time.Now,
	}, nil
}

// ContentType returns the MIME type for an allowed file name.
func ContentType(filename string) (string, error) {
	contentType, ok := allowedTypes[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", ErrUnsupportedType
	}
	return contentType, nil
}

// ObjectName builds "<field>-<unixmillis><ext>" for an upload.
func ObjectName(field, filename string, at time.Time) string {
	field = strings.Trim(strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return -1
		}
	}, field), "-")
	if field == "" {
		field = "upload"
	}
	return fmt.Sprintf("%s-%d%s", field, at.UnixMilli(), strings.ToLower(filepath.Ext(filename)))
}

// Put stores an upload and returns its object. size must be known; uploads over
// MaxUploadSize are refused before anything is written.
func (s *Store) Put(ctx context.Context, field, filename string, body io.Reader, size int64) (Object, error) {
	contentType, err := ContentType(filename)
	if err != nil {
		return Object{}, err
	}
	if size > MaxUploadSize {
		return Object{}, ErrTooLarge
	}

	name := ObjectName(field, filename, s.now())
	info, err := s.client.PutObject(ctx, s.bucket, name, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return Object{}, fmt.Errorf("put object %s: %w", name, err)
	}
	return Object{Name: name, URL: s.URL(name), Size: info.Size, LastModified: s.now()}, nil
}

// Remove deletes an object. Missing objects are not an error.
func (s *Store) Remove(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", name, err)
	}
	return nil
}

// List returns every stored object, newest first.
func (s *Store) List(ctx context.Context) ([]Object, error) {
	objects := make([]Object, 0)
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list objects: %w", info.Err)
		}
		objects = append(objects, Object{
			Name:         info.Key,
			URL:          s.URL(info.Key),
			Size:         info.Size,
			LastModified: info.LastModified,
		})
	}
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	return objects, nil
}

// URL is the public address of an object.
func (s *Store) URL(name string) string {
	return s.publicURL + "/" + name
}

func validName(name string) error {
	if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") {
		return ErrInvalidName
	}
	return nil
}
