package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore mirrors evidence frames to an S3-compatible bucket. It is
// optional: absence of credentials means no secondary store is wired up.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	prefix  string
	baseURL *url.URL
	useSSL  bool
}

// NewMinioFromEnv constructs a MinioStore from MINIO_* environment
// variables, or returns (nil, nil) when credentials are absent — callers
// should treat that as "no secondary store configured", not an error.
func NewMinioFromEnv() (*MinioStore, error) {
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	if accessKey == "" || secretKey == "" {
		return nil, nil
	}

	endpoint := getenv("MINIO_ENDPOINT", "localhost:9000")
	bucket := getenv("MINIO_BUCKET", "gidence-scm-evidence")
	prefix := getenv("MINIO_PREFIX", "")
	useSSL := getenv("MINIO_USE_SSL", "false") == "true"
	base := getenv("MINIO_PUBLIC_BASE_URL", "")

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		exists, existsErr := cli.BucketExists(ctx, bucket)
		if existsErr != nil || !exists {
			return nil, fmt.Errorf("create/verify bucket %s: %w", bucket, err)
		}
	}

	var u *url.URL
	if base != "" {
		u, err = url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid MINIO_PUBLIC_BASE_URL: %w", err)
		}
	}

	log.Printf("[blobstore] connected to minio endpoint %s, bucket=%s", endpoint, bucket)

	return &MinioStore{
		client:  cli,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		baseURL: u,
		useSSL:  useSSL,
	}, nil
}

func (s *MinioStore) Save(ctx context.Context, id string, data []byte) error {
	key := s.objectKey(id)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *MinioStore) Load(ctx context.Context, id string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *MinioStore) Delete(ctx context.Context, id string) error {
	return s.client.RemoveObject(ctx, s.bucket, s.objectKey(id), minio.RemoveObjectOptions{})
}

func (s *MinioStore) objectKey(id string) string {
	if s.prefix == "" {
		return id + ".jpg"
	}
	return s.prefix + "/" + id + ".jpg"
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
