package avatar

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store persists avatars and returns a reference the UI can load.
type Store interface {
	Save(ctx context.Context, visitor string, data []byte) (string, error)
}

// SafeName lowercases name and replaces anything that is not a letter or
// digit with an underscore. An empty result becomes "visitor".
func SafeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	safe := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, name)
	if safe == "" {
		return "visitor"
	}
	return safe
}

func fileName(visitor string) string { return SafeName(visitor) + "_avatar.png" }

// LocalStore writes avatars under a directory and returns the file path.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore { return &LocalStore{dir: dir} }

func (s *LocalStore) Save(_ context.Context, visitor string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create avatar dir: %w", err)
	}
	path := filepath.Join(s.dir, fileName(visitor))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write avatar: %w", err)
	}
	return path, nil
}

// PutObjectAPI is the S3 call S3Store needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads avatars to a bucket and returns their public URL.
type S3Store struct {
	client  PutObjectAPI
	bucket  string
	baseURL string // e.g. "https://media.example.com"
}

func NewS3Store(client PutObjectAPI, bucket, baseURL string) *S3Store {
	if baseURL == "" {
		baseURL = "https://" + bucket + ".s3.amazonaws.com"
	}
	return &S3Store{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *S3Store) Save(ctx context.Context, visitor string, data []byte) (string, error) {
	key := "avatars/" + fileName(visitor)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("image/png"),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	return s.baseURL + "/" + key, nil
}

var (
	_ Store = (*LocalStore)(nil)
	_ Store = (*S3Store)(nil)
)
