package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"interview-orchestrator/internal/config"
)

// Store persists candidate voice recordings and serves them back to the
// transcription worker.
type Store interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// New chooses an S3-backed store when a bucket is configured, falling back to
// the local filesystem for development.
func New(ctx context.Context, cfg config.Config) (Store, error) {
	if cfg.VoiceS3Bucket != "" {
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &s3Store{client: client, bucket: cfg.VoiceS3Bucket}, nil
	}
	baseDir := cfg.VoiceOutputDir
	if baseDir == "" {
		baseDir = "./voice"
	}
	return &localStore{baseDir: baseDir}, nil
}

// VoiceKey derives the storage key for one voice message from its chat and
// receipt time.
func VoiceKey(chatID int64, messageID int64, at time.Time) string {
	return fmt.Sprintf("voice/%d/%s_%d.ogg", chatID, at.UTC().Format("20060102T150405"), messageID)
}

func newS3Client(ctx context.Context, cfg config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.VoiceS3Region),
	}
	if cfg.VoiceS3Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               cfg.VoiceS3Endpoint,
					HostnameImmutable: cfg.VoiceS3PathStyle,
					SigningRegion:     cfg.VoiceS3Region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.VoiceS3PathStyle
	}), nil
}

type localStore struct {
	baseDir string
}

func (l *localStore) Upload(_ context.Context, key string, body []byte, _ string) (string, error) {
	path := filepath.Join(l.baseDir, sanitizeKey(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dirs: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

func (l *localStore) Fetch(_ context.Context, key string) ([]byte, error) {
	body, err := os.ReadFile(filepath.Join(l.baseDir, sanitizeKey(key)))
	if err != nil {
		return nil, fmt.Errorf("read voice file: %w", err)
	}
	return body, nil
}

type s3Store struct {
	client *s3.Client
	bucket string
}

func (s *s3Store) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func (s *s3Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return body, nil
}

// sanitizeKey anchors the key below the base dir, discarding any leading
// separators or parent-dir components.
func sanitizeKey(key string) string {
	key = filepath.Clean(string(filepath.Separator) + key)
	return strings.TrimPrefix(key, string(filepath.Separator))
}
