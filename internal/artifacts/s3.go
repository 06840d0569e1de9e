package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/common"
	"github.com/ternarybob/wraith/internal/interfaces"
)

// S3Store writes artifacts to an S3 or S3-compatible bucket. Logical paths
// map directly to object keys.
type S3Store struct {
	client *s3.Client
	bucket string
	logger arbor.ILogger
}

// NewS3Store creates an S3-backed artifact store
func NewS3Store(ctx context.Context, cfg *common.S3Config, logger arbor.ILogger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 artifact store requires a bucket: %w", interfaces.ErrBackendUnavailable)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Custom endpoint covers S3-compatible stores (MinIO, Tigris, R2)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	logger.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 artifact store initialized")

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

func (s *S3Store) Save(ctx context.Context, data []byte, namespace, filename string) (string, error) {
	logicalPath := Join(namespace, filename)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(logicalPath),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentTypeFor(filename)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put artifact %s: %w", logicalPath, err)
	}

	s.logger.Debug().Str("path", logicalPath).Int("bytes", len(data)).Msg("Artifact saved")
	return logicalPath, nil
}

func (s *S3Store) Get(ctx context.Context, logicalPath string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(logicalPath),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, interfaces.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to get artifact %s: %w", logicalPath, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", logicalPath, err)
	}
	return data, nil
}

func (s *S3Store) Delete(ctx context.Context, logicalPath string) (bool, error) {
	existed, err := s.Exists(ctx, logicalPath)
	if err != nil {
		return false, err
	}

	// DeleteObject is idempotent either way; the pre-check only feeds the
	// "did it exist" answer
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(logicalPath),
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete artifact %s: %w", logicalPath, err)
	}
	return existed, nil
}

func (s *S3Store) Exists(ctx context.Context, logicalPath string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(logicalPath),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat artifact %s: %w", logicalPath, err)
	}
	return true, nil
}

func contentTypeFor(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".md"):
		return "text/markdown"
	case strings.HasSuffix(filename, ".json"):
		return "application/json"
	case strings.HasSuffix(filename, ".png"):
		return "image/png"
	case strings.HasSuffix(filename, ".html"):
		return "text/html"
	default:
		return "application/octet-stream"
	}
}
