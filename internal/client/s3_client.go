package client

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

	"github.com/finledger/api/internal/config"
	"github.com/finledger/api/internal/store"
)

// S3Client stores report artifacts in an S3-compatible bucket (AWS S3 or
// Cloudflare R2). It implements store.ArtifactStore; artifact refs are the
// object keys, which embed the owner id so downloads stay owner scoped.
type S3Client struct {
	s3Client   *s3.Client
	bucketName string
}

func NewS3Client(cfg *config.StorageConfig) (*S3Client, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("storage configuration incomplete")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: endpoint}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Client{
		s3Client:   s3.NewFromConfig(awsCfg),
		bucketName: cfg.BucketName,
	}, nil
}

// PutArtifact uploads the artifact and returns its object key as the ref.
func (c *S3Client) PutArtifact(ctx context.Context, ownerID, jobID string, data []byte, contentType string) (string, error) {
	key := artifactKey(ownerID, jobID)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}
	if _, err := c.s3Client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}
	return key, nil
}

// GetArtifact downloads the artifact. A ref outside the owner's prefix or a
// missing object both yield store.ErrNotFound.
func (c *S3Client) GetArtifact(ctx context.Context, ownerID, ref string) ([]byte, error) {
	if !strings.HasPrefix(ref, artifactKey(ownerID, "")) {
		return nil, store.ErrNotFound
	}

	out, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(ref),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to download artifact: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

// Delete removes an artifact, used when expiring old reports.
func (c *S3Client) Delete(ctx context.Context, ownerID, jobID string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(artifactKey(ownerID, jobID)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

func artifactKey(ownerID, jobID string) string {
	return fmt.Sprintf("reports/%s/%s", ownerID, jobID)
}

var _ store.ArtifactStore = (*S3Client)(nil)
