package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"bazaars/internal/config"
	"bazaars/internal/domain"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

const fileNameMetaKey = "Filename"

// S3ImageStore keeps images as objects in a single bucket. A custom endpoint
// with path-style addressing supports MinIO for local development.
type S3ImageStore struct {
	client *s3.S3
	bucket string
}

func NewS3ImageStore(cfg config.S3Config) (*S3ImageStore, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	}

	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
		if cfg.DisableSSL {
			awsConfig.DisableSSL = aws.Bool(true)
		}
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("create AWS session: %w", err)
	}

	return &S3ImageStore{
		client: s3.New(sess),
		bucket: cfg.Bucket,
	}, nil
}

func (s *S3ImageStore) Get(ctx context.Context, id string) (*domain.Image, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", id, err)
	}

	img := &domain.Image{
		ID:       id,
		MimeType: aws.StringValue(out.ContentType),
		Bytes:    data,
	}
	if name, ok := out.Metadata[fileNameMetaKey]; ok {
		img.FileName = aws.StringValue(name)
	}

	return img, nil
}

func (s *S3ImageStore) Put(ctx context.Context, fileName string, mimeType string, data []byte) (string, error) {
	id := uuid.NewString()

	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(id),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
		Metadata: map[string]*string{
			fileNameMetaKey: aws.String(fileName),
		},
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", id, err)
	}

	return id, nil
}

func (s *S3ImageStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", id, err)
	}
	return nil
}
