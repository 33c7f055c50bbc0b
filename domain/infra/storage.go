package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Presigner はオブジェクトストレージの署名付きURLを発行する
type Presigner interface {
	PresignGet(ctx context.Context, key, fileName string) (string, error)
	PresignPut(ctx context.Context, key, mimeType string) (string, error)
}

var _ Presigner = (*S3Presigner)(nil)

type S3Presigner struct {
	client *s3.PresignClient
	bucket string
	ttl    time.Duration
}

type S3Config struct {
	Bucket string
	// MinIO などを使うときのエンドポイント
	Endpoint string
	TTL      time.Duration
}

func NewS3Presigner(ctx context.Context, c S3Config) (*S3Presigner, error) {
	if c.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is not set")
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %v", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})
	ttl := c.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3Presigner{
		client: s3.NewPresignClient(client),
		bucket: c.Bucket,
		ttl:    ttl,
	}, nil
}

func (p *S3Presigner) PresignGet(ctx context.Context, key, fileName string) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}
	if fileName != "" {
		input.ResponseContentDisposition = aws.String(fmt.Sprintf("inline; filename=%q", fileName))
	}
	req, err := p.client.PresignGetObject(ctx, input, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return "", fmt.Errorf("PresignGetObject failed: %w", err)
	}
	return req.URL, nil
}

func (p *S3Presigner) PresignPut(ctx context.Context, key, mimeType string) (string, error) {
	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(mimeType),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return "", fmt.Errorf("PresignPutObject failed: %w", err)
	}
	return req.URL, nil
}
