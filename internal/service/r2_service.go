package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	config "github.com/socialflowhq/socialflow/configs"
)

// R2Service stores uploaded media in Cloudflare R2. Objects must stay
// publicly reachable until publishing finishes: Instagram fetches them by URL
// during container creation.
type R2Service struct {
	bucket    string
	publicURL string
	client    *s3.Client
}

func NewR2Service(cfg config.Config) (*R2Service, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2.AccessKey, cfg.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to configure r2 client: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2.AccountID))
	})

	return &R2Service{
		bucket:    cfg.R2.BucketName,
		publicURL: cfg.R2.PublicURL,
		client:    client,
	}, nil
}

func (r *R2Service) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("unable to store object %s: %w", key, err)
	}
	return nil
}

// ObjectURL returns the public URL the stored object is served from.
func (r *R2Service) ObjectURL(key string) string {
	return fmt.Sprintf("%s/%s", r.publicURL, key)
}
