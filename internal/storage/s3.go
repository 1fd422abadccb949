package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/collab-messenger/relay/internal/common/config"
	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/google/uuid"
)

// Client stores message attachments in an S3-compatible bucket and
// hands back a stable URI to embed in file messages.
type Client struct {
	cfg     config.StorageConfig
	s3      *s3.Client
	presign *s3.PresignClient
}

func NewClient(ctx context.Context, cfg config.StorageConfig) (*Client, error) {
	if cfg.Region == "" || cfg.Bucket == "" {
		return nil, errors.Invalid("storage region and bucket are required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				if service == s3.ServiceID {
					return aws.Endpoint{URL: endpoint, SigningRegion: cfg.Region}, nil
				}
				return aws.Endpoint{}, &aws.EndpointNotFoundError{}
			}),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Internal("failed to load storage credentials", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	return &Client{
		cfg:     cfg,
		s3:      s3Client,
		presign: s3.NewPresignClient(s3Client),
	}, nil
}

// Put uploads a blob under a random key derived from pathHint and
// returns the public URI for the stored object.
func (c *Client) Put(ctx context.Context, blob []byte, pathHint, contentType string) (string, error) {
	if len(blob) == 0 {
		return "", errors.Invalid("empty blob")
	}

	ext := path.Ext(pathHint)
	key := fmt.Sprintf("attachments/%s/%s%s",
		time.Now().UTC().Format("2006/01/02"), uuid.New().String(), ext)

	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(blob),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(blob))),
	})
	if err != nil {
		return "", errors.Internal("failed to store attachment", err)
	}
	return c.ObjectURL(key), nil
}

// PresignPut returns a URL the client can upload to directly, keeping
// large blobs off the API path.
func (c *Client) PresignPut(ctx context.Context, pathHint, contentType string, ttl time.Duration) (string, string, error) {
	ext := path.Ext(pathHint)
	key := fmt.Sprintf("attachments/%s/%s%s",
		time.Now().UTC().Format("2006/01/02"), uuid.New().String(), ext)

	presigned, err := c.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(po *s3.PresignOptions) {
		if ttl > 0 {
			po.Expires = ttl
		}
	})
	if err != nil {
		return "", "", errors.Internal("failed to presign upload", err)
	}
	return presigned.URL, c.ObjectURL(key), nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Internal("failed to delete attachment", err)
	}
	return nil
}

func (c *Client) ObjectURL(key string) string {
	if c.cfg.PublicURL != "" {
		return c.cfg.PublicURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.cfg.Bucket, c.cfg.Region, key)
}
