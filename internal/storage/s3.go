package storage

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

	"github.com/starford/folio/internal/apperr"
)

// S3Config configures the S3 backend.
type S3Config struct {
	Region          string
	Bucket          string
	Prefix          string // key prefix inside the bucket, e.g. "folio/"
	Endpoint        string // custom endpoint for S3-compatible services (MinIO)
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	CreateBucket    bool
}

// S3 implements Provider on an S3-compatible object store. Write records the
// SHA-256 of each blob as object metadata and List reports it as
// BlobInfo.Checksum. Objects written by other tools fall back to their ETag.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ Provider = (*S3)(nil)

// sha256Meta is the user metadata key holding the blob checksum.
const sha256Meta = "sha256"

// NewS3 builds an S3 provider from cfg. Static credentials are used when
// both keys are set, otherwise the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: s3 bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
		// S3-compatible stores do not all accept the default CRC32 trailers.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	p := &S3{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}
	if cfg.CreateBucket {
		if err := p.ensureBucket(ctx, cfg.Region); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *S3) ensureBucket(ctx context.Context, region string) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("storage: check bucket: %w", err)
	}

	in := &s3.CreateBucketInput{Bucket: aws.String(p.bucket)}
	if region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}
	if _, err := p.client.CreateBucket(ctx, in); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("storage: create bucket: %w", err)
	}
	return nil
}

func (p *S3) objectKey(key string) string { return p.prefix + key }

func (p *S3) List(ctx context.Context, prefix string) ([]BlobInfo, error) {
	pager := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.objectKey(prefix)),
	})
	var out []BlobInfo
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		for _, obj := range page.Contents {
			info := BlobInfo{
				Key:  strings.TrimPrefix(aws.ToString(obj.Key), p.prefix),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.UpdatedAt = *obj.LastModified
			}
			sum, err := p.checksum(ctx, obj)
			if err != nil {
				return nil, err
			}
			info.Checksum = sum
			out = append(out, info)
		}
	}
	return out, nil
}

// checksum returns the SHA-256 recorded by Write, or the ETag for objects
// that carry no such metadata.
func (p *S3) checksum(ctx context.Context, obj types.Object) (string, error) {
	head, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    obj.Key,
	})
	if err != nil {
		return "", fmt.Errorf("storage: head %s: %w", aws.ToString(obj.Key), err)
	}
	if sum := head.Metadata[sha256Meta]; sum != "" {
		return sum, nil
	}
	return strings.Trim(aws.ToString(obj.ETag), `"`), nil
}

func (p *S3) Read(ctx context.Context, key string) ([]byte, error) {
	res, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.objectKey(key)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("storage: read %s: %w", key, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s body: %w", key, err)
	}
	return data, nil
}

func (p *S3) Write(ctx context.Context, key string, content []byte) error {
	if key == "" {
		return fmt.Errorf("storage: empty key")
	}
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(p.objectKey(key)),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String("application/octet-stream"),
		Metadata:      map[string]string{sha256Meta: Checksum(content)},
	})
	if err != nil {
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	return nil
}

// Delete removes key. S3 deletes are idempotent, so a missing key is
// detected with a HEAD request first.
func (p *S3) Delete(ctx context.Context, key string) error {
	ok, err := p.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("storage: delete %s: %w", key, apperr.ErrNotFound)
	}
	_, err = p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

func (p *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.objectKey(key)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("storage: head %s: %w", key, err)
	}
	return true, nil
}
