package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
)

// S3API is the part of *s3.Client the store needs.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

type S3ClientOptions struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	// Endpoint overrides the AWS endpoint for R2 or MinIO style services.
	Endpoint string
}

func NewS3Client(ctx context.Context, opts S3ClientOptions) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Store uploads media as objects. References look like s3://<bucket>/<prefix><name>.
type S3Store struct {
	client S3API
	bucket string
	prefix string
	now    func() time.Time
}

var _ Backend = (*S3Store)(nil)

func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *S3Store) Materialize(ctx context.Context, source string) (string, error) {
	ref, err := s.upload(ctx, source)
	if err != nil {
		mediaLogger.Error().Err(err).Str("source", source).Str("bucket", s.bucket).Msg("Media upload failed")
		return "", &MaterializationError{Source: source, Err: err}
	}
	mediaLogger.Debug().Str("source", source).Str("ref", ref).Msg("Media uploaded")
	return ref, nil
}

func (s *S3Store) upload(ctx context.Context, source string) (string, error) {
	f, err := os.Open(source)
	if err != nil {
		return "", err
	}
	defer f.Close()

	kind, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to sniff content type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	key := s.prefix + FileName(s.now(), Extension(kind))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(kind)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}
	return s.refFor(key), nil
}

func (s *S3Store) refFor(key string) string {
	return "s3://" + s.bucket + "/" + key
}

func (s *S3Store) keyFor(ref string) (string, bool) {
	key, ok := strings.CutPrefix(ref, "s3://"+s.bucket+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

func (s *S3Store) Open(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	if ref == "" {
		return nil, "", ErrNoMedia
	}
	key, ok := s.keyFor(ref)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownRef, ref)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get object: %w", err)
	}

	ct := aws.ToString(out.ContentType)
	if ct == "" {
		ct = "application/octet-stream"
	}
	return out.Body, ct, nil
}
