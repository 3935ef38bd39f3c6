package migrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/renameio/v2"

	"github.com/weft-dev/weft/internal/errors"
)

// DefaultReportPath is where migrate writes its report unless told
// otherwise.
const DefaultReportPath = "weft-migrate.json"

// ReportStore persists analyzer reports.
type ReportStore interface {
	// Write stores the report and returns its location.
	Write(ctx context.Context, r *Report) (string, error)
}

// DiskStore writes the report as indented JSON to a single file.
type DiskStore struct {
	// Path of the output file. Empty means DefaultReportPath.
	Path string
}

func (d *DiskStore) Write(_ context.Context, r *Report) (string, error) {
	path := d.Path
	if path == "" {
		path = DefaultReportPath
	}
	data, err := reportJSON(r)
	if err != nil {
		return "", err
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return "", errors.New("W205").WithDetail("writing " + path).Wrap(err)
	}
	return path, nil
}

// PutObjectAPI is the one S3 call the uploader makes. Hand the store a
// real *s3.Client or anything that can stand in for one.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads reports to a bucket.
type S3Store struct {
	Client PutObjectAPI
	Bucket string

	// Key of the uploaded object. Empty derives one from the report
	// ID.
	Key string
}

func (s *S3Store) Write(ctx context.Context, r *Report) (string, error) {
	data, err := reportJSON(r)
	if err != nil {
		return "", err
	}
	key := s.Key
	if key == "" {
		key = "weft-migrate-" + r.ID + ".json"
	}
	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", errors.New("W205").
			WithDetail(fmt.Sprintf("uploading to s3://%s/%s", s.Bucket, key)).
			WithSuggestion("check the bucket name and AWS credentials").
			Wrap(err)
	}
	return "s3://" + s.Bucket + "/" + key, nil
}

// ParseS3URL splits an s3://bucket/key destination. The key may be
// empty, in which case the store derives one.
func ParseS3URL(raw string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 URL: %q", raw)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in %q", raw)
	}
	return bucket, key, nil
}

// NewS3ClientFromEnv builds an S3 client from the standard AWS
// environment variables. Projects with richer credential setups can
// hand S3Store any client satisfying PutObjectAPI instead.
func NewS3ClientFromEnv() *s3.Client {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	creds := aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		}, nil
	})
	return s3.New(s3.Options{Region: region, Credentials: creds})
}

func reportJSON(r *Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return append(data, '\n'), nil
}
