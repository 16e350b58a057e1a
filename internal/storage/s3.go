package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kebairia/dbmaint/internal/logger"
)

// ErrUploadFailed indicates the dump could not be pushed to object storage.
// The local dump file is still intact when this is returned.
var ErrUploadFailed = errors.New("s3 upload failed")

const uploadTimeout = 30 * time.Second

// S3Store uploads dump files into a single bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	log    logger.Logger
}

// NewS3StoreFromEnv builds an S3Store from the AWS_* environment
// variables (AWS_BUCKET, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY,
// AWS_DEFAULT_REGION).
func NewS3StoreFromEnv(ctx context.Context, log logger.Logger) (*S3Store, error) {
	bucket := os.Getenv("AWS_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("%w: AWS_BUCKET not set", ErrUploadFailed)
	}

	creds := credentials.NewStaticCredentialsProvider(
		os.Getenv("AWS_ACCESS_KEY_ID"),
		os.Getenv("AWS_SECRET_ACCESS_KEY"),
		"",
	)

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion(os.Getenv("AWS_DEFAULT_REGION")),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", ErrUploadFailed, err)
	}

	log.Info("s3 store initialized", "bucket", bucket)
	return &S3Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		log:    log,
	}, nil
}

// Upload pushes the file at localPath to the bucket under key.
func (store *S3Store) Upload(ctx context.Context, localPath, key string) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: open %q: %v", ErrUploadFailed, localPath, err)
	}
	defer file.Close()

	uploader := manager.NewUploader(store.client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(store.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("%w: could not upload %q: %v", ErrUploadFailed, key, err)
	}
	return nil
}
