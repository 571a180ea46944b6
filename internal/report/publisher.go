package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	miniocredentials "github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const (
	defaultUploadRegionConstant        = "us-east-1"
	defaultArtifactContentTypeConstant = "application/octet-stream"
	uploadLogMessageConstant           = "Published report artifact"
	uploadBucketLogFieldConstant       = "bucket"
	uploadKeyLogFieldConstant          = "key"
	uploadSizeLogFieldConstant         = "bytes"
	ensureBucketErrorTemplateConstant  = "ensure bucket %s: %w"
	putObjectErrorTemplateConstant     = "upload %s: %w"
	storeInitErrorTemplateConstant     = "initialize object store client: %w"
)

var (
	// ErrUploadEndpointRequired indicates the upload endpoint is empty.
	ErrUploadEndpointRequired    = errors.New("upload endpoint is required")
	// ErrUploadBucketRequired indicates the upload bucket is empty.
	ErrUploadBucketRequired      = errors.New("upload bucket is required")
	// ErrUploadCredentialsRequired indicates that the access key or secret key is empty.
	ErrUploadCredentialsRequired = errors.New("upload access key and secret key are required")
	// ErrRunIdentifierRequired indicates that artifacts cannot be keyed without a run identifier.
	ErrRunIdentifierRequired     = errors.New("run identifier is required")
)

// UploadConfiguration describes the S3-compatible destination for rendered artifacts.
type UploadConfiguration struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Artifact is one rendered output ready for upload.
type Artifact struct {
	Name        string
	Content     []byte
	ContentType string
}

// ObjectStore is the subset of an S3 client the publisher needs.
type ObjectStore interface {
	BucketExists(executionContext context.Context, bucket string) (bool, error)
	MakeBucket(executionContext context.Context, bucket string, region string) error
	PutObject(executionContext context.Context, bucket string, key string, content []byte, contentType string) error
}

type minioObjectStore struct {
	client *minio.Client
}

func (store minioObjectStore) BucketExists(executionContext context.Context, bucket string) (bool, error) {
	return store.client.BucketExists(executionContext, bucket)
}

func (store minioObjectStore) MakeBucket(executionContext context.Context, bucket string, region string) error {
	return store.client.MakeBucket(executionContext, bucket, minio.MakeBucketOptions{Region: region})
}

func (store minioObjectStore) PutObject(executionContext context.Context, bucket string, key string, content []byte, contentType string) error {
	_, putError := store.client.PutObject(executionContext, bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{ContentType: contentType})
	return putError
}

// Publisher uploads artifacts under <run-id>/<name> keys.
type Publisher struct {
	store      ObjectStore
	bucket     string
	region     string
	logger     *zap.Logger
	bucketOnce sync.Once
	bucketErr  error
}

// NewS3Publisher validates configuration and connects a minio client to the endpoint.
func NewS3Publisher(configuration UploadConfiguration, logger *zap.Logger) (*Publisher, error) {
	endpoint := strings.TrimSpace(configuration.Endpoint)
	if len(endpoint) == 0 {
		return nil, ErrUploadEndpointRequired
	}
	accessKey := strings.TrimSpace(configuration.AccessKey)
	secretKey := strings.TrimSpace(configuration.SecretKey)
	if len(accessKey) == 0 || len(secretKey) == 0 {
		return nil, ErrUploadCredentialsRequired
	}
	region := strings.TrimSpace(configuration.Region)
	if len(region) == 0 {
		region = defaultUploadRegionConstant
	}

	client, clientError := minio.New(endpoint, &minio.Options{
		Creds:  miniocredentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: configuration.UseSSL,
		Region: region,
	})
	if clientError != nil {
		return nil, fmt.Errorf(storeInitErrorTemplateConstant, clientError)
	}
	return NewPublisher(minioObjectStore{client: client}, configuration.Bucket, region, logger)
}

// NewPublisher constructs a Publisher over an arbitrary ObjectStore.
func NewPublisher(store ObjectStore, bucket string, region string, logger *zap.Logger) (*Publisher, error) {
	trimmedBucket := strings.TrimSpace(bucket)
	if len(trimmedBucket) == 0 {
		return nil, ErrUploadBucketRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{store: store, bucket: trimmedBucket, region: region, logger: logger}, nil
}

// ObjectKey returns the key an artifact is stored under.
func ObjectKey(runID string, name string) string {
	return path.Join(strings.TrimSpace(runID), strings.TrimLeft(path.Clean("/"+name), "/"))
}

// Publish uploads every artifact and returns the written keys in input order.
func (publisher *Publisher) Publish(executionContext context.Context, runID string, artifacts []Artifact) ([]string, error) {
	if len(strings.TrimSpace(runID)) == 0 {
		return nil, ErrRunIdentifierRequired
	}
	if ensureError := publisher.ensureBucket(executionContext); ensureError != nil {
		return nil, fmt.Errorf(ensureBucketErrorTemplateConstant, publisher.bucket, ensureError)
	}

	keys := make([]string, 0, len(artifacts))
	for _, artifact := range artifacts {
		key := ObjectKey(runID, artifact.Name)
		contentType := artifact.ContentType
		if len(contentType) == 0 {
			contentType = defaultArtifactContentTypeConstant
		}
		content := artifact.Content
		if content == nil {
			content = []byte{}
		}
		if putError := publisher.store.PutObject(executionContext, publisher.bucket, key, content, contentType); putError != nil {
			return keys, fmt.Errorf(putObjectErrorTemplateConstant, key, putError)
		}
		publisher.logger.Info(uploadLogMessageConstant,
			zap.String(uploadBucketLogFieldConstant, publisher.bucket),
			zap.String(uploadKeyLogFieldConstant, key),
			zap.Int(uploadSizeLogFieldConstant, len(content)),
		)
		keys = append(keys, key)
	}
	return keys, nil
}

func (publisher *Publisher) ensureBucket(executionContext context.Context) error {
	publisher.bucketOnce.Do(func() {
		exists, existsError := publisher.store.BucketExists(executionContext, publisher.bucket)
		if existsError != nil {
			publisher.bucketErr = existsError
			return
		}
		if exists {
			return
		}
		publisher.bucketErr = publisher.store.MakeBucket(executionContext, publisher.bucket, publisher.region)
	})
	return publisher.bucketErr
}
