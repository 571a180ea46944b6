package report_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/scadrift/internal/report"
)

const (
	testBucketConstant = "drift-reports"
	testRegionConstant = "eu-west-1"
)

type recordedObject struct {
	bucket      string
	key         string
	content     []byte
	contentType string
}

type stubObjectStore struct {
	bucketExists      bool
	existsError       error
	putError          error
	createdBuckets    []string
	existenceChecks   int
	objects           []recordedObject
	createdBucketZone string
}

func (store *stubObjectStore) BucketExists(executionContext context.Context, bucket string) (bool, error) {
	store.existenceChecks++
	return store.bucketExists, store.existsError
}

func (store *stubObjectStore) MakeBucket(executionContext context.Context, bucket string, region string) error {
	store.createdBuckets = append(store.createdBuckets, bucket)
	store.createdBucketZone = region
	return nil
}

func (store *stubObjectStore) PutObject(executionContext context.Context, bucket string, key string, content []byte, contentType string) error {
	if store.putError != nil {
		return store.putError
	}
	store.objects = append(store.objects, recordedObject{bucket: bucket, key: key, content: content, contentType: contentType})
	return nil
}

func TestPublisherUploadsUnderRunPrefix(testInstance *testing.T) {
	store := &stubObjectStore{}
	publisher, publisherError := report.NewPublisher(store, testBucketConstant, testRegionConstant, zap.NewNop())
	require.NoError(testInstance, publisherError)

	keys, publishError := publisher.Publish(context.Background(), testReportRunIDConstant, []report.Artifact{
		{Name: "report.txt", Content: []byte("summary"), ContentType: "text/plain"},
		{Name: "../bundle.yaml", Content: []byte("run_id: x")},
	})
	require.NoError(testInstance, publishError)

	require.Equal(testInstance, []string{"run-0001/report.txt", "run-0001/bundle.yaml"}, keys)
	require.Equal(testInstance, []string{testBucketConstant}, store.createdBuckets)
	require.Equal(testInstance, testRegionConstant, store.createdBucketZone)
	require.Len(testInstance, store.objects, 2)
	require.Equal(testInstance, "text/plain", store.objects[0].contentType)
	require.Equal(testInstance, "application/octet-stream", store.objects[1].contentType)

	_, secondPublishError := publisher.Publish(context.Background(), "run-0002", nil)
	require.NoError(testInstance, secondPublishError)
	require.Equal(testInstance, 1, store.existenceChecks)
}

func TestPublisherSkipsBucketCreationWhenPresent(testInstance *testing.T) {
	store := &stubObjectStore{bucketExists: true}
	publisher, publisherError := report.NewPublisher(store, testBucketConstant, testRegionConstant, nil)
	require.NoError(testInstance, publisherError)

	_, publishError := publisher.Publish(context.Background(), testReportRunIDConstant, []report.Artifact{{Name: "report.txt"}})
	require.NoError(testInstance, publishError)
	require.Empty(testInstance, store.createdBuckets)
	require.NotNil(testInstance, store.objects[0].content)
}

func TestPublisherFailures(testInstance *testing.T) {
	_, missingBucketError := report.NewPublisher(&stubObjectStore{}, " ", testRegionConstant, nil)
	require.ErrorIs(testInstance, missingBucketError, report.ErrUploadBucketRequired)

	publisher, publisherError := report.NewPublisher(&stubObjectStore{}, testBucketConstant, testRegionConstant, nil)
	require.NoError(testInstance, publisherError)
	_, runError := publisher.Publish(context.Background(), "", nil)
	require.ErrorIs(testInstance, runError, report.ErrRunIdentifierRequired)

	existsFailure := errors.New("access denied")
	failingPublisher, _ := report.NewPublisher(&stubObjectStore{existsError: existsFailure}, testBucketConstant, testRegionConstant, nil)
	_, ensureError := failingPublisher.Publish(context.Background(), testReportRunIDConstant, nil)
	require.ErrorIs(testInstance, ensureError, existsFailure)

	putFailure := errors.New("connection reset")
	putPublisher, _ := report.NewPublisher(&stubObjectStore{bucketExists: true, putError: putFailure}, testBucketConstant, testRegionConstant, nil)
	keys, putError := putPublisher.Publish(context.Background(), testReportRunIDConstant, []report.Artifact{{Name: "report.txt"}})
	require.ErrorIs(testInstance, putError, putFailure)
	require.Empty(testInstance, keys)
}

func TestNewS3PublisherValidatesConfiguration(testInstance *testing.T) {
	_, endpointError := report.NewS3Publisher(report.UploadConfiguration{Bucket: testBucketConstant}, nil)
	require.ErrorIs(testInstance, endpointError, report.ErrUploadEndpointRequired)

	_, credentialError := report.NewS3Publisher(report.UploadConfiguration{Endpoint: "minio.local:9000", Bucket: testBucketConstant}, nil)
	require.ErrorIs(testInstance, credentialError, report.ErrUploadCredentialsRequired)

	publisher, publisherError := report.NewS3Publisher(report.UploadConfiguration{
		Endpoint:  "minio.local:9000",
		Bucket:    testBucketConstant,
		AccessKey: "access",
		SecretKey: "secret",
	}, nil)
	require.NoError(testInstance, publisherError)
	require.NotNil(testInstance, publisher)
}
