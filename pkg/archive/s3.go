package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ncats/biggim-gateway/pkg/common/logger"
	"github.com/ncats/biggim-gateway/pkg/reshape"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes reshaped query results to an S3 bucket, one JSON object
// per upstream request id.
type S3Archiver struct {
	client objectPutter
	bucket string
	prefix string
	now    func() time.Time
}

func NewS3Archiver(ctx context.Context, region, bucket, prefix string) (*S3Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	return newS3Archiver(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func newS3Archiver(client objectPutter, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// Key is the object key for requestID, partitioned by UTC day.
func (a *S3Archiver) Key(requestID string) string {
	return path.Join(a.prefix, a.now().UTC().Format("2006/01/02"), requestID+".json")
}

func (a *S3Archiver) Put(ctx context.Context, requestID string, records []reshape.Record) error {
	if records == nil {
		records = []reshape.Record{}
	}
	content, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding records for %s: %w", requestID, err)
	}

	key := a.Key(requestID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{"request-id": requestID},
	})
	if err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", a.bucket, key, err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"bucket":     a.bucket,
		"key":        key,
		"request_id": requestID,
		"records":    len(records),
	}).Debug("Archived query result")
	return nil
}
