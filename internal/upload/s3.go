package upload

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

// S3 uploads to one S3 bucket.
type S3 struct {
	bucket string
	cli    s3iface.S3API
	up     s3manageriface.UploaderAPI
}

// NewS3 creates an S3 uploader. Credentials come from the usual AWS
// environment and shared config.
func NewS3(bucket, region string) (*S3, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3: bucket required")
	}
	sess, err := session.NewSession()
	if err != nil {
		return nil, err
	}
	cli := s3.New(sess, aws.NewConfig().WithRegion(region))
	return newS3WithClient(bucket, cli, s3manager.NewUploaderWithClient(cli)), nil
}

func newS3WithClient(bucket string, cli s3iface.S3API, up s3manageriface.UploaderAPI) *S3 {
	return &S3{bucket: bucket, cli: cli, up: up}
}

// Provider implements Uploader.
func (s *S3) Provider() string { return "s3" }

// Upload writes r under key. The uploader switches to multipart for
// large bodies on its own.
func (s *S3) Upload(ctx context.Context, key string, r io.Reader, size int64) error {
	input := &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		input.ContentType = aws.String(ct)
	}
	_, err := s.up.UploadWithContext(ctx, input)
	return err
}

// Exists reports whether an object with key is present.
func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.cli.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if reqErr, ok := err.(awserr.RequestFailure); ok && reqErr.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	return false, err
}
