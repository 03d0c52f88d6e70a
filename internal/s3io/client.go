// Package s3io uploads pass reports to an S3 bucket, optionally gzip
// compressed and age encrypted with a passphrase.
package s3io

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Client interface {
	Exists(ctx context.Context, key string) (bool, error)
	Upload(ctx context.Context, key string, source io.Reader, compress bool) (int64, error)
}

type client struct {
	client  *s3.Client
	bucket  *string
	secrets *Secrets
}

func NewClient(ctx context.Context, profile, bucket, secrets_file string) (Client, error) {

	// load the profile
	cfg, err := config.LoadDefaultConfig(ctx, config.WithSharedConfigProfile(profile))
	if err != nil {
		return nil, err
	}

	secrets, err := LoadSecrets(secrets_file)
	if err != nil {
		return nil, err
	}

	cl := client{
		client:  s3.NewFromConfig(cfg),
		bucket:  aws.String(bucket),
		secrets: secrets,
	}

	return &cl, nil
}

func (cl *client) Exists(ctx context.Context, key string) (bool, error) {

	_, err := cl.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: cl.bucket,
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var responseError *awshttp.ResponseError
	if errors.As(err, &responseError) && responseError.ResponseError.HTTPStatusCode() == http.StatusNotFound {
		return false, nil
	}

	return false, err
}

func (cl *client) Upload(ctx context.Context, key string, source io.Reader, compress bool) (int64, error) {

	reader, mdata, err := Prepare(source, compress, cl.secrets)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	// count how many bytes actually get uploaded after compression
	//   and encryption
	counter := NewReadCounter(reader)

	// can't use the simple PutObject method because don't know the ContentLength
	// in advance so use an Uploader...
	uploader := manager.NewUploader(cl.client)

	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:   cl.bucket,
		Key:      aws.String(key),
		Body:     counter,
		Metadata: mdata,
	})

	return counter.TotalBytes(), err
}
