// Package s3 provides the Amazon S3 datafile.Location for "s3://" and
// "s3a://" URIs. Any S3-compatible store works through a custom endpoint.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/gobeaver/datafile"
)

// API is the subset of the S3 client used by the adapter.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Adapter provides an S3 implementation of datafile.Location. The bucket
// is taken from each URI.
type Adapter struct {
	client API
}

// New creates a new S3 location
func New(client API) *Adapter {
	return &Adapter{client: client}
}

func parse(op, uri string) (scheme, bucket, key string, err error) {
	scheme = datafile.Scheme(uri)
	bucket, key, err = datafile.SplitObjectURI(uri)
	if err != nil {
		return "", "", "", &datafile.PathError{Op: op, Scheme: scheme, Path: uri, Err: err}
	}
	return scheme, bucket, key, nil
}

// Open implements datafile.Location
func (a *Adapter) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	scheme, bucket, key, err := parse("open", uri)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapS3Error("open", scheme, uri, err)
	}
	return resp.Body, nil
}

// Create implements datafile.Location. The object is uploaded with a
// single PutObject when the stream is closed.
func (a *Adapter) Create(ctx context.Context, uri string, opts ...datafile.Option) (io.WriteCloser, error) {
	scheme, bucket, key, err := parse("create", uri)
	if err != nil {
		return nil, err
	}
	o := datafile.ApplyOptions(opts...)

	return datafile.NewBufferedWriter(ctx, func(ctx context.Context, data []byte) error {
		input := &s3.PutObjectInput{
			Bucket:        aws.String(bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			Metadata:      o.Metadata,
		}
		if o.ContentType != "" {
			input.ContentType = aws.String(o.ContentType)
		}
		if o.CacheControl != "" {
			input.CacheControl = aws.String(o.CacheControl)
		}
		if _, err := a.client.PutObject(ctx, input); err != nil {
			return mapS3Error("create", scheme, uri, err)
		}
		return nil
	}), nil
}

// Exists implements datafile.Location
func (a *Adapter) Exists(ctx context.Context, uri string) (bool, error) {
	scheme, bucket, key, err := parse("exists", uri)
	if err != nil {
		return false, err
	}
	if key == "" || key[len(key)-1] == '/' {
		return false, nil
	}

	_, err = a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, mapS3Error("exists", scheme, uri, err)
	}
	return true, nil
}

// List implements datafile.Location. The literal prefix of the pattern is
// listed and filtered with the glob.
func (a *Adapter) List(ctx context.Context, pattern string) ([]string, error) {
	scheme, bucket, key, err := parse("list", pattern)
	if err != nil {
		return nil, err
	}

	if !datafile.HasWildcard(key) {
		ok, err := a.Exists(ctx, pattern)
		if err != nil || !ok {
			return []string{}, err
		}
		return []string{pattern}, nil
	}

	m, err := datafile.NewKeyMatcher(key)
	if err != nil {
		return nil, &datafile.PathError{Op: "list", Scheme: scheme, Path: pattern, Err: err}
	}

	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(m.Prefix()),
	})

	out := []string{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapS3Error("list", scheme, pattern, err)
		}
		for _, obj := range page.Contents {
			if k := aws.ToString(obj.Key); m.Match(k) {
				out = append(out, datafile.ObjectURI(scheme, bucket, k))
			}
		}
	}
	return out, nil
}

// Delete implements datafile.CanDelete
func (a *Adapter) Delete(ctx context.Context, uri string) error {
	scheme, bucket, key, err := parse("delete", uri)
	if err != nil {
		return err
	}
	_, err = a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapS3Error("delete", scheme, uri, err)
	}
	return nil
}

// Move implements datafile.CanMove using CopyObject + DeleteObject.
// Source and destination may be in different buckets.
func (a *Adapter) Move(ctx context.Context, src, dst string) error {
	scheme, srcBucket, srcKey, err := parse("move", src)
	if err != nil {
		return err
	}
	_, dstBucket, dstKey, err := parse("move", dst)
	if err != nil {
		return err
	}

	// CopySource is "bucket/key" with the key URL-encoded
	copySource := fmt.Sprintf("%s/%s", srcBucket, (&url.URL{Path: srcKey}).EscapedPath())

	_, err = a.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		CopySource: aws.String(copySource),
		Key:        aws.String(dstKey),
	})
	if err != nil {
		return mapS3Error("move", scheme, src, err)
	}
	return a.Delete(ctx, src)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var notFound *types.NotFound
	var noBucket *types.NoSuchBucket
	return errors.As(err, &nsk) || errors.As(err, &notFound) || errors.As(err, &noBucket)
}

// mapS3Error maps S3 errors to datafile errors
func mapS3Error(op, scheme, uri string, err error) error {
	if isNotFound(err) {
		return &datafile.PathError{Op: op, Scheme: scheme, Path: uri, Err: errors.Join(datafile.ErrNotExist, err)}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return &datafile.PathError{Op: op, Scheme: scheme, Path: uri, Err: errors.Join(datafile.ErrPermission, err)}
		case "NotFound":
			return &datafile.PathError{Op: op, Scheme: scheme, Path: uri, Err: errors.Join(datafile.ErrNotExist, err)}
		}
	}

	return &datafile.PathError{Op: op, Scheme: scheme, Path: uri, Err: err}
}

var (
	_ datafile.Location  = (*Adapter)(nil)
	_ datafile.CanDelete = (*Adapter)(nil)
	_ datafile.CanMove   = (*Adapter)(nil)
	_ API                = (*s3.Client)(nil)
)
