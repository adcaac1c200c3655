package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/doctree/internal/common"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}
)

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Options configures an S3-compatible backend such as MinIO.
type S3Options struct {
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	BaseEndpoint string
	// SpoolDir holds uploads while they are hashed and measured before the
	// PutObject call. Empty means os.TempDir.
	SpoolDir string
}

// S3Store keeps blobs in a single bucket.
type S3Store struct {
	api       s3API
	presigner s3Presigner
	bucket    string
	spoolDir  string
}

// NewS3Store builds the client once; it is reused for every request.
func NewS3Store(ctx context.Context, o S3Options) (*S3Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(o.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			o.AccessKey,
			o.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(so *s3.Options) {
		if o.BaseEndpoint != "" {
			so.BaseEndpoint = aws.String(o.BaseEndpoint)
			so.UsePathStyle = true
		}
	})

	return newS3Store(client, newS3PresignClient(client), o.Bucket, o.SpoolDir), nil
}

func newS3Store(api s3API, presigner s3Presigner, bucket, spoolDir string) *S3Store {
	return &S3Store{api: api, presigner: presigner, bucket: bucket, spoolDir: spoolDir}
}

// Put spools r to a temporary file so that the object length and checksum
// are known before upload, then sends it with a single PutObject.
func (s *S3Store) Put(ctx context.Context, r io.Reader, filename, contentType string) (*Object, error) {
	tmp, err := os.CreateTemp(s.spoolDir, "upload-*")
	if err != nil {
		return nil, common.StoreFailure(err, "spool %s", filename)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	dr := newDigestReader(contextReader{ctx: ctx, r: r})
	if _, err := io.Copy(tmp, dr); err != nil {
		return nil, common.StoreFailure(err, "spool %s", filename)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, common.StoreFailure(err, "rewind %s", filename)
	}

	obj := &Object{ID: NewStorageKey(), Size: dr.n, Checksum: dr.Sum()}

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(obj.ID),
		Body:          tmp,
		ContentLength: aws.Int64(obj.Size),
		ContentType:   aws.String(contentType),
		Metadata: map[string]string{
			"filename": url.QueryEscape(filename),
			"checksum": obj.Checksum,
		},
	})
	if err != nil {
		return nil, common.StoreFailure(err, "put object %s", obj.ID)
	}

	return obj, nil
}

func (s *S3Store) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, common.NotFound("blob %s not found", id)
		}
		return nil, common.StoreFailure(err, "get object %s", id)
	}
	return out.Body, nil
}

// Delete is idempotent: S3 reports success for missing keys.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return common.StoreFailure(err, "delete object %s", id)
	}
	return nil
}

func (s *S3Store) PresignGet(ctx context.Context, id, filename string, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(id),
		ResponseContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", filename)),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", common.StoreFailure(err, "presign %s", id)
	}
	return req.URL, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
