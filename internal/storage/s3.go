package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/invoicekeeper/internal/common"
	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
)

// S3Config points at an S3-compatible bucket (AWS, MinIO, ...).
type S3Config struct {
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Prefix       string
}

// s3API is the subset of *s3.Client used by S3Backend.
type s3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// S3Backend keeps every document as one object, <prefix>/<type>s/<id>.json.
// Containers are key prefixes; EnsureContainer only makes sure the bucket
// exists.
type S3Backend struct {
	cfg         S3Config
	client      s3API
	bucketReady atomic.Bool
	logger      logging.Logger
}

func NewS3Backend(ctx context.Context, cfg S3Config, logger logging.Logger) (*S3Backend, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Backend(cfg, client, logger), nil
}

func newS3Backend(cfg S3Config, client s3API, logger logging.Logger) *S3Backend {
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &S3Backend{
		cfg:    cfg,
		client: client,
		logger: logger.With("module", "storage", "backend", "s3"),
	}
}

func (b *S3Backend) Name() string { return "s3" }

func (b *S3Backend) key(p string) string {
	if b.cfg.Prefix == "" {
		return p
	}
	return path.Join(b.cfg.Prefix, p)
}

func (b *S3Backend) Exists(ctx context.Context, containerPath string) (bool, error) {
	if strings.Trim(containerPath, "/") == "" {
		return b.bucketExists(ctx)
	}
	out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.cfg.Bucket),
		Prefix:  aws.String(b.key(containerPath) + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, unavailable("list", containerPath, err)
	}
	return len(out.Contents) > 0, nil
}

func (b *S3Backend) bucketExists(ctx context.Context) (bool, error) {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.cfg.Bucket)})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, unavailable("head", b.cfg.Bucket, err)
}

func (b *S3Backend) EnsureContainer(ctx context.Context, containerPath string) error {
	if b.bucketReady.Load() {
		return nil
	}
	ok, err := b.bucketExists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		_, err := b.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(b.cfg.Bucket)})
		if err != nil && !isBucketOwned(err) {
			return unavailable("create bucket", b.cfg.Bucket, err)
		}
		b.logger.Info(ctx, "bucket created", "bucket", b.cfg.Bucket)
	}
	b.bucketReady.Store(true)
	return nil
}

func (b *S3Backend) List(ctx context.Context, t models.DocumentType) ([]models.Document, error) {
	prefix := b.key(t.Container()) + "/"
	docs := []models.Document{}

	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.cfg.Bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			if isS3NotFound(err) {
				return docs, nil
			}
			return nil, unavailable("list", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, prefix)
			if strings.Contains(name, "/") || !isDocumentFile(name) {
				continue
			}
			data, err := b.get(ctx, key)
			if err != nil {
				b.logger.Warn(ctx, "skipping unreadable document", "path", key, "err", err)
				continue
			}
			docs = collect(ctx, b.logger, docs, key, data)
		}
	}
	return docs, nil
}

func (b *S3Backend) get(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (b *S3Backend) Read(ctx context.Context, id string, t models.DocumentType) (models.Document, error) {
	if !models.ValidID(id) {
		return models.Document{}, common.ErrorNotFound
	}
	key := b.key(documentPath(t, id))
	data, err := b.get(ctx, key)
	if err != nil {
		if isS3NotFound(err) {
			return models.Document{}, common.ErrorNotFound
		}
		return models.Document{}, unavailable("get", key, err)
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return models.Document{}, fmt.Errorf("%s: %w", key, err)
	}
	return doc, nil
}

func (b *S3Backend) Write(ctx context.Context, doc models.Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if err := b.EnsureContainer(ctx, doc.Type.Container()); err != nil {
		return err
	}
	key := b.key(documentPath(doc.Type, doc.ID))
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return unavailable("put", key, err)
	}
	return nil
}

// Reserve writes an empty marker object with If-None-Match: *, so only the
// first writer of a given key succeeds.
func (b *S3Backend) Reserve(ctx context.Context, t models.DocumentType, number int) error {
	if err := b.EnsureContainer(ctx, ""); err != nil {
		return err
	}
	key := b.key(reservationPath(t, number))
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(nil),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return common.ErrAlreadyExists
		}
		return unavailable("put", key, err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nsb *types.NoSuchBucket
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nsb) || errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return true
		}
	}
	return false
}

func isBucketOwned(err error) bool {
	var owned *types.BucketAlreadyOwnedByYou
	return errors.As(err, &owned)
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed"
}
