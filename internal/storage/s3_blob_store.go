package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ignatzorin/wastewatch-backend/internal/logger"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

// Ключи пользовательских метаданных объекта.
const (
	metaOriginalName = "original-name"
	metaUploadedAt   = "uploaded-at"
	metaContentHash  = "content-hash"
)

// S3Config параметры S3-совместимого хранилища.
type S3Config struct {
	Bucket          string
	Region          string
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// S3BlobStore хранит изображения в S3-совместимом бакете.
type S3BlobStore struct {
	client         *s3.Client
	bucket         string
	prefix         string
	maxUploadBytes int64
	now            func() time.Time
}

func NewS3BlobStore(ctx context.Context, cfg S3Config, maxUploadMB int64) (*S3BlobStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось загрузить конфигурацию AWS: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("storage: бакет %s недоступен: %w", cfg.Bucket, err)
	}
	logger.Log.WithField("bucket", cfg.Bucket).Info("storage: подключено S3-хранилище")

	return &S3BlobStore{
		client:         client,
		bucket:         cfg.Bucket,
		prefix:         cfg.Prefix,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
		now:            func() time.Time { return time.Now().UTC() },
	}, nil
}

var _ BlobStore = (*S3BlobStore)(nil)

func (s *S3BlobStore) key(id string) string {
	return s.prefix + id
}

func (s *S3BlobStore) Put(ctx context.Context, data []byte, meta BlobMeta) (*BlobInfo, error) {
	if int64(len(data)) > s.maxUploadBytes {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "размер файла превышает лимит %d байт", s.maxUploadBytes)
	}

	now := s.now()
	id, err := NewBlobID(meta.OriginalName, now)
	if err != nil {
		return nil, err
	}
	info := &BlobInfo{
		ID:           id,
		OriginalName: meta.OriginalName,
		ContentType:  meta.ContentType,
		Size:         int64(len(data)),
		ETag:         ETag(data),
		UploadedAt:   now,
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(id)),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(meta.ContentType),
		ContentLength: aws.Int64(info.Size),
		CacheControl:  aws.String(ImmutableCacheControl),
		Metadata: map[string]string{
			// значения метаданных S3 должны быть ASCII
			metaOriginalName: url.QueryEscape(meta.OriginalName),
			metaUploadedAt:   strconv.FormatInt(now.UnixNano(), 10),
			metaContentHash:  info.ETag,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось загрузить объект в S3: %w", err)
	}
	return info, nil
}

func (s *S3BlobStore) Open(ctx context.Context, id string) (*Blob, error) {
	if err := ValidateBlobID(id); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, apperror.ErrBlobNotFound
		}
		return nil, fmt.Errorf("storage: не удалось получить объект из S3: %w", err)
	}

	info := BlobInfo{
		ID:          id,
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
		ETag:        out.Metadata[metaContentHash],
	}
	if name, err := url.QueryUnescape(out.Metadata[metaOriginalName]); err == nil {
		info.OriginalName = name
	}
	if ns, err := strconv.ParseInt(out.Metadata[metaUploadedAt], 10, 64); err == nil {
		info.UploadedAt = time.Unix(0, ns).UTC()
	}
	if info.ETag == "" {
		info.ETag = aws.ToString(out.ETag)
	}
	return &Blob{BlobInfo: info, Body: out.Body}, nil
}

func (s *S3BlobStore) Delete(ctx context.Context, id string) error {
	if err := ValidateBlobID(id); err != nil {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return fmt.Errorf("storage: не удалось удалить объект из S3: %w", err)
	}
	return nil
}
