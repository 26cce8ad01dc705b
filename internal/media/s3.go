package media

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectAPI is the part of the S3 client the store uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Region          string
	Bucket          string
	// PublicURL is either a base URL or a format string with one %s for the key.
	PublicURL string
}

// S3Store keeps assets in an S3 compatible bucket (R2 when AccountID is set).
type S3Store struct {
	client    ObjectAPI
	bucket    string
	publicURL string
}

func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
		},
	}
	httpClient := &http.Client{Transport: tr}

	opts := []func(*config.LoadOptions) error{
		config.WithHTTPClient(httpClient),
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AccountID != "" {
			o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
		}
	}), nil
}

func NewS3Store(client ObjectAPI, bucket, publicURL string) *S3Store {
	return &S3Store{client: client, bucket: bucket, publicURL: publicURL}
}

func (s *S3Store) Save(ctx context.Context, r io.Reader, originalName string, cat Category) (string, error) {
	if err := cat.Check(originalName); err != nil {
		return "", err
	}
	key := GenerateName(originalName)
	if err := s.put(ctx, r, key, cat); err != nil {
		return "", err
	}
	return key, nil
}

func (s *S3Store) SaveAs(ctx context.Context, r io.Reader, dir, name string, cat Category) (string, error) {
	clean := SanitizeName(name)
	if clean == "" {
		return "", ErrInvalidName
	}
	if err := cat.Check(clean); err != nil {
		return "", err
	}
	key := joinKey(dir, clean)
	if err := s.put(ctx, r, key, cat); err != nil {
		return "", err
	}
	return key, nil
}

// put buffers the body so the size ceiling is checked before anything is
// uploaded and the SDK gets a seekable reader.
func (s *S3Store) put(ctx context.Context, r io.Reader, key string, cat Category) error {
	var buf bytes.Buffer
	if _, err := limitedCopy(&buf, r, cat); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(ContentType(key)),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Remove(ctx context.Context, storedName string) error {
	if storedName == "" {
		return ErrInvalidName
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storedName),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", storedName, err)
	}
	return nil
}

func (s *S3Store) URL(storedName string) string {
	if strings.Contains(s.publicURL, "%s") {
		return CleanURL(fmt.Sprintf(s.publicURL, storedName))
	}
	return CleanURL(strings.TrimRight(s.publicURL, "/") + "/" + storedName)
}

func CleanURL(urlStr string) string {
	urlStr = strings.ReplaceAll(urlStr, " ", "%20")
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}
	return parsedURL.String()
}
