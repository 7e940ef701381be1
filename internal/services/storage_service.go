// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/gabriel-vasile/mimetype"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/storefront-backend/internal/config"
)

// AssetStore keeps product images outside the database. Upload returns the
// public address that is stored on the product row.
type AssetStore interface {
	Upload(ctx context.Context, name, contentType string, data []byte, public bool) (string, error)
	Delete(ctx context.Context, address string) error
}

// NewAssetStore builds the store selected by STORAGE_DRIVER.
func NewAssetStore(cfg *config.Config, log *logrus.Logger) (AssetStore, error) {
	switch cfg.Storage.Driver {
	case "s3":
		return NewS3AssetStore(cfg.AWS, cfg.Storage.Folder, log)
	case "local":
		return NewLocalAssetStore(cfg.Storage.LocalPath, cfg.Storage.PublicURL, cfg.Storage.Folder)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

type S3AssetStore struct {
	client s3iface.S3API
	cfg    config.AWSConfig
	folder string
	log    *logrus.Logger
}

func NewS3AssetStore(cfg config.AWSConfig, folder string, log *logrus.Logger) (*S3AssetStore, error) {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return newS3AssetStore(s3.New(sess), cfg, folder, log), nil
}

func newS3AssetStore(client s3iface.S3API, cfg config.AWSConfig, folder string, log *logrus.Logger) *S3AssetStore {
	return &S3AssetStore{client: client, cfg: cfg, folder: folder, log: log}
}

func (s *S3AssetStore) Upload(ctx context.Context, name, contentType string, data []byte, public bool) (string, error) {
	key, err := generateObjectKey(name, s.folder)
	if err != nil {
		return "", err
	}

	params := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(detectContentType(contentType, data)),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if public {
		params.ACL = aws.String(s3.ObjectCannedACLPublicRead)
	}

	if _, err := s.client.PutObjectWithContext(ctx, params); err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	s.log.WithFields(logrus.Fields{"key": key, "size": len(data)}).Debug("Asset uploaded")
	return s.objectURL(key), nil
}

func (s *S3AssetStore) Delete(ctx context.Context, address string) error {
	key, ok := s.objectKey(address)
	if !ok {
		return fmt.Errorf("address %q does not belong to bucket %s", address, s.cfg.S3Bucket)
	}

	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

func (s *S3AssetStore) baseURL() string {
	if s.cfg.CloudFrontURL != "" {
		return strings.TrimSuffix(s.cfg.CloudFrontURL, "/")
	}
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(s.cfg.Endpoint, "/"), s.cfg.S3Bucket)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.cfg.S3Bucket, s.cfg.Region)
}

func (s *S3AssetStore) objectURL(key string) string {
	return s.baseURL() + "/" + key
}

func (s *S3AssetStore) objectKey(address string) (string, bool) {
	key, ok := strings.CutPrefix(address, s.baseURL()+"/")
	return key, ok && key != ""
}

// LocalAssetStore writes assets under a directory served at publicURL.
type LocalAssetStore struct {
	root      string
	publicURL string
	folder    string
}

func NewLocalAssetStore(root, publicURL, folder string) (*LocalAssetStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalAssetStore{
		root:      root,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		folder:    folder,
	}, nil
}

func (s *LocalAssetStore) Upload(ctx context.Context, name, contentType string, data []byte, public bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key, err := generateObjectKey(name, s.folder)
	if err != nil {
		return "", err
	}

	target := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return s.publicURL + "/" + key, nil
}

func (s *LocalAssetStore) Delete(ctx context.Context, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key, ok := strings.CutPrefix(address, s.publicURL+"/")
	if !ok || key == "" {
		return fmt.Errorf("address %q is not a local asset", address)
	}
	clean := path.Clean("/" + key)[1:]
	if clean != key {
		return fmt.Errorf("address %q is not a local asset", address)
	}

	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Root is the directory served as the public upload prefix.
func (s *LocalAssetStore) Root() string {
	return s.root
}

func generateObjectKey(originalName, folder string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate object key: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	timestamp := time.Now().UTC().Format("20060102")
	filename := fmt.Sprintf("%s_%s%s", timestamp, id, ext)

	if folder != "" {
		return path.Join(folder, filename), nil
	}
	return filename, nil
}

// detectContentType trusts the declared type unless it is missing or generic.
func detectContentType(declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(data).String()
}
