// internal/services/storage_service.go
package services

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/wellpont/wellpont-backend/internal/config"
)

// StorageService archives generated statements. With AWS credentials it
// writes to S3 and hands out presigned download links; without them it falls
// back to the local filesystem for development.
type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
}

type StoredStatement struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

const localStatementDir = "statements"

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	if cfg.AWS.AccessKeyID == "" {
		return &StorageService{config: cfg}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   cfg,
	}, nil
}

// StoreStatement persists one statement file under the given key. Statement
// archives are financial records, so nothing here is public-read; retrieval
// goes through presigned URLs.
func (s *StorageService) StoreStatement(key string, content []byte, contentType string) (*StoredStatement, error) {
	if s.s3Client == nil {
		return s.storeLocal(key, content)
	}

	_, err := s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(content))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload statement to S3: %w", err)
	}

	url, err := s.PresignedURL(key, 24*time.Hour)
	if err != nil {
		return nil, err
	}

	return &StoredStatement{
		Key:  key,
		URL:  url,
		Size: int64(len(content)),
	}, nil
}

func (s *StorageService) storeLocal(key string, content []byte) (*StoredStatement, error) {
	path := filepath.Join(localStatementDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create statement directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write statement file: %w", err)
	}

	return &StoredStatement{
		Key:  key,
		URL:  "file://" + path,
		Size: int64(len(content)),
	}, nil
}

func (s *StorageService) PresignedURL(key string, expiration time.Duration) (string, error) {
	if s.s3Client == nil {
		return "file://" + filepath.Join(localStatementDir, filepath.FromSlash(key)), nil
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url, nil
}
