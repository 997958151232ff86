package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"

	"model-promoter/internal/config"
	"model-promoter/internal/core/domain"
	ports "model-promoter/internal/core/ports/output"
)

type artifactStore struct {
	client *minio.Client
	bucket string
	region string
}

// NewArtifactStore creates an S3-compatible ArtifactStore.
func NewArtifactStore(cfg *config.ObjectStoreConfig) (ports.ArtifactStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &artifactStore{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// Upload copies every file under localPath to <bucket>/<prefix>/ and returns
// the s3 URI of the prefix.
func (s *artifactStore) Upload(ctx context.Context, localPath, prefix string) (string, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", domain.ErrArtifactPathMissing, localPath)
		}
		return "", fmt.Errorf("stat artifact path: %w", err)
	}

	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket %s: %w", s.bucket, err)
	}

	if !info.IsDir() {
		key := path.Join(prefix, filepath.Base(localPath))
		if err := s.putFile(ctx, localPath, key); err != nil {
			return "", err
		}
		return s.uri(prefix), nil
	}

	count := 0
	err = filepath.WalkDir(localPath, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localPath, p)
		if err != nil {
			return err
		}
		if err := s.putFile(ctx, p, path.Join(prefix, filepath.ToSlash(rel))); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", localPath, err)
	}

	log.WithFields(log.Fields{
		"bucket": s.bucket,
		"prefix": prefix,
		"files":  count,
	}).Info("uploaded model artifacts")
	return s.uri(prefix), nil
}

func (s *artifactStore) putFile(ctx context.Context, localPath, key string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *artifactStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
}

func (s *artifactStore) uri(prefix string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, prefix)
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
