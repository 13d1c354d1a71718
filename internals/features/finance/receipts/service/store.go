package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"go.uber.org/zap"

	"impactacademy_backend/internals/configs"
)

// Store persists a rendered receipt and returns its locator.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

/* =======================================================================
   Aliyun OSS
======================================================================= */

type OSSStore struct {
	Bucket     *oss.Bucket
	Endpoint   string
	BucketName string
	PublicBase string
}

func NewOSSStore(cfg configs.ReceiptConfig, log *zap.Logger) (*OSSStore, error) {
	if !cfg.UseOSS() {
		return nil, fmt.Errorf("missing env: ALI_OSS_ENDPOINT/ACCESS_KEY/SECRET_KEY/BUCKET")
	}
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}
	bkt, err := client.Bucket(cfg.OSSBucket)
	if err != nil {
		return nil, fmt.Errorf("client.Bucket: %w", err)
	}

	// light check; a key without GetBucketLocation permission can still write
	if loc, err := client.GetBucketLocation(cfg.OSSBucket); err != nil {
		if se, ok := err.(oss.ServiceError); ok && se.StatusCode == 403 && se.Code == "AccessDenied" {
			log.Warn("skip bucket location check", zap.String("bucket", cfg.OSSBucket))
		} else {
			return nil, fmt.Errorf("verify bucket: %w", err)
		}
	} else {
		log.Info("receipt bucket ready", zap.String("bucket", cfg.OSSBucket), zap.String("location", loc))
	}

	return &OSSStore{
		Bucket:     bkt,
		Endpoint:   cfg.OSSEndpoint,
		BucketName: cfg.OSSBucket,
		PublicBase: configs.GetEnv("ALI_OSS_PUBLIC_BASE"),
	}, nil
}

func (s *OSSStore) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	err := s.Bucket.PutObject(key, bytes.NewReader(body),
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
		oss.CacheControl("private, max-age=0, no-cache"),
	)
	if err != nil {
		return "", fmt.Errorf("oss put %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

func (s *OSSStore) PublicURL(key string) string {
	if s.PublicBase != "" {
		return strings.TrimRight(s.PublicBase, "/") + "/" + key
	}
	end := strings.TrimPrefix(strings.TrimPrefix(s.Endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", s.BucketName, end, key)
}

/* =======================================================================
   Local directory (dev / single node)
======================================================================= */

type LocalStore struct {
	Dir string
}

func (s LocalStore) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	path := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("mkdir receipts: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write receipt: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// NewStore picks OSS when configured, otherwise the local directory.
func NewStore(cfg configs.ReceiptConfig, log *zap.Logger) Store {
	if cfg.UseOSS() {
		st, err := NewOSSStore(cfg, log)
		if err == nil {
			return st
		}
		log.Warn("receipt OSS store unavailable, falling back to local dir", zap.Error(err))
	}
	return LocalStore{Dir: cfg.LocalDir}
}
