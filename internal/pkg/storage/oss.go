package storage

import (
	"context"
	"fmt"
	"io"
	"keyshop/internal/pkg/config"
	"path/filepath"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/google/uuid"
)

// FileStore 商品安装包存储，商品上只记录对象 key
type FileStore interface {
	Put(ctx context.Context, key string, r io.Reader) error
}

type AliyunOSSStore struct {
	bucket *oss.Bucket
}

func NewAliyunOSSStore(cfg config.OSSConfig) (*AliyunOSSStore, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, err
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, err
	}
	return &AliyunOSSStore{bucket: bucket}, nil
}

func (s *AliyunOSSStore) Put(ctx context.Context, key string, r io.Reader) error {
	if err := s.bucket.PutObject(key, r, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("oss put %s: %w", key, err)
	}
	return nil
}

// ObjectKey products/{product_id}/YYYYMMDD/uuid.ext
func ObjectKey(productID, filename string, now time.Time) string {
	return fmt.Sprintf("products/%s/%s/%s%s", productID, now.Format("20060102"), uuid.New().String(), filepath.Ext(filename))
}

var _ FileStore = (*AliyunOSSStore)(nil)
