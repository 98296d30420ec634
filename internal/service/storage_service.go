package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"paperflow_backend/internal/config"
	"paperflow_backend/internal/util"
	"paperflow_backend/pkg/logger"

	gcs "cloud.google.com/go/storage"
	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StorageProvider 定义通用存储接口
type StorageProvider interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// LocalStorageProvider 本地存储实现
type LocalStorageProvider struct {
	Root string
}

func (p *LocalStorageProvider) path(key string) (string, error) {
	dst := filepath.Join(p.Root, filepath.FromSlash(key))
	root := filepath.Clean(p.Root)
	if dst != root && !strings.HasPrefix(dst, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: key escapes storage root", util.ErrInvalidInput)
	}
	return dst, nil
}

func (p *LocalStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	dst, err := p.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, reader)
	return err
}

func (p *LocalStorageProvider) Download(ctx context.Context, key string) ([]byte, error) {
	src, err := p.path(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(src)
}

func (p *LocalStorageProvider) Delete(ctx context.Context, key string) error {
	dst, err := p.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(dst)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MinioStorageProvider MinIO存储实现
type MinioStorageProvider struct {
	Bucket string
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Bucket: cfg.MinioBucket, Client: client}, nil
}

func (p *MinioStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := p.Client.PutObject(ctx, p.Bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (p *MinioStorageProvider) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := p.Client.GetObject(ctx, p.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (p *MinioStorageProvider) Delete(ctx context.Context, key string) error {
	return p.Client.RemoveObject(ctx, p.Bucket, key, minio.RemoveObjectOptions{})
}

// OSSStorageProvider 阿里云OSS存储实现
type OSSStorageProvider struct {
	Bucket *oss.Bucket
}

func NewOSSStorageProvider(cfg *config.StorageConfig) (*OSSStorageProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	bucket, err := client.Bucket(cfg.OSSBucket)
	if err != nil {
		return nil, err
	}
	return &OSSStorageProvider{Bucket: bucket}, nil
}

func (p *OSSStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	return p.Bucket.PutObject(key, reader, oss.ContentType(contentType), oss.WithContext(ctx))
}

func (p *OSSStorageProvider) Download(ctx context.Context, key string) ([]byte, error) {
	body, err := p.Bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (p *OSSStorageProvider) Delete(ctx context.Context, key string) error {
	return p.Bucket.DeleteObject(key, oss.WithContext(ctx))
}

// GCSStorageProvider Google Cloud Storage 实现，凭证走 ADC
type GCSStorageProvider struct {
	Bucket string
	Client *gcs.Client
}

func NewGCSStorageProvider(ctx context.Context, cfg *config.StorageConfig) (*GCSStorageProvider, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStorageProvider{Bucket: cfg.GCSBucket, Client: client}, nil
}

func (p *GCSStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	w := p.Client.Bucket(p.Bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, reader); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (p *GCSStorageProvider) Download(ctx context.Context, key string) ([]byte, error) {
	r, err := p.Client.Bucket(p.Bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (p *GCSStorageProvider) Delete(ctx context.Context, key string) error {
	err := p.Client.Bucket(p.Bucket).Object(key).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return err
}

// NewStorageProvider 按配置选择存储后端，远端初始化失败时回退到本地目录
func NewStorageProvider(ctx context.Context, cfg *config.StorageConfig) StorageProvider {
	var (
		provider StorageProvider
		err      error
	)
	switch cfg.Type {
	case util.StorageMinio:
		provider, err = NewMinioStorageProvider(cfg)
	case util.StorageOSS:
		provider, err = NewOSSStorageProvider(cfg)
	case util.StorageGCS:
		provider, err = NewGCSStorageProvider(ctx, cfg)
	case util.StorageLocal, "":
	default:
		logger.Log.Warn("Unknown storage type, using local", zap.String("type", cfg.Type))
	}
	if err != nil {
		logger.Log.Warn("Storage backend init failed, falling back to local",
			zap.String("type", cfg.Type), zap.Error(err))
		provider = nil
	}

	if provider == nil {
		provider = &LocalStorageProvider{Root: cfg.LocalPath}
	}
	return provider
}

// StoredObject 一次写入的结果
type StoredObject struct {
	Key      string
	MimeType string
	Size     int64
}

// DocumentStore 试卷文件存储：按 owner/job 划分命名空间，key 带随机前缀避免同名覆盖
type DocumentStore struct {
	Provider StorageProvider
}

func NewDocumentStore(provider StorageProvider) *DocumentStore {
	return &DocumentStore{Provider: provider}
}

// ObjectKey owner/job/<uuid>-<filename>
func ObjectKey(ownerID, jobID, filename string) string {
	return fmt.Sprintf("%s/%s/%s-%s", ownerID, jobID, uuid.New().String(), util.SanitizeFilename(filename))
}

// Store 校验并写入一个文件。校验失败返回 ErrInvalidInput，写入失败返回 ErrStorageUnavailable。
func (s *DocumentStore) Store(ctx context.Context, ownerID, jobID, filename string, data []byte, declaredType string) (*StoredObject, error) {
	if ownerID == "" || jobID == "" {
		return nil, fmt.Errorf("%w: owner and job are required", util.ErrInvalidInput)
	}
	mimeType, err := util.ValidateDocument(data, declaredType)
	if err != nil {
		return nil, err
	}

	key := ObjectKey(ownerID, jobID, filename)
	if err := s.Provider.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), mimeType); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrStorageUnavailable, err)
	}
	return &StoredObject{Key: key, MimeType: mimeType, Size: int64(len(data))}, nil
}

// Fetch 读取文件内容并嗅探类型。对象缺失同样视为存储不可用，与任务不存在区分开。
func (s *DocumentStore) Fetch(ctx context.Context, key string) ([]byte, string, error) {
	data, err := s.Provider.Download(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", util.ErrStorageUnavailable, err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: object %s is empty", util.ErrStorageUnavailable, key)
	}
	return data, util.NormalizeMimeType(util.DetectMimeType(data)), nil
}

// Remove 尽力删除，失败只记录日志
func (s *DocumentStore) Remove(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.Provider.Delete(ctx, key); err != nil {
			logger.Log.Warn("Failed to delete stored object", zap.String("key", key), zap.Error(err))
		}
	}
}
