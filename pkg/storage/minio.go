package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage 基于MinIO对象存储的文档存储实现
// 对象按 年/月/日/id.ext 组织，与本地存储保持相同的布局
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// MinioConfig MinIO存储配置
type MinioConfig struct {
	Endpoint  string // MinIO服务端点
	AccessKey string // 访问密钥ID
	SecretKey string // 秘密访问密钥
	UseSSL    bool   // 是否使用SSL
	Bucket    string // 存储桶名称
}

// NewMinioStorage 创建MinIO存储实例
// 存储桶不存在时自动创建
func NewMinioStorage(cfg MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %v", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %v", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %v", err)
		}
	}

	return &MinioStorage{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Save 上传文档到MinIO
// 流式上传，不把整篇文档读入内存；MIME类型按扩展名推断
func (s *MinioStorage) Save(reader io.Reader, filename string) (FileInfo, error) {
	id := uuid.New().String()
	ext := filepath.Ext(filename)

	now := time.Now()
	objectName := fmt.Sprintf("%04d/%02d/%02d/%s%s",
		now.Year(), now.Month(), now.Day(), id, ext)

	contentType := getMimeType(filename)
	info, err := s.client.PutObject(
		context.Background(),
		s.bucket,
		objectName,
		reader,
		-1, // 大小未知，走流式分片上传
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to upload object: %v", err)
	}

	return FileInfo{
		ID:       id,
		Name:     filename,
		Size:     info.Size,
		MimeType: contentType,
		Path:     objectName,
	}, nil
}

// Get 获取文档内容
func (s *MinioStorage) Get(id string) (io.ReadCloser, error) {
	objectName, err := s.findObject(id)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(
		context.Background(),
		s.bucket,
		objectName,
		minio.GetObjectOptions{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %v", err)
	}

	return obj, nil
}

// Delete 删除文档
func (s *MinioStorage) Delete(id string) error {
	objectName, err := s.findObject(id)
	if err != nil {
		return err
	}

	err = s.client.RemoveObject(
		context.Background(),
		s.bucket,
		objectName,
		minio.RemoveObjectOptions{},
	)
	if err != nil {
		return fmt.Errorf("failed to delete object: %v", err)
	}

	return nil
}

// List 列出桶内所有文档
func (s *MinioStorage) List() ([]FileInfo, error) {
	var files []FileInfo

	objectCh := s.client.ListObjects(
		context.Background(),
		s.bucket,
		minio.ListObjectsOptions{Recursive: true},
	)
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %v", object.Err)
		}

		files = append(files, FileInfo{
			ID:       objectID(object.Key),
			Name:     filepath.Base(object.Key),
			Size:     object.Size,
			MimeType: getMimeType(object.Key),
			Path:     object.Key,
		})
	}

	return files, nil
}

// Exists 检查指定ID的文档是否存在
func (s *MinioStorage) Exists(id string) (bool, error) {
	_, err := s.findObject(id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// findObject 按ID定位对象名
// 对象名含上传日期，无法由ID直接构造；遍历时命中即取消列举
func (s *MinioStorage) findObject(id string) (string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true})
	for object := range objectCh {
		if object.Err != nil {
			return "", fmt.Errorf("error listing objects: %v", object.Err)
		}
		if objectID(object.Key) == id {
			return object.Key, nil
		}
	}

	return "", fmt.Errorf("file with id %s not found", id)
}

// objectID 从对象名中提取文档ID
func objectID(key string) string {
	name := filepath.Base(key)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
