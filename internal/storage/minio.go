package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"cv-agent-go/internal/config"
	"cv-agent-go/internal/constants"
	"cv-agent-go/internal/logger"
)

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// UploadDocument 上传原始文档，返回对象键
	UploadDocument(ctx context.Context, analysisID, fileExt string, reader io.Reader, fileSize int64) (string, error)

	// UploadDocumentStreaming 流式上传并同时计算MD5
	UploadDocumentStreaming(ctx context.Context, analysisID, fileExt string, reader io.Reader, fileSize int64) (string, string, error)

	// DownloadDocument 按对象键取回文档内容
	DownloadDocument(ctx context.Context, objectKey string) ([]byte, error)

	// SignedURL 为对象签发限时只读URL
	SignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)

	// DeleteDocument 删除文档
	DeleteDocument(ctx context.Context, objectKey string) error
}

// 确保MinIO实现了ObjectStorage接口
var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client *minio.Client
	cfg    *config.MinIOConfig
	bucket string
}

// NewMinIO 创建MinIO客户端并确保存储桶就绪
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{
		client: client,
		cfg:    cfg,
		bucket: cfg.BucketName,
	}

	if err := m.ensureBucketExists(cfg.BucketName, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保存储桶 %s 存在失败: %w", cfg.BucketName, err)
	}

	if cfg.OriginalFileExpireDays > 0 {
		if err := m.setupBucketLifecycle(context.Background(), "expire-originals", cfg.OriginalFileExpireDays); err != nil {
			logger.Warn().Err(err).Str("bucket", cfg.BucketName).Msg("设置生命周期规则失败")
		}
	}

	logger.Info().
		Str("endpoint", cfg.Endpoint).
		Str("bucket", cfg.BucketName).
		Msg("MinIO客户端初始化完成")
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		if err := m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		logger.Info().Str("bucket", bucketName).Msg("存储桶已创建")
	}
	return nil
}

// setupBucketLifecycle 为存储桶设置过期规则
func (m *MinIO) setupBucketLifecycle(ctx context.Context, ruleID string, expiryDays int) error {
	lc := lifecycle.NewConfiguration()
	lc.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, m.bucket, lc)
}

// documentObjectKey 构建文档的对象键，例如 uploads/<analysisID>/original.pdf
func documentObjectKey(analysisID, fileExt string) string {
	return fmt.Sprintf("%s%s/original%s", constants.OriginalFilePrefix, analysisID, fileExt)
}

// UploadDocument 上传原始文档
func (m *MinIO) UploadDocument(ctx context.Context, analysisID, fileExt string, reader io.Reader, fileSize int64) (string, error) {
	objectKey := documentObjectKey(analysisID, fileExt)
	contentType := getContentType(fileExt)

	info, err := m.client.PutObject(ctx, m.bucket, objectKey, reader, fileSize, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("上传对象 %s/%s 失败: %w", m.bucket, objectKey, err)
	}

	logger.Debug().
		Str("object_key", objectKey).
		Int64("size", info.Size).
		Str("etag", info.ETag).
		Msg("文档上传完成")
	return objectKey, nil
}

// UploadDocumentStreaming 流式上传文档并计算MD5
// 返回: objectKey, md5Hex, error
func (m *MinIO) UploadDocumentStreaming(ctx context.Context, analysisID, fileExt string, reader io.Reader, fileSize int64) (string, string, error) {
	objectKey := documentObjectKey(analysisID, fileExt)
	contentType := getContentType(fileExt)

	md5Hash := md5.New()
	teeReader := io.TeeReader(reader, md5Hash)

	info, err := m.client.PutObject(ctx, m.bucket, objectKey, teeReader, fileSize, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", "", fmt.Errorf("流式上传文档失败: %w", err)
	}

	md5Hex := hex.EncodeToString(md5Hash.Sum(nil))
	logger.Debug().
		Str("object_key", objectKey).
		Int64("size", info.Size).
		Str("md5", md5Hex).
		Msg("文档流式上传完成")
	return objectKey, md5Hex, nil
}

// UploadBytes 从字节数组上传对象
func (m *MinIO) UploadBytes(ctx context.Context, objectKey string, data []byte, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("上传对象 %s/%s 失败: %w", m.bucket, objectKey, err)
	}
	return objectKey, nil
}

// DownloadDocument 取回文档内容
func (m *MinIO) DownloadDocument(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", m.bucket, objectKey, err)
	}
	defer obj.Close()

	// Stat能区分对象不存在和读取失败
	stat, err := obj.Stat()
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 状态失败: %w", m.bucket, objectKey, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 数据失败: %w", m.bucket, objectKey, err)
	}

	logger.Debug().
		Str("object_key", objectKey).
		Int64("size", stat.Size).
		Str("content_type", stat.ContentType).
		Msg("文档下载完成")
	return data, nil
}

// SignedURL 签发限时只读URL
func (m *MinIO) SignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = time.Duration(m.cfg.SignedURLExpireMinutes) * time.Minute
	}
	presignedURL, err := m.client.PresignedGetObject(ctx, m.bucket, objectKey, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("生成预签名URL失败: %w", err)
	}
	return presignedURL.String(), nil
}

// DeleteDocument 删除文档
func (m *MinIO) DeleteDocument(ctx context.Context, objectKey string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", objectKey, err)
	}
	return nil
}

// StatObject 暴露底层StatObject，用于测试和存在性检查
func (m *MinIO) StatObject(ctx context.Context, objectKey string) (minio.ObjectInfo, error) {
	return m.client.StatObject(ctx, m.bucket, objectKey, minio.StatObjectOptions{})
}

// getContentType 按扩展名推断内容类型
func getContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
