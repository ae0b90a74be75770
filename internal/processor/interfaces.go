package processor

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"cv-agent-go/internal/docintel"
	"cv-agent-go/internal/storage"
	"cv-agent-go/internal/storage/models"
	"cv-agent-go/internal/types"
)

// DocumentAnalyzer 文档提取链的入口
// Analyze永不抛错，链条耗尽时返回error-fallback形态的结果
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, req docintel.AnalyzeRequest) *types.NormalizedResume
}

// RecordStore 分析记录的持久化操作，生产实现为storage.MySQL
type RecordStore interface {
	GetAnalysisRecord(ctx context.Context, analysisID string) (*models.AnalysisRecord, error)
	UpdateAnalysisFields(ctx context.Context, analysisID string, updates map[string]interface{}) error
	UpdateAnalysisProgress(ctx context.Context, analysisID string, progress float64) error
	MarkAnalysisCompleted(ctx context.Context, analysisID string, result datatypes.JSON) error
	MarkAnalysisFailed(ctx context.Context, analysisID string, errorMessage string) error
}

// StatusCache 状态快照的读穿缓存，生产实现为storage.Redis
type StatusCache interface {
	SetAnalysisStatus(ctx context.Context, snapshot *storage.AnalysisStatusSnapshot) error
}

// ObjectStore 原始文档所在的对象存储，生产实现为storage.MinIO
type ObjectStore interface {
	SignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
}
