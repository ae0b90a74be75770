package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"cv-agent-go/internal/config"
	"cv-agent-go/internal/constants"
	"cv-agent-go/internal/logger"
	"cv-agent-go/internal/storage"
	"cv-agent-go/internal/storage/models"
)

// ErrUnsupportedFileType 上传文件扩展名不在白名单内
var ErrUnsupportedFileType = errors.New("不支持的文件类型")

// ErrAnalysisNotFound 分析记录不存在
var ErrAnalysisNotFound = errors.New("分析记录不存在")

// RecordStore 处理器依赖的记录操作
type RecordStore interface {
	CreateAnalysisRecord(ctx context.Context, record *models.AnalysisRecord) error
	GetAnalysisRecord(ctx context.Context, analysisID string) (*models.AnalysisRecord, error)
	UpdateAnalysisFields(ctx context.Context, analysisID string, updates map[string]interface{}) error
}

// StatusCache 状态快照缓存
type StatusCache interface {
	GetAnalysisStatus(ctx context.Context, analysisID string) (*storage.AnalysisStatusSnapshot, error)
	SetAnalysisStatus(ctx context.Context, snapshot *storage.AnalysisStatusSnapshot) error
}

// ObjectStore 原始文档上传
type ObjectStore interface {
	UploadDocumentStreaming(ctx context.Context, analysisID, fileExt string, reader io.Reader, fileSize int64) (string, string, error)
}

// TaskPublisher 分析任务投递
type TaskPublisher interface {
	PublishAnalysisTask(ctx context.Context, task *storage.AnalysisTaskMessage) error
}

// AnalysisHandler 简历分析的HTTP处理器
type AnalysisHandler struct {
	cfg       *config.Config
	records   RecordStore
	status    StatusCache
	objects   ObjectStore
	publisher TaskPublisher
}

// NewAnalysisHandler 显式注入全部依赖
func NewAnalysisHandler(cfg *config.Config, records RecordStore, status StatusCache, objects ObjectStore, publisher TaskPublisher) *AnalysisHandler {
	return &AnalysisHandler{
		cfg:       cfg,
		records:   records,
		status:    status,
		objects:   objects,
		publisher: publisher,
	}
}

// UploadRequest 上传请求的表单字段
type UploadRequest struct {
	Filename       string
	FileSize       int64
	CandidateName  string
	CandidateEmail string
	RoleTitle      string
	RoleLevel      string
	SourceURL      string
}

// UploadResponse 上传响应
type UploadResponse struct {
	AnalysisID string `json:"analysis_id"`
	Status     string `json:"status"`
}

// StatusResponse 状态查询响应
type StatusResponse struct {
	AnalysisID string  `json:"analysis_id"`
	Status     string  `json:"status"`
	Progress   float64 `json:"progress"`
	Error      string  `json:"error,omitempty"`
}

// HandleUpload 接收上传，创建记录、上传对象存储并投递分析任务
// 同一文件重复上传会生成新的分析，不做去重
func (h *AnalysisHandler) HandleUpload(ctx context.Context, reader io.Reader, req *UploadRequest) (*UploadResponse, error) {
	ext := strings.ToLower(filepath.Ext(req.Filename))
	if req.SourceURL == "" && !constants.AllowedExtensions[ext] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}

	uuidV7, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成分析ID失败: %w", err)
	}
	analysisID := uuidV7.String()

	roleTitle := req.RoleTitle
	if roleTitle == "" {
		roleTitle = h.cfg.Analyzer.DefaultRoleTitle
	}
	roleLevel := req.RoleLevel
	if roleLevel == "" {
		roleLevel = h.cfg.Analyzer.DefaultRoleLevel
	}

	record := &models.AnalysisRecord{
		AnalysisID:       analysisID,
		Status:           constants.StatusProcessing,
		CandidateName:    req.CandidateName,
		CandidateEmail:   req.CandidateEmail,
		RoleTitle:        roleTitle,
		RoleLevel:        roleLevel,
		OriginalFilename: req.Filename,
		SourceURL:        req.SourceURL,
	}
	if err := h.records.CreateAnalysisRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("创建分析记录失败: %w", err)
	}

	var objectKey string
	if req.SourceURL == "" {
		var fileMD5 string
		objectKey, fileMD5, err = h.objects.UploadDocumentStreaming(ctx, analysisID, ext, reader, req.FileSize)
		if err != nil {
			return nil, fmt.Errorf("上传原始文件失败: %w", err)
		}
		updates := map[string]interface{}{
			"object_key": objectKey,
			"file_md5":   fileMD5,
		}
		if err := h.records.UpdateAnalysisFields(ctx, analysisID, updates); err != nil {
			logger.Warn().Err(err).Str("analysis_id", analysisID).Msg("对象键回写失败")
		}
	}

	task := &storage.AnalysisTaskMessage{
		AnalysisID:       analysisID,
		ObjectKey:        objectKey,
		SourceURL:        req.SourceURL,
		OriginalFilename: req.Filename,
		CandidateName:    req.CandidateName,
		CandidateEmail:   req.CandidateEmail,
		RoleTitle:        roleTitle,
		RoleLevel:        roleLevel,
		SubmittedAt:      time.Now().Unix(),
	}
	if err := h.publisher.PublishAnalysisTask(ctx, task); err != nil {
		return nil, fmt.Errorf("投递分析任务失败: %w", err)
	}

	h.cacheStatus(ctx, analysisID, constants.StatusProcessing, 0, "")

	logger.Info().
		Str("analysis_id", analysisID).
		Str("role", roleTitle).
		Str("filename", req.Filename).
		Msg("分析任务已受理")

	return &UploadResponse{AnalysisID: analysisID, Status: constants.StatusProcessing}, nil
}

// HandleStatus 状态查询，缓存优先，未命中读库并回填缓存
func (h *AnalysisHandler) HandleStatus(ctx context.Context, analysisID string) (*StatusResponse, error) {
	if snapshot, err := h.status.GetAnalysisStatus(ctx, analysisID); err == nil {
		return &StatusResponse{
			AnalysisID: snapshot.AnalysisID,
			Status:     snapshot.Status,
			Progress:   snapshot.Progress,
			Error:      snapshot.Error,
		}, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		logger.Warn().Err(err).Str("analysis_id", analysisID).Msg("状态缓存读取失败，回退数据库")
	}

	record, err := h.records.GetAnalysisRecord(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAnalysisNotFound, analysisID)
	}

	h.cacheStatus(ctx, analysisID, record.Status, record.Progress, record.ErrorMessage)
	return &StatusResponse{
		AnalysisID: record.AnalysisID,
		Status:     record.Status,
		Progress:   record.Progress,
		Error:      record.ErrorMessage,
	}, nil
}

// HandleResult 结果查询，仅在完成后返回结果JSON
func (h *AnalysisHandler) HandleResult(ctx context.Context, analysisID string) (map[string]interface{}, error) {
	record, err := h.records.GetAnalysisRecord(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAnalysisNotFound, analysisID)
	}

	response := map[string]interface{}{
		"analysis_id": record.AnalysisID,
		"status":      record.Status,
		"progress":    record.Progress,
	}
	switch record.Status {
	case constants.StatusCompleted:
		var result map[string]interface{}
		if err := json.Unmarshal(record.ResultJSON, &result); err != nil {
			return nil, fmt.Errorf("结果JSON解析失败: %w", err)
		}
		response["result"] = result
	case constants.StatusFailed:
		response["error"] = record.ErrorMessage
	}
	return response, nil
}

func (h *AnalysisHandler) cacheStatus(ctx context.Context, analysisID, status string, progress float64, errMsg string) {
	err := h.status.SetAnalysisStatus(ctx, &storage.AnalysisStatusSnapshot{
		AnalysisID: analysisID,
		Status:     status,
		Progress:   progress,
		Error:      errMsg,
	})
	if err != nil {
		logger.Warn().Err(err).Str("analysis_id", analysisID).Msg("状态缓存写入失败")
	}
}
