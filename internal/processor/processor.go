package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cv-agent-go/internal/analyzer"
	"cv-agent-go/internal/config"
	"cv-agent-go/internal/constants"
	"cv-agent-go/internal/docintel"
	"cv-agent-go/internal/logger"
	"cv-agent-go/internal/storage"
	"cv-agent-go/internal/tracing"
	"cv-agent-go/internal/types"
	"cv-agent-go/pkg/utils"
)

// AnalysisProcessor 简历分析流水线的编排器
// 取回、提取、分析、模型调用、落库各阶段串联，进度单调推进
type AnalysisProcessor struct {
	cfg      *config.Config
	document DocumentAnalyzer
	records  RecordStore
	status   StatusCache
	objects  ObjectStore
	llm      *llmCaller
	tracer   trace.Tracer
}

// NewAnalysisProcessor 显式注入全部依赖
func NewAnalysisProcessor(
	cfg *config.Config,
	document DocumentAnalyzer,
	chatModel model.BaseChatModel,
	records RecordStore,
	status StatusCache,
	objects ObjectStore,
) *AnalysisProcessor {
	return &AnalysisProcessor{
		cfg:      cfg,
		document: document,
		records:  records,
		status:   status,
		objects:  objects,
		llm:      newLLMCaller(chatModel, &cfg.OpenAI),
		tracer:   otel.Tracer("cv-agent-go/processor"),
	}
}

// BuildPayloadAndPrompts 从简历构建提示词对与分析载荷，纯函数，便于独立测试
func BuildPayloadAndPrompts(roleTitle, level string, resume *types.NormalizedResume, opts ...analyzer.Option) (string, string, types.AnalysisPayload) {
	a := analyzer.GetRoleAnalyzer(roleTitle, level, opts...)
	return a.SystemPrompt(), a.UserPrompt(resume), a.CreateAnalysisPayload(resume)
}

// HandleMessage 消费端入口，解码任务消息并执行流水线
// 返回false触发消息重新入队，解码失败的消息直接确认丢弃
func (p *AnalysisProcessor) HandleMessage(data []byte) bool {
	var task storage.AnalysisTaskMessage
	if err := json.Unmarshal(data, &task); err != nil {
		logger.Error().Err(err).Msg("任务消息解码失败，丢弃")
		return true
	}

	ctx := context.Background()
	if err := p.RunAnalysis(ctx, &task); err != nil {
		logger.Error().Err(err).Str("analysis_id", task.AnalysisID).Msg("分析流水线失败")
		// 失败已写入记录终态，重新入队只会重复失败
		return true
	}
	return true
}

// RunAnalysis 执行完整分析流水线并把结果留在记录中
// 同一文档重复提交会重新完整处理，不做去重
func (p *AnalysisProcessor) RunAnalysis(ctx context.Context, task *storage.AnalysisTaskMessage) error {
	ctx, span := p.tracer.Start(ctx, "processor.RunAnalysis",
		trace.WithAttributes(
			attribute.String("analysis.id", task.AnalysisID),
			attribute.String("analysis.role", task.RoleTitle),
		))
	defer span.End()

	if _, err := p.records.GetAnalysisRecord(ctx, task.AnalysisID); err != nil {
		span.SetStatus(codes.Error, "记录不存在")
		return stageError(task.AnalysisID, "load-record", fmt.Errorf("%w: %v", ErrRecordNotFound, err))
	}

	documentURL, err := p.resolveDocumentURL(ctx, task)
	if err != nil {
		return p.fail(ctx, span, task.AnalysisID, "resolve-url", err)
	}
	p.advance(ctx, task.AnalysisID, constants.ProgressFetched)

	resume, err := p.extractResume(ctx, task, documentURL)
	if err != nil {
		return p.fail(ctx, span, task.AnalysisID, "extract", err)
	}
	p.advance(ctx, task.AnalysisID, constants.ProgressExtracted)

	systemPrompt, userPrompt, payload := p.buildPrompts(task, resume)
	if err := p.persistPayload(ctx, task.AnalysisID, resume, payload); err != nil {
		logger.Warn().Err(err).Str("analysis_id", task.AnalysisID).Msg("载荷落库失败，继续分析")
	}
	p.advance(ctx, task.AnalysisID, constants.ProgressAnalyzed)

	p.advance(ctx, task.AnalysisID, constants.ProgressModelSent)
	modelResult, err := p.callModel(ctx, systemPrompt, userPrompt)
	if err != nil {
		return p.fail(ctx, span, task.AnalysisID, "model-call", err)
	}

	if err := p.persistResult(ctx, task.AnalysisID, resume, payload, modelResult); err != nil {
		return p.fail(ctx, span, task.AnalysisID, "persist-result", err)
	}
	p.mirrorStatus(ctx, task.AnalysisID, constants.StatusCompleted, constants.ProgressDone, "")

	span.SetStatus(codes.Ok, "")
	logger.Info().
		Str("analysis_id", task.AnalysisID).
		Str("extraction_method", string(resume.Metadata.Method)).
		Msg("分析流水线完成")
	return nil
}

// resolveDocumentURL 外部URL优先，其次为对象存储的签名URL
func (p *AnalysisProcessor) resolveDocumentURL(ctx context.Context, task *storage.AnalysisTaskMessage) (string, error) {
	if task.SourceURL != "" {
		return task.SourceURL, nil
	}
	if task.ObjectKey == "" {
		return "", fmt.Errorf("任务既无来源URL也无对象键")
	}
	if p.objects == nil {
		return "", fmt.Errorf("未配置对象存储，无法为 %s 生成签名URL", task.ObjectKey)
	}
	ttl := time.Duration(p.cfg.MinIO.SignedURLExpireMinutes) * time.Minute
	url, err := p.objects.SignedURL(ctx, task.ObjectKey, ttl)
	if err != nil {
		return "", fmt.Errorf("生成签名URL失败: %w", err)
	}
	return url, nil
}

// extractResume 执行提取链，error-fallback结果在此显式判定为终态失败
func (p *AnalysisProcessor) extractResume(ctx context.Context, task *storage.AnalysisTaskMessage, documentURL string) (*types.NormalizedResume, error) {
	resume := p.document.Analyze(ctx, docintel.AnalyzeRequest{
		DocumentURL: documentURL,
		ResourceID:  task.AnalysisID,
		FileExt:     p.fileExt(task),
	})
	if resume.IsErrorFallback() {
		return nil, fmt.Errorf("%w: %s", ErrExtractionExhausted, resume.Metadata.ErrorNote)
	}
	return resume, nil
}

func (p *AnalysisProcessor) fileExt(task *storage.AnalysisTaskMessage) string {
	ext := strings.ToLower(filepath.Ext(task.OriginalFilename))
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(task.ObjectKey))
	}
	return ext
}

func (p *AnalysisProcessor) buildPrompts(task *storage.AnalysisTaskMessage, resume *types.NormalizedResume) (string, string, types.AnalysisPayload) {
	roleTitle := task.RoleTitle
	if roleTitle == "" {
		roleTitle = p.cfg.Analyzer.DefaultRoleTitle
	}
	roleLevel := task.RoleLevel
	if roleLevel == "" {
		roleLevel = p.cfg.Analyzer.DefaultRoleLevel
	}
	return BuildPayloadAndPrompts(roleTitle, roleLevel, resume,
		analyzer.WithRawTextCap(p.cfg.Analyzer.RawTextCap))
}

func (p *AnalysisProcessor) persistPayload(ctx context.Context, analysisID string, resume *types.NormalizedResume, payload types.AnalysisPayload) error {
	return p.records.UpdateAnalysisFields(ctx, analysisID, map[string]interface{}{
		"extraction_method": string(resume.Metadata.Method),
		"payload_json":      utils.MarshalToJSONColumn(payload),
	})
}

// callModel 调用聊天模型并解析JSON，任一步失败都是终态，不产出兜底结果
func (p *AnalysisProcessor) callModel(ctx context.Context, systemPrompt, userPrompt string) (map[string]interface{}, error) {
	ctx, span := p.tracer.Start(ctx, "processor.callModel",
		trace.WithAttributes(
			attribute.String("llm.prompt_preview", tracing.SafePromptContent(userPrompt)),
		))
	defer span.End()

	response, err := p.llm.complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeModel)
		return nil, fmt.Errorf("%w: %v", ErrModelCallFailed, err)
	}

	jsonStr := extractJSON(response)
	if jsonStr == "" {
		span.SetStatus(codes.Error, "响应中无JSON")
		return nil, fmt.Errorf("%w: 响应中未找到JSON对象", ErrModelCallFailed)
	}
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		span.SetStatus(codes.Error, "JSON解析失败")
		return nil, fmt.Errorf("%w: 响应JSON解析失败: %v", ErrModelCallFailed, err)
	}
	return result, nil
}

// persistResult 模型结果与分析载荷合并后写入记录终态
func (p *AnalysisProcessor) persistResult(ctx context.Context, analysisID string, resume *types.NormalizedResume, payload types.AnalysisPayload, modelResult map[string]interface{}) error {
	merged := make(map[string]interface{}, len(modelResult)+3)
	for k, v := range modelResult {
		merged[k] = v
	}
	merged["analysis_payload"] = payload
	merged["extraction_method"] = string(resume.Metadata.Method)
	merged["analyzed_at"] = time.Now().UTC().Format(time.RFC3339)

	resultJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("结果序列化失败: %w", err)
	}
	return p.records.MarkAnalysisCompleted(ctx, analysisID, resultJSON)
}

// advance 推进进度并镜像到状态缓存，进度永不回退由存储层保证
func (p *AnalysisProcessor) advance(ctx context.Context, analysisID string, progress float64) {
	if err := p.records.UpdateAnalysisProgress(ctx, analysisID, progress); err != nil {
		logger.Warn().Err(err).Str("analysis_id", analysisID).Msg("进度更新失败")
	}
	p.mirrorStatus(ctx, analysisID, constants.StatusProcessing, progress, "")
}

// mirrorStatus 状态快照写入缓存，尽力而为
func (p *AnalysisProcessor) mirrorStatus(ctx context.Context, analysisID, status string, progress float64, errMsg string) {
	if p.status == nil {
		return
	}
	err := p.status.SetAnalysisStatus(ctx, &storage.AnalysisStatusSnapshot{
		AnalysisID: analysisID,
		Status:     status,
		Progress:   progress,
		Error:      errMsg,
	})
	if err != nil {
		logger.Warn().Err(err).Str("analysis_id", analysisID).Msg("状态缓存写入失败")
	}
}

// fail 写入失败终态并返回阶段错误
func (p *AnalysisProcessor) fail(ctx context.Context, span trace.Span, analysisID, stage string, err error) error {
	tracing.RecordError(span, err, errorTypeOf(err))

	if markErr := p.records.MarkAnalysisFailed(ctx, analysisID, err.Error()); markErr != nil {
		logger.Error().Err(markErr).Str("analysis_id", analysisID).Msg("失败状态落库失败")
	}
	p.mirrorStatus(ctx, analysisID, constants.StatusFailed, 0, err.Error())

	procErr := stageError(analysisID, stage, err)
	if errors.Is(err, ErrExtractionExhausted) || errors.Is(err, ErrModelCallFailed) {
		logger.Error().Err(err).Str("analysis_id", analysisID).Str("stage", stage).Msg("分析终态失败")
	}
	return procErr
}

// errorTypeOf 把阶段错误映射到追踪的错误分类
func errorTypeOf(err error) tracing.ErrorType {
	switch {
	case errors.Is(err, ErrExtractionExhausted):
		return tracing.ErrorTypeExtraction
	case errors.Is(err, ErrModelCallFailed):
		return tracing.ErrorTypeModel
	case errors.Is(err, ErrRecordNotFound):
		return tracing.ErrorTypeDB
	default:
		return tracing.ErrorTypeInternal
	}
}
