package docintel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cv-agent-go/internal/logger"
	"cv-agent-go/internal/parser"
	"cv-agent-go/internal/tracing"
	"cv-agent-go/internal/types"
)

var adapterTracer = otel.Tracer("cv-agent-go/docintel")

// BinaryExtractor 按格式解码二进制文档的抽象
type BinaryExtractor interface {
	ExtractFromBytes(ctx context.Context, data []byte, uri string) (string, map[string]interface{}, error)
}

// Fetcher 远程取回文档字节的抽象
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// AccessResolver 访问诊断能力的抽象
type AccessResolver interface {
	Diagnose(resourceID string, err error) (string, bool)
	GetAccessibleURL(ctx context.Context, resourceID, originalURL string) string
}

// AnalyzeRequest 一次文档分析请求
type AnalyzeRequest struct {
	DocumentURL string
	ResourceID  string
	FileExt     string
}

// Adapter 文档理解适配器
// 按固定顺序尝试多条提取策略，无论如何都返回一个结果对象
type Adapter struct {
	service ServiceClient
	access  AccessResolver
	fetcher Fetcher
	pdf     BinaryExtractor
	docx    BinaryExtractor
}

// AdapterOption Adapter的配置选项
type AdapterOption func(*Adapter)

// WithService 注入文档理解服务客户端
func WithService(service ServiceClient) AdapterOption {
	return func(a *Adapter) { a.service = service }
}

// WithAccessResolver 注入访问诊断能力
func WithAccessResolver(resolver AccessResolver) AdapterOption {
	return func(a *Adapter) { a.access = resolver }
}

// WithFetcher 注入远程取回器
func WithFetcher(fetcher Fetcher) AdapterOption {
	return func(a *Adapter) { a.fetcher = fetcher }
}

// WithPDFExtractor 注入PDF提取器
func WithPDFExtractor(extractor BinaryExtractor) AdapterOption {
	return func(a *Adapter) { a.pdf = extractor }
}

// WithDocxExtractor 注入Word提取器
func WithDocxExtractor(extractor BinaryExtractor) AdapterOption {
	return func(a *Adapter) { a.docx = extractor }
}

// NewAdapter 创建适配器，所有依赖都通过选项显式注入
func NewAdapter(options ...AdapterOption) *Adapter {
	a := &Adapter{}
	for _, option := range options {
		option(a)
	}
	return a
}

// chainState 各策略共享的中间产物
type chainState struct {
	req           AnalyzeRequest
	serviceResult *AnalyzeResult
	serviceErr    error
	docBytes      []byte
	bytesFetched  bool
	fetchErr      error
	lastErr       error
}

// ensureBytes 懒取回文档字节，只取一次
func (a *Adapter) ensureBytes(ctx context.Context, s *chainState) ([]byte, error) {
	if s.bytesFetched {
		return s.docBytes, s.fetchErr
	}
	s.bytesFetched = true

	if a.fetcher == nil {
		s.fetchErr = errors.New("未配置远程取回器")
		return nil, s.fetchErr
	}

	fetchURL := s.req.DocumentURL
	if a.access != nil {
		fetchURL = a.access.GetAccessibleURL(ctx, s.req.ResourceID, s.req.DocumentURL)
	}

	s.docBytes, s.fetchErr = a.fetcher.Fetch(ctx, fetchURL)
	return s.docBytes, s.fetchErr
}

// strategy 提取链中的一环：前置条件满足才执行
type strategy struct {
	method       types.ExtractionMethod
	precondition func(s *chainState) bool
	run          func(ctx context.Context, s *chainState) (*types.NormalizedResume, error)
}

// strategies 按保真度从高到低的提取链
func (a *Adapter) strategies() []strategy {
	return []strategy{
		{
			method:       types.ExtractionStructured,
			precondition: func(s *chainState) bool { return HasStructuredFields(s.serviceResult) },
			run: func(ctx context.Context, s *chainState) (*types.NormalizedResume, error) {
				resume := MapStructured(s.serviceResult)
				if !resume.HasUsableText() {
					return nil, fmt.Errorf("%w: 结构化结果无文本内容", parser.ErrExtractionEmpty)
				}
				return resume, nil
			},
		},
		{
			method:       types.ExtractionReadModel,
			precondition: func(s *chainState) bool { return HasPages(s.serviceResult) },
			run: func(ctx context.Context, s *chainState) (*types.NormalizedResume, error) {
				text := ReadModelText(s.serviceResult)
				if strings.TrimSpace(text) == "" {
					return nil, fmt.Errorf("%w: OCR逐页结果无文本", parser.ErrExtractionEmpty)
				}
				// 保留已映射出的结构化字段，只替换原始文本来源
				resume := MapStructured(s.serviceResult)
				resume.RawText = text
				return resume, nil
			},
		},
		{
			method:       types.ExtractionLayoutModel,
			precondition: func(s *chainState) bool { return HasParagraphs(s.serviceResult) },
			run: func(ctx context.Context, s *chainState) (*types.NormalizedResume, error) {
				text, sections := LayoutText(s.serviceResult)
				if strings.TrimSpace(text) == "" {
					return nil, fmt.Errorf("%w: 布局段落无文本", parser.ErrExtractionEmpty)
				}
				resume := MapStructured(s.serviceResult)
				resume.RawText = text
				if len(sections) > 0 {
					resume.Sections = sections
				}
				return resume, nil
			},
		},
		{
			method:       types.ExtractionDirectBinary,
			precondition: func(s *chainState) bool { return a.fetcher != nil },
			run: func(ctx context.Context, s *chainState) (*types.NormalizedResume, error) {
				data, err := a.ensureBytes(ctx, s)
				if err != nil {
					return nil, err
				}
				extractor, err := a.extractorForExt(s.req.FileExt)
				if err != nil {
					return nil, err
				}
				text, _, err := extractor.ExtractFromBytes(ctx, data, s.req.DocumentURL)
				if err != nil {
					return nil, err
				}
				resume := types.NewNormalizedResume(types.ExtractionDirectBinary)
				resume.RawText = text
				return resume, nil
			},
		},
		{
			method:       types.ExtractionHeuristicFallback,
			precondition: func(s *chainState) bool { return a.fetcher != nil },
			run: func(ctx context.Context, s *chainState) (*types.NormalizedResume, error) {
				data, err := a.ensureBytes(ctx, s)
				if err != nil {
					return nil, err
				}
				text := parser.DecodeRawText(data)
				if parser.IsRawTextPlaceholder(text) {
					return nil, fmt.Errorf("%w: 宽容解码后可读字符过少", parser.ErrExtractionEmpty)
				}
				resume := types.NewNormalizedResume(types.ExtractionHeuristicFallback)
				resume.RawText = text
				return resume, nil
			},
		},
	}
}

// extractorForExt 按扩展名路由到对应的二进制提取器
func (a *Adapter) extractorForExt(fileExt string) (BinaryExtractor, error) {
	switch strings.ToLower(fileExt) {
	case ".pdf":
		if a.pdf == nil {
			return nil, fmt.Errorf("%w: 未配置PDF提取器", parser.ErrUnsupportedFormat)
		}
		return a.pdf, nil
	case ".doc", ".docx":
		if a.docx == nil {
			return nil, fmt.Errorf("%w: 未配置Word提取器", parser.ErrUnsupportedFormat)
		}
		return a.docx, nil
	default:
		return nil, fmt.Errorf("%w: %s", parser.ErrUnsupportedFormat, fileExt)
	}
}

// Analyze 对文档URL执行完整提取链
// 永不向调用方抛错：所有策略失败时返回error-fallback形态的结果，
// 调用方必须显式检查IsErrorFallback
func (a *Adapter) Analyze(ctx context.Context, req AnalyzeRequest) *types.NormalizedResume {
	ctx, span := adapterTracer.Start(ctx, "docintel.Analyze",
		trace.WithAttributes(
			attribute.String("document.resource_id", req.ResourceID),
			attribute.String("document.file_ext", req.FileExt),
		))
	defer span.End()

	s := &chainState{req: req}

	a.callService(ctx, s)
	if s.serviceErr != nil {
		s.lastErr = s.serviceErr
	}

	for _, strat := range a.strategies() {
		if !strat.precondition(s) {
			continue
		}

		resume, err := strat.run(ctx, s)
		if err != nil {
			s.lastErr = err
			logger.Warn().
				Err(err).
				Str("strategy", string(strat.method)).
				Str("resource_id", req.ResourceID).
				Msg("提取策略失败，尝试下一条")
			continue
		}
		if !resume.HasUsableText() {
			s.lastErr = fmt.Errorf("%w: 策略%s产出空文本", parser.ErrExtractionEmpty, strat.method)
			continue
		}

		resume.Metadata.Method = strat.method
		parser.EnrichResume(resume)

		span.SetAttributes(
			attribute.String("extraction.method", string(strat.method)),
			attribute.String("extraction.text_preview", tracing.SafeResumeContent(resume.RawText)),
		)
		span.SetStatus(codes.Ok, "")
		logger.Info().
			Str("strategy", string(strat.method)).
			Str("resource_id", req.ResourceID).
			Int("text_length", len(resume.RawText)).
			Msg("文档提取完成")
		return resume
	}

	// 链条耗尽：返回终态结果而不是抛错
	errNote := "所有提取策略均失败"
	if s.lastErr != nil {
		errNote = s.lastErr.Error()
	}
	tracing.RecordError(span, errors.New(errNote), tracing.ErrorTypeExtraction)
	logger.Error().
		Str("resource_id", req.ResourceID).
		Str("error_note", errNote).
		Msg("提取链耗尽，返回error-fallback结果")

	resume := types.NewNormalizedResume(types.ExtractionErrorFallback)
	resume.Metadata.ErrorNote = errNote
	return resume
}

// callService 调用文档理解服务，访问类失败时换可访问URL重试一次
func (a *Adapter) callService(ctx context.Context, s *chainState) {
	if a.service == nil {
		s.serviceErr = errors.New("未配置文档理解服务")
		return
	}

	result, err := a.service.AnalyzeDocument(ctx, s.req.DocumentURL)
	if err != nil && a.access != nil {
		message, fixable := a.access.Diagnose(s.req.ResourceID, err)
		logger.Warn().
			Str("resource_id", s.req.ResourceID).
			Bool("fixable", fixable).
			Msg(message)

		if fixable {
			retryURL := a.access.GetAccessibleURL(ctx, s.req.ResourceID, s.req.DocumentURL)
			if retryURL != s.req.DocumentURL {
				result, err = a.service.AnalyzeDocument(ctx, retryURL)
			}
		}
	}

	s.serviceResult = result
	s.serviceErr = err
}
