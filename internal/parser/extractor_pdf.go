package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cv-agent-go/internal/logger"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

// PDFTextExtractor 使用 Eino PDF Parser 按页提取文本
// 扫描件或损坏文档常见零星空页，空页只告警不报错；全部为空才算提取失败
type PDFTextExtractor struct {
	parser  *pdf.PDFParser
	timeout time.Duration
}

// PDFOption PDF提取器的配置选项
type PDFOption func(*PDFTextExtractor)

// WithPDFTimeout 设置单次解析的超时
func WithPDFTimeout(d time.Duration) PDFOption {
	return func(e *PDFTextExtractor) {
		e.timeout = d
	}
}

// NewPDFTextExtractor 初始化PDF文本提取器
// 按页切分，便于逐页检查空内容
func NewPDFTextExtractor(ctx context.Context, options ...PDFOption) (*PDFTextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: true,
	})
	if err != nil {
		return nil, fmt.Errorf("创建PDF解析器失败: %w", err)
	}

	extractor := &PDFTextExtractor{
		parser:  p,
		timeout: 30 * time.Second,
	}

	for _, option := range options {
		option(extractor)
	}

	return extractor, nil
}

// ExtractFromBytes 从字节内容提取全文
func (e *PDFTextExtractor) ExtractFromBytes(ctx context.Context, data []byte, uri string) (string, map[string]interface{}, error) {
	return e.ExtractFromReader(ctx, bytes.NewReader(data), uri)
}

// ExtractFromReader 从Reader提取全文，按页拼接，页与页之间用空行分隔
func (e *PDFTextExtractor) ExtractFromReader(ctx context.Context, reader io.Reader, uri string) (string, map[string]interface{}, error) {
	startTime := time.Now()

	extraMeta := map[string]interface{}{
		"source_uri":      uri,
		"extraction_time": time.Now().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs, err := e.parser.Parse(ctx, reader,
		einoParser.WithURI(uri),
		einoParser.WithExtraMeta(extraMeta),
	)

	duration := time.Since(startTime)
	if err != nil {
		logger.Error().
			Err(err).
			Str("uri", uri).
			Dur("duration", duration).
			Msg("PDF解析失败")
		return "", extraMeta, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	if len(docs) == 0 {
		return "", extraMeta, fmt.Errorf("%w: 解析器未返回任何页面", ErrExtractionEmpty)
	}

	var pages []string
	emptyPages := 0
	for i, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			emptyPages++
			logger.Warn().
				Str("uri", uri).
				Int("page", i+1).
				Msg("PDF页面未提取到文本")
			continue
		}
		pages = append(pages, content)
	}

	fullText := strings.Join(pages, "\n\n")

	metadata := make(map[string]interface{})
	if docs[0].MetaData != nil {
		for k, v := range docs[0].MetaData {
			metadata[k] = v
		}
	}
	for k, v := range extraMeta {
		metadata[k] = v
	}
	metadata["page_count"] = len(docs)
	metadata["empty_page_count"] = emptyPages
	metadata["text_length"] = len(fullText)
	metadata["processing_duration_ms"] = duration.Milliseconds()

	// 整份文档无可用文本属于硬失败，由调用方降级到下一策略
	if strings.TrimSpace(fullText) == "" {
		return "", metadata, fmt.Errorf("%w: 全部%d页均为空", ErrExtractionEmpty, len(docs))
	}

	if len(fullText) < 100 {
		logger.Warn().
			Str("uri", uri).
			Int("text_length", len(fullText)).
			Msg("PDF提取文本异常偏短，可能是扫描件")
	}

	logger.Debug().
		Str("uri", uri).
		Int("pages", len(docs)).
		Int("text_length", len(fullText)).
		Dur("duration", duration).
		Msg("PDF提取完成")

	return fullText, metadata, nil
}
