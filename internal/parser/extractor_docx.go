package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"cv-agent-go/internal/logger"

	"code.sajari.com/docconv"
)

// DocxTextExtractor 使用docconv按段落提取Word文档文本
type DocxTextExtractor struct{}

// NewDocxTextExtractor 初始化Word文本提取器
func NewDocxTextExtractor() *DocxTextExtractor {
	return &DocxTextExtractor{}
}

// ExtractFromBytes 从字节内容提取全文，段落之间用空行分隔
func (e *DocxTextExtractor) ExtractFromBytes(ctx context.Context, data []byte, uri string) (string, map[string]interface{}, error) {
	startTime := time.Now()

	text, meta, err := docconv.ConvertDocx(bytes.NewReader(data))
	duration := time.Since(startTime)

	metadata := map[string]interface{}{
		"source_uri":             uri,
		"extraction_time":        time.Now().Format(time.RFC3339),
		"processing_duration_ms": duration.Milliseconds(),
	}
	for k, v := range meta {
		metadata[k] = v
	}

	if err != nil {
		logger.Error().
			Err(err).
			Str("uri", uri).
			Msg("DOCX解析失败")
		return "", metadata, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	// 逐段检查，空段落常见于表格排版的简历，只告警
	rawParagraphs := strings.Split(text, "\n")
	var paragraphs []string
	emptyCount := 0
	for i, p := range rawParagraphs {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			emptyCount++
			if emptyCount <= 3 {
				logger.Debug().
					Str("uri", uri).
					Int("paragraph", i+1).
					Msg("DOCX段落为空")
			}
			continue
		}
		paragraphs = append(paragraphs, trimmed)
	}

	fullText := strings.Join(paragraphs, "\n\n")
	metadata["paragraph_count"] = len(rawParagraphs)
	metadata["empty_paragraph_count"] = emptyCount
	metadata["text_length"] = len(fullText)

	if strings.TrimSpace(fullText) == "" {
		return "", metadata, fmt.Errorf("%w: 文档无可用段落", ErrExtractionEmpty)
	}

	logger.Debug().
		Str("uri", uri).
		Int("paragraphs", len(paragraphs)).
		Int("text_length", len(fullText)).
		Dur("duration", duration).
		Msg("DOCX提取完成")

	return fullText, metadata, nil
}
