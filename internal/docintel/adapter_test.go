package docintel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-agent-go/internal/parser"
	"cv-agent-go/internal/types"
)

type mockService struct {
	results map[string]*AnalyzeResult
	err     error
	calls   []string
}

func (m *mockService) AnalyzeDocument(ctx context.Context, documentURL string) (*AnalyzeResult, error) {
	m.calls = append(m.calls, documentURL)
	if m.err != nil {
		return nil, m.err
	}
	if result, ok := m.results[documentURL]; ok {
		return result, nil
	}
	return nil, errors.New("unexpected url")
}

type mockAccess struct {
	fixable       bool
	accessibleURL string
}

func (m *mockAccess) Diagnose(resourceID string, err error) (string, bool) {
	return "diagnosed", m.fixable
}

func (m *mockAccess) GetAccessibleURL(ctx context.Context, resourceID, originalURL string) string {
	if m.accessibleURL != "" {
		return m.accessibleURL
	}
	return originalURL
}

type mockFetcher struct {
	data []byte
	err  error
}

func (m *mockFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return m.data, m.err
}

type mockExtractor struct {
	text string
	err  error
}

func (m *mockExtractor) ExtractFromBytes(ctx context.Context, data []byte, uri string) (string, map[string]interface{}, error) {
	if m.err != nil {
		return "", nil, m.err
	}
	return m.text, map[string]interface{}{}, nil
}

func TestAnalyzeStructuredSuccess(t *testing.T) {
	service := &mockService{results: map[string]*AnalyzeResult{
		"https://d.example.com/cv.pdf": structuredResult(),
	}}
	adapter := NewAdapter(WithService(service))

	resume := adapter.Analyze(context.Background(), AnalyzeRequest{
		DocumentURL: "https://d.example.com/cv.pdf",
		ResourceID:  "uploads/a1/original.pdf",
		FileExt:     ".pdf",
	})

	require.NotNil(t, resume)
	assert.Equal(t, types.ExtractionStructured, resume.Metadata.Method)
	assert.Equal(t, "Jane Doe", resume.ContactInfo["name"])
	assert.False(t, resume.IsErrorFallback())
}

func TestAnalyzeFallsBackToReadModelWhenContentEmpty(t *testing.T) {
	result := structuredResult()
	result.Content = "" // 结构化文本为空，应降级到OCR逐页文本
	service := &mockService{results: map[string]*AnalyzeResult{
		"https://d.example.com/cv.pdf": result,
	}}
	adapter := NewAdapter(WithService(service))

	resume := adapter.Analyze(context.Background(), AnalyzeRequest{
		DocumentURL: "https://d.example.com/cv.pdf",
		FileExt:     ".pdf",
	})

	assert.Equal(t, types.ExtractionReadModel, resume.Metadata.Method)
	assert.Contains(t, resume.RawText, "Backend Engineer")
	// 结构化字段在降级后保留
	assert.Equal(t, "jane@example.com", resume.ContactInfo["email"])
}

func TestAnalyzeAccessErrorRetriesWithSignedURL(t *testing.T) {
	signed := "https://signed.example.com/cv.pdf"
	service := &mockService{
		results: map[string]*AnalyzeResult{signed: structuredResult()},
	}
	// 第一次调用返回403，修复后第二次成功
	firstErr := parser.ErrAccessDenied
	callCount := 0
	wrapped := serviceFunc(func(ctx context.Context, url string) (*AnalyzeResult, error) {
		callCount++
		if callCount == 1 {
			return nil, firstErr
		}
		return service.AnalyzeDocument(ctx, url)
	})

	adapter := NewAdapter(
		WithService(wrapped),
		WithAccessResolver(&mockAccess{fixable: true, accessibleURL: signed}),
	)

	resume := adapter.Analyze(context.Background(), AnalyzeRequest{
		DocumentURL: "https://d.example.com/cv.pdf",
		ResourceID:  "uploads/a1/original.pdf",
		FileExt:     ".pdf",
	})

	assert.Equal(t, 2, callCount)
	assert.Equal(t, types.ExtractionStructured, resume.Metadata.Method)
}

type serviceFunc func(ctx context.Context, documentURL string) (*AnalyzeResult, error)

func (f serviceFunc) AnalyzeDocument(ctx context.Context, documentURL string) (*AnalyzeResult, error) {
	return f(ctx, documentURL)
}

func TestAnalyzeServiceDownFallsBackToBinary(t *testing.T) {
	adapter := NewAdapter(
		WithService(&mockService{err: errors.New("service unavailable")}),
		WithFetcher(&mockFetcher{data: []byte("%PDF-1.4 fake bytes")}),
		WithPDFExtractor(&mockExtractor{text: "John Smith\nSenior Engineer at Acme Corp\nSkills: Go, Docker"}),
	)

	resume := adapter.Analyze(context.Background(), AnalyzeRequest{
		DocumentURL: "https://d.example.com/cv.pdf",
		FileExt:     ".pdf",
	})

	assert.Equal(t, types.ExtractionDirectBinary, resume.Metadata.Method)
	assert.Contains(t, resume.RawText, "Senior Engineer")
	// 启发式回填应从文本里识别出技能
	names := make([]string, 0, len(resume.Skills))
	for _, s := range resume.Skills {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "Go")
}

func TestAnalyzeUnsupportedExtFallsToRawDecode(t *testing.T) {
	longText := "This resume describes a software engineer with many years of experience building services."
	adapter := NewAdapter(
		WithFetcher(&mockFetcher{data: []byte(longText)}),
	)

	resume := adapter.Analyze(context.Background(), AnalyzeRequest{
		DocumentURL: "https://d.example.com/cv.rtf",
		FileExt:     ".rtf",
	})

	assert.Equal(t, types.ExtractionHeuristicFallback, resume.Metadata.Method)
	assert.Equal(t, longText, resume.RawText)
}

func TestAnalyzeChainExhaustedReturnsErrorFallback(t *testing.T) {
	// 服务抛非访问类错误，PDF提取器抛错，宽容解码产出不足50个可读字符
	adapter := NewAdapter(
		WithService(&mockService{err: errors.New("internal server error")}),
		WithFetcher(&mockFetcher{data: []byte("short garbage")}),
		WithPDFExtractor(&mockExtractor{err: parser.ErrExtractionFailed}),
	)

	resume := adapter.Analyze(context.Background(), AnalyzeRequest{
		DocumentURL: "https://d.example.com/cv.pdf",
		ResourceID:  "uploads/a1/original.pdf",
		FileExt:     ".pdf",
	})

	require.NotNil(t, resume, "提取链耗尽时必须返回结果对象而不是抛错")
	assert.True(t, resume.IsErrorFallback())
	assert.Equal(t, types.ExtractionErrorFallback, resume.Metadata.Method)
	assert.NotEmpty(t, resume.Metadata.ErrorNote)
	assert.False(t, resume.HasUsableText())
}

func TestAnalyzeFetchFailureReturnsErrorFallback(t *testing.T) {
	adapter := NewAdapter(
		WithFetcher(&mockFetcher{err: parser.ErrTransientNetwork}),
		WithPDFExtractor(&mockExtractor{text: "unused"}),
	)

	resume := adapter.Analyze(context.Background(), AnalyzeRequest{
		DocumentURL: "https://d.example.com/cv.pdf",
		FileExt:     ".pdf",
	})

	assert.True(t, resume.IsErrorFallback())
}
