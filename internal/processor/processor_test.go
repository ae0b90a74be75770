package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"cv-agent-go/internal/config"
	"cv-agent-go/internal/constants"
	"cv-agent-go/internal/docintel"
	"cv-agent-go/internal/storage"
	"cv-agent-go/internal/storage/models"
	"cv-agent-go/internal/types"
)

type mockDocument struct {
	resume   *types.NormalizedResume
	requests []docintel.AnalyzeRequest
}

func (m *mockDocument) Analyze(_ context.Context, req docintel.AnalyzeRequest) *types.NormalizedResume {
	m.requests = append(m.requests, req)
	return m.resume
}

type mockRecords struct {
	record          *models.AnalysisRecord
	getErr          error
	progressUpdates []float64
	fieldUpdates    []map[string]interface{}
	completedResult datatypes.JSON
	failedMessage   string
}

func (m *mockRecords) GetAnalysisRecord(context.Context, string) (*models.AnalysisRecord, error) {
	return m.record, m.getErr
}

func (m *mockRecords) UpdateAnalysisFields(_ context.Context, _ string, updates map[string]interface{}) error {
	m.fieldUpdates = append(m.fieldUpdates, updates)
	return nil
}

func (m *mockRecords) UpdateAnalysisProgress(_ context.Context, _ string, progress float64) error {
	m.progressUpdates = append(m.progressUpdates, progress)
	return nil
}

func (m *mockRecords) MarkAnalysisCompleted(_ context.Context, _ string, result datatypes.JSON) error {
	m.completedResult = result
	return nil
}

func (m *mockRecords) MarkAnalysisFailed(_ context.Context, _ string, errorMessage string) error {
	m.failedMessage = errorMessage
	return nil
}

type mockStatus struct {
	snapshots []*storage.AnalysisStatusSnapshot
}

func (m *mockStatus) SetAnalysisStatus(_ context.Context, snapshot *storage.AnalysisStatusSnapshot) error {
	m.snapshots = append(m.snapshots, snapshot)
	return nil
}

type mockObjects struct {
	url   string
	err   error
	calls int
}

func (m *mockObjects) SignedURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	m.calls++
	return m.url, m.err
}

type mockChatModel struct {
	responses []string
	errs      []error
	calls     int
}

func (m *mockChatModel) Generate(_ context.Context, _ []*einoschema.Message, _ ...model.Option) (*einoschema.Message, error) {
	idx := m.calls
	m.calls++
	if idx < len(m.errs) && m.errs[idx] != nil {
		return nil, m.errs[idx]
	}
	content := ""
	if idx < len(m.responses) {
		content = m.responses[idx]
	}
	return &einoschema.Message{Role: einoschema.Assistant, Content: content}, nil
}

func (m *mockChatModel) Stream(context.Context, []*einoschema.Message, ...model.Option) (*einoschema.StreamReader[*einoschema.Message], error) {
	return nil, fmt.Errorf("未实现")
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Analyzer.RawTextCap = 2000
	cfg.Analyzer.DefaultRoleTitle = "Backend Developer"
	cfg.Analyzer.DefaultRoleLevel = "mid"
	cfg.MinIO.SignedURLExpireMinutes = 60
	cfg.OpenAI.MaxRetries = 1
	cfg.OpenAI.RetryWaitSeconds = 1
	return cfg
}

func usableResume() *types.NormalizedResume {
	resume := types.NewNormalizedResume(types.ExtractionStructured)
	resume.ContactInfo["name"] = "Jane Doe"
	resume.RawText = "Backend engineer with Python, PostgreSQL and Docker experience."
	resume.AddSkill("Python", 0.9)
	return resume
}

func testTask() *storage.AnalysisTaskMessage {
	return &storage.AnalysisTaskMessage{
		AnalysisID:       "a-123",
		SourceURL:        "https://cv.example.com/resume.pdf",
		OriginalFilename: "resume.pdf",
		RoleTitle:        "Backend Developer",
		RoleLevel:        "mid",
	}
}

const modelResponse = "```json\n{\"overall_score\": 78, \"summary\": \"Solid backend profile.\"}\n```"

func newTestProcessor(doc *mockDocument, chat *mockChatModel, records *mockRecords, status *mockStatus, objects *mockObjects) *AnalysisProcessor {
	return NewAnalysisProcessor(testConfig(), doc, chat, records, status, objects)
}

func TestRunAnalysisHappyPath(t *testing.T) {
	doc := &mockDocument{resume: usableResume()}
	chat := &mockChatModel{responses: []string{modelResponse}}
	records := &mockRecords{record: &models.AnalysisRecord{AnalysisID: "a-123"}}
	status := &mockStatus{}

	p := newTestProcessor(doc, chat, records, status, &mockObjects{})
	err := p.RunAnalysis(context.Background(), testTask())
	require.NoError(t, err)

	assert.Equal(t, []float64{
		constants.ProgressFetched,
		constants.ProgressExtracted,
		constants.ProgressAnalyzed,
		constants.ProgressModelSent,
	}, records.progressUpdates)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(records.completedResult, &result))
	assert.Equal(t, float64(78), result["overall_score"])
	assert.Equal(t, "structured", result["extraction_method"])
	assert.Contains(t, result, "analysis_payload")

	require.NotEmpty(t, status.snapshots)
	last := status.snapshots[len(status.snapshots)-1]
	assert.Equal(t, constants.StatusCompleted, last.Status)
	assert.Equal(t, constants.ProgressDone, last.Progress)
}

func TestRunAnalysisRecordMissing(t *testing.T) {
	records := &mockRecords{getErr: errors.New("record not found")}
	p := newTestProcessor(&mockDocument{}, &mockChatModel{}, records, &mockStatus{}, &mockObjects{})

	err := p.RunAnalysis(context.Background(), testTask())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

// 提取链全部失败是终态：记录标记失败，模型不会被调用
func TestRunAnalysisErrorFallbackIsTerminal(t *testing.T) {
	fallback := types.NewNormalizedResume(types.ExtractionErrorFallback)
	fallback.Metadata.ErrorNote = "所有策略失败"

	doc := &mockDocument{resume: fallback}
	chat := &mockChatModel{responses: []string{modelResponse}}
	records := &mockRecords{record: &models.AnalysisRecord{AnalysisID: "a-123"}}
	status := &mockStatus{}

	p := newTestProcessor(doc, chat, records, status, &mockObjects{})
	err := p.RunAnalysis(context.Background(), testTask())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtractionExhausted)
	assert.Zero(t, chat.calls)
	assert.NotEmpty(t, records.failedMessage)
	assert.Empty(t, records.completedResult)

	last := status.snapshots[len(status.snapshots)-1]
	assert.Equal(t, constants.StatusFailed, last.Status)
}

// 模型调用失败是终态，不产出任何兜底结果
func TestRunAnalysisModelFailureIsTerminal(t *testing.T) {
	doc := &mockDocument{resume: usableResume()}
	chat := &mockChatModel{errs: []error{errors.New("bad request"), errors.New("bad request")}}
	records := &mockRecords{record: &models.AnalysisRecord{AnalysisID: "a-123"}}

	p := newTestProcessor(doc, chat, records, &mockStatus{}, &mockObjects{})
	err := p.RunAnalysis(context.Background(), testTask())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelCallFailed)
	assert.Empty(t, records.completedResult)
	assert.NotEmpty(t, records.failedMessage)
}

func TestRunAnalysisUnparsableModelResponse(t *testing.T) {
	doc := &mockDocument{resume: usableResume()}
	chat := &mockChatModel{responses: []string{"抱歉，我无法分析这份简历。"}}
	records := &mockRecords{record: &models.AnalysisRecord{AnalysisID: "a-123"}}

	p := newTestProcessor(doc, chat, records, &mockStatus{}, &mockObjects{})
	err := p.RunAnalysis(context.Background(), testTask())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelCallFailed)
}

// 无外部URL时用对象存储的签名URL喂给提取链
func TestRunAnalysisResolvesSignedURL(t *testing.T) {
	doc := &mockDocument{resume: usableResume()}
	chat := &mockChatModel{responses: []string{modelResponse}}
	records := &mockRecords{record: &models.AnalysisRecord{AnalysisID: "a-123"}}
	objects := &mockObjects{url: "https://minio.example.com/signed/resume.pdf"}

	task := testTask()
	task.SourceURL = ""
	task.ObjectKey = "uploads/a-123/original.pdf"

	p := newTestProcessor(doc, chat, records, &mockStatus{}, objects)
	require.NoError(t, p.RunAnalysis(context.Background(), task))

	assert.Equal(t, 1, objects.calls)
	require.Len(t, doc.requests, 1)
	assert.Equal(t, objects.url, doc.requests[0].DocumentURL)
	assert.Equal(t, ".pdf", doc.requests[0].FileExt)
}

func TestBuildPayloadAndPrompts(t *testing.T) {
	resume := usableResume()
	systemPrompt, userPrompt, payload := BuildPayloadAndPrompts("DevOps Engineer", "lead", resume)

	assert.Contains(t, systemPrompt, "senior DevOps Engineer")
	assert.Contains(t, userPrompt, "Jane Doe")
	assert.Equal(t, "DevOps Engineer", payload.Role.Title)
	assert.Equal(t, "senior", payload.Role.Level)
}

func TestHandleMessageBadJSONIsDropped(t *testing.T) {
	p := newTestProcessor(&mockDocument{}, &mockChatModel{}, &mockRecords{}, &mockStatus{}, &mockObjects{})
	assert.True(t, p.HandleMessage([]byte("not json")))
}
