package docintel

// 文档理解服务返回的结果结构
// 字段布局跟随服务端协议，映射到内部表示的逻辑在mapper中

// 操作轮询状态
const (
	OperationNotStarted = "notStarted"
	OperationRunning    = "running"
	OperationSucceeded  = "succeeded"
	OperationFailed     = "failed"
)

// operationResponse 轮询接口的响应体
type operationResponse struct {
	Status        string         `json:"status"`
	Error         *serviceError  `json:"error,omitempty"`
	AnalyzeResult *AnalyzeResult `json:"analyzeResult,omitempty"`
}

type serviceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AnalyzeResult 服务端分析结果
type AnalyzeResult struct {
	ModelID    string             `json:"modelId"`
	Content    string             `json:"content"`
	Pages      []Page             `json:"pages"`
	Paragraphs []Paragraph        `json:"paragraphs"`
	Documents  []AnalyzedDocument `json:"documents"`
}

// Page OCR读取层的单页结果
type Page struct {
	PageNumber int    `json:"pageNumber"`
	Lines      []Line `json:"lines"`
}

// Line 单行识别文本
type Line struct {
	Content string `json:"content"`
}

// Paragraph 布局层的段落，Role标记段落角色
type Paragraph struct {
	Role    string `json:"role,omitempty"` // sectionHeading / title / pageNumber 等
	Content string `json:"content"`
}

// AnalyzedDocument 结构化抽取出的文档及其字段
type AnalyzedDocument struct {
	DocType    string           `json:"docType"`
	Confidence float64          `json:"confidence"`
	Fields     map[string]Field `json:"fields"`
}

// Field 结构化字段，按Type取对应的Value成员
type Field struct {
	Type        string           `json:"type"`
	ValueString string           `json:"valueString,omitempty"`
	ValueNumber float64          `json:"valueNumber,omitempty"`
	Content     string           `json:"content,omitempty"`
	Confidence  float64          `json:"confidence,omitempty"`
	ValueArray  []Field          `json:"valueArray,omitempty"`
	ValueObject map[string]Field `json:"valueObject,omitempty"`
}

// Text 返回字段的文本值，优先取类型化的值
func (f Field) Text() string {
	if f.ValueString != "" {
		return f.ValueString
	}
	return f.Content
}
