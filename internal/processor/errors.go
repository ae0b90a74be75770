package processor

import (
	"errors"
	"fmt"
)

var (
	// ErrExtractionExhausted 提取链全部失败，结果为error-fallback占位
	ErrExtractionExhausted = errors.New("所有提取策略均失败")
	// ErrModelCallFailed 模型调用或响应解析失败，分析终止，不产出兜底结果
	ErrModelCallFailed = errors.New("模型调用失败")
	// ErrRecordNotFound 分析记录不存在
	ErrRecordNotFound = errors.New("分析记录不存在")
)

// AnalysisProcessError 流水线阶段错误，携带分析ID与失败阶段
type AnalysisProcessError struct {
	AnalysisID string
	Stage      string
	Err        error
}

func (e *AnalysisProcessError) Error() string {
	return fmt.Sprintf("分析 %s 在阶段 %s 失败: %v", e.AnalysisID, e.Stage, e.Err)
}

func (e *AnalysisProcessError) Unwrap() error {
	return e.Err
}

func stageError(analysisID, stage string, err error) *AnalysisProcessError {
	return &AnalysisProcessError{AnalysisID: analysisID, Stage: stage, Err: err}
}
