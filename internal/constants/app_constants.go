package constants

import "time"

// 分析记录的生命周期状态
const (
	// StatusProcessing 记录创建后的初始状态，流水线进行中
	StatusProcessing = "processing"
	// StatusCompleted 流水线成功结束，结果已写入记录
	StatusCompleted = "completed"
	// StatusFailed 任一阶段终态失败，error字段携带人类可读原因
	StatusFailed = "failed"
)

// 各阶段完成后持久化的进度值，严格单调递增
const (
	ProgressFetched   = 0.1
	ProgressExtracted = 0.3
	ProgressAnalyzed  = 0.5
	ProgressModelSent = 0.8
	ProgressDone      = 1.0
)

// 对象存储中的路径前缀
const (
	OriginalFilePrefix = "uploads/"
)

// 上传接口接受的文件扩展名
var AllowedExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

// SignedURLDefaultTTL 签名URL的默认有效期
const SignedURLDefaultTTL = time.Hour

// StatusCacheTTL Redis中状态镜像的有效期
const StatusCacheTTL = 10 * time.Minute
