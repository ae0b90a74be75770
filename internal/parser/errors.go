package parser

import "errors"

// 提取与取回阶段的基础错误，供上层用 errors.Is 判断后续策略
var (
	// ErrInvalidURL URL缺少scheme或host，快速失败，不重试
	ErrInvalidURL = errors.New("无效的文档URL")

	// ErrAccessDenied 403类错误，不盲目重试，交给访问诊断处理
	ErrAccessDenied = errors.New("文档访问被拒绝")

	// ErrNotFound 404类错误，终态
	ErrNotFound = errors.New("文档不存在")

	// ErrTransientNetwork 超时、5xx、连接被重置等瞬时网络错误
	ErrTransientNetwork = errors.New("瞬时网络错误")

	// ErrUnsupportedFormat 缺少该格式的解码能力
	ErrUnsupportedFormat = errors.New("不支持的文档格式")

	// ErrExtractionFailed 解码过程抛出错误
	ErrExtractionFailed = errors.New("文本提取失败")

	// ErrExtractionEmpty 解码完成但没有产出可用文本，视为失败并触发降级
	ErrExtractionEmpty = errors.New("提取结果为空")
)
