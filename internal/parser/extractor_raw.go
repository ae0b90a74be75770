package parser

import (
	"strings"
	"unicode"

	"cv-agent-go/internal/logger"
)

// RawTextPlaceholder 宽容解码产出过少可读字符时返回的占位串
// 调用方必须把它当作失败信号处理，而不是可用文本
const RawTextPlaceholder = "[UNREADABLE DOCUMENT CONTENT]"

// rawTextMinChars 解码结果中非空白字符的最低数量
const rawTextMinChars = 50

// DecodeRawText 最后一档的字节到文本宽容解码
// 非法字节序列替换而不报错，控制字符剥除但保留换行和制表符
func DecodeRawText(data []byte) string {
	text := strings.ToValidUTF8(string(data), "")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\r' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			continue
		}
		b.WriteRune(r)
	}
	decoded := b.String()

	if countNonWhitespace(decoded) < rawTextMinChars {
		logger.Warn().
			Int("bytes", len(data)).
			Int("readable_chars", countNonWhitespace(decoded)).
			Msg("宽容解码可读字符过少，返回占位文本")
		return RawTextPlaceholder
	}

	return decoded
}

// IsRawTextPlaceholder 判断文本是否为解码失败的占位串
func IsRawTextPlaceholder(text string) bool {
	return strings.TrimSpace(text) == RawTextPlaceholder
}

func countNonWhitespace(s string) int {
	count := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			count++
		}
	}
	return count
}
