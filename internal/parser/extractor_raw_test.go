package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDecodeRawTextKeepsReadableContent 可读内容足够时原样返回
func TestDecodeRawTextKeepsReadableContent(t *testing.T) {
	content := "John Smith\nSenior Backend Engineer with ten years of experience in Go and Python services."
	decoded := DecodeRawText([]byte(content))

	assert.Equal(t, content, decoded)
	assert.False(t, IsRawTextPlaceholder(decoded))
}

// TestDecodeRawTextStripsControlCharacters 控制字符剥除，换行保留
func TestDecodeRawTextStripsControlCharacters(t *testing.T) {
	content := "line one\x00\x01\x02 with garbage\nline two\tindented and long enough to pass the threshold"
	decoded := DecodeRawText([]byte(content))

	assert.NotContains(t, decoded, "\x00")
	assert.NotContains(t, decoded, "\x01")
	assert.Contains(t, decoded, "\n")
	assert.Contains(t, decoded, "\t")
}

// TestDecodeRawTextInvalidUTF8 非法字节序列被替换而不是报错
func TestDecodeRawTextInvalidUTF8(t *testing.T) {
	data := append([]byte("valid prefix describing a software engineer career path in detail"), 0xff, 0xfe, 0xfd)
	data = append(data, []byte(" and a valid suffix")...)

	decoded := DecodeRawText(data)
	assert.Contains(t, decoded, "valid prefix")
	assert.Contains(t, decoded, "valid suffix")
}

// TestDecodeRawTextTooFewReadableChars 少于阈值时返回占位文本
func TestDecodeRawTextTooFewReadableChars(t *testing.T) {
	decoded := DecodeRawText([]byte("short   \n\n  "))

	assert.Equal(t, RawTextPlaceholder, decoded)
	assert.True(t, IsRawTextPlaceholder(decoded))
}

// TestDecodeRawTextBinaryGarbage 纯二进制内容同样落到占位文本
func TestDecodeRawTextBinaryGarbage(t *testing.T) {
	data := make([]byte, 200)
	for i := range data {
		data[i] = byte(i % 32) // 控制字符区
	}
	decoded := DecodeRawText(data)
	assert.True(t, IsRawTextPlaceholder(decoded), "被剥除后的内容不足应返回占位文本: %q", decoded)
}

// TestDecodeRawTextExactlyAtThreshold 阈值边界：49个可读字符仍是占位
func TestDecodeRawTextExactlyAtThreshold(t *testing.T) {
	under := strings.Repeat("a", rawTextMinChars-1)
	assert.True(t, IsRawTextPlaceholder(DecodeRawText([]byte(under))))

	over := strings.Repeat("a", rawTextMinChars)
	assert.False(t, IsRawTextPlaceholder(DecodeRawText([]byte(over))))
}
