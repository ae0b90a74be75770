package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cv-agent-go/internal/constants"
	"cv-agent-go/internal/logger"
	"cv-agent-go/internal/parser"
)

// Classification 访问类错误的归类结果
type Classification int

const (
	// ClassUnknown 无法归类，默认不可修复
	ClassUnknown Classification = iota
	// ClassNotFound 资源不存在，不可修复
	ClassNotFound
	// ClassForbidden 受限访问，可通过签名URL修复
	ClassForbidden
	// ClassAuthFailure 凭证失败，不可修复
	ClassAuthFailure
)

// URLSigner 由对象存储实现：为对象签发限时只读URL
type URLSigner interface {
	SignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
}

// Prober 轻量存在性探测，不拉取内容
type Prober interface {
	Probe(ctx context.Context, rawURL string) error
}

// Diagnostics 访问诊断：归类取回/提取失败，并在可修复时签发可访问URL
type Diagnostics struct {
	signer URLSigner
	prober Prober
	ttl    time.Duration
}

// DiagnosticsOption Diagnostics 的配置选项
type DiagnosticsOption func(*Diagnostics)

// WithSignedURLTTL 设置签名URL的有效期
func WithSignedURLTTL(ttl time.Duration) DiagnosticsOption {
	return func(d *Diagnostics) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// NewDiagnostics 创建访问诊断器
func NewDiagnostics(signer URLSigner, prober Prober, options ...DiagnosticsOption) *Diagnostics {
	d := &Diagnostics{
		signer: signer,
		prober: prober,
		ttl:    constants.SignedURLDefaultTTL,
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// Classify 把错误归入访问类别
func Classify(err error) Classification {
	if err == nil {
		return ClassUnknown
	}
	if errors.Is(err, parser.ErrNotFound) {
		return ClassNotFound
	}
	if errors.Is(err, parser.ErrAccessDenied) {
		return ClassForbidden
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "404") || strings.Contains(msg, "not found") || strings.Contains(msg, "notfound"):
		return ClassNotFound
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "invalid credential") || strings.Contains(msg, "signature"):
		return ClassAuthFailure
	case strings.Contains(msg, "403") || strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "access denied") || strings.Contains(msg, "accessdenied"):
		return ClassForbidden
	default:
		return ClassUnknown
	}
}

// Diagnose 归类错误并给出人类可读的结论
// fixable为true表示可以换签名URL重试一次
func (d *Diagnostics) Diagnose(resourceID string, err error) (string, bool) {
	switch Classify(err) {
	case ClassNotFound:
		return fmt.Sprintf("文档 %s 不存在，无法修复", resourceID), false
	case ClassForbidden:
		return fmt.Sprintf("文档 %s 访问受限，可尝试签名URL", resourceID), true
	case ClassAuthFailure:
		return fmt.Sprintf("文档 %s 的访问凭证校验失败，无法修复", resourceID), false
	default:
		return fmt.Sprintf("文档 %s 访问失败，原因未知: %v", resourceID, err), false
	}
}

// MintSignedURL 签发限时只读URL，ttl为0时使用默认有效期
func (d *Diagnostics) MintSignedURL(ctx context.Context, resourceID string, ttl time.Duration) (string, error) {
	if d.signer == nil {
		return "", fmt.Errorf("未配置URL签名能力")
	}
	if ttl <= 0 {
		ttl = d.ttl
	}
	signed, err := d.signer.SignedURL(ctx, resourceID, ttl)
	if err != nil {
		return "", fmt.Errorf("签发URL失败: %w", err)
	}
	return signed, nil
}

// GetAccessibleURL 尽力返回一个可访问的URL，永不报错
// 先探测原始URL；不可访问则尝试签名URL；签发也失败时原样返回
func (d *Diagnostics) GetAccessibleURL(ctx context.Context, resourceID string, originalURL string) string {
	if d.prober != nil {
		if err := d.prober.Probe(ctx, originalURL); err == nil {
			return originalURL
		} else {
			logger.Debug().
				Err(err).
				Str("resource_id", resourceID).
				Msg("原始URL探测失败，尝试签名URL")
		}
	}

	signed, err := d.MintSignedURL(ctx, resourceID, 0)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("resource_id", resourceID).
			Msg("签发URL失败，回退到原始URL")
		return originalURL
	}
	return signed
}
