package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"cv-agent-go/internal/logger"
)

const (
	defaultMaxRetries = 3
	defaultRetryWait  = 2 * time.Second
)

// RateLimitedChatModel 对底层ChatModel做限流与重试代理
// 每次调用前先从令牌桶取令牌，可重试错误按指数退避重试
type RateLimitedChatModel struct {
	inner      model.BaseChatModel
	bucket     *TokenBucket
	maxRetries int
	retryWait  time.Duration
}

// ProxyOption 代理配置项
type ProxyOption func(*RateLimitedChatModel)

// WithRetryPolicy 设置重试次数与初始等待时间
func WithRetryPolicy(maxRetries int, retryWait time.Duration) ProxyOption {
	return func(p *RateLimitedChatModel) {
		if maxRetries >= 0 {
			p.maxRetries = maxRetries
		}
		if retryWait > 0 {
			p.retryWait = retryWait
		}
	}
}

// NewRateLimitedChatModel 创建限流代理，qpm为每分钟允许的调用数
func NewRateLimitedChatModel(inner model.BaseChatModel, qpm int, opts ...ProxyOption) *RateLimitedChatModel {
	p := &RateLimitedChatModel{
		inner:      inner,
		bucket:     NewTokenBucket(qpm, 0),
		maxRetries: defaultMaxRetries,
		retryWait:  defaultRetryWait,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate 取令牌后调用底层模型，可重试错误按退避策略重试
func (p *RateLimitedChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	var resp *schema.Message
	err := p.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = p.inner.Generate(ctx, input, opts...)
		return callErr
	})
	return resp, err
}

// Stream 取令牌后发起流式调用
func (p *RateLimitedChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	var resp *schema.StreamReader[*schema.Message]
	err := p.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = p.inner.Stream(ctx, input, opts...)
		return callErr
	})
	return resp, err
}

func (p *RateLimitedChatModel) withRetry(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := p.retryWait * time.Duration(1<<(attempt-1))
			logger.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Err(lastErr).
				Msg("模型调用失败，等待后重试")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := p.bucket.Wait(ctx); err != nil {
			return fmt.Errorf("等待限流令牌失败: %w", err)
		}

		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if !isRetryableError(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("重试%d次后仍然失败: %w", p.maxRetries, lastErr)
}

var _ model.BaseChatModel = (*RateLimitedChatModel)(nil)

// isRetryableError 判断是否为可重试的临时性错误
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	retryable := []string{
		"timeout",
		"deadline exceeded",
		"connection reset",
		"EOF",
		"connection refused",
		"429 Too Many Requests",
		"rate limit",
		"no such host",
		"服务器繁忙",
		"请求超过限额",
		"QPS限制",
	}
	for _, s := range retryable {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
