package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatModel struct {
	calls     int
	errs      []error
	responses []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return &schema.Message{Role: schema.Assistant, Content: "ok"}, nil
}

func (f *fakeChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func TestTokenBucketAllow(t *testing.T) {
	tb := NewTokenBucket(60, 2)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	// 桶空后立即再取应失败
	assert.False(t, tb.Allow())
}

func TestTokenBucketCapacityDefault(t *testing.T) {
	tb := NewTokenBucket(10, 0)
	assert.Equal(t, 5.0, tb.capacity)

	tb = NewTokenBucket(1, 0)
	assert.Equal(t, 1.0, tb.capacity)
}

func TestTokenBucketWaitRespectsContext(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimitedChatModelPassesThrough(t *testing.T) {
	inner := &fakeChatModel{
		responses: []*schema.Message{{Role: schema.Assistant, Content: "analysis"}},
	}
	proxy := NewRateLimitedChatModel(inner, 600)

	resp, err := proxy.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "analysis", resp.Content)
	assert.Equal(t, 1, inner.calls)
}

func TestRateLimitedChatModelRetriesTransientErrors(t *testing.T) {
	inner := &fakeChatModel{
		errs: []error{
			errors.New("429 Too Many Requests"),
			errors.New("connection reset by peer"),
		},
		responses: []*schema.Message{nil, nil, {Role: schema.Assistant, Content: "recovered"}},
	}
	proxy := NewRateLimitedChatModel(inner, 600, WithRetryPolicy(3, time.Millisecond))

	resp, err := proxy.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, 3, inner.calls)
}

func TestRateLimitedChatModelNonRetryableFailsFast(t *testing.T) {
	inner := &fakeChatModel{
		errs: []error{errors.New("invalid api key")},
	}
	proxy := NewRateLimitedChatModel(inner, 600, WithRetryPolicy(3, time.Millisecond))

	_, err := proxy.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRateLimitedChatModelExhaustsRetries(t *testing.T) {
	inner := &fakeChatModel{
		errs: []error{
			errors.New("timeout"),
			errors.New("timeout"),
			errors.New("timeout"),
		},
	}
	proxy := NewRateLimitedChatModel(inner, 600, WithRetryPolicy(2, time.Millisecond))

	_, err := proxy.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "重试")
	assert.Equal(t, 3, inner.calls)
}

func TestIsRetryableErrorClassification(t *testing.T) {
	assert.True(t, isRetryableError(errors.New("request timeout")))
	assert.True(t, isRetryableError(errors.New("服务器繁忙，请稍后再试")))
	assert.True(t, isRetryableError(errors.New("触发QPS限制")))
	assert.False(t, isRetryableError(errors.New("模型返回格式错误")))
	assert.False(t, isRetryableError(nil))
}
