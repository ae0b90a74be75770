package processor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"

	"cv-agent-go/internal/config"
	"cv-agent-go/internal/logger"
)

const (
	defaultLLMMaxRetries  = 2
	defaultLLMRetryWait   = 2 * time.Second
	defaultLLMCallTimeout = 60 * time.Second
)

// jsonBlockRe 优先提取 ```json ... ``` 代码块
var jsonBlockRe = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// llmCaller 包装聊天模型调用：重试、退避、单次调用超时
type llmCaller struct {
	model       model.BaseChatModel
	maxRetries  int
	retryWait   time.Duration
	callTimeout time.Duration
}

func newLLMCaller(chatModel model.BaseChatModel, cfg *config.OpenAIConfig) *llmCaller {
	c := &llmCaller{
		model:       chatModel,
		maxRetries:  defaultLLMMaxRetries,
		retryWait:   defaultLLMRetryWait,
		callTimeout: defaultLLMCallTimeout,
	}
	if cfg != nil {
		if cfg.MaxRetries > 0 {
			c.maxRetries = cfg.MaxRetries
		}
		if cfg.RetryWaitSeconds > 0 {
			c.retryWait = time.Duration(cfg.RetryWaitSeconds) * time.Second
		}
		if cfg.TimeoutSeconds > 0 {
			c.callTimeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
	}
	return c
}

// complete 发送system+user消息并返回响应文本，可重试错误按退避重试
func (c *llmCaller) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []*einoschema.Message{
		{Role: einoschema.System, Content: systemPrompt},
		{Role: einoschema.User, Content: userPrompt},
	}

	retryWait := c.retryWait
	var response *einoschema.Message
	var err error

	for retry := 0; retry <= c.maxRetries; retry++ {
		if retry > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("上下文已取消: %w", ctx.Err())
			case <-time.After(retryWait):
				retryWait *= 2
				logger.Warn().Int("retry", retry).Msg("重试模型调用")
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		response, err = c.model.Generate(callCtx, messages)
		cancel()

		if err == nil {
			break
		}
		if !isRetryableError(err) || retry >= c.maxRetries {
			return "", fmt.Errorf("模型调用最终失败: %w", err)
		}
	}

	return response.Content, nil
}

// isRetryableError 判断错误是否属于瞬时网络类错误
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503")
}

// extractJSON 从模型响应中提取JSON对象
// 第一个```json代码块优先，否则按花括号配对从首个"{"开始截取
func extractJSON(text string) string {
	matches := jsonBlockRe.FindStringSubmatch(text)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			level++
		case '}':
			level--
			if level == 0 {
				return strings.TrimSpace(text[start : i+1])
			}
		}
	}
	return ""
}
