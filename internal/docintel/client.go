package docintel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cv-agent-go/internal/config"
	"cv-agent-go/internal/logger"
	"cv-agent-go/internal/parser"
)

const (
	defaultAPIVersion      = "2024-02-29-preview"
	defaultModelID         = "prebuilt-layout"
	defaultPollInitial     = 2 * time.Second
	defaultPollMax         = 30 * time.Second
	defaultPollMaxAttempts = 10
	defaultHTTPTimeout     = 60 * time.Second
)

// 服务级错误
var (
	// ErrAnalysisFailed 服务返回终态失败
	ErrAnalysisFailed = errors.New("文档理解服务分析失败")
	// ErrPollExhausted 轮询次数用尽仍未到终态
	ErrPollExhausted = errors.New("文档理解服务轮询超出次数上限")
)

// ServiceClient 文档理解服务的抽象
type ServiceClient interface {
	// AnalyzeDocument 按URL提交文档并等待分析完成
	AnalyzeDocument(ctx context.Context, documentURL string) (*AnalyzeResult, error)
}

// 确保Client实现了ServiceClient接口
var _ ServiceClient = (*Client)(nil)

// Client 文档理解服务客户端
// 提交走submit-by-URL，结果通过Operation-Location轮询取回
type Client struct {
	endpoint        string
	apiKey          string
	modelID         string
	apiVersion      string
	httpClient      *http.Client
	pollInitial     time.Duration
	pollMax         time.Duration
	pollMaxAttempts int
}

// ClientOption Client的配置选项
type ClientOption func(*Client)

// WithPollBackoff 设置轮询的起始间隔和上限
func WithPollBackoff(initial, max time.Duration) ClientOption {
	return func(c *Client) {
		if initial > 0 {
			c.pollInitial = initial
		}
		if max > 0 {
			c.pollMax = max
		}
	}
}

// WithPollMaxAttempts 设置轮询次数上限
func WithPollMaxAttempts(attempts int) ClientOption {
	return func(c *Client) {
		if attempts > 0 {
			c.pollMaxAttempts = attempts
		}
	}
}

// WithHTTPTimeout 设置单次HTTP请求超时
func WithHTTPTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient 创建文档理解服务客户端
func NewClient(endpoint, apiKey string, options ...ClientOption) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("服务endpoint不能为空")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("服务API密钥不能为空")
	}

	c := &Client{
		endpoint:        strings.TrimRight(endpoint, "/"),
		apiKey:          apiKey,
		modelID:         defaultModelID,
		apiVersion:      defaultAPIVersion,
		httpClient:      &http.Client{Timeout: defaultHTTPTimeout},
		pollInitial:     defaultPollInitial,
		pollMax:         defaultPollMax,
		pollMaxAttempts: defaultPollMaxAttempts,
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

// NewClientFromConfig 按配置创建客户端
func NewClientFromConfig(cfg *config.DocIntelConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("文档理解服务配置不能为空")
	}
	options := []ClientOption{}
	if cfg.PollInitialSeconds > 0 || cfg.PollMaxSeconds > 0 {
		options = append(options, WithPollBackoff(
			time.Duration(cfg.PollInitialSeconds)*time.Second,
			time.Duration(cfg.PollMaxSeconds)*time.Second,
		))
	}
	if cfg.PollMaxAttempts > 0 {
		options = append(options, WithPollMaxAttempts(cfg.PollMaxAttempts))
	}
	if cfg.TimeoutSeconds > 0 {
		options = append(options, WithHTTPTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second))
	}

	client, err := NewClient(cfg.Endpoint, cfg.APIKey, options...)
	if err != nil {
		return nil, err
	}
	if cfg.ModelID != "" {
		client.modelID = cfg.ModelID
	}
	return client, nil
}

// AnalyzeDocument 提交文档URL并轮询直到分析结束
func (c *Client) AnalyzeDocument(ctx context.Context, documentURL string) (*AnalyzeResult, error) {
	operationURL, err := c.submit(ctx, documentURL)
	if err != nil {
		return nil, err
	}
	return c.pollOperation(ctx, operationURL)
}

// submit 提交分析请求，返回轮询地址
func (c *Client) submit(ctx context.Context, documentURL string) (string, error) {
	submitURL := fmt.Sprintf("%s/documentModels/%s:analyze?api-version=%s", c.endpoint, c.modelID, c.apiVersion)
	body, err := json.Marshal(map[string]string{"urlSource": documentURL})
	if err != nil {
		return "", fmt.Errorf("序列化提交请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, submitURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("创建提交请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("提交分析请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", classifyStatus(resp.StatusCode, respBody)
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return "", fmt.Errorf("服务未返回Operation-Location头")
	}
	return operationURL, nil
}

// pollOperation 指数退避轮询，直到终态或次数用尽
func (c *Client) pollOperation(ctx context.Context, operationURL string) (*AnalyzeResult, error) {
	backoff := c.pollInitial

	for attempt := 1; attempt <= c.pollMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		op, err := c.fetchOperation(ctx, operationURL)
		if err != nil {
			return nil, err
		}

		switch op.Status {
		case OperationSucceeded:
			if op.AnalyzeResult == nil {
				return nil, fmt.Errorf("服务报告成功但未携带分析结果")
			}
			return op.AnalyzeResult, nil
		case OperationFailed:
			if op.Error != nil {
				return nil, fmt.Errorf("%w: %s (%s)", ErrAnalysisFailed, op.Error.Message, op.Error.Code)
			}
			return nil, ErrAnalysisFailed
		case OperationRunning, OperationNotStarted:
			logger.Debug().
				Int("attempt", attempt).
				Dur("next_backoff", backoff).
				Str("status", op.Status).
				Msg("文档分析进行中，继续轮询")
		default:
			return nil, fmt.Errorf("服务返回未知状态: %s", op.Status)
		}

		backoff *= 2
		if backoff > c.pollMax {
			backoff = c.pollMax
		}
	}

	return nil, fmt.Errorf("%w: 共%d次", ErrPollExhausted, c.pollMaxAttempts)
}

// fetchOperation 拉取一次轮询结果
func (c *Client) fetchOperation(ctx context.Context, operationURL string) (*operationResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建轮询请求失败: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("轮询请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, classifyStatus(resp.StatusCode, respBody)
	}

	var op operationResponse
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return nil, fmt.Errorf("解析轮询响应失败: %w", err)
	}
	return &op, nil
}

// classifyStatus 把HTTP状态码归入统一的访问错误
// 403/404使用哨兵错误，便于上游做访问诊断
func classifyStatus(statusCode int, body []byte) error {
	switch statusCode {
	case http.StatusForbidden:
		return fmt.Errorf("%w: 服务返回403", parser.ErrAccessDenied)
	case http.StatusNotFound:
		return fmt.Errorf("%w: 服务返回404", parser.ErrNotFound)
	case http.StatusUnauthorized:
		return fmt.Errorf("服务凭证校验失败(401): %s", strings.TrimSpace(string(body)))
	default:
		return fmt.Errorf("服务返回异常状态码 %d: %s", statusCode, strings.TrimSpace(string(body)))
	}
}
