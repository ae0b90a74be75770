package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"cv-agent-go/internal/logger"
)

const (
	defaultFetchAttempts  = 3
	defaultFetchTimeout   = 60 * time.Second
	defaultBackoffBase    = 1 * time.Second
	smallPayloadThreshold = 100 // 字节数低于此值时记录警告但仍返回
)

// RemoteFetcher 从URL取回文档字节
// 瞬时失败按指数退避重试，403/404直接终止
type RemoteFetcher struct {
	client      *http.Client
	maxAttempts int
	backoffBase time.Duration
}

// FetcherOption RemoteFetcher 的配置选项
type FetcherOption func(*RemoteFetcher)

// WithFetchTimeout 设置单次尝试的超时
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *RemoteFetcher) {
		f.client.Timeout = d
	}
}

// WithMaxAttempts 设置最大尝试次数
func WithMaxAttempts(n int) FetcherOption {
	return func(f *RemoteFetcher) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithBackoffBase 设置退避基准时长，逐次翻倍
func WithBackoffBase(d time.Duration) FetcherOption {
	return func(f *RemoteFetcher) {
		if d > 0 {
			f.backoffBase = d
		}
	}
}

// NewRemoteFetcher 创建远程文档取回器
func NewRemoteFetcher(options ...FetcherOption) *RemoteFetcher {
	f := &RemoteFetcher{
		client:      &http.Client{Timeout: defaultFetchTimeout},
		maxAttempts: defaultFetchAttempts,
		backoffBase: defaultBackoffBase,
	}
	for _, option := range options {
		option(f)
	}
	return f
}

// Fetch 取回文档字节
// 先校验URL结构，scheme或host缺失时立即返回ErrInvalidURL
func (f *RemoteFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: 不支持的scheme %q", ErrInvalidURL, parsed.Scheme)
	}

	backoff := f.backoffBase
	var lastErr error

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if attempt > 1 {
			logger.Debug().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Str("url", rawURL).
				Msg("重试取回文档")
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: 上下文已取消: %v", ErrTransientNetwork, ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		data, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			if len(data) < smallPayloadThreshold {
				logger.Warn().
					Str("url", rawURL).
					Int("bytes", len(data)).
					Msg("取回的文档内容异常偏小")
			}
			return data, nil
		}

		// 终态错误不重试
		if isTerminalFetchError(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: 重试%d次后仍失败: %v", ErrTransientNetwork, f.maxAttempts, lastErr)
}

// fetchOnce 发出单次HTTP GET请求
func (f *RemoteFetcher) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP 403", ErrAccessDenied)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: HTTP 404", ErrNotFound)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", ErrTransientNetwork, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: 非预期状态码 %d", ErrTransientNetwork, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取响应体失败: %v", ErrTransientNetwork, err)
	}
	return data, nil
}

// Probe 发出HEAD请求做轻量存在性检查，不读取内容
func (f *RemoteFetcher) Probe(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP 403", ErrAccessDenied)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: HTTP 404", ErrNotFound)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: HTTP %d", ErrTransientNetwork, resp.StatusCode)
	}
	return nil
}

// isTerminalFetchError 判断错误是否终态，终态错误不参与重试
func isTerminalFetchError(err error) bool {
	return errors.Is(err, ErrInvalidURL) ||
		errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrNotFound)
}
