package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFetchSuccess 正常取回返回完整字节
func TestFetchSuccess(t *testing.T) {
	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(payload)
	}))
	defer server.Close()

	fetcher := NewRemoteFetcher(WithBackoffBase(time.Millisecond))
	data, err := fetcher.Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

// TestFetchInvalidURL scheme或host缺失时快速失败，不发起网络请求
func TestFetchInvalidURL(t *testing.T) {
	fetcher := NewRemoteFetcher()

	_, err := fetcher.Fetch(context.Background(), "not-a-url")
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = fetcher.Fetch(context.Background(), "ftp://host/file")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

// TestFetchNotFoundIsTerminal 404不重试，直接返回ErrNotFound
func TestFetchNotFoundIsTerminal(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewRemoteFetcher(WithBackoffBase(time.Millisecond))
	_, err := fetcher.Fetch(context.Background(), server.URL)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "404不应触发重试")
}

// TestFetchForbiddenIsTerminal 403不重试，直接返回ErrAccessDenied
func TestFetchForbiddenIsTerminal(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	fetcher := NewRemoteFetcher(WithBackoffBase(time.Millisecond))
	_, err := fetcher.Fetch(context.Background(), server.URL)

	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// TestFetchRetriesOnServerError 5xx按退避重试，后续成功时返回数据
func TestFetchRetriesOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("resume content that is long enough to avoid the tiny payload warning path......."))
	}))
	defer server.Close()

	fetcher := NewRemoteFetcher(WithBackoffBase(time.Millisecond))
	data, err := fetcher.Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

// TestFetchExhaustsRetries 持续5xx时按最大尝试次数终止
func TestFetchExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	fetcher := NewRemoteFetcher(WithBackoffBase(time.Millisecond), WithMaxAttempts(3))
	_, err := fetcher.Fetch(context.Background(), server.URL)

	assert.ErrorIs(t, err, ErrTransientNetwork)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

// TestFetchSmallPayloadStillReturned 偏小的响应只告警，仍然返回
func TestFetchSmallPayloadStillReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tiny"))
	}))
	defer server.Close()

	fetcher := NewRemoteFetcher()
	data, err := fetcher.Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, []byte("tiny"), data)
}

// TestProbe HEAD探测区分可访问、403与404
func TestProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/forbidden":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	fetcher := NewRemoteFetcher()

	assert.NoError(t, fetcher.Probe(context.Background(), server.URL+"/ok"))
	assert.ErrorIs(t, fetcher.Probe(context.Background(), server.URL+"/forbidden"), ErrAccessDenied)
	assert.ErrorIs(t, fetcher.Probe(context.Background(), server.URL+"/missing"), ErrNotFound)
}
