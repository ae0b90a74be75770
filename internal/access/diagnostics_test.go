package access

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-agent-go/internal/parser"
)

type mockSigner struct {
	signedURL string
	err       error
	calls     int
}

func (m *mockSigner) SignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.signedURL, nil
}

type mockProber struct {
	err   error
	calls int
}

func (m *mockProber) Probe(ctx context.Context, rawURL string) error {
	m.calls++
	return m.err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Classification
	}{
		{"哨兵-不存在", parser.ErrNotFound, ClassNotFound},
		{"哨兵-无权限", parser.ErrAccessDenied, ClassForbidden},
		{"包装的哨兵", fmt.Errorf("取回失败: %w", parser.ErrAccessDenied), ClassForbidden},
		{"消息-404", errors.New("server returned 404"), ClassNotFound},
		{"消息-forbidden", errors.New("storage: Forbidden"), ClassForbidden},
		{"消息-凭证", errors.New("401 Unauthorized"), ClassAuthFailure},
		{"消息-签名", errors.New("SignatureDoesNotMatch"), ClassAuthFailure},
		{"未知", errors.New("connection reset by peer"), ClassUnknown},
		{"空错误", nil, ClassUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestDiagnose(t *testing.T) {
	d := NewDiagnostics(nil, nil)

	msg, fixable := d.Diagnose("doc-1", parser.ErrNotFound)
	assert.False(t, fixable)
	assert.Contains(t, msg, "doc-1")

	msg, fixable = d.Diagnose("doc-2", parser.ErrAccessDenied)
	assert.True(t, fixable)
	assert.Contains(t, msg, "doc-2")

	_, fixable = d.Diagnose("doc-3", errors.New("401 unauthorized"))
	assert.False(t, fixable)

	_, fixable = d.Diagnose("doc-4", errors.New("something odd"))
	assert.False(t, fixable)
}

func TestMintSignedURL(t *testing.T) {
	signer := &mockSigner{signedURL: "https://storage.example.com/doc?sig=abc"}
	d := NewDiagnostics(signer, nil, WithSignedURLTTL(30*time.Minute))

	url, err := d.MintSignedURL(context.Background(), "uploads/doc.pdf", 0)
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example.com/doc?sig=abc", url)
	assert.Equal(t, 1, signer.calls)
}

func TestMintSignedURLNoSigner(t *testing.T) {
	d := NewDiagnostics(nil, nil)
	_, err := d.MintSignedURL(context.Background(), "uploads/doc.pdf", 0)
	assert.Error(t, err)
}

func TestGetAccessibleURLOriginalReachable(t *testing.T) {
	signer := &mockSigner{signedURL: "https://signed.example.com/doc"}
	prober := &mockProber{}
	d := NewDiagnostics(signer, prober)

	url := d.GetAccessibleURL(context.Background(), "doc-1", "https://origin.example.com/doc")
	assert.Equal(t, "https://origin.example.com/doc", url)
	assert.Equal(t, 0, signer.calls, "原始URL可达时不应签发")
}

func TestGetAccessibleURLFallsBackToSigned(t *testing.T) {
	signer := &mockSigner{signedURL: "https://signed.example.com/doc"}
	prober := &mockProber{err: parser.ErrAccessDenied}
	d := NewDiagnostics(signer, prober)

	url := d.GetAccessibleURL(context.Background(), "doc-1", "https://origin.example.com/doc")
	assert.Equal(t, "https://signed.example.com/doc", url)
}

func TestGetAccessibleURLNeverFails(t *testing.T) {
	signer := &mockSigner{err: errors.New("minio unreachable")}
	prober := &mockProber{err: parser.ErrNotFound}
	d := NewDiagnostics(signer, prober)

	url := d.GetAccessibleURL(context.Background(), "doc-1", "https://origin.example.com/doc")
	assert.Equal(t, "https://origin.example.com/doc", url, "全部失败时应原样返回")
}
