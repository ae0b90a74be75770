package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "代码块优先",
			in:   "Here is the result:\n```json\n{\"score\": 80}\n```\nDone.",
			want: `{"score": 80}`,
		},
		{
			name: "裸JSON",
			in:   `{"score": 80, "nested": {"a": 1}}`,
			want: `{"score": 80, "nested": {"a": 1}}`,
		},
		{
			name: "前后有说明文字",
			in:   `Sure! {"score": 80} Hope this helps.`,
			want: `{"score": 80}`,
		},
		{
			name: "没有JSON",
			in:   "抱歉，我无法分析。",
			want: "",
		},
		{
			name: "花括号不闭合",
			in:   `{"score": 80`,
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractJSON(tc.in))
		})
	}
}

func TestLLMCallerRetriesTransientErrors(t *testing.T) {
	chat := &mockChatModel{
		errs:      []error{errors.New("connection reset by peer"), nil},
		responses: []string{"", `{"score": 80}`},
	}
	caller := &llmCaller{
		model:       chat,
		maxRetries:  2,
		retryWait:   time.Millisecond,
		callTimeout: time.Second,
	}

	content, err := caller.complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"score": 80}`, content)
	assert.Equal(t, 2, chat.calls)
}

func TestLLMCallerNonRetryableFailsFast(t *testing.T) {
	chat := &mockChatModel{errs: []error{errors.New("invalid api key")}}
	caller := &llmCaller{
		model:       chat,
		maxRetries:  2,
		retryWait:   time.Millisecond,
		callTimeout: time.Second,
	}

	_, err := caller.complete(context.Background(), "system", "user")
	require.Error(t, err)
	assert.Equal(t, 1, chat.calls)
}

func TestLLMCallerExhaustsRetries(t *testing.T) {
	chat := &mockChatModel{
		errs: []error{errors.New("timeout"), errors.New("timeout"), errors.New("timeout")},
	}
	caller := &llmCaller{
		model:       chat,
		maxRetries:  2,
		retryWait:   time.Millisecond,
		callTimeout: time.Second,
	}

	_, err := caller.complete(context.Background(), "system", "user")
	require.Error(t, err)
	assert.Equal(t, 3, chat.calls)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(errors.New("context deadline exceeded")))
	assert.True(t, isRetryableError(errors.New("status 503 service unavailable")))
	assert.False(t, isRetryableError(errors.New("invalid request body")))
	assert.False(t, isRetryableError(nil))
}
