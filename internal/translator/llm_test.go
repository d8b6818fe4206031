package translator

import (
	"context"
	"errors"
	"testing"

	"github.com/MimeLyc/skill-translator/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) ChatCompletion(ctx context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions) (*llm.ChatResponse, error) {
	args := m.Called(ctx, messages, opts)
	if resp, ok := args.Get(0).(*llm.ChatResponse); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestLLMTranslatorSendsTextAndPrompt(t *testing.T) {
	completer := &mockCompleter{}
	completer.On("ChatCompletion", mock.Anything,
		[]llm.Message{{Role: llm.RoleUser, Content: "Use ___INLINE_CODE_0___ with OpenClaw."}},
		mock.MatchedBy(func(opts *llm.ChatCompletionOptions) bool {
			return assert.Contains(t, opts.SystemPrompt, "- OpenClaw\n") &&
				assert.Contains(t, opts.SystemPrompt, "1 placeholders like ___INLINE_CODE_0___") &&
				assert.Contains(t, opts.SystemPrompt, "- monitor -> 监控\n") &&
				assert.Contains(t, opts.SystemPrompt, "[zh-CN]")
		}),
	).Return(&llm.ChatResponse{Content: "将 ___INLINE_CODE_0___ 与 OpenClaw 一起使用。"}, nil).Once()

	tr := NewLLMTranslator(completer)
	out, err := tr.Translate(context.Background(), Request{
		Text:           "Use ___INLINE_CODE_0___ with OpenClaw.",
		SourceLanguage: "en",
		TargetLanguage: "zh-CN",
		ProtectedTerms: []string{"OpenClaw"},
		Glossary:       map[string]string{"monitor": "监控"},
		Placeholders:   1,
	})
	require.NoError(t, err)
	assert.Equal(t, "将 ___INLINE_CODE_0___ 与 OpenClaw 一起使用。", out)
	completer.AssertExpectations(t)
}

func TestLLMTranslatorPropagatesErrors(t *testing.T) {
	completer := &mockCompleter{}
	want := &llm.ProviderError{StatusCode: 429, Transient: true, Err: errors.New("slow down")}
	completer.On("ChatCompletion", mock.Anything, mock.Anything, mock.Anything).Return(nil, want)

	_, err := NewLLMTranslator(completer).Translate(context.Background(), Request{Text: "x", TargetLanguage: "ja"})
	assert.ErrorIs(t, err, want)
	assert.True(t, llm.IsTransient(err))
}

func TestBuildSystemPromptMetadata(t *testing.T) {
	prompt := buildSystemPrompt(Request{Text: "A tool", TargetLanguage: "ja", Kind: KindMetadata})
	assert.Contains(t, prompt, "=== CONTENT TYPE ===")
	assert.Contains(t, prompt, "from the source language to")
	assert.NotContains(t, prompt, "=== PROTECTED TERMS ===")
	assert.NotContains(t, prompt, "placeholders")
}

func TestLanguageName(t *testing.T) {
	assert.Contains(t, LanguageName("en"), "English")
	assert.Contains(t, LanguageName("en"), "[en]")
	assert.Equal(t, "not a tag!", LanguageName("not a tag!"))
}

func TestCleanOutput(t *testing.T) {
	assert.Equal(t, "你好", cleanOutput("Hello", "```markdown\n你好\n```"))
	assert.Equal(t, "你好\n", cleanOutput("Hello", "你好\n"))
	assert.Equal(t, "```\ncode\n```", cleanOutput("```\ncode\n```", "```\ncode\n```"))
	assert.Equal(t, "```inline```", cleanOutput("Hello", "```inline```"))
}

func TestFuncAdapter(t *testing.T) {
	var tr Translator = Func(func(_ context.Context, req Request) (string, error) {
		return "[" + req.Text + "]", nil
	})
	out, err := tr.Translate(context.Background(), Request{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "[x]", out)
}
