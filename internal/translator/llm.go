package translator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/MimeLyc/skill-translator/internal/document"
	"github.com/MimeLyc/skill-translator/internal/llm"
	"github.com/MimeLyc/skill-translator/pkg/log"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Completer is the part of llm.Client the translator needs.
type Completer interface {
	ChatCompletion(ctx context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions) (*llm.ChatResponse, error)
}

type llmTranslator struct {
	client Completer
}

// NewLLMTranslator translates through a chat completion model.
func NewLLMTranslator(client Completer) Translator {
	return &llmTranslator{client: client}
}

func (t *llmTranslator) Translate(ctx context.Context, req Request) (string, error) {
	opts := llm.NewChatCompletionOptions().WithSystemPrompt(buildSystemPrompt(req))
	resp, err := t.client.ChatCompletion(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: req.Text},
	}, opts)
	if err != nil {
		return "", err
	}
	log.Debug("Translated %d chars to %s (%s)", len(req.Text), req.TargetLanguage, resp.Usage)
	return cleanOutput(req.Text, resp.Content), nil
}

// LanguageName renders a BCP 47 tag for a prompt, e.g. "Chinese (China) [zh-CN]".
func LanguageName(tag string) string {
	parsed, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	name := display.English.Tags().Name(parsed)
	if name == "" {
		return tag
	}
	return fmt.Sprintf("%s [%s]", name, tag)
}

// buildSystemPrompt builds the system prompt for one translation unit
func buildSystemPrompt(req Request) string {
	var prompt strings.Builder

	source := "the source language"
	if req.SourceLanguage != "" {
		source = LanguageName(req.SourceLanguage)
	}
	prompt.WriteString("You are a professional technical translator specializing in software documentation. ")
	prompt.WriteString(fmt.Sprintf("Translate the user's text from %s to %s.\n", source, LanguageName(req.TargetLanguage)))

	if req.Kind == KindMetadata {
		prompt.WriteString("\n=== CONTENT TYPE ===\n")
		prompt.WriteString("The text is a short description from a document's metadata header. Return plain text without Markdown.\n")
	}

	if len(req.ProtectedTerms) > 0 {
		prompt.WriteString("\n=== PROTECTED TERMS ===\n")
		prompt.WriteString("Keep these names exactly as written, untranslated:\n")
		for _, term := range req.ProtectedTerms {
			prompt.WriteString("- " + term + "\n")
		}
	}

	if len(req.Glossary) > 0 {
		prompt.WriteString("\n=== GLOSSARY ===\n")
		prompt.WriteString("Use these translations for the following terms:\n")
		keys := make([]string, 0, len(req.Glossary))
		for k := range req.Glossary {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			prompt.WriteString(fmt.Sprintf("- %s -> %s\n", k, req.Glossary[k]))
		}
	}

	prompt.WriteString("\n=== TRANSLATION GUIDELINES ===\n")
	prompt.WriteString("1. Translate naturally while preserving technical accuracy\n")
	prompt.WriteString("2. Keep commands, URLs, file paths and identifiers unchanged\n")
	prompt.WriteString("3. Preserve Markdown inline formatting exactly: emphasis, links, headings, list markers and tables\n")
	prompt.WriteString("4. Do not add or remove sections, lines of meaning, or notes\n")
	if req.Placeholders > 0 {
		prompt.WriteString(fmt.Sprintf("5. The text contains %d placeholders like %s. Copy every placeholder exactly once, unchanged\n",
			req.Placeholders, document.Placeholder(0)))
	}

	prompt.WriteString("\n=== OUTPUT FORMAT ===\n")
	prompt.WriteString("Return ONLY the translated text.\n")
	prompt.WriteString("Do not include explanations, notes, or a code fence around the answer.\n")

	return prompt.String()
}

// cleanOutput strips a code fence the model wrapped around its whole answer
// when the source was not fenced itself.
func cleanOutput(source, out string) string {
	trimmed := strings.TrimSpace(out)
	if strings.HasPrefix(strings.TrimSpace(source), "```") || !strings.HasPrefix(trimmed, "```") {
		return out
	}
	if !strings.HasSuffix(trimmed, "```") {
		return out
	}
	body := strings.TrimSuffix(trimmed, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		return out
	}
	return strings.TrimSpace(body)
}
