package translator

import "context"

// UnitKind tells the provider what kind of text it is translating.
type UnitKind int

const (
	KindProse UnitKind = iota
	KindMetadata
)

// Request is one piece of text to translate.
type Request struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
	Kind           UnitKind
	// ProtectedTerms must appear unchanged in the output.
	ProtectedTerms []string
	// Glossary maps source terms to required translations.
	Glossary map[string]string
	// Placeholders is the number of ___INLINE_CODE_n___ tokens in Text.
	Placeholders int
}

// Translator turns Request.Text into the target language.
type Translator interface {
	Translate(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to Translator.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Translate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
