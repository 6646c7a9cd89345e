// Package textmate bridges a TextMate-style grammar/theme engine to a
// stream-tokenizing editor.  Callers register grammar sources and themes;
// the package owns grammar lifecycle, scope classification, and the glue
// that keeps a live editor's tokenizer and stylesheet in step with its mode
// and theme options.
//
// The grammar engine itself is external: the registry is constructed with
// an EngineFactory and calls back into it whenever compiled grammars are
// needed.  Likewise theme rule matching is delegated to a ThemeSource
// produced by an injected ThemeEngine.
package textmate

import "context"

// RawGrammar is an opaque grammar definition (typically the bytes of a
// *.tmLanguage.json document).  The core never interprets it; it is handed
// to the engine as-is.
type RawGrammar []byte

// RawTheme is an opaque theme definition.  The core reads only the
// top-level "name", "gutterSettings" and "settings" fields; everything else
// belongs to the theme engine.
type RawTheme []byte

// GrammarProducer lazily yields a grammar definition.  The registry invokes
// it at most once, with the scope name it was registered under, and
// memoizes the result (or the error) in place.
type GrammarProducer func(ctx context.Context, scopeName string) (RawGrammar, error)

// SourceResolver is the callback surface the registry exposes to the
// grammar engine.  GrammarFor resolves a scope name to its (normalized)
// definition, failing with *UnknownScopeError for unregistered scopes;
// InjectionsFor returns the scopes injected into a host, in a stable order.
type SourceResolver interface {
	GrammarFor(ctx context.Context, scopeName string) (RawGrammar, error)
	InjectionsFor(scopeName string) []string
}

// EngineFactory constructs a grammar engine bound to a resolver.  The
// registry calls it lazily on first need and again after every injection
// topology change; a constructed engine is never mutated, only replaced,
// so grammars compiled against a stale instance stay internally consistent.
type EngineFactory func(r SourceResolver) GrammarEngine

// GrammarEngine compiles registered grammars, resolving dependency scopes
// and injections through the resolver it was constructed with.
type GrammarEngine interface {
	Compile(ctx context.Context, scopeName string) (Grammar, error)
}

// Grammar tokenizes one line at a time.  A nil prior stack means "start of
// document"; the returned stack is carried to the next line by the caller.
type Grammar interface {
	TokenizeLine(line string, prior RuleStack) LineTokens
}

// RuleStack is the engine's opaque per-position parser state.  Clone must
// return an independent copy: editors fork tokenizer state per line during
// incremental re-highlighting.
type RuleStack interface {
	Clone() RuleStack
}

// Token is one grammar token: the exclusive end offset of the token within
// its line and the full scope stack, outermost first.
type Token struct {
	EndIndex int
	Scopes   []string
}

// LineTokens is the result of tokenizing one line.
type LineTokens struct {
	Tokens []Token
	Stack  RuleStack
}

// ThemeRule is one candidate rule from a theme matcher: an index into the
// theme's color table (0 = no color) and a font style flag.
type ThemeRule struct {
	Foreground int
	FontStyle  FontStyle
}

// FontStyle is a theme rule's style flag.
type FontStyle int

const (
	FontStyleNone   FontStyle = 0
	FontStyleItalic FontStyle = 1
	FontStyleBold   FontStyle = 2
)

// ThemeSource is the external theme engine's matcher for one theme:
// Match returns candidate rules for a scope name, best first; Colors is the
// global color table the rules' Foreground indices point into (index 0 is
// the "no color" sentinel).
type ThemeSource interface {
	Match(scopeName string) []ThemeRule
	Colors() []string
}

// ThemeEngine constructs a ThemeSource from a raw theme definition.
type ThemeEngine func(raw RawTheme) (ThemeSource, error)
