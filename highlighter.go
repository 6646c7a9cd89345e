package textmate

import (
	"context"
	"strconv"
	"sync"
)

// Highlighter turns compiled grammars into editor tokenizers for one theme.
// A theme-less Highlighter classifies tokens through the ScopeClassifier;
// a themed one resolves token colors through the theme's rule matcher and
// emits synthetic "tm-<i>" token names resolvable against its stylesheet.
type Highlighter struct {
	reg        *Registry
	classifier *ScopeClassifier

	themeName string
	theme     RawTheme
	source    ThemeSource

	cssOnce sync.Once
	css     string
}

// NewHighlighter returns a theme-less Highlighter over reg.
func NewHighlighter(reg *Registry) *Highlighter {
	return &Highlighter{reg: reg, classifier: NewScopeClassifier()}
}

// NewThemeHighlighter returns a Highlighter bound to the given theme,
// constructing its matcher through engine (the built-in NewThemeSource when
// engine is nil).  A theme without a name is rejected.
func NewThemeHighlighter(reg *Registry, raw RawTheme, engine ThemeEngine) (*Highlighter, error) {
	name := ThemeName(raw)
	if name == "" {
		return nil, invalidArgf("theme missing name")
	}
	if engine == nil {
		engine = NewThemeSource
	}
	src, err := engine(raw)
	if err != nil {
		return nil, err
	}
	return &Highlighter{reg: reg, themeName: name, theme: raw, source: src}, nil
}

// ThemeName returns the bound theme's name, or "" for a theme-less
// Highlighter.
func (h *Highlighter) ThemeName() string { return h.themeName }

// Tokenizer loads the compiled grammar for languageID and wraps it in a
// stream-mode tokenizer.  An unknown language id yields (nil, nil); load
// and compile failures are returned as-is.
func (h *Highlighter) Tokenizer(ctx context.Context, languageID string) (*ModeTokenizer, error) {
	g, err := h.reg.LoadLanguage(ctx, languageID)
	if err != nil || g == nil {
		return nil, err
	}
	return &ModeTokenizer{grammar: g, classify: h.classifyStack}, nil
}

// CSSText renders the theme's stylesheet, computed once per Highlighter.
// Theme-less Highlighters have no stylesheet.
func (h *Highlighter) CSSText() string {
	if h.source == nil {
		return ""
	}
	h.cssOnce.Do(func() {
		h.css = Stylesheet(h.theme, h.source)
	})
	return h.css
}

// classifyStack reduces a token's scope stack (innermost last) to a flat
// token name, scanning innermost to outermost and stopping at the first
// scope that yields a result.  "" means unstyled.
func (h *Highlighter) classifyStack(scopes []string) string {
	for i := len(scopes) - 1; i >= 0; i-- {
		if h.source == nil {
			if tok := h.classifier.Classify(scopes[i]); tok != "" {
				return tok
			}
			continue
		}
		for _, r := range h.source.Match(scopes[i]) {
			if r.Foreground > 0 {
				name := "tm-" + strconv.Itoa(r.Foreground)
				switch r.FontStyle {
				case FontStyleItalic:
					name += " em"
				case FontStyleBold:
					name += " strong"
				}
				return name
			}
		}
	}
	return ""
}
