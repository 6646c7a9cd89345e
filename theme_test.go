package textmate

import (
	"errors"
	"testing"
)

const duskTheme = `{
	"name": "Dusk",
	"settings": [
		{"settings": {"background": "#1e1e1e", "foreground": "#d4d4d4"}},
		{"scope": "comment", "settings": {"foreground": "#6A9955", "fontStyle": "italic"}},
		{"scope": "string, string.template", "settings": {"foreground": "#CE9178"}},
		{"scope": "string.regexp", "settings": {"foreground": "#D16969"}},
		{"scope": ["keyword", "storage.type"], "settings": {"foreground": "#569CD6", "fontStyle": "bold"}}
	]
}`

func TestNewThemeSourceRequiresName(t *testing.T) {
	_, err := NewThemeSource(RawTheme(`{"settings": []}`))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestThemeSourceMatch(t *testing.T) {
	src, err := NewThemeSource(RawTheme(duskTheme))
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		scope     string
		wantColor string
		wantStyle FontStyle
	}{
		{"comment.line.double-slash", "#6a9955", FontStyleItalic},
		{"string.quoted.double", "#ce9178", FontStyleNone},
		// The deeper selector outranks the plain "string" rule.
		{"string.regexp.posix", "#d16969", FontStyleNone},
		{"keyword.control", "#569cd6", FontStyleBold},
		{"storage.type.function", "#569cd6", FontStyleBold},
	}
	colors := src.Colors()
	if colors[0] != "" {
		t.Errorf("Colors()[0] = %q, want the empty sentinel", colors[0])
	}
	for _, tc := range cases {
		rules := src.Match(tc.scope)
		if len(rules) == 0 {
			t.Errorf("Match(%q): no rules", tc.scope)
			continue
		}
		best := rules[0]
		if best.Foreground <= 0 || best.Foreground >= len(colors) {
			t.Errorf("Match(%q): bad color index %d", tc.scope, best.Foreground)
			continue
		}
		if got := colors[best.Foreground]; got != tc.wantColor {
			t.Errorf("Match(%q) color = %s, want %s", tc.scope, got, tc.wantColor)
		}
		if best.FontStyle != tc.wantStyle {
			t.Errorf("Match(%q) style = %d, want %d", tc.scope, best.FontStyle, tc.wantStyle)
		}
	}
}

func TestThemeSourceNoPartialSegmentMatch(t *testing.T) {
	src, err := NewThemeSource(RawTheme(duskTheme))
	if err != nil {
		t.Fatal(err)
	}
	// "stringy" must not match the "string" selector.
	if rules := src.Match("stringy"); len(rules) != 0 {
		t.Errorf("Match(stringy) = %v, want none", rules)
	}
	// Global (scope-less) entries never match tokens.
	if rules := src.Match("source"); len(rules) != 0 {
		t.Errorf("Match(source) = %v, want none", rules)
	}
}

func TestThemeSourceInterning(t *testing.T) {
	src, err := NewThemeSource(RawTheme(`{
		"name": "X",
		"settings": [
			{"scope": "comment", "settings": {"foreground": "#FF0000"}},
			{"scope": "string", "settings": {"foreground": "#ff0000"}}
		]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	a := src.Match("comment")[0].Foreground
	b := src.Match("string")[0].Foreground
	if a != b {
		t.Errorf("same color interned twice: %d vs %d", a, b)
	}
	if len(src.Colors()) != 2 {
		t.Errorf("Colors() = %v, want sentinel + one entry", src.Colors())
	}
}

func TestParseFontStyle(t *testing.T) {
	cases := []struct {
		in   string
		want FontStyle
	}{
		{"", FontStyleNone},
		{"italic", FontStyleItalic},
		{"bold", FontStyleBold},
		{"bold italic", FontStyleItalic},
		{"underline", FontStyleNone},
	}
	for _, tc := range cases {
		if got := parseFontStyle(tc.in); got != tc.want {
			t.Errorf("parseFontStyle(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
