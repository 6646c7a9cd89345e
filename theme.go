package textmate

import (
	"sort"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/tidwall/gjson"
)

// ThemeName extracts the required name field from a raw theme, or "" if the
// document has none.
func ThemeName(raw RawTheme) string {
	return gjson.GetBytes(raw, "name").String()
}

// themeRuleEntry is one parsed settings rule: the dot-segment selectors it
// applies to (empty for the global, scope-less entry) and the resolved rule.
type themeRuleEntry struct {
	selectors [][]string
	rule      ThemeRule
}

// themeSource is the built-in ThemeEngine: a selector matcher over the
// theme's top-level settings array, good enough for tests and the CLI.
// Real deployments inject the external theme engine's matcher instead.
type themeSource struct {
	entries []themeRuleEntry
	colors  []string
}

// NewThemeSource parses raw into a ThemeSource.  Foreground colors are
// interned into the source's color table as they are encountered; index 0
// is the "no color" sentinel.  It fails if the theme has no name.
func NewThemeSource(raw RawTheme) (ThemeSource, error) {
	if ThemeName(raw) == "" {
		return nil, invalidArgf("theme missing name")
	}
	src := &themeSource{colors: []string{""}}
	for _, entry := range gjson.GetBytes(raw, "settings").Array() {
		e := themeRuleEntry{
			rule: ThemeRule{
				Foreground: src.intern(entry.Get("settings.foreground").String()),
				FontStyle:  parseFontStyle(entry.Get("settings.fontStyle").String()),
			},
		}
		for _, sel := range splitSelectors(entry.Get("scope")) {
			e.selectors = append(e.selectors, strings.Split(sel, "."))
		}
		src.entries = append(src.entries, e)
	}
	return src, nil
}

// Match returns candidate rules for scope, most specific selector first.
// Global (scope-less) entries never match a token scope.
func (s *themeSource) Match(scopeName string) []ThemeRule {
	segs := strings.Split(scopeName, ".")
	type cand struct {
		depth int
		rule  ThemeRule
	}
	var cands []cand
	for _, e := range s.entries {
		for _, sel := range e.selectors {
			if selectorMatches(sel, segs) {
				cands = append(cands, cand{depth: len(sel), rule: e.rule})
				break
			}
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].depth > cands[j].depth })
	rules := make([]ThemeRule, len(cands))
	for i, c := range cands {
		rules[i] = c.rule
	}
	return rules
}

func (s *themeSource) Colors() []string {
	return s.colors
}

// intern returns the color-table index for color, adding it on first use.
// Empty colors map to the sentinel index 0.
func (s *themeSource) intern(color string) int {
	norm := normalizeColor(color)
	if norm == "" {
		return 0
	}
	for i, c := range s.colors {
		if c == norm {
			return i
		}
	}
	s.colors = append(s.colors, norm)
	return len(s.colors) - 1
}

// normalizeColor canonicalizes a hex color to lowercase #rrggbb form.
// Values go-colorful cannot parse (named colors, rgba strings) pass through
// untouched so the theme author's intent still reaches the stylesheet.
func normalizeColor(v string) string {
	if v == "" {
		return ""
	}
	c, err := colorful.Hex(strings.ToLower(v))
	if err != nil {
		return v
	}
	return c.Hex()
}

// selectorMatches reports whether sel is a whole-segment prefix of segs:
// "string.regexp" matches "string.regexp.posix" but not "string".
func selectorMatches(sel, segs []string) bool {
	if len(sel) > len(segs) {
		return false
	}
	for i, s := range sel {
		if segs[i] != s {
			return false
		}
	}
	return true
}

// splitSelectors expands a rule's scope field, which may be a single
// selector, a comma-separated list, or an array of either.
func splitSelectors(v gjson.Result) []string {
	var raw []string
	if v.IsArray() {
		for _, e := range v.Array() {
			raw = append(raw, e.String())
		}
	} else if v.String() != "" {
		raw = append(raw, v.String())
	}
	var out []string
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseFontStyle(v string) FontStyle {
	switch {
	case strings.Contains(v, "italic"):
		return FontStyleItalic
	case strings.Contains(v, "bold"):
		return FontStyleBold
	default:
		return FontStyleNone
	}
}
