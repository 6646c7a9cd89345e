package textmate

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// categoryScopes lists, per flat display token, the representative scope
// used to resolve its themed color.  Order is emission order.
var categoryScopes = []struct{ token, scope string }{
	{"comment", "comment"},
	{"string", "string"},
	{"string-2", "string.regexp"},
	{"number", "constant.numeric"},
	{"atom", "constant.language"},
	{"keyword", "keyword"},
	{"operator", "keyword.operator"},
	{"def", "entity.name.function"},
	{"variable", "variable"},
	{"variable-2", "support.type"},
	{"variable-3", "variable.language"},
	{"tag", "entity.name.tag"},
	{"attribute", "entity.other.attribute-name"},
	{"qualifier", "storage.modifier"},
	{"builtin", "support.function"},
	{"header", "markup.heading"},
	{"link", "markup.underline.link"},
	{"error", "invalid"},
}

// Stylesheet renders a theme as CSS for a CodeMirror-style editor.  All
// rules are namespaced under the theme's ".cm-s-<name>" class: editor
// chrome from the theme's scope-less settings entry (if any), gutter rules
// from gutterSettings (if present), one rule per flat category that
// resolves to a color, and one rule per color-table entry so the synthetic
// "tm-<i>" token names emitted by a themed Highlighter always resolve.
func Stylesheet(raw RawTheme, src ThemeSource) string {
	name := ThemeName(raw)
	prefix := ".cm-s-" + name
	var sb strings.Builder

	if global := globalSettings(raw); global.Exists() {
		writeRule(&sb, prefix+".CodeMirror",
			decl("background", global.Get("background")),
			decl("color", global.Get("foreground")))
		writeRule(&sb, prefix+" div.CodeMirror-cursor",
			borderDecl("border-left", global.Get("caret")))
		writeRule(&sb, prefix+" .CodeMirror-activeline-background",
			decl("background", global.Get("lineHighlight")))
		writeRule(&sb, prefix+" .CodeMirror-selected",
			decl("background", global.Get("selection")))
	}

	if gutter := gjson.GetBytes(raw, "gutterSettings"); gutter.Exists() {
		writeRule(&sb, prefix+" .CodeMirror-gutters",
			decl("background", gutter.Get("background")),
			borderDecl("border-right", gutter.Get("divider")))
		writeRule(&sb, prefix+" .CodeMirror-linenumber",
			decl("color", gutter.Get("foreground")))
	}

	colors := src.Colors()
	for _, cat := range categoryScopes {
		if idx := firstForeground(src, cat.scope); idx > 0 && idx < len(colors) {
			fmt.Fprintf(&sb, "%s span.cm-%s { color: %s; }\n", prefix, cat.token, colors[idx])
		}
	}
	for i := 1; i < len(colors); i++ {
		fmt.Fprintf(&sb, "%s span.cm-tm-%d { color: %s; }\n", prefix, i, colors[i])
	}
	return sb.String()
}

// globalSettings returns the first settings entry without a scope selector,
// i.e. the theme's editor-chrome entry.
func globalSettings(raw RawTheme) gjson.Result {
	for _, entry := range gjson.GetBytes(raw, "settings").Array() {
		if !entry.Get("scope").Exists() {
			return entry.Get("settings")
		}
	}
	return gjson.Result{}
}

// firstForeground returns the color index of the best rule for scope with a
// positive foreground, or 0.
func firstForeground(src ThemeSource, scope string) int {
	for _, r := range src.Match(scope) {
		if r.Foreground > 0 {
			return r.Foreground
		}
	}
	return 0
}

// writeRule emits "selector { decls }" skipping empty declarations, and
// nothing at all when every declaration is empty.
func writeRule(sb *strings.Builder, selector string, decls ...string) {
	var kept []string
	for _, d := range decls {
		if d != "" {
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s { %s }\n", selector, strings.Join(kept, " "))
}

func decl(prop string, v gjson.Result) string {
	if v.String() == "" {
		return ""
	}
	return fmt.Sprintf("%s: %s;", prop, normalizeColor(v.String()))
}

func borderDecl(prop string, v gjson.Result) string {
	if v.String() == "" {
		return ""
	}
	return fmt.Sprintf("%s: 1px solid %s;", prop, normalizeColor(v.String()))
}
