package main

import (
	"bufio"
	"fmt"
	"html"
	"os"
	"strings"

	textmate "github.com/vportella/cm-textmate"
)

// writeHTML renders each input file as a <pre> block of cm-classed spans,
// driving the mode tokenizer exactly the way a stream-mode editor would:
// one state per file, one stream pass per line.
func writeHTML(outPath, themeName string, files []string, tok *textmate.ModeTokenizer, stylesheets []string) error {
	var w *bufio.Writer
	if outPath == "" {
		w = bufio.NewWriter(os.Stdout)
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = bufio.NewWriter(f)
	}

	fmt.Fprintln(w, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><style>")
	for _, css := range stylesheets {
		fmt.Fprintln(w, css)
	}
	fmt.Fprintln(w, "</style></head><body>")

	if themeName == "" {
		themeName = "default"
	}
	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "<h3>%s</h3>\n<pre class=\"CodeMirror cm-s-%s\">\n",
			html.EscapeString(path), html.EscapeString(themeName))
		renderFile(w, tok, string(src))
		fmt.Fprintln(w, "</pre>")
	}

	fmt.Fprintln(w, "</body></html>")
	return w.Flush()
}

func renderFile(w *bufio.Writer, tok *textmate.ModeTokenizer, src string) {
	state := tok.StartState()
	for _, line := range strings.Split(src, "\n") {
		stream := textmate.NewStream(line)
		for !stream.EOL() {
			start := stream.Pos()
			cls := tok.Token(stream, state)
			seg := html.EscapeString(line[start:stream.Pos()])
			if cls == "" {
				w.WriteString(seg)
				continue
			}
			fmt.Fprintf(w, "<span class=\"%s\">%s</span>", cmClasses(cls), seg)
		}
		w.WriteByte('\n')
	}
}

// cmClasses converts a space-separated token classification ("tm-3 em")
// into CodeMirror-style CSS classes ("cm-tm-3 cm-em").
func cmClasses(cls string) string {
	parts := strings.Fields(cls)
	for i, p := range parts {
		parts[i] = "cm-" + p
	}
	return strings.Join(parts, " ")
}
