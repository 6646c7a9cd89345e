// cm-textmate: renders source files as themed HTML through the TextMate
// bridge, as a demonstration and smoke test of the library.
//
// Grammars, language activations, injections and themes come from a YAML
// config.  Each input file is tokenized with the mode given by --lang and
// written as one HTML document with the theme's stylesheet inlined.  With
// --watch, grammar files are re-registered on change (hot reload) and the
// output is rewritten.
//
// Usage:
//
//	cm-textmate --config config.yaml --lang go --theme Dusk main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"

	textmate "github.com/vportella/cm-textmate"
	"github.com/vportella/cm-textmate/config"
	"github.com/vportella/cm-textmate/logger"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", "", "path to config.yaml (required)")
	lang := flag.String("lang", "", "language id for the input files (required)")
	theme := flag.String("theme", "", "theme name (overrides config default_theme)")
	out := flag.String("out", "", "output file (default stdout)")
	watch := flag.Bool("watch", false, "re-render when grammar files change")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if *cfgPath == "" || *lang == "" || flag.NArg() == 0 {
		log.Fatal("cm-textmate: --config, --lang and at least one input file are required")
	}

	var l *zap.Logger
	var err error
	if *verbose {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	zap.ReplaceGlobals(l)
	defer l.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()
	ctx = logger.NewContext(ctx, l)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		l.Fatal("load config", zap.Error(err))
	}

	reg := textmate.NewRegistry(textmate.SimpleEngine, textmate.WithRegistryLogger(l))
	grammarPaths := make(map[string]string, len(cfg.Grammars))
	for _, g := range cfg.Grammars {
		path := g.Path
		grammarPaths[path] = g.ScopeName
		reg.AddGrammarProducer(g.ScopeName, func(_ context.Context, _ string) (textmate.RawGrammar, error) {
			return os.ReadFile(path)
		})
	}
	for _, g := range cfg.Grammars {
		if g.LanguageID == "" {
			continue
		}
		p := textmate.LoadPriority(g.LoadPriority)
		if g.LoadPriority == "" {
			p = textmate.LoadDeferred
		}
		if _, err := reg.ActivateLanguage(ctx, g.ScopeName, g.LanguageID, p); err != nil {
			l.Fatal("activate language",
				zap.String("language", g.LanguageID), zap.Error(err))
		}
	}
	for _, g := range cfg.Grammars {
		if len(g.InjectInto) == 0 {
			continue
		}
		affected, err := reg.LinkInjections(g.ScopeName, g.InjectInto)
		if err != nil {
			l.Fatal("link injections", zap.String("scope", g.ScopeName), zap.Error(err))
		}
		l.Debug("injections linked",
			zap.String("scope", g.ScopeName), zap.Strings("affected", affected))
	}

	sheets := &sheetStore{css: make(map[string]string)}
	coord := textmate.NewCoordinator(reg, sheets, textmate.WithCoordinatorLogger(l))
	for _, t := range cfg.Themes {
		raw, err := os.ReadFile(t.Path)
		if err != nil {
			l.Fatal("read theme", zap.String("path", t.Path), zap.Error(err))
		}
		if err := coord.RegisterTheme(raw); err != nil {
			l.Fatal("register theme", zap.String("path", t.Path), zap.Error(err))
		}
	}

	themeName := *theme
	if themeName == "" {
		themeName = cfg.DefaultTheme
	}

	render := func() error {
		ed := &fileEditor{id: "cli", mode: *lang, theme: themeName}
		// Drop any binding from a previous render so the rebind is never a
		// no-op and always reflects freshly registered grammars.
		coord.Release(ed.id)
		if _, err := coord.Rebind(ctx, ed); err != nil {
			return err
		}
		if ed.tok == nil {
			return fmt.Errorf("language %q has no tokenizer", *lang)
		}
		return writeHTML(*out, themeName, flag.Args(), ed.tok, sheets.all())
	}

	if err := render(); err != nil {
		l.Fatal("render", zap.Error(err))
	}

	if *watch {
		if err := watchGrammars(ctx, reg, grammarPaths, render); err != nil && ctx.Err() == nil {
			l.Fatal("watch", zap.Error(err))
		}
	}
}

// fileEditor is the CLI's one-shot editor instance: it only captures the
// tokenizer the coordinator installs.
type fileEditor struct {
	id    string
	mode  string
	theme string
	tok   *textmate.ModeTokenizer
}

func (e *fileEditor) ID() string    { return e.id }
func (e *fileEditor) Mode() string  { return e.mode }
func (e *fileEditor) Theme() string { return e.theme }

func (e *fileEditor) SetTokenizer(_ string, tok *textmate.ModeTokenizer) { e.tok = tok }

// sheetStore collects attached stylesheets for inlining into the output.
type sheetStore struct {
	mu  sync.Mutex
	css map[string]string
}

func (s *sheetStore) AttachStylesheet(theme, css string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.css[theme] = css
}

func (s *sheetStore) DetachStylesheet(theme string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.css, theme)
}

func (s *sheetStore) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.css))
	for _, css := range s.css {
		out = append(out, css)
	}
	return out
}
