package textmate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

const demoGrammar = `{
	"scopeName": "source.demo",
	"patterns": [
		{"match": "\\b(func|return|if)\\b", "name": "keyword.control.demo"},
		{"match": "\"[^\"]*\"", "name": "string.quoted.double.demo"}
	]
}`

const markGrammar = `{
	"scopeName": "source.mark",
	"patterns": [
		{"match": "@\\w+", "name": "keyword.other.mark"}
	]
}`

// countingFactory wraps SimpleEngine and counts engine constructions, so
// tests can observe invalidation.
func countingFactory(builds *atomic.Int32) EngineFactory {
	return func(r SourceResolver) GrammarEngine {
		builds.Add(1)
		return SimpleEngine(r)
	}
}

func TestActivateLanguageUnknownScope(t *testing.T) {
	reg := NewRegistry(SimpleEngine)
	_, err := reg.ActivateLanguage(context.Background(), "source.missing", "missing", LoadDeferred)
	var unknown *UnknownScopeError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownScopeError", err)
	}
	if unknown.Scope != "source.missing" {
		t.Errorf("Scope = %q", unknown.Scope)
	}
	if reg.HasLanguage("missing") {
		t.Error("failed activation left a binding behind")
	}
}

func TestActivateLanguageDuplicate(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(SimpleEngine)
	reg.AddGrammar("source.demo", RawGrammar(demoGrammar))
	reg.AddGrammar("source.mark", RawGrammar(markGrammar))
	if _, err := reg.ActivateLanguage(ctx, "source.demo", "demo", LoadDeferred); err != nil {
		t.Fatal(err)
	}

	for _, scope := range []string{"source.mark", "source.demo"} {
		_, err := reg.ActivateLanguage(ctx, scope, "demo", LoadDeferred)
		if !errors.Is(err, ErrDuplicateBinding) {
			t.Errorf("rebind to %s: err = %v, want ErrDuplicateBinding", scope, err)
		}
	}
	// The original binding survived.
	g, err := reg.LoadLanguage(ctx, "demo")
	if err != nil || g == nil {
		t.Fatalf("LoadLanguage after duplicate attempts: %v, %v", g, err)
	}
	if toks := g.TokenizeLine("return", nil); len(toks.Tokens) == 0 ||
		toks.Tokens[0].Scopes[1] != "keyword.control.demo" {
		t.Errorf("binding no longer resolves the original grammar: %+v", toks)
	}
}

func TestLoadLanguageUnknown(t *testing.T) {
	reg := NewRegistry(SimpleEngine)
	g, err := reg.LoadLanguage(context.Background(), "nope")
	if g != nil || err != nil {
		t.Fatalf("LoadLanguage(nope) = %v, %v; want nil, nil", g, err)
	}
}

func TestProducerResolvedOnce(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	reg := NewRegistry(SimpleEngine)
	reg.AddGrammarProducer("source.demo", func(_ context.Context, scope string) (RawGrammar, error) {
		if scope != "source.demo" {
			t.Errorf("producer invoked with %q", scope)
		}
		calls.Add(1)
		return RawGrammar(demoGrammar), nil
	})
	if _, err := reg.ActivateLanguage(ctx, "source.demo", "demo", LoadDeferred); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := reg.LoadLanguage(ctx, "demo"); err != nil {
			t.Fatal(err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("producer ran %d times, want 1", n)
	}
}

func TestLinkInjectionsValidation(t *testing.T) {
	reg := NewRegistry(SimpleEngine)
	if _, err := reg.LinkInjections("source.mark", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty host list: err = %v, want ErrInvalidArgument", err)
	}
	if _, err := reg.LinkInjections("source.mark", []string{"source.demo", ""}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty host name: err = %v, want ErrInvalidArgument", err)
	}
}

func TestLinkInjectionsAffectedLanguages(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(SimpleEngine)
	reg.AddGrammar("source.demo", RawGrammar(demoGrammar))
	reg.AddGrammar("source.mark", RawGrammar(markGrammar))
	// Two language ids bound to the same scope is fine; both are affected
	// when its injections change.
	for _, lang := range []string{"demo", "demo2"} {
		if _, err := reg.ActivateLanguage(ctx, "source.demo", lang, LoadDeferred); err != nil {
			t.Fatal(err)
		}
	}

	affected, err := reg.LinkInjections("source.mark", []string{"source.demo", "source.other"})
	if err != nil {
		t.Fatal(err)
	}
	if len(affected) != 2 || affected[0] != "demo" || affected[1] != "demo2" {
		t.Errorf("affected = %v, want [demo demo2]", affected)
	}
	if got := reg.InjectionsFor("source.demo"); len(got) != 1 || got[0] != "source.mark" {
		t.Errorf("InjectionsFor = %v", got)
	}

	affected = reg.UnlinkInjections("source.mark", nil)
	if len(affected) != 2 || affected[0] != "demo" || affected[1] != "demo2" {
		t.Errorf("unlink affected = %v, want [demo demo2]", affected)
	}
	if got := reg.InjectionsFor("source.demo"); got != nil {
		t.Errorf("InjectionsFor after unlink = %v, want none", got)
	}
	// Unlinked scope that was never linked: nothing meaningful.
	if affected := reg.UnlinkInjections("source.never", nil); affected != nil {
		t.Errorf("unlink of never-linked scope = %v", affected)
	}
}

func TestInjectionInvalidationRebuildsEngine(t *testing.T) {
	ctx := context.Background()
	var builds atomic.Int32
	reg := NewRegistry(countingFactory(&builds))
	reg.AddGrammar("source.demo", RawGrammar(demoGrammar))
	reg.AddGrammar("source.mark", RawGrammar(markGrammar))
	if _, err := reg.ActivateLanguage(ctx, "source.demo", "demo", LoadDeferred); err != nil {
		t.Fatal(err)
	}

	tokenize := func() LineTokens {
		t.Helper()
		g, err := reg.LoadLanguage(ctx, "demo")
		if err != nil {
			t.Fatal(err)
		}
		return g.TokenizeLine(`if @todo "x"`, nil)
	}

	hasScope := func(lt LineTokens, scope string) bool {
		for _, tok := range lt.Tokens {
			for _, s := range tok.Scopes {
				if s == scope {
					return true
				}
			}
		}
		return false
	}

	before := tokenize()
	if builds.Load() != 1 {
		t.Fatalf("builds = %d after first load, want 1", builds.Load())
	}
	if hasScope(before, "keyword.other.mark") {
		t.Fatal("mark scope present before injection")
	}

	if _, err := reg.LinkInjections("source.mark", []string{"source.demo"}); err != nil {
		t.Fatal(err)
	}
	after := tokenize()
	if builds.Load() != 2 {
		t.Errorf("builds = %d after link, want 2 (engine rebuilt)", builds.Load())
	}
	if !hasScope(after, "keyword.other.mark") {
		t.Errorf("injected scope missing after link: %+v", after)
	}

	reg.UnlinkInjections("source.mark", []string{"source.demo"})
	restored := tokenize()
	if builds.Load() != 3 {
		t.Errorf("builds = %d after unlink, want 3", builds.Load())
	}
	if hasScope(restored, "keyword.other.mark") {
		t.Errorf("injection still visible after unlink: %+v", restored)
	}
}

func TestActivateLanguageNow(t *testing.T) {
	var builds atomic.Int32
	reg := NewRegistry(countingFactory(&builds))
	reg.AddGrammar("source.demo", RawGrammar(demoGrammar))
	loaded, err := reg.ActivateLanguage(context.Background(), "source.demo", "demo", LoadNow)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded {
		t.Error("LoadNow reported not loaded")
	}
	if builds.Load() != 1 {
		t.Errorf("builds = %d, want 1 (compiled synchronously)", builds.Load())
	}
}

// idleStub records scheduled work and lets the test run it.
type idleStub struct {
	fns chan func()
}

func (s *idleStub) ScheduleIdle(_ context.Context, _ time.Duration, fn func()) {
	s.fns <- fn
}

func TestActivateLanguageASAP(t *testing.T) {
	var builds atomic.Int32
	idle := &idleStub{fns: make(chan func(), 1)}
	reg := NewRegistry(countingFactory(&builds), WithIdleScheduler(idle))
	reg.AddGrammar("source.demo", RawGrammar(demoGrammar))

	loaded, err := reg.ActivateLanguage(context.Background(), "source.demo", "demo", LoadASAP)
	if err != nil {
		t.Fatal(err)
	}
	if loaded {
		t.Error("LoadASAP reported synchronous load")
	}
	if builds.Load() != 0 {
		t.Fatal("compiled before the idle period")
	}
	select {
	case fn := <-idle.fns:
		fn()
	default:
		t.Fatal("no work scheduled")
	}
	if builds.Load() != 1 {
		t.Errorf("builds = %d after idle run, want 1", builds.Load())
	}
}

func TestResetClearsEverything(t *testing.T) {
	reg := NewRegistry(SimpleEngine)
	reg.AddGrammar("source.demo", RawGrammar(demoGrammar))
	if _, err := reg.ActivateLanguage(context.Background(), "source.demo", "demo", LoadDeferred); err != nil {
		t.Fatal(err)
	}
	reg.Reset()
	if reg.HasLanguage("demo") {
		t.Error("language survived Reset")
	}
	if g, err := reg.LoadLanguage(context.Background(), "demo"); g != nil || err != nil {
		t.Errorf("LoadLanguage after Reset = %v, %v", g, err)
	}
}
