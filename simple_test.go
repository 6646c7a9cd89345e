package textmate

import (
	"context"
	"errors"
	"testing"
)

func TestSimpleEngineTokenizeLine(t *testing.T) {
	reg := NewRegistry(SimpleEngine)
	reg.AddGrammar("source.demo", RawGrammar(demoGrammar))

	eng := SimpleEngine(reg)
	g, err := eng.Compile(context.Background(), "source.demo")
	if err != nil {
		t.Fatal(err)
	}

	lt := g.TokenizeLine(`func greet "hi" done`, nil)
	want := []Token{
		{EndIndex: 4, Scopes: []string{"source.demo", "keyword.control.demo"}},
		{EndIndex: 11, Scopes: []string{"source.demo"}},
		{EndIndex: 15, Scopes: []string{"source.demo", "string.quoted.double.demo"}},
	}
	if len(lt.Tokens) != len(want) {
		t.Fatalf("tokens = %+v, want %d entries", lt.Tokens, len(want))
	}
	for i, w := range want {
		got := lt.Tokens[i]
		if got.EndIndex != w.EndIndex || len(got.Scopes) != len(w.Scopes) {
			t.Errorf("token %d = %+v, want %+v", i, got, w)
			continue
		}
		for j := range w.Scopes {
			if got.Scopes[j] != w.Scopes[j] {
				t.Errorf("token %d scope %d = %q, want %q", i, j, got.Scopes[j], w.Scopes[j])
			}
		}
	}
	// The trailing " done" gap is left for the stream tokenizer's
	// end-of-line handling.
	if last := lt.Tokens[len(lt.Tokens)-1]; last.EndIndex == len(`func greet "hi" done`) {
		t.Error("trailing gap was tokenized")
	}
}

func TestSimpleEngineStateCarry(t *testing.T) {
	reg := NewRegistry(SimpleEngine)
	reg.AddGrammar("source.demo", RawGrammar(demoGrammar))
	g, err := SimpleEngine(reg).Compile(context.Background(), "source.demo")
	if err != nil {
		t.Fatal(err)
	}

	first := g.TokenizeLine("func", nil)
	second := g.TokenizeLine("return", first.Stack)
	s1 := first.Stack.(*simpleStack)
	s2 := second.Stack.(*simpleStack)
	if s1.line != 1 || s2.line != 2 {
		t.Errorf("stack lines = %d, %d; want 1, 2", s1.line, s2.line)
	}
	clone := second.Stack.Clone().(*simpleStack)
	clone.line = 99
	if s2.line != 2 {
		t.Error("Clone shares state with the original")
	}
}

func TestSimpleEngineUnknownInclude(t *testing.T) {
	reg := NewRegistry(SimpleEngine)
	reg.AddGrammar("source.host", RawGrammar(`{
		"scopeName": "source.host",
		"patterns": [{"include": "source.absent"}]
	}`))

	_, err := SimpleEngine(reg).Compile(context.Background(), "source.host")
	var unknown *UnknownScopeError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownScopeError", err)
	}
	if unknown.Scope != "source.absent" || unknown.DependentScope != "source.host" {
		t.Errorf("error = %+v, want missing scope and its dependent", unknown)
	}
}

func TestSimpleEngineRepositoryIncludesSkipped(t *testing.T) {
	reg := NewRegistry(SimpleEngine)
	reg.AddGrammar("source.demo", RawGrammar(`{
		"scopeName": "source.demo",
		"patterns": [
			{"include": "#strings"},
			{"include": "$self"},
			{"match": "x+", "name": "keyword.x"}
		]
	}`))
	g, err := SimpleEngine(reg).Compile(context.Background(), "source.demo")
	if err != nil {
		t.Fatal(err)
	}
	if lt := g.TokenizeLine("xx", nil); len(lt.Tokens) != 1 {
		t.Errorf("tokens = %+v, want one keyword match", lt.Tokens)
	}
}
