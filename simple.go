package textmate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/tidwall/gjson"
)

// SimpleEngine is a minimal EngineFactory for demos and tests: it compiles
// grammars whose patterns are flat single-line {match, name} rules, follows
// cross-scope includes, and merges injected grammars' patterns.  It is not
// a TextMate implementation — no nested blocks, no captures — but it is
// enough to run the bridge end to end without an external engine.
func SimpleEngine(r SourceResolver) GrammarEngine {
	return &simpleEngine{resolver: r, cache: make(map[string]*simpleGrammar)}
}

type simpleEngine struct {
	resolver SourceResolver

	mu    sync.Mutex
	cache map[string]*simpleGrammar
}

type simpleRule struct {
	re    *regexp.Regexp
	scope string
}

type simpleGrammar struct {
	scopeName string
	rules     []simpleRule
}

// simpleStack only counts lines; the engine has no cross-line state, but
// the counter makes state carry and cloning observable in tests.
type simpleStack struct {
	line int
}

func (s *simpleStack) Clone() RuleStack {
	cp := *s
	return &cp
}

func (e *simpleEngine) Compile(ctx context.Context, scopeName string) (Grammar, error) {
	e.mu.Lock()
	g, ok := e.cache[scopeName]
	e.mu.Unlock()
	if ok {
		return g, nil
	}

	rules, err := e.collectRules(ctx, scopeName, scopeName)
	if err != nil {
		return nil, err
	}
	for _, inj := range e.resolver.InjectionsFor(scopeName) {
		injRules, err := e.collectRules(ctx, inj, scopeName)
		if err != nil {
			return nil, err
		}
		rules = append(rules, injRules...)
	}

	g = &simpleGrammar{scopeName: scopeName, rules: rules}
	e.mu.Lock()
	e.cache[scopeName] = g
	e.mu.Unlock()
	return g, nil
}

// collectRules compiles the pattern list of scopeName, recursing into
// cross-scope includes.  dependent names the grammar that asked, for
// unknown-scope reporting.
func (e *simpleEngine) collectRules(ctx context.Context, scopeName, dependent string) ([]simpleRule, error) {
	raw, err := e.resolver.GrammarFor(ctx, scopeName)
	if err != nil {
		var unknown *UnknownScopeError
		if errors.As(err, &unknown) && unknown.DependentScope == "" && scopeName != dependent {
			return nil, &UnknownScopeError{Scope: scopeName, DependentScope: dependent}
		}
		return nil, err
	}

	var rules []simpleRule
	for _, p := range gjson.GetBytes(raw, "patterns").Array() {
		if inc := p.Get("include").String(); inc != "" {
			if inc[0] == '#' || inc == "$self" {
				// Repository and self includes are beyond this engine.
				continue
			}
			sub, err := e.collectRules(ctx, inc, scopeName)
			if err != nil {
				return nil, err
			}
			rules = append(rules, sub...)
			continue
		}
		match := p.Get("match").String()
		if match == "" {
			continue
		}
		re, err := regexp.Compile(match)
		if err != nil {
			return nil, fmt.Errorf("grammar %s: pattern %q: %w", scopeName, match, err)
		}
		rules = append(rules, simpleRule{re: re, scope: p.Get("name").String()})
	}
	return rules, nil
}

// TokenizeLine scans line left to right, emitting one token per rule match
// (leftmost wins, earlier rules break ties) and one per interior gap.  The
// trailing gap is left untokenized; the stream tokenizer styles it as
// plain text when the cache runs out.
func (g *simpleGrammar) TokenizeLine(line string, prior RuleStack) LineTokens {
	stack := &simpleStack{}
	if s, ok := prior.(*simpleStack); ok {
		stack.line = s.line
	}
	stack.line++

	var tokens []Token
	pos := 0
	for pos < len(line) {
		var best *simpleRule
		start, end := len(line), len(line)
		for i := range g.rules {
			loc := g.rules[i].re.FindStringIndex(line[pos:])
			if loc == nil || loc[0] == loc[1] {
				continue
			}
			if loc[0] < start-pos || (loc[0] == start-pos && best == nil) {
				best = &g.rules[i]
				start, end = pos+loc[0], pos+loc[1]
			}
		}
		if best == nil {
			break
		}
		if start > pos {
			tokens = append(tokens, Token{EndIndex: start, Scopes: []string{g.scopeName}})
		}
		tokens = append(tokens, Token{EndIndex: end, Scopes: []string{g.scopeName, best.scope}})
		pos = end
	}
	return LineTokens{Tokens: tokens, Stack: stack}
}
