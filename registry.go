package textmate

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LoadPriority controls how eagerly ActivateLanguage compiles the grammar.
type LoadPriority string

const (
	// LoadNow compiles synchronously; ActivateLanguage returns after the
	// grammar is ready (or has failed).
	LoadNow LoadPriority = "now"
	// LoadASAP schedules compilation for the host's next idle period,
	// bounded by the registry's idle timeout.
	LoadASAP LoadPriority = "asap"
	// LoadDeferred registers only; compilation happens on first tokenizer
	// request.  This is the default.
	LoadDeferred LoadPriority = "defer"
)

// sourceEntry is one registered grammar source.  Producer-backed entries
// resolve exactly once (single-flight via the Once) and memoize the result
// in place; AddGrammar replaces the whole entry, so hot reload never races
// a half-resolved one.
type sourceEntry struct {
	once     sync.Once
	producer GrammarProducer
	raw      RawGrammar
	err      error
}

func (e *sourceEntry) resolve(ctx context.Context, scopeName string) (RawGrammar, error) {
	e.once.Do(func() {
		if e.producer != nil {
			e.raw, e.err = e.producer(ctx, scopeName)
			e.producer = nil
		}
	})
	return e.raw, e.err
}

// Registry is the process-wide store of scope→grammar, language→scope and
// scope→injection bindings.  It lazily builds the grammar engine through
// its factory and discards it whenever the injection topology changes;
// the engine is never mutated in place, so grammars compiled against a
// replaced instance stay internally consistent.
type Registry struct {
	newEngine   EngineFactory
	idle        IdleScheduler
	idleTimeout time.Duration
	log         *zap.Logger

	mu         sync.Mutex
	engine     GrammarEngine
	sources    map[string]*sourceEntry
	languages  map[string]string
	injections map[string]map[string]bool
}

// RegistryOption configures NewRegistry.
type RegistryOption func(*Registry)

// WithIdleScheduler replaces the scheduler used for LoadASAP activations.
func WithIdleScheduler(s IdleScheduler) RegistryOption {
	return func(r *Registry) { r.idle = s }
}

// WithIdleTimeout bounds how long LoadASAP waits for an idle period.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.idleTimeout = d }
}

// WithRegistryLogger sets the registry's logger.
func WithRegistryLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// NewRegistry returns an empty registry whose engine instances are built by
// factory.
func NewRegistry(factory EngineFactory, opts ...RegistryOption) *Registry {
	r := &Registry{
		newEngine:   factory,
		idle:        TimeoutScheduler{},
		idleTimeout: DefaultIdleTimeout,
		log:         zap.NewNop(),
		sources:     make(map[string]*sourceEntry),
		languages:   make(map[string]string),
		injections:  make(map[string]map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddGrammar registers (or overwrites, for hot reload) the definition for a
// scope.
func (r *Registry) AddGrammar(scopeName string, raw RawGrammar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[scopeName] = &sourceEntry{raw: raw}
}

// AddGrammarProducer registers a deferred grammar source.  The producer is
// invoked at most once, with scopeName, on first resolution.
func (r *Registry) AddGrammarProducer(scopeName string, producer GrammarProducer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[scopeName] = &sourceEntry{producer: producer}
}

// LinkInjections adds scopeName to each host scope's injection set and
// invalidates the engine.  It returns the distinct language ids currently
// bound to the affected hosts, so callers know which live tokenizers need
// re-baking.
func (r *Registry) LinkInjections(scopeName string, hostScopes []string) ([]string, error) {
	if len(hostScopes) == 0 {
		return nil, invalidArgf("linking %q: empty host scope list", scopeName)
	}
	for _, h := range hostScopes {
		if h == "" {
			return nil, invalidArgf("linking %q: empty host scope name", scopeName)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range hostScopes {
		set := r.injections[h]
		if set == nil {
			set = make(map[string]bool)
			r.injections[h] = set
		}
		set[scopeName] = true
	}
	r.invalidateLocked("link", scopeName)
	return r.affectedLanguagesLocked(hostScopes), nil
}

// UnlinkInjections removes scopeName from the named hosts' injection sets,
// or from every host's set when hostScopes is nil.  Returns the language
// ids bound to hosts that actually changed; nil if scopeName was never
// linked there.
func (r *Registry) UnlinkInjections(scopeName string, hostScopes []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hostScopes == nil {
		for h := range r.injections {
			hostScopes = append(hostScopes, h)
		}
	}
	var changed []string
	for _, h := range hostScopes {
		if set := r.injections[h]; set[scopeName] {
			delete(set, scopeName)
			changed = append(changed, h)
		}
	}
	if len(changed) == 0 {
		return nil
	}
	r.invalidateLocked("unlink", scopeName)
	return r.affectedLanguagesLocked(changed)
}

// ActivateLanguage binds languageID to scopeName for tokenizer lookup.  The
// reported bool is true only when the grammar was compiled synchronously
// (LoadNow).
func (r *Registry) ActivateLanguage(ctx context.Context, scopeName, languageID string, p LoadPriority) (bool, error) {
	r.mu.Lock()
	if _, ok := r.sources[scopeName]; !ok {
		r.mu.Unlock()
		return false, &UnknownScopeError{Scope: scopeName}
	}
	if bound, ok := r.languages[languageID]; ok {
		r.mu.Unlock()
		return false, fmt.Errorf("%w: %q is bound to %q", ErrDuplicateBinding, languageID, bound)
	}
	r.languages[languageID] = scopeName
	r.mu.Unlock()

	switch p {
	case LoadNow:
		_, err := r.loadScope(ctx, scopeName)
		return err == nil, err
	case LoadASAP:
		// Outlive the caller's context: activation returns immediately and
		// the compile belongs to the registry, not the call.
		bg := context.WithoutCancel(ctx)
		r.idle.ScheduleIdle(bg, r.idleTimeout, func() {
			if _, err := r.loadScope(bg, scopeName); err != nil {
				r.log.Warn("idle grammar load failed",
					zap.String("scope", scopeName), zap.Error(err))
			}
		})
		return false, nil
	default:
		return false, nil
	}
}

// LoadLanguage resolves languageID to its compiled grammar, lazily
// constructing the engine.  An unknown language id yields (nil, nil).
func (r *Registry) LoadLanguage(ctx context.Context, languageID string) (Grammar, error) {
	r.mu.Lock()
	scopeName, ok := r.languages[languageID]
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return r.loadScope(ctx, scopeName)
}

// HasLanguage reports whether languageID has been activated.
func (r *Registry) HasLanguage(languageID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.languages[languageID]
	return ok
}

// InvalidateEngine discards the compiled engine so subsequent loads compile
// against freshly registered grammar sources.  AddGrammar alone does not
// invalidate; hot-reload callers pair the two.
func (r *Registry) InvalidateEngine() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidateLocked("invalidate", "")
}

// Reset drops all bindings and the engine instance.  For tests.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engine = nil
	r.sources = make(map[string]*sourceEntry)
	r.languages = make(map[string]string)
	r.injections = make(map[string]map[string]bool)
}

// GrammarFor implements SourceResolver: it resolves a scope name to its
// normalized grammar definition, resolving and memoizing producer-backed
// sources on first use.
func (r *Registry) GrammarFor(ctx context.Context, scopeName string) (RawGrammar, error) {
	r.mu.Lock()
	e := r.sources[scopeName]
	r.mu.Unlock()
	if e == nil {
		return nil, &UnknownScopeError{Scope: scopeName}
	}
	return e.resolve(ctx, scopeName)
}

// InjectionsFor implements SourceResolver: the current injection set for a
// scope, sorted for stable compile output.
func (r *Registry) InjectionsFor(scopeName string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.injections[scopeName]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// loadScope compiles scopeName against the current engine, constructing one
// if needed.  Compilation runs outside the lock: an invalidation that lands
// mid-compile replaces the engine for later loads, while this one finishes
// against the instance it started with.
func (r *Registry) loadScope(ctx context.Context, scopeName string) (Grammar, error) {
	r.mu.Lock()
	if r.engine == nil {
		r.engine = r.newEngine(r)
		r.log.Debug("grammar engine constructed")
	}
	eng := r.engine
	r.mu.Unlock()
	return eng.Compile(ctx, scopeName)
}

// invalidateLocked discards the engine so the next load rebuilds it against
// the new injection topology.  Callers hold r.mu.
func (r *Registry) invalidateLocked(op, scopeName string) {
	if r.engine != nil {
		r.log.Debug("grammar engine invalidated",
			zap.String("op", op), zap.String("scope", scopeName))
	}
	r.engine = nil
}

// affectedLanguagesLocked returns the distinct language ids bound to any of
// the given host scopes, sorted.  Callers hold r.mu.
func (r *Registry) affectedLanguagesLocked(hostScopes []string) []string {
	hosts := make(map[string]bool, len(hostScopes))
	for _, h := range hostScopes {
		hosts[h] = true
	}
	var out []string
	for lang, scope := range r.languages {
		if hosts[scope] {
			out = append(out, lang)
		}
	}
	sort.Strings(out)
	return out
}
