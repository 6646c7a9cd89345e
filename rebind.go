package textmate

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Editor is the surface the coordinator needs from one live editor
// instance.  ID must be stable for the instance's lifetime; Mode and Theme
// are read at attempt time, so rapid option flips coalesce to the values
// current when the attempt runs.
type Editor interface {
	ID() string
	Mode() string
	Theme() string
	SetTokenizer(mode string, tok *ModeTokenizer)
}

// StyleHost owns the per-theme stylesheet resources on the hosting editor's
// side.  The coordinator guarantees Attach is called once per theme while
// at least one editor uses it, and Detach once when the last user leaves.
type StyleHost interface {
	AttachStylesheet(theme, css string)
	DetachStylesheet(theme string)
}

// request is one pending rebind for an editor instance.  All callers that
// enqueued while it was pending share its done channel.
type request struct {
	ed       Editor
	done     chan struct{}
	changed  bool
	err      error
	cancel   context.CancelFunc
	resolved bool
}

// binding is the (mode, theme) pair last baked into an editor's tokenizer.
type binding struct {
	mode  string
	theme string
}

// Coordinator serializes tokenizer rebinds across all editor instances:
// one in-flight attempt process-wide, per-editor coalescing of rapid
// successive requests, cooperative cancellation of superseded work, and
// reference-counted stylesheet attachment per theme.
type Coordinator struct {
	reg         *Registry
	themeEngine ThemeEngine
	styles      StyleHost
	log         *zap.Logger

	mu           sync.Mutex
	themes       map[string]RawTheme
	highlighters map[string]*Highlighter
	bindings     map[string]*binding
	sheets       map[string]int
	queue        []*request
	active       *request
	draining     bool
}

// CoordinatorOption configures NewCoordinator.
type CoordinatorOption func(*Coordinator)

// WithThemeEngine replaces the built-in theme matcher constructor.
func WithThemeEngine(e ThemeEngine) CoordinatorOption {
	return func(c *Coordinator) { c.themeEngine = e }
}

// WithCoordinatorLogger sets the coordinator's logger.
func WithCoordinatorLogger(l *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.log = l }
}

// NewCoordinator returns a coordinator over reg that manages stylesheet
// resources through styles.
func NewCoordinator(reg *Registry, styles StyleHost, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		reg:          reg,
		styles:       styles,
		log:          zap.NewNop(),
		themes:       make(map[string]RawTheme),
		highlighters: make(map[string]*Highlighter),
		bindings:     make(map[string]*binding),
		sheets:       make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterTheme stores a raw theme under its name field.  Themes without a
// name are rejected.  Re-registering a name replaces the raw document but
// not a Highlighter already constructed for it.
func (c *Coordinator) RegisterTheme(raw RawTheme) error {
	name := ThemeName(raw)
	if name == "" {
		return invalidArgf("theme missing name")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.themes[name] = raw
	return nil
}

// Highlighter returns the Highlighter for a theme name, constructing it on
// first use.  Unknown or broken themes fall back to the theme-less default,
// so a bad theme never breaks highlighting outright.
func (c *Coordinator) Highlighter(theme string) *Highlighter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.highlighterLocked(theme)
}

func (c *Coordinator) highlighterLocked(theme string) *Highlighter {
	if hl, ok := c.highlighters[theme]; ok {
		return hl
	}
	if theme != "" {
		if raw, ok := c.themes[theme]; ok {
			hl, err := NewThemeHighlighter(c.reg, raw, c.themeEngine)
			if err == nil {
				c.highlighters[theme] = hl
				return hl
			}
			c.log.Warn("theme unusable, falling back to default",
				zap.String("theme", theme), zap.Error(err))
		}
	}
	if hl, ok := c.highlighters[""]; ok {
		return hl
	}
	hl := NewHighlighter(c.reg)
	c.highlighters[""] = hl
	return hl
}

// Rebind rebuilds and installs ed's tokenizer for its current mode and
// theme options.  It reports true when a new binding was installed, false
// for no-ops and superseded attempts.  Successive calls for the same editor
// coalesce: at most one attempt is ever in flight per instance, and when a
// new call lands while that instance's attempt is active, the active
// attempt is cancelled, its callers resolve false, and the instance rejoins
// the queue tail — the last request's parameters eventually win.
func (c *Coordinator) Rebind(ctx context.Context, ed Editor) (bool, error) {
	c.mu.Lock()
	var req *request
	if c.active != nil && c.active.ed.ID() == ed.ID() {
		c.resolveLocked(c.active, false, nil)
		c.active.cancel()
		req = &request{ed: ed, done: make(chan struct{})}
		c.queue = append(c.queue, req)
	} else if queued := c.queuedLocked(ed.ID()); queued != nil {
		req = queued
	} else {
		req = &request{ed: ed, done: make(chan struct{})}
		c.queue = append(c.queue, req)
		// active is nil between drain iterations too, so worker liveness
		// needs its own flag: a second drain would run attempts in parallel.
		if !c.draining {
			c.draining = true
			go c.drain()
		}
	}
	c.mu.Unlock()

	select {
	case <-req.done:
		return req.changed, req.err
	case <-ctx.Done():
		// The attempt itself carries on; only this caller stops waiting.
		return false, ctx.Err()
	}
}

// Release discards the per-editor bookkeeping when an editor instance is
// torn down, dropping its theme's stylesheet reference.
func (c *Coordinator) Release(editorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.bindings[editorID]
	delete(c.bindings, editorID)
	if b != nil {
		c.releaseSheetLocked(b.theme)
	}
}

func (c *Coordinator) queuedLocked(editorID string) *request {
	for _, req := range c.queue {
		if req.ed.ID() == editorID {
			return req
		}
	}
	return nil
}

func (c *Coordinator) resolveLocked(req *request, changed bool, err error) {
	if req.resolved {
		return
	}
	req.resolved = true
	req.changed = changed
	req.err = err
	close(req.done)
}

// drain processes the queue until empty, one attempt at a time.
func (c *Coordinator) drain() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.active = nil
			c.draining = false
			c.mu.Unlock()
			return
		}
		req := c.queue[0]
		c.queue = c.queue[1:]
		c.active = req
		ctx, cancel := context.WithCancel(context.Background())
		req.cancel = cancel
		c.mu.Unlock()

		changed, err := c.attempt(ctx, req.ed)
		cancel()

		c.mu.Lock()
		c.resolveLocked(req, changed, err)
		c.active = nil
		c.mu.Unlock()
	}
}

// attempt performs one rebind: resolve the Highlighter for the editor's
// theme, detect no-ops against the last-baked pair, acquire the tokenizer
// (the single interruptible step), then commit stylesheet references,
// tokenizer install, and bookkeeping atomically.  A cancellation observed
// after the acquisition abandons the result; nothing is ever left half
// installed.
func (c *Coordinator) attempt(ctx context.Context, ed Editor) (bool, error) {
	mode, theme := ed.Mode(), ed.Theme()

	c.mu.Lock()
	hl := c.highlighterLocked(theme)
	themeName := hl.ThemeName()
	prev := c.bindings[ed.ID()]
	c.mu.Unlock()

	if prev != nil && prev.mode == mode && prev.theme == themeName {
		c.log.Debug("rebind no-op",
			zap.String("editor", ed.ID()), zap.String("mode", mode))
		return false, nil
	}

	tok, err := hl.Tokenizer(ctx, mode)
	if ctx.Err() != nil {
		c.log.Debug("rebind superseded", zap.String("editor", ed.ID()))
		return false, nil
	}
	if err != nil {
		// Fails closed: the editor keeps its current tokenizer and styling.
		return false, err
	}
	if tok == nil {
		c.log.Debug("rebind skipped, unknown language",
			zap.String("editor", ed.ID()), zap.String("mode", mode))
		return false, nil
	}

	c.mu.Lock()
	// Re-read the binding: a Release may have landed while the tokenizer
	// was being acquired, and committing against the pre-acquisition
	// snapshot would skip the re-attach and unbalance the sheet refcount.
	prev = c.bindings[ed.ID()]
	if prev == nil || prev.theme != themeName {
		if prev != nil {
			c.releaseSheetLocked(prev.theme)
		}
		c.attachSheetLocked(themeName, hl)
	}
	c.bindings[ed.ID()] = &binding{mode: mode, theme: themeName}
	c.mu.Unlock()

	ed.SetTokenizer(mode, tok)
	c.log.Debug("rebind applied",
		zap.String("editor", ed.ID()),
		zap.String("mode", mode), zap.String("theme", themeName))
	return true, nil
}

// attachSheetLocked takes a reference on theme's stylesheet, creating the
// host resource on first use.  The theme-less default has no stylesheet.
func (c *Coordinator) attachSheetLocked(theme string, hl *Highlighter) {
	if theme == "" {
		return
	}
	c.sheets[theme]++
	if c.sheets[theme] == 1 {
		c.styles.AttachStylesheet(theme, hl.CSSText())
	}
}

// releaseSheetLocked drops a reference, removing the host resource when the
// last referencing editor lets go.  Releasing a theme with no live entry is
// a no-op so an unbalanced caller cannot drive the count negative.
func (c *Coordinator) releaseSheetLocked(theme string) {
	if theme == "" {
		return
	}
	n, ok := c.sheets[theme]
	if !ok {
		return
	}
	n--
	if n <= 0 {
		delete(c.sheets, theme)
		c.styles.DetachStylesheet(theme)
		return
	}
	c.sheets[theme] = n
}
