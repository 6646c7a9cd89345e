package textmate

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Option names the driver reacts to.
const (
	OptionMode  = "mode"
	OptionTheme = "theme"
)

// RefreshableEditor extends Editor with the ability to re-apply its mode
// option, which makes the host editor discard cached highlighting and
// re-tokenize the whole document.
type RefreshableEditor interface {
	Editor
	RefreshMode()
}

// EditorEvents is the host editor's subscription surface.  Each On* call
// returns an unsubscribe function.
type EditorEvents interface {
	OnOptionChange(fn func(option string)) (cancel func())
	OnDocumentSwap(fn func()) (cancel func())
}

// BindEditor wires an editor's option-change and document-swap events to
// the coordinator.  When a rebind reports "changed", the driver re-applies
// the mode option to force a full re-tokenize; a guard flag keeps the
// resulting secondary option-change notification from re-triggering the
// same cycle.  The returned release function unsubscribes and drops the
// editor's coordinator bookkeeping; call it on editor teardown.
func (c *Coordinator) BindEditor(ed RefreshableEditor, ev EditorEvents) (release func()) {
	d := &driver{coord: c, ed: ed}
	offOpt := ev.OnOptionChange(d.onOption)
	offSwap := ev.OnDocumentSwap(d.trigger)
	return func() {
		offOpt()
		offSwap()
		c.Release(ed.ID())
	}
}

type driver struct {
	coord *Coordinator
	ed    RefreshableEditor

	mu         sync.Mutex
	refreshing bool
}

func (d *driver) onOption(option string) {
	if option != OptionMode && option != OptionTheme {
		return
	}
	d.mu.Lock()
	suppressed := d.refreshing
	d.mu.Unlock()
	if suppressed {
		return
	}
	d.trigger()
}

func (d *driver) trigger() {
	changed, err := d.coord.Rebind(context.Background(), d.ed)
	if err != nil {
		d.coord.log.Warn("rebind failed",
			zap.String("editor", d.ed.ID()), zap.Error(err))
		return
	}
	if !changed {
		return
	}
	d.mu.Lock()
	d.refreshing = true
	d.mu.Unlock()
	d.ed.RefreshMode()
	d.mu.Lock()
	d.refreshing = false
	d.mu.Unlock()
}
