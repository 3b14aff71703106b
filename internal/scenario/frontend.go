package scenario

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/joeycumines/rerun/internal/wire"
)

// ErrUnknownWidget is returned for an interaction with a widget the last run
// did not display.
var ErrUnknownWidget = errors.New("unknown widget")

// Frontend mirrors the widget values a browser holds: the widgets displayed
// by the last run, with their defaults, the values the backend pushed and
// the user's own changes.
type Frontend struct {
	widgets []*frontendWidget
}

type frontendWidget struct {
	id      string
	label   string
	kind    wire.ValueKind
	options []string
	state   *wire.WidgetState
}

// NewFrontend returns a frontend with no widgets.
func NewFrontend() *Frontend {
	return &Frontend{}
}

// Observe replaces the displayed widgets with those declared in msgs, the
// messages of one run. A widget keeps its previous value unless the backend
// pushed a new one; a new widget starts at its default.
func (f *Frontend) Observe(msgs []*wire.ForwardMsg) {
	previous := make(map[string]*frontendWidget, len(f.widgets))
	for _, w := range f.widgets {
		previous[w.id] = w
	}

	var next []*frontendWidget
	for _, msg := range msgs {
		if msg.Delta == nil || msg.Delta.Element == nil {
			continue
		}
		w, pushed := widgetFromElement(msg.Delta.Element)
		if w == nil {
			continue
		}
		if prev, ok := previous[w.id]; ok && !pushed && prev.kind == w.kind && w.kind != wire.KindTrigger {
			w.state = prev.state
		}
		next = append(next, w)
	}
	f.widgets = next
}

// widgetFromElement returns the widget an element declares, holding either
// the value pushed by the backend or the default.
func widgetFromElement(el *wire.Element) (w *frontendWidget, pushed bool) {
	var raw any
	switch {
	case el.Checkbox != nil:
		e := el.Checkbox
		w = &frontendWidget{id: e.ID, label: e.Label, kind: wire.KindBool}
		raw, pushed = e.Default, e.SetValue
		if pushed {
			raw = e.Value
		}
	case el.Radio != nil:
		e := el.Radio
		w = &frontendWidget{id: e.ID, label: e.Label, kind: wire.KindInt, options: e.Options}
		raw, pushed = e.Default, e.SetValue
		if pushed {
			raw = e.Value
		}
	case el.Button != nil:
		e := el.Button
		w = &frontendWidget{id: e.ID, label: e.Label, kind: wire.KindTrigger}
		raw = false
	case el.TextInput != nil:
		e := el.TextInput
		w = &frontendWidget{id: e.ID, label: e.Label, kind: wire.KindString}
		raw, pushed = e.Default, e.SetValue
		if pushed {
			raw = e.Value
		}
	case el.NumberInput != nil:
		e := el.NumberInput
		w = &frontendWidget{id: e.ID, label: e.Label, kind: wire.KindDouble}
		if e.DataType == wire.NumberInt {
			w.kind = wire.KindInt
		}
		raw, pushed = e.Default, e.SetValue
		if pushed {
			raw = e.Value
		}
	default:
		return nil, false
	}
	// the element was built by the backend, so its value always fits
	w.state, _ = wire.NewWidgetState(w.id, w.kind, raw)
	return w, pushed
}

func (f *Frontend) find(target string) *frontendWidget {
	for _, w := range f.widgets {
		if w.id == target {
			return w
		}
	}
	for _, w := range f.widgets {
		if w.label == target {
			return w
		}
	}
	return nil
}

// Interact sets a widget's value and returns the update the browser sends:
// the values of every displayed widget. Button presses are only part of this
// one update.
func (f *Frontend) Interact(in Interaction) (*wire.WidgetStates, error) {
	w := f.find(in.Widget)
	if w == nil {
		return nil, errors.Wrapf(ErrUnknownWidget, "%q", in.Widget)
	}

	raw := in.Value
	if s, ok := raw.(string); ok && w.options != nil {
		i := slices.Index(w.options, s)
		if i < 0 {
			return nil, errors.Wrapf(wire.ErrInvalidValue, "%q is not an option of %q", s, w.label)
		}
		raw = int64(i)
	}
	state, err := wire.NewWidgetState(w.id, w.kind, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "widget %q", in.Widget)
	}

	w.state = state
	update := f.Snapshot()
	if w.kind == wire.KindTrigger {
		w.state, _ = wire.NewWidgetState(w.id, wire.KindTrigger, false)
	}
	return update, nil
}

// Snapshot returns the values of every displayed widget.
func (f *Frontend) Snapshot() *wire.WidgetStates {
	out := &wire.WidgetStates{Widgets: make([]*wire.WidgetState, 0, len(f.widgets))}
	for _, w := range f.widgets {
		out.Widgets = append(out.Widgets, w.state.Clone())
	}
	return out
}
