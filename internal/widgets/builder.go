package widgets

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/joeycumines/rerun/internal/runctx"
	"github.com/joeycumines/rerun/internal/wire"
)

// Alert levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
	LevelSuccess = "success"
)

// Builder declares elements for one run. A Builder with a nil RunContext
// runs in bare mode: widgets return their defaults and nothing is sent.
type Builder struct {
	ctx    *runctx.RunContext
	formID string
}

// NewBuilder returns a Builder writing to ctx.
func NewBuilder(ctx *runctx.RunContext) *Builder {
	return &Builder{ctx: ctx}
}

// FormID returns the id of the enclosing form, empty outside a form.
func (b *Builder) FormID() string {
	return b.formID
}

// Form returns a Builder whose widgets belong to the form identified by key.
// Values of widgets in a form reach the script only when the form's submit
// button is pressed.
func (b *Builder) Form(key string) (*Builder, error) {
	if key == "" {
		return nil, errors.Wrap(ErrInvalidWidget, "a form requires a key")
	}
	if b.formID != "" {
		return nil, errors.Wrap(ErrInvalidWidget, "forms cannot be nested in other forms")
	}
	return &Builder{ctx: b.ctx, formID: key}, nil
}

func (b *Builder) enqueue(msg *wire.ForwardMsg) error {
	if b.ctx == nil {
		return nil
	}
	return b.ctx.Enqueue(msg)
}

func (b *Builder) element(el *wire.Element) error {
	return b.enqueue(wire.NewDelta(el))
}

// SetPageConfig sets the page configuration. It must be the first element of
// the run and may be called once.
func (b *Builder) SetPageConfig(pc wire.PageConfig) error {
	return b.enqueue(&wire.ForwardMsg{PageConfigChanged: &pc})
}

// Markdown displays a markdown string.
func (b *Builder) Markdown(body string) error {
	return b.element(&wire.Element{Markdown: &wire.Markdown{Body: body}})
}

// Alert displays a message at the given level.
func (b *Builder) Alert(level, body string) error {
	switch level {
	case LevelInfo, LevelWarning, LevelError, LevelSuccess:
	default:
		return errors.Wrapf(ErrInvalidWidget, "unknown alert level %q", level)
	}
	return b.element(&wire.Element{Alert: &wire.Alert{Level: level, Body: body}})
}

// Exception displays an error raised by the script.
func (b *Builder) Exception(typ, message string) error {
	return b.element(&wire.Element{Exception: &wire.Exception{Type: typ, Message: message}})
}

// checkCallbackRules refuses change callbacks on widgets inside a form.
func (b *Builder) checkCallbackRules(opts Options) error {
	if b.ctx != nil && b.formID != "" && opts.OnChange != nil {
		return errors.WithStack(ErrCallbackInForm)
	}
	return nil
}

// checkSessionStateRules applies to keyed widgets whose value the script set
// in this run. hasDefault reports whether the declaration carried a
// non-default initial value.
func (b *Builder) checkSessionStateRules(key string, hasDefault, writesAllowed bool) error {
	if key == "" || b.ctx == nil || !b.ctx.SessionState.IsNewStateValue(key) {
		return nil
	}
	if !writesAllowed {
		return errors.Wrapf(ErrWritesNotAllowed, "key %q", key)
	}
	if hasDefault {
		return b.Alert(LevelWarning, fmt.Sprintf("The widget with key %q was created with a default value, "+
			"but it also had its value set via the session state API. The results of doing this are undefined.", key))
	}
	return nil
}
