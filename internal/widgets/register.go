// Package widgets implements widget registration and the widget constructors
// that scripts call: each constructor builds its declaration, registers it
// against the session state and enqueues the element.
package widgets

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/joeycumines/rerun/internal/runctx"
	"github.com/joeycumines/rerun/internal/sessionstate"
	"github.com/joeycumines/rerun/internal/widgetstate"
	"github.com/joeycumines/rerun/internal/wire"
)

// Widget is one widget declaration as seen by Register.
type Widget struct {
	// Kind is the element kind, e.g. "checkbox".
	Kind string
	// FuncName names the constructor in error messages; defaults to Kind.
	FuncName string
	// Declaration is the element without id or value fields.
	Declaration any
	FormID      string
	// UserKey is the explicit key, empty if none was given.
	UserKey string

	OnChange widgetstate.Callback
	Args     []any
	Kwargs   map[string]any

	Deserializer widgetstate.Deserializer
	Serializer   widgetstate.Serializer
	ValueType    wire.ValueKind
}

// Registration is the result of Register.
type Registration struct {
	ID    string
	Value any
	// SetFrontendValue is true when Value must be sent to the frontend.
	SetFrontendValue bool
}

// Register computes the widget's id, registers its metadata for the current
// run and resolves its value. With a nil ctx the script is running outside a
// session: the default value is returned and nothing is registered.
func Register(ctx *runctx.RunContext, w *Widget) (Registration, error) {
	id, err := ComputeWidgetID(w.Kind, w.Declaration, w.FormID, w.UserKey)
	if err != nil {
		return Registration{}, err
	}

	if ctx == nil {
		v, err := w.Deserializer(nil)
		if err != nil {
			return Registration{}, errors.Wrapf(err, "failed to compute default for %s", w.Kind)
		}
		return Registration{ID: id, Value: v}, nil
	}

	res, err := ctx.SessionState.RegisterWidget(&widgetstate.Metadata{
		ID:             id,
		Deserializer:   w.Deserializer,
		Serializer:     w.Serializer,
		ValueType:      w.ValueType,
		HasKey:         w.UserKey != "",
		Callback:       w.OnChange,
		CallbackArgs:   w.Args,
		CallbackKwargs: w.Kwargs,
	})
	if errors.Is(err, sessionstate.ErrDuplicateWidgetID) {
		return Registration{}, errors.Wrap(sessionstate.ErrDuplicateWidgetID, duplicateMessage(w.funcName(), w.UserKey))
	}
	if err != nil {
		return Registration{}, err
	}

	log.Trace().
		Str("session_id", ctx.SessionID).
		Str("widget_id", id).
		Str("kind", w.Kind).
		Bool("set_frontend_value", res.SetFrontendValue).
		Msg("Registered widget")

	return Registration{ID: id, Value: res.Value, SetFrontendValue: res.SetFrontendValue}, nil
}

func (w *Widget) funcName() string {
	if w.FuncName != "" {
		return w.FuncName
	}
	return w.Kind
}

func duplicateMessage(funcName, userKey string) string {
	if userKey != "" {
		return fmt.Sprintf("there are multiple identical st.%[1]s widgets with key=%[2]q; "+
			"make sure the key argument is unique for each st.%[1]s you create", funcName, userKey)
	}
	return fmt.Sprintf("there are multiple identical st.%[1]s widgets with the same generated key; "+
		"a widget's internal key is derived from its structure, so identical widgets collide. "+
		"Pass a unique key argument to st.%[1]s", funcName)
}
