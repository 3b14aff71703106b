package scripting

import (
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/joeycumines/rerun/internal/runctx"
	"github.com/joeycumines/rerun/internal/stateaccess"
	"github.com/joeycumines/rerun/internal/widgets"
	"github.com/joeycumines/rerun/internal/wire"
)

// ModuleName is the require() name of the script API. Sessions also expose
// it as the global st.
const ModuleName = "st"

// stModule is the script API. Every call resolves the run context active on
// the calling goroutine; outside a run, widgets return their defaults.
type stModule struct {
	registry *runctx.Registry
	state    *stateaccess.Accessor
}

// RequireST returns the loader of the script API, resolving sessions through
// registry.
func RequireST(registry *runctx.Registry) require.ModuleLoader {
	m := &stModule{registry: registry, state: stateaccess.New(registry)}
	return m.load
}

func (m *stModule) load(vm *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)

	m.bindElements(vm, exports, func() (*widgets.Builder, error) {
		return m.builder(), nil
	})

	_ = exports.Set("set_page_config", func(call goja.FunctionCall) goja.Value {
		o := optionsArg(vm, call.Argument(0))
		throwIf(vm, m.builder().SetPageConfig(wire.PageConfig{
			Title:               o.string("page_title", ""),
			Favicon:             o.string("page_icon", ""),
			Layout:              o.string("layout", ""),
			InitialSidebarState: o.string("initial_sidebar_state", ""),
		}))
		return goja.Undefined()
	})

	// form(key) returns an object with the widget functions of st, bound to
	// the form, plus form_submit_button.
	_ = exports.Set("form", func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		if _, err := m.builder().Form(key); err != nil {
			throwIf(vm, err)
		}
		form := vm.NewObject()
		formBuilder := func() (*widgets.Builder, error) {
			return m.builder().Form(key)
		}
		m.bindElements(vm, form, formBuilder)
		_ = form.Set("form_submit_button", func(call goja.FunctionCall) goja.Value {
			b, err := formBuilder()
			throwIf(vm, err)
			o := optionsArg(vm, call.Argument(1))
			pressed, err := b.FormSubmitButton(call.Argument(0).String(), o.widgetOptions("on_click"))
			throwIf(vm, err)
			return vm.ToValue(pressed)
		})
		return form
	})

	_ = exports.Set("session_state", vm.NewDynamicObject(&sessionStateObject{vm: vm, state: m.state}))
	_ = exports.Set("log", m.logObject(vm))
}

func (m *stModule) builder() *widgets.Builder {
	ctx, err := m.registry.Current()
	if err != nil {
		return widgets.NewBuilder(nil)
	}
	return widgets.NewBuilder(ctx)
}

// bindElements sets the element and widget functions on obj. builder is
// resolved per call.
func (m *stModule) bindElements(vm *goja.Runtime, obj *goja.Object, builder func() (*widgets.Builder, error)) {
	resolve := func() *widgets.Builder {
		b, err := builder()
		throwIf(vm, err)
		return b
	}

	_ = obj.Set("markdown", func(call goja.FunctionCall) goja.Value {
		throwIf(vm, resolve().Markdown(call.Argument(0).String()))
		return goja.Undefined()
	})

	_ = obj.Set("write", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		throwIf(vm, resolve().Markdown(strings.Join(parts, " ")))
		return goja.Undefined()
	})

	for _, level := range []string{widgets.LevelInfo, widgets.LevelWarning, widgets.LevelError, widgets.LevelSuccess} {
		_ = obj.Set(level, func(call goja.FunctionCall) goja.Value {
			throwIf(vm, resolve().Alert(level, call.Argument(0).String()))
			return goja.Undefined()
		})
	}

	_ = obj.Set("checkbox", func(call goja.FunctionCall) goja.Value {
		o := optionsArg(vm, call.Argument(1))
		v, err := resolve().Checkbox(call.Argument(0).String(), o.bool("value", false), o.widgetOptions("on_change"))
		throwIf(vm, err)
		return vm.ToValue(v)
	})

	_ = obj.Set("radio", func(call goja.FunctionCall) goja.Value {
		options := stringsArg(vm, call.Argument(1))
		o := optionsArg(vm, call.Argument(2))
		v, err := resolve().Radio(call.Argument(0).String(), options, int(o.int("index", 0)), o.widgetOptions("on_change"))
		throwIf(vm, err)
		if len(options) == 0 {
			return goja.Null()
		}
		return vm.ToValue(v)
	})

	_ = obj.Set("button", func(call goja.FunctionCall) goja.Value {
		o := optionsArg(vm, call.Argument(1))
		v, err := resolve().Button(call.Argument(0).String(), o.widgetOptions("on_click"))
		throwIf(vm, err)
		return vm.ToValue(v)
	})

	_ = obj.Set("text_input", func(call goja.FunctionCall) goja.Value {
		o := optionsArg(vm, call.Argument(1))
		v, err := resolve().TextInput(call.Argument(0).String(), o.string("value", ""), o.int("max_chars", 0), o.widgetOptions("on_change"))
		throwIf(vm, err)
		return vm.ToValue(v)
	})

	_ = obj.Set("number_input", func(call goja.FunctionCall) goja.Value {
		o := optionsArg(vm, call.Argument(1))
		v, err := resolve().NumberInput(call.Argument(0).String(), widgets.NumberOptions{
			Options: o.widgetOptions("on_change"),
			Value:   o.float("value"),
			Min:     o.float("min_value"),
			Max:     o.float("max_value"),
			Step:    valueOr(o.float("step"), 1),
			Int:     o.bool("integer", false),
		})
		throwIf(vm, err)
		return vm.ToValue(v)
	})
}

func (m *stModule) logObject(vm *goja.Runtime) *goja.Object {
	obj := vm.NewObject()
	for name, level := range map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"info":  zerolog.InfoLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
	} {
		_ = obj.Set(name, func(call goja.FunctionCall) goja.Value {
			m.scriptLog(level, call.Arguments)
			return goja.Undefined()
		})
	}
	return obj
}

// scriptLog writes a message logged by the script, tagged with the active
// session if there is one.
func (m *stModule) scriptLog(level zerolog.Level, args []goja.Value) {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	ev := log.WithLevel(level).Str("source", "script")
	if ctx, err := m.registry.Current(); err == nil {
		ev = ev.Str("session_id", ctx.SessionID)
	}
	ev.Msg(strings.Join(parts, " "))
}

// throwIf raises err as a JavaScript exception.
func throwIf(vm *goja.Runtime, err error) {
	if err != nil {
		panic(vm.NewGoError(err))
	}
}

// sessionStateObject exposes session state as st.session_state. Missing keys
// read as undefined; every other failure throws.
type sessionStateObject struct {
	vm    *goja.Runtime
	state *stateaccess.Accessor
}

func (o *sessionStateObject) Get(key string) goja.Value {
	v, err := o.state.Attr(key)
	if errors.Is(err, stateaccess.ErrNoAttribute) {
		return nil
	}
	throwIf(o.vm, err)
	return o.vm.ToValue(v)
}

func (o *sessionStateObject) Set(key string, val goja.Value) bool {
	throwIf(o.vm, o.state.SetAttr(key, val.Export()))
	return true
}

func (o *sessionStateObject) Has(key string) bool {
	ok, err := o.state.Has(key)
	throwIf(o.vm, err)
	return ok
}

func (o *sessionStateObject) Delete(key string) bool {
	throwIf(o.vm, o.state.DelAttr(key))
	return true
}

func (o *sessionStateObject) Keys() []string {
	keys, err := o.state.Keys()
	throwIf(o.vm, err)
	return keys
}

var _ goja.DynamicObject = (*sessionStateObject)(nil)
